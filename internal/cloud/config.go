// Package cloud implements the Alibaba Cloud provisioning tools the agent can
// dispatch: ECS instance creation, ECS status lookup and OSS bucket creation.
package cloud

import (
	"errors"
	"fmt"
	"strings"
)

// Defaults applied when the model omits a parameter.
const (
	DefaultRegion           = "cn-hangzhou"
	DefaultInstanceType     = "ecs.g6.large"
	DefaultImageID          = "centos_7_9_x64_20G_alibase_20231219.vhd"
	DefaultInstanceName     = "agent-created-ecs"
	DefaultSystemDiskSizeGB = 40
	DefaultStorageClass     = "Standard"
	DefaultACL              = "private"
)

// Resource types reported in observations.
const (
	ResourceECS = "ecs"
	ResourceOSS = "oss"
)

// Error codes set by the tools themselves; provider codes pass through.
const (
	CodeInvalidBucketName = "InvalidBucketName"
	CodeInvalidACL        = "InvalidACL"
	CodeInvalidStorage    = "InvalidStorageClass"
	CodeMissingParameter  = "MissingParameter"
	CodeInstanceNotFound  = "InstanceNotFound"
	CodeProviderError     = "ProviderError"
)

// ECSDefaults are the instance parameters used when a request omits them.
type ECSDefaults struct {
	InstanceType     string `yaml:"instance_type"`
	ImageID          string `yaml:"image_id"`
	InstanceName     string `yaml:"instance_name"`
	SystemDiskSizeGB int    `yaml:"system_disk_size"`
	SecurityGroupID  string `yaml:"security_group_id,omitempty"`
	VSwitchID        string `yaml:"vswitch_id,omitempty"`
}

// OSSDefaults are the bucket parameters used when a request omits them.
type OSSDefaults struct {
	StorageClass string `yaml:"storage_class"`
	ACL          string `yaml:"acl"`
	// Endpoint overrides the S3-compatible OSS endpoint derived from the region.
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Config holds the account credentials and provisioning defaults.
type Config struct {
	RegionID        string      `yaml:"region_id"`
	AccessKeyID     string      `yaml:"access_key_id"`
	AccessKeySecret string      `yaml:"access_key_secret"`
	ECS             ECSDefaults `yaml:"ecs"`
	OSS             OSSDefaults `yaml:"oss"`
}

// DefaultConfig returns a Config populated with the provisioning defaults.
func DefaultConfig() Config {
	return Config{
		RegionID: DefaultRegion,
		ECS: ECSDefaults{
			InstanceType:     DefaultInstanceType,
			ImageID:          DefaultImageID,
			InstanceName:     DefaultInstanceName,
			SystemDiskSizeGB: DefaultSystemDiskSizeGB,
		},
		OSS: OSSDefaults{
			StorageClass: DefaultStorageClass,
			ACL:          DefaultACL,
		},
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RegionID == "" {
		c.RegionID = d.RegionID
	}
	if c.ECS.InstanceType == "" {
		c.ECS.InstanceType = d.ECS.InstanceType
	}
	if c.ECS.ImageID == "" {
		c.ECS.ImageID = d.ECS.ImageID
	}
	if c.ECS.InstanceName == "" {
		c.ECS.InstanceName = d.ECS.InstanceName
	}
	if c.ECS.SystemDiskSizeGB <= 0 {
		c.ECS.SystemDiskSizeGB = d.ECS.SystemDiskSizeGB
	}
	if c.OSS.StorageClass == "" {
		c.OSS.StorageClass = d.OSS.StorageClass
	}
	if c.OSS.ACL == "" {
		c.OSS.ACL = d.OSS.ACL
	}
	return c
}

// OSSEndpoint returns the S3-compatible endpoint for the configured region.
func (c Config) OSSEndpoint() string {
	if c.OSS.Endpoint != "" {
		return strings.TrimRight(c.OSS.Endpoint, "/")
	}
	region := c.RegionID
	if region == "" {
		region = DefaultRegion
	}
	return fmt.Sprintf("https://oss-%s.aliyuncs.com", region)
}

// Validate checks the fields a provisioning call cannot work without.
func (c Config) Validate() error {
	var errs []error
	if c.ECS.SystemDiskSizeGB < 0 {
		errs = append(errs, fmt.Errorf("ecs.system_disk_size must not be negative, got %d", c.ECS.SystemDiskSizeGB))
	}
	if c.OSS.ACL != "" && !validACL(c.OSS.ACL) {
		errs = append(errs, fmt.Errorf("oss.acl %q is not one of %s", c.OSS.ACL, strings.Join(acls, ", ")))
	}
	return errors.Join(errs...)
}

// HasCredentials reports whether an access key pair is configured.
func (c Config) HasCredentials() bool {
	return c.AccessKeyID != "" && c.AccessKeySecret != ""
}

// ErrorCode extracts a provider error code from err. Both the Alibaba SDK
// server errors and smithy API errors expose one.
func ErrorCode(err error) string {
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		if code := coded.ErrorCode(); code != "" {
			return code
		}
	}
	return CodeProviderError
}
