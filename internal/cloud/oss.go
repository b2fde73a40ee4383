package cloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/szaher/infraagent/internal/action"
	"github.com/szaher/infraagent/internal/tools"
)

var (
	acls           = []string{"private", "public-read", "public-read-write"}
	storageClasses = []string{"Standard", "IA", "Archive", "ColdArchive"}
)

// HeaderStorageClass carries the storage class on OSS bucket creation.
const HeaderStorageClass = "x-oss-storage-class"

func validACL(acl string) bool {
	return oneOf(acls, acl)
}

func oneOf(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// withStorageClass adds the OSS storage class header to a single request.
func withStorageClass(class string) func(*s3.Options) {
	return func(o *s3.Options) {
		o.APIOptions = append(o.APIOptions, smithyhttp.AddHeaderValue(HeaderStorageClass, class))
	}
}

// BucketAPI is the subset of the S3 client used to create OSS buckets.
// *s3.Client satisfies it.
type BucketAPI interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// NewBucketClient returns an S3 client pointed at the OSS S3-compatible
// endpoint of the configured region.
func NewBucketClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	cfg = cfg.withDefaults()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.RegionID),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("loading OSS client config: %w", err)
	}
	endpoint := cfg.OSSEndpoint()
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	}), nil
}

// createBucket implements create_oss_bucket. A text payload is accepted only
// when it is itself a valid bucket name.
func (k *Toolkit) createBucket(ctx context.Context, params tools.Params) (*tools.Observation, error) {
	var name string
	if params.IsObject() {
		name, _ = params.String("bucket_name")
	} else {
		name = strings.TrimSpace(params.Text)
	}
	if name == "" {
		return tools.Failed(ResourceOSS, CodeMissingParameter, "bucket_name is required"), nil
	}
	if !action.ValidBucketName(name) {
		obs := tools.Failed(ResourceOSS, CodeInvalidBucketName,
			fmt.Sprintf("invalid bucket name %q: use 3-63 lowercase letters, digits and hyphens, starting and ending with a letter or digit", name))
		obs.ResourceID = name
		return obs, nil
	}

	acl := params.StringOr("acl", k.cfg.OSS.ACL)
	if !validACL(acl) {
		return tools.Failed(ResourceOSS, CodeInvalidACL,
			fmt.Sprintf("invalid acl %q: must be one of %s", acl, strings.Join(acls, ", "))), nil
	}
	storageClass := params.StringOr("storage_class", k.cfg.OSS.StorageClass)
	if !oneOf(storageClasses, storageClass) {
		return tools.Failed(ResourceOSS, CodeInvalidStorage,
			fmt.Sprintf("invalid storage_class %q: must be one of %s", storageClass, strings.Join(storageClasses, ", "))), nil
	}

	_, err := k.buckets.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(name),
		ACL:    types.BucketCannedACL(acl),
	}, withStorageClass(storageClass))
	if err != nil {
		k.logger.Warn("OSS bucket creation failed", "bucket", name, "error", err)
		obs := tools.Failed(ResourceOSS, ErrorCode(err), fmt.Sprintf("OSS bucket creation failed: %v", err))
		obs.ResourceID = name
		return obs, nil
	}

	k.logger.Info("OSS bucket created", "bucket", name, "acl", acl, "storage_class", storageClass)
	return &tools.Observation{
		RequestID:    tools.NewRequestID(),
		ResourceType: ResourceOSS,
		Status:       tools.StatusSuccess,
		ResourceID:   name,
		Message:      "OSS bucket created",
		Details: map[string]interface{}{
			"bucket_name":   name,
			"storage_class": storageClass,
			"acl":           acl,
			"region":        k.cfg.RegionID,
		},
	}, nil
}
