package cloud

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/szaher/infraagent/internal/tools"
)

// Tool names.
const (
	ToolCreateECS    = "create_ecs_instance"
	ToolCreateBucket = "create_oss_bucket"
	ToolCheckECS     = "check_ecs_status"
)

// Toolkit binds the provisioning tools to provider clients.
type Toolkit struct {
	cfg     Config
	ecs     ECSAPI
	buckets BucketAPI
	logger  *slog.Logger
}

// ToolkitOption configures a Toolkit.
type ToolkitOption func(*Toolkit)

// WithLogger sets the logger used for provider calls.
func WithLogger(l *slog.Logger) ToolkitOption {
	return func(k *Toolkit) { k.logger = l }
}

// NewToolkit creates a toolkit over the given clients. Zero config fields
// take their defaults.
func NewToolkit(cfg Config, ecsAPI ECSAPI, buckets BucketAPI, opts ...ToolkitOption) *Toolkit {
	k := &Toolkit{
		cfg:     cfg.withDefaults(),
		ecs:     ecsAPI,
		buckets: buckets,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	k.logger = k.logger.With("component", "cloud", "region", k.cfg.RegionID)
	return k
}

// Connect builds the provider clients from cfg and returns a toolkit over them.
func Connect(ctx context.Context, cfg Config, opts ...ToolkitOption) (*Toolkit, error) {
	ecsClient, err := NewECSClient(cfg)
	if err != nil {
		return nil, err
	}
	bucketClient, err := NewBucketClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewToolkit(cfg, ecsClient, bucketClient, opts...), nil
}

// Config returns the effective configuration.
func (k *Toolkit) Config() Config { return k.cfg }

// Descriptors returns the provisioning tools in registration order.
func (k *Toolkit) Descriptors() []tools.Descriptor {
	d := k.cfg.ECS
	return []tools.Descriptor{
		{
			Name: ToolCreateECS,
			Description: fmt.Sprintf("Create an ECS instance. Parameters: instance_type (default %s), image_id (default %s), "+
				"instance_name (default %s), system_disk_size in GB (default %d), optional security_group_id, vswitch_id, password.",
				d.InstanceType, d.ImageID, d.InstanceName, d.SystemDiskSizeGB),
			Invoke: k.createInstance,
		},
		{
			Name: ToolCreateBucket,
			Description: fmt.Sprintf("Create an OSS bucket. Parameters: bucket_name (required, supplied by the user), "+
				"acl (private, public-read or public-read-write; default %s), storage_class (default %s).",
				k.cfg.OSS.ACL, k.cfg.OSS.StorageClass),
			Invoke: k.createBucket,
		},
		{
			Name:        ToolCheckECS,
			Description: "Check the status of an ECS instance. Parameter: the instance ID.",
			Invoke:      k.checkInstance,
		},
	}
}
