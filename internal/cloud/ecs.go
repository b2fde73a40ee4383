package cloud

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aliyun/alibaba-cloud-sdk-go/sdk/requests"
	"github.com/aliyun/alibaba-cloud-sdk-go/services/ecs"

	"github.com/szaher/infraagent/internal/tools"
)

// ECSAPI is the subset of the ECS client used by the tools. *ecs.Client
// satisfies it.
type ECSAPI interface {
	CreateInstance(request *ecs.CreateInstanceRequest) (*ecs.CreateInstanceResponse, error)
	DescribeInstances(request *ecs.DescribeInstancesRequest) (*ecs.DescribeInstancesResponse, error)
}

// NewECSClient returns an ECS client authenticated with the configured key pair.
func NewECSClient(cfg Config) (*ecs.Client, error) {
	cfg = cfg.withDefaults()
	client, err := ecs.NewClientWithAccessKey(cfg.RegionID, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("creating ECS client: %w", err)
	}
	return client, nil
}

// createInstance implements create_ecs_instance.
func (k *Toolkit) createInstance(ctx context.Context, params tools.Params) (*tools.Observation, error) {
	if !params.IsObject() {
		return nil, fmt.Errorf("create_ecs_instance expects a JSON object, got %q", params.Text)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := k.cfg.ECS

	req := ecs.CreateCreateInstanceRequest()
	req.RegionId = k.cfg.RegionID
	req.InstanceType = params.StringOr("instance_type", d.InstanceType)
	req.ImageId = params.StringOr("image_id", d.ImageID)
	req.InstanceName = params.StringOr("instance_name", d.InstanceName)
	size, ok := params.Int("system_disk_size")
	if !ok || size <= 0 {
		size = d.SystemDiskSizeGB
	}
	req.SystemDiskSize = requests.NewInteger(size)
	req.SecurityGroupId = params.StringOr("security_group_id", d.SecurityGroupID)
	req.VSwitchId = params.StringOr("vswitch_id", d.VSwitchID)
	if pw, ok := params.String("password"); ok {
		req.Password = pw
	}

	resp, err := k.ecs.CreateInstance(req)
	if err != nil {
		k.logger.Warn("ECS instance creation failed", "instance_type", req.InstanceType, "error", err)
		return tools.Failed(ResourceECS, ErrorCode(err), fmt.Sprintf("ECS instance creation failed: %v", err)), nil
	}

	k.logger.Info("ECS instance created", "instance_id", resp.InstanceId, "region", k.cfg.RegionID)
	return &tools.Observation{
		RequestID:    tools.NewRequestID(),
		ResourceType: ResourceECS,
		Status:       tools.StatusSuccess,
		ResourceID:   resp.InstanceId,
		Message:      "ECS instance created",
		Details: map[string]interface{}{
			"instance_id":   resp.InstanceId,
			"instance_name": req.InstanceName,
			"instance_type": req.InstanceType,
			"region":        k.cfg.RegionID,
		},
	}, nil
}

// checkInstance implements check_ecs_status. The instance id is either the
// raw payload or the instance_id field of an object.
func (k *Toolkit) checkInstance(ctx context.Context, params tools.Params) (*tools.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := params.Text
	if params.IsObject() {
		id, _ = params.String("instance_id")
	}
	if id == "" {
		return tools.Failed(ResourceECS, CodeMissingParameter, "instance_id is required"), nil
	}

	ids, err := json.Marshal([]string{id})
	if err != nil {
		return nil, fmt.Errorf("encoding instance ids: %w", err)
	}
	req := ecs.CreateDescribeInstancesRequest()
	req.RegionId = k.cfg.RegionID
	req.InstanceIds = string(ids)

	resp, err := k.ecs.DescribeInstances(req)
	if err != nil {
		k.logger.Warn("ECS status lookup failed", "instance_id", id, "error", err)
		return tools.Failed(ResourceECS, ErrorCode(err), fmt.Sprintf("ECS status lookup failed: %v", err)), nil
	}
	if len(resp.Instances.Instance) == 0 {
		obs := tools.Failed(ResourceECS, CodeInstanceNotFound, fmt.Sprintf("ECS instance %s not found", id))
		obs.ResourceID = id
		return obs, nil
	}

	inst := resp.Instances.Instance[0]
	publicIP := ""
	if len(inst.PublicIpAddress.IpAddress) > 0 {
		publicIP = inst.PublicIpAddress.IpAddress[0]
	}
	return &tools.Observation{
		RequestID:    tools.NewRequestID(),
		ResourceType: ResourceECS,
		Status:       tools.StatusSuccess,
		ResourceID:   inst.InstanceId,
		Message:      fmt.Sprintf("ECS instance is %s", inst.Status),
		Details: map[string]interface{}{
			"instance_id":   inst.InstanceId,
			"instance_name": inst.InstanceName,
			"status":        inst.Status,
			"public_ip":     publicIP,
		},
	}, nil
}
