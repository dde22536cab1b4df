package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/kilnhq/kiln/internal/ir"
)

type instanceConfig struct {
	AMI              string            `json:"ami"`
	InstanceType     string            `json:"instance_type"`
	SubnetID         string            `json:"subnet_id"`
	SecurityGroupIDs []string          `json:"security_group_ids"`
	KeyName          string            `json:"key_name"`
	Tags             map[string]string `json:"tags"`
}

type instanceAdapter struct {
	p *Provider
}

func (a *instanceAdapter) Create(ctx context.Context, attrs map[string]any) (string, error) {
	var cfg instanceConfig
	if err := decodeAttrs(attrs, &cfg); err != nil {
		return "", err
	}

	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(cfg.AMI),
		InstanceType: types.InstanceType(cfg.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
	}
	if cfg.SubnetID != "" {
		input.SubnetId = aws.String(cfg.SubnetID)
	}
	if len(cfg.SecurityGroupIDs) > 0 {
		input.SecurityGroupIds = cfg.SecurityGroupIDs
	}
	if cfg.KeyName != "" {
		input.KeyName = aws.String(cfg.KeyName)
	}

	resp, err := a.p.ec2Client.RunInstances(ctx, input)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Instances) == 0 {
		return "", &ir.PermanentAPIError{Err: fmt.Errorf("RunInstances returned no instances")}
	}
	instanceID := aws.ToString(resp.Instances[0].InstanceId)

	if err := a.p.tagResource(ctx, instanceID, cfg.Tags); err != nil {
		return "", err
	}
	return instanceID, nil
}

func (a *instanceAdapter) Read(ctx context.Context, externalID string) (map[string]any, error) {
	resp, err := a.p.ec2Client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{externalID},
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, classify(err)
	}
	if len(resp.Reservations) == 0 || len(resp.Reservations[0].Instances) == 0 {
		return nil, nil
	}

	inst := resp.Reservations[0].Instances[0]
	if inst.State != nil && inst.State.Name == types.InstanceStateNameTerminated {
		return nil, nil
	}

	return map[string]any{
		"ami":           aws.ToString(inst.ImageId),
		"instance_type": string(inst.InstanceType),
		"subnet_id":     aws.ToString(inst.SubnetId),
		"state":         string(inst.State.Name),
	}, nil
}

func (a *instanceAdapter) Update(ctx context.Context, externalID string, attrs map[string]any) error {
	var cfg instanceConfig
	if err := decodeAttrs(attrs, &cfg); err != nil {
		return err
	}

	if len(cfg.SecurityGroupIDs) > 0 {
		_, err := a.p.ec2Client.ModifyInstanceAttribute(ctx, &ec2.ModifyInstanceAttributeInput{
			InstanceId: aws.String(externalID),
			Groups:     cfg.SecurityGroupIDs,
		})
		if err != nil {
			return classify(err)
		}
	}
	return a.p.tagResource(ctx, externalID, cfg.Tags)
}

func (a *instanceAdapter) Delete(ctx context.Context, externalID string) error {
	_, err := a.p.ec2Client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{externalID},
	})
	if err != nil && !isNotFound(err) {
		return classify(err)
	}
	return nil
}
