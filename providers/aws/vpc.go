package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

type vpcConfig struct {
	CidrBlock string            `json:"cidr_block"`
	Tags      map[string]string `json:"tags"`
}

type vpcAdapter struct {
	p *Provider
}

func (a *vpcAdapter) Create(ctx context.Context, attrs map[string]any) (string, error) {
	var cfg vpcConfig
	if err := decodeAttrs(attrs, &cfg); err != nil {
		return "", err
	}

	resp, err := a.p.ec2Client.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock: aws.String(cfg.CidrBlock),
	})
	if err != nil {
		return "", classify(err)
	}
	vpcID := aws.ToString(resp.Vpc.VpcId)

	if err := a.p.tagResource(ctx, vpcID, cfg.Tags); err != nil {
		return "", err
	}
	return vpcID, nil
}

func (a *vpcAdapter) Read(ctx context.Context, externalID string) (map[string]any, error) {
	resp, err := a.p.ec2Client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		VpcIds: []string{externalID},
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, classify(err)
	}
	if len(resp.Vpcs) == 0 {
		return nil, nil
	}

	vpc := resp.Vpcs[0]
	return map[string]any{
		"cidr_block": aws.ToString(vpc.CidrBlock),
		"state":      string(vpc.State),
	}, nil
}

func (a *vpcAdapter) Update(ctx context.Context, externalID string, attrs map[string]any) error {
	var cfg vpcConfig
	if err := decodeAttrs(attrs, &cfg); err != nil {
		return err
	}
	// CIDR blocks are immutable once created; only tags can move.
	return a.p.tagResource(ctx, externalID, cfg.Tags)
}

func (a *vpcAdapter) Delete(ctx context.Context, externalID string) error {
	_, err := a.p.ec2Client.DeleteVpc(ctx, &ec2.DeleteVpcInput{
		VpcId: aws.String(externalID),
	})
	if err != nil && !isNotFound(err) {
		return classify(err)
	}
	return nil
}

type subnetConfig struct {
	VpcID               string            `json:"vpc_id"`
	CidrBlock           string            `json:"cidr_block"`
	AvailabilityZone    string            `json:"availability_zone"`
	MapPublicIPOnLaunch bool              `json:"map_public_ip_on_launch"`
	Tags                map[string]string `json:"tags"`
}

type subnetAdapter struct {
	p *Provider
}

func (a *subnetAdapter) Create(ctx context.Context, attrs map[string]any) (string, error) {
	var cfg subnetConfig
	if err := decodeAttrs(attrs, &cfg); err != nil {
		return "", err
	}

	input := &ec2.CreateSubnetInput{
		VpcId:     aws.String(cfg.VpcID),
		CidrBlock: aws.String(cfg.CidrBlock),
	}
	if cfg.AvailabilityZone != "" {
		input.AvailabilityZone = aws.String(cfg.AvailabilityZone)
	}

	resp, err := a.p.ec2Client.CreateSubnet(ctx, input)
	if err != nil {
		return "", classify(err)
	}
	subnetID := aws.ToString(resp.Subnet.SubnetId)

	if cfg.MapPublicIPOnLaunch {
		_, err = a.p.ec2Client.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
			SubnetId:            aws.String(subnetID),
			MapPublicIpOnLaunch: &types.AttributeBooleanValue{Value: aws.Bool(true)},
		})
		if err != nil {
			return "", classify(err)
		}
	}

	if err := a.p.tagResource(ctx, subnetID, cfg.Tags); err != nil {
		return "", err
	}
	return subnetID, nil
}

func (a *subnetAdapter) Read(ctx context.Context, externalID string) (map[string]any, error) {
	resp, err := a.p.ec2Client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		SubnetIds: []string{externalID},
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, classify(err)
	}
	if len(resp.Subnets) == 0 {
		return nil, nil
	}

	subnet := resp.Subnets[0]
	return map[string]any{
		"vpc_id":            aws.ToString(subnet.VpcId),
		"cidr_block":        aws.ToString(subnet.CidrBlock),
		"availability_zone": aws.ToString(subnet.AvailabilityZone),
	}, nil
}

func (a *subnetAdapter) Update(ctx context.Context, externalID string, attrs map[string]any) error {
	var cfg subnetConfig
	if err := decodeAttrs(attrs, &cfg); err != nil {
		return err
	}

	_, err := a.p.ec2Client.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
		SubnetId:            aws.String(externalID),
		MapPublicIpOnLaunch: &types.AttributeBooleanValue{Value: aws.Bool(cfg.MapPublicIPOnLaunch)},
	})
	if err != nil {
		return classify(err)
	}
	return a.p.tagResource(ctx, externalID, cfg.Tags)
}

func (a *subnetAdapter) Delete(ctx context.Context, externalID string) error {
	_, err := a.p.ec2Client.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{
		SubnetId: aws.String(externalID),
	})
	if err != nil && !isNotFound(err) {
		return classify(err)
	}
	return nil
}

type securityGroupRule struct {
	FromPort   int32    `json:"from_port"`
	ToPort     int32    `json:"to_port"`
	Protocol   string   `json:"protocol"`
	CidrBlocks []string `json:"cidr_blocks"`
}

type securityGroupConfig struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	VpcID       string              `json:"vpc_id"`
	Ingress     []securityGroupRule `json:"ingress"`
	Tags        map[string]string   `json:"tags"`
}

type securityGroupAdapter struct {
	p *Provider
}

func (a *securityGroupAdapter) Create(ctx context.Context, attrs map[string]any) (string, error) {
	var cfg securityGroupConfig
	if err := decodeAttrs(attrs, &cfg); err != nil {
		return "", err
	}

	description := cfg.Description
	if description == "" {
		description = fmt.Sprintf("managed security group %s", cfg.Name)
	}

	resp, err := a.p.ec2Client.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(cfg.Name),
		Description: aws.String(description),
		VpcId:       aws.String(cfg.VpcID),
	})
	if err != nil {
		return "", classify(err)
	}
	groupID := aws.ToString(resp.GroupId)

	if err := a.authorizeIngress(ctx, groupID, cfg.Ingress); err != nil {
		return "", err
	}
	if err := a.p.tagResource(ctx, groupID, cfg.Tags); err != nil {
		return "", err
	}
	return groupID, nil
}

func (a *securityGroupAdapter) authorizeIngress(ctx context.Context, groupID string, rules []securityGroupRule) error {
	if len(rules) == 0 {
		return nil
	}

	permissions := make([]types.IpPermission, 0, len(rules))
	for _, rule := range rules {
		perm := types.IpPermission{
			FromPort:   aws.Int32(rule.FromPort),
			ToPort:     aws.Int32(rule.ToPort),
			IpProtocol: aws.String(rule.Protocol),
		}
		for _, cidr := range rule.CidrBlocks {
			perm.IpRanges = append(perm.IpRanges, types.IpRange{CidrIp: aws.String(cidr)})
		}
		permissions = append(permissions, perm)
	}

	_, err := a.p.ec2Client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:       aws.String(groupID),
		IpPermissions: permissions,
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

func (a *securityGroupAdapter) Read(ctx context.Context, externalID string) (map[string]any, error) {
	resp, err := a.p.ec2Client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupIds: []string{externalID},
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, classify(err)
	}
	if len(resp.SecurityGroups) == 0 {
		return nil, nil
	}

	group := resp.SecurityGroups[0]
	return map[string]any{
		"name":        aws.ToString(group.GroupName),
		"description": aws.ToString(group.Description),
		"vpc_id":      aws.ToString(group.VpcId),
	}, nil
}

func (a *securityGroupAdapter) Update(ctx context.Context, externalID string, attrs map[string]any) error {
	var cfg securityGroupConfig
	if err := decodeAttrs(attrs, &cfg); err != nil {
		return err
	}

	// Replace the rule set wholesale: revoke whatever is attached, then
	// authorize the declared rules.
	resp, err := a.p.ec2Client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupIds: []string{externalID},
	})
	if err != nil {
		return classify(err)
	}
	if len(resp.SecurityGroups) > 0 && len(resp.SecurityGroups[0].IpPermissions) > 0 {
		_, err = a.p.ec2Client.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
			GroupId:       aws.String(externalID),
			IpPermissions: resp.SecurityGroups[0].IpPermissions,
		})
		if err != nil {
			return classify(err)
		}
	}

	if err := a.authorizeIngress(ctx, externalID, cfg.Ingress); err != nil {
		return err
	}
	return a.p.tagResource(ctx, externalID, cfg.Tags)
}

func (a *securityGroupAdapter) Delete(ctx context.Context, externalID string) error {
	_, err := a.p.ec2Client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
		GroupId: aws.String(externalID),
	})
	if err != nil && !isNotFound(err) {
		return classify(err)
	}
	return nil
}
