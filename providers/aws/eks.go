package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/eks/types"
)

type eksConfig struct {
	Name             string   `json:"name"`
	Version          string   `json:"version"`
	RoleARN          string   `json:"role_arn"`
	SubnetIDs        []string `json:"subnet_ids"`
	SecurityGroupIDs []string `json:"security_group_ids"`
}

type eksAdapter struct {
	p *Provider
}

func (a *eksAdapter) Create(ctx context.Context, attrs map[string]any) (string, error) {
	var cfg eksConfig
	if err := decodeAttrs(attrs, &cfg); err != nil {
		return "", err
	}

	input := &eks.CreateClusterInput{
		Name:    aws.String(cfg.Name),
		RoleArn: aws.String(cfg.RoleARN),
		ResourcesVpcConfig: &types.VpcConfigRequest{
			SubnetIds:        cfg.SubnetIDs,
			SecurityGroupIds: cfg.SecurityGroupIDs,
		},
	}
	if cfg.Version != "" {
		input.Version = aws.String(cfg.Version)
	}

	resp, err := a.p.eksClient.CreateCluster(ctx, input)
	if err != nil {
		return "", classify(err)
	}
	return aws.ToString(resp.Cluster.Name), nil
}

func (a *eksAdapter) Read(ctx context.Context, externalID string) (map[string]any, error) {
	resp, err := a.p.eksClient.DescribeCluster(ctx, &eks.DescribeClusterInput{
		Name: aws.String(externalID),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, classify(err)
	}

	cluster := resp.Cluster
	attrs := map[string]any{
		"name":     aws.ToString(cluster.Name),
		"version":  aws.ToString(cluster.Version),
		"role_arn": aws.ToString(cluster.RoleArn),
		"status":   string(cluster.Status),
	}
	if cluster.Endpoint != nil {
		attrs["endpoint"] = aws.ToString(cluster.Endpoint)
	}
	return attrs, nil
}

func (a *eksAdapter) Update(ctx context.Context, externalID string, attrs map[string]any) error {
	var cfg eksConfig
	if err := decodeAttrs(attrs, &cfg); err != nil {
		return err
	}

	if cfg.Version != "" {
		_, err := a.p.eksClient.UpdateClusterVersion(ctx, &eks.UpdateClusterVersionInput{
			Name:    aws.String(externalID),
			Version: aws.String(cfg.Version),
		})
		if err != nil {
			return classify(err)
		}
	}

	if len(cfg.SubnetIDs) > 0 || len(cfg.SecurityGroupIDs) > 0 {
		_, err := a.p.eksClient.UpdateClusterConfig(ctx, &eks.UpdateClusterConfigInput{
			Name: aws.String(externalID),
			ResourcesVpcConfig: &types.VpcConfigRequest{
				SubnetIds:        cfg.SubnetIDs,
				SecurityGroupIds: cfg.SecurityGroupIDs,
			},
		})
		if err != nil {
			return classify(err)
		}
	}
	return nil
}

func (a *eksAdapter) Delete(ctx context.Context, externalID string) error {
	_, err := a.p.eksClient.DeleteCluster(ctx, &eks.DeleteClusterInput{
		Name: aws.String(externalID),
	})
	if err != nil && !isNotFound(err) {
		return classify(err)
	}
	return nil
}
