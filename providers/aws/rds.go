package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
)

type rdsConfig struct {
	Identifier       string   `json:"identifier"`
	Engine           string   `json:"engine"`
	EngineVersion    string   `json:"engine_version"`
	InstanceClass    string   `json:"instance_class"`
	AllocatedStorage int32    `json:"allocated_storage"`
	Username         string   `json:"username"`
	Password         string   `json:"password"`
	SecurityGroupIDs []string `json:"security_group_ids"`
}

type rdsAdapter struct {
	p *Provider
}

func (a *rdsAdapter) Create(ctx context.Context, attrs map[string]any) (string, error) {
	var cfg rdsConfig
	if err := decodeAttrs(attrs, &cfg); err != nil {
		return "", err
	}

	input := &rds.CreateDBInstanceInput{
		DBInstanceIdentifier: aws.String(cfg.Identifier),
		DBInstanceClass:      aws.String(cfg.InstanceClass),
		Engine:               aws.String(cfg.Engine),
		AllocatedStorage:     aws.Int32(cfg.AllocatedStorage),
		MasterUsername:       aws.String(cfg.Username),
		MasterUserPassword:   aws.String(cfg.Password),
	}
	if cfg.EngineVersion != "" {
		input.EngineVersion = aws.String(cfg.EngineVersion)
	}
	if len(cfg.SecurityGroupIDs) > 0 {
		input.VpcSecurityGroupIds = cfg.SecurityGroupIDs
	}

	resp, err := a.p.rdsClient.CreateDBInstance(ctx, input)
	if err != nil {
		return "", classify(err)
	}
	return aws.ToString(resp.DBInstance.DBInstanceIdentifier), nil
}

func (a *rdsAdapter) Read(ctx context.Context, externalID string) (map[string]any, error) {
	resp, err := a.p.rdsClient.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: aws.String(externalID),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, classify(err)
	}
	if len(resp.DBInstances) == 0 {
		return nil, nil
	}

	db := resp.DBInstances[0]
	attrs := map[string]any{
		"identifier":        aws.ToString(db.DBInstanceIdentifier),
		"engine":            aws.ToString(db.Engine),
		"engine_version":    aws.ToString(db.EngineVersion),
		"instance_class":    aws.ToString(db.DBInstanceClass),
		"allocated_storage": aws.ToInt32(db.AllocatedStorage),
		"status":            aws.ToString(db.DBInstanceStatus),
	}
	if db.Endpoint != nil {
		attrs["endpoint"] = aws.ToString(db.Endpoint.Address)
	}
	return attrs, nil
}

func (a *rdsAdapter) Update(ctx context.Context, externalID string, attrs map[string]any) error {
	var cfg rdsConfig
	if err := decodeAttrs(attrs, &cfg); err != nil {
		return err
	}

	input := &rds.ModifyDBInstanceInput{
		DBInstanceIdentifier: aws.String(externalID),
		ApplyImmediately:     aws.Bool(true),
	}
	if cfg.InstanceClass != "" {
		input.DBInstanceClass = aws.String(cfg.InstanceClass)
	}
	if cfg.AllocatedStorage > 0 {
		input.AllocatedStorage = aws.Int32(cfg.AllocatedStorage)
	}
	if len(cfg.SecurityGroupIDs) > 0 {
		input.VpcSecurityGroupIds = cfg.SecurityGroupIDs
	}

	_, err := a.p.rdsClient.ModifyDBInstance(ctx, input)
	if err != nil {
		return classify(err)
	}
	return nil
}

func (a *rdsAdapter) Delete(ctx context.Context, externalID string) error {
	_, err := a.p.rdsClient.DeleteDBInstance(ctx, &rds.DeleteDBInstanceInput{
		DBInstanceIdentifier: aws.String(externalID),
		SkipFinalSnapshot:    aws.Bool(true),
	})
	if err != nil && !isNotFound(err) {
		return classify(err)
	}
	return nil
}
