// Package aws implements resource adapters backed by the AWS SDK.
package aws

import (
	"context"
	"encoding/json"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/route53"

	"github.com/kilnhq/kiln/internal/ir"
	"github.com/kilnhq/kiln/internal/provider"
)

// Provider bundles the service clients shared by every adapter.
type Provider struct {
	region string

	ec2Client     *ec2.Client
	rdsClient     *rds.Client
	ecrClient     *ecr.Client
	eksClient     *eks.Client
	route53Client *route53.Client
}

// New loads the default AWS credential chain for the given region.
func New(ctx context.Context, region string) (*Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	return &Provider{
		region:        region,
		ec2Client:     ec2.NewFromConfig(cfg),
		rdsClient:     rds.NewFromConfig(cfg),
		ecrClient:     ecr.NewFromConfig(cfg),
		eksClient:     eks.NewFromConfig(cfg),
		route53Client: route53.NewFromConfig(cfg),
	}, nil
}

// Register binds every typed adapter into the registry.
func (p *Provider) Register(reg *provider.Registry) {
	reg.Register(ir.TypeVPC, &vpcAdapter{p})
	reg.Register(ir.TypeSubnet, &subnetAdapter{p})
	reg.Register(ir.TypeSecurityGroup, &securityGroupAdapter{p})
	reg.Register(ir.TypeEC2Instance, &instanceAdapter{p})
	reg.Register(ir.TypeRDSInstance, &rdsAdapter{p})
	reg.Register(ir.TypeECRRepository, &ecrAdapter{p})
	reg.Register(ir.TypeEKSCluster, &eksAdapter{p})
	reg.Register(ir.TypeRoute53Record, &route53Adapter{p})
}

// decodeAttrs maps loosely-typed declaration attributes onto a typed
// config struct via a JSON round trip.
func decodeAttrs(attrs map[string]any, out any) error {
	raw, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode attributes: %w", err)
	}
	return nil
}
