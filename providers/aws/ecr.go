package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"
)

type ecrConfig struct {
	Name         string `json:"name"`
	ImmutableTag bool   `json:"immutable_tags"`
	ScanOnPush   bool   `json:"scan_on_push"`
}

type ecrAdapter struct {
	p *Provider
}

func (a *ecrAdapter) Create(ctx context.Context, attrs map[string]any) (string, error) {
	var cfg ecrConfig
	if err := decodeAttrs(attrs, &cfg); err != nil {
		return "", err
	}

	mutability := types.ImageTagMutabilityMutable
	if cfg.ImmutableTag {
		mutability = types.ImageTagMutabilityImmutable
	}

	resp, err := a.p.ecrClient.CreateRepository(ctx, &ecr.CreateRepositoryInput{
		RepositoryName:     aws.String(cfg.Name),
		ImageTagMutability: mutability,
		ImageScanningConfiguration: &types.ImageScanningConfiguration{
			ScanOnPush: cfg.ScanOnPush,
		},
	})
	if err != nil {
		return "", classify(err)
	}
	return aws.ToString(resp.Repository.RepositoryName), nil
}

func (a *ecrAdapter) Read(ctx context.Context, externalID string) (map[string]any, error) {
	resp, err := a.p.ecrClient.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
		RepositoryNames: []string{externalID},
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, classify(err)
	}
	if len(resp.Repositories) == 0 {
		return nil, nil
	}

	repo := resp.Repositories[0]
	return map[string]any{
		"name":           aws.ToString(repo.RepositoryName),
		"uri":            aws.ToString(repo.RepositoryUri),
		"immutable_tags": repo.ImageTagMutability == types.ImageTagMutabilityImmutable,
	}, nil
}

func (a *ecrAdapter) Update(ctx context.Context, externalID string, attrs map[string]any) error {
	var cfg ecrConfig
	if err := decodeAttrs(attrs, &cfg); err != nil {
		return err
	}

	mutability := types.ImageTagMutabilityMutable
	if cfg.ImmutableTag {
		mutability = types.ImageTagMutabilityImmutable
	}
	_, err := a.p.ecrClient.PutImageTagMutability(ctx, &ecr.PutImageTagMutabilityInput{
		RepositoryName:     aws.String(externalID),
		ImageTagMutability: mutability,
	})
	if err != nil {
		return classify(err)
	}

	_, err = a.p.ecrClient.PutImageScanningConfiguration(ctx, &ecr.PutImageScanningConfigurationInput{
		RepositoryName: aws.String(externalID),
		ImageScanningConfiguration: &types.ImageScanningConfiguration{
			ScanOnPush: cfg.ScanOnPush,
		},
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

func (a *ecrAdapter) Delete(ctx context.Context, externalID string) error {
	_, err := a.p.ecrClient.DeleteRepository(ctx, &ecr.DeleteRepositoryInput{
		RepositoryName: aws.String(externalID),
		Force:          true,
	})
	if err != nil && !isNotFound(err) {
		return classify(err)
	}
	return nil
}
