package aws

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

// tagResource applies declared tags to an EC2-family resource.
func (p *Provider) tagResource(ctx context.Context, externalID string, tags map[string]string) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := p.ec2Client.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{externalID},
		Tags:      ec2Tags(tags),
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// ec2Tags converts a tag map into SDK tag structs, key-sorted so calls
// are reproducible.
func ec2Tags(tags map[string]string) []types.Tag {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.Tag, 0, len(tags))
	for _, k := range keys {
		out = append(out, types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}

// isNotFound reports whether an SDK error means the resource is already
// gone. Deleting a vanished resource is treated as success.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if strings.Contains(code, "NotFound") || strings.Contains(code, "NoSuchEntity") {
			return true
		}
	}
	return strings.Contains(err.Error(), "NotFound")
}
