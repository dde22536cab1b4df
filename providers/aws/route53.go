package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/kilnhq/kiln/internal/ir"
)

type route53Config struct {
	ZoneID  string   `json:"zone_id"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	TTL     int64    `json:"ttl"`
	Records []string `json:"records"`
}

type route53Adapter struct {
	p *Provider
}

// recordID packs the coordinates of a record set into one external id.
// Route 53 has no native identifier for record sets.
func recordID(zoneID, name, recordType string) string {
	return fmt.Sprintf("%s:%s:%s", zoneID, name, recordType)
}

func parseRecordID(externalID string) (zoneID, name, recordType string, err error) {
	parts := strings.SplitN(externalID, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("malformed record id %q", externalID)
	}
	return parts[0], parts[1], parts[2], nil
}

func (c *route53Config) recordSet() types.ResourceRecordSet {
	ttl := c.TTL
	if ttl == 0 {
		ttl = 300
	}
	set := types.ResourceRecordSet{
		Name: aws.String(c.Name),
		Type: types.RRType(c.Type),
		TTL:  aws.Int64(ttl),
	}
	for _, value := range c.Records {
		set.ResourceRecords = append(set.ResourceRecords, types.ResourceRecord{
			Value: aws.String(value),
		})
	}
	return set
}

func (a *route53Adapter) change(ctx context.Context, zoneID string, action types.ChangeAction, set types.ResourceRecordSet) error {
	_, err := a.p.route53Client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &types.ChangeBatch{
			Changes: []types.Change{{
				Action:            action,
				ResourceRecordSet: &set,
			}},
		},
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

func (a *route53Adapter) Create(ctx context.Context, attrs map[string]any) (string, error) {
	var cfg route53Config
	if err := decodeAttrs(attrs, &cfg); err != nil {
		return "", err
	}

	if err := a.change(ctx, cfg.ZoneID, types.ChangeActionUpsert, cfg.recordSet()); err != nil {
		return "", err
	}
	return recordID(cfg.ZoneID, cfg.Name, cfg.Type), nil
}

func (a *route53Adapter) Read(ctx context.Context, externalID string) (map[string]any, error) {
	zoneID, name, recordType, err := parseRecordID(externalID)
	if err != nil {
		return nil, &ir.PermanentAPIError{Err: err}
	}

	resp, err := a.p.route53Client.ListResourceRecordSets(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(zoneID),
		StartRecordName: aws.String(name),
		StartRecordType: types.RRType(recordType),
		MaxItems:        aws.Int32(1),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, classify(err)
	}

	for _, set := range resp.ResourceRecordSets {
		if strings.TrimSuffix(aws.ToString(set.Name), ".") != strings.TrimSuffix(name, ".") ||
			string(set.Type) != recordType {
			continue
		}
		var records []string
		for _, rec := range set.ResourceRecords {
			records = append(records, aws.ToString(rec.Value))
		}
		return map[string]any{
			"zone_id": zoneID,
			"name":    name,
			"type":    recordType,
			"ttl":     aws.ToInt64(set.TTL),
			"records": records,
		}, nil
	}
	return nil, nil
}

func (a *route53Adapter) Update(ctx context.Context, externalID string, attrs map[string]any) error {
	var cfg route53Config
	if err := decodeAttrs(attrs, &cfg); err != nil {
		return err
	}
	zoneID, _, _, err := parseRecordID(externalID)
	if err != nil {
		return &ir.PermanentAPIError{Err: err}
	}
	return a.change(ctx, zoneID, types.ChangeActionUpsert, cfg.recordSet())
}

func (a *route53Adapter) Delete(ctx context.Context, externalID string) error {
	zoneID, name, recordType, err := parseRecordID(externalID)
	if err != nil {
		return &ir.PermanentAPIError{Err: err}
	}

	// DELETE must match the stored record set exactly, so read it back
	// first. An already-gone record counts as deleted.
	current, err := a.Read(ctx, externalID)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}

	set := types.ResourceRecordSet{
		Name: aws.String(name),
		Type: types.RRType(recordType),
		TTL:  aws.Int64(current["ttl"].(int64)),
	}
	if records, ok := current["records"].([]string); ok {
		for _, value := range records {
			set.ResourceRecords = append(set.ResourceRecords, types.ResourceRecord{
				Value: aws.String(value),
			})
		}
	}
	return a.change(ctx, zoneID, types.ChangeActionDelete, set)
}
