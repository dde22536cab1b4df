package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kilnhq/kiln/internal/ir"
)

// s3Store keeps the full snapshot map as a single JSON object in S3,
// with optional DynamoDB conditional-put locking. The map is loaded
// once on open and flushed after every mutation; the run lock makes
// that safe against concurrent writers.
type s3Store struct {
	bucket    string
	key       string
	region    string
	lockTable string
	profile   string

	s3Client *s3.Client
	dbClient *dynamodb.Client
	lockID   string

	mu        sync.Mutex
	snapshots map[string]*ir.Snapshot
}

type s3Document struct {
	Version   int                     `json:"version"`
	Lineage   string                  `json:"lineage,omitempty"`
	Snapshots map[string]*ir.Snapshot `json:"snapshots"`
}

// openS3 opens a location of the form
// s3://bucket/path/to/state.json?region=us-east-1&lock_table=kiln-locks.
func openS3(rawURL string) (*s3Store, error) {
	st, err := parseS3Location(rawURL)
	if err != nil {
		return nil, err
	}

	if err := st.initClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize s3 state backend: %w", err)
	}
	if err := st.load(); err != nil {
		return nil, err
	}
	return st, nil
}

func parseS3Location(rawURL string) (*s3Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid s3 state location %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("s3 state location requires a bucket: %q", rawURL)
	}

	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		key = "kiln/state.json"
	}

	region := u.Query().Get("region")
	if region == "" {
		region = "us-east-1"
	}

	return &s3Store{
		bucket:    u.Host,
		key:       key,
		region:    region,
		lockTable: u.Query().Get("lock_table"),
		profile:   u.Query().Get("profile"),
	}, nil
}

func (s *s3Store) initClients() error {
	ctx := context.Background()

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(s.region))
	if s.profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(s.profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("unable to load AWS config: %w", err)
	}

	s.s3Client = s3.NewFromConfig(cfg)
	if s.lockTable != "" {
		s.dbClient = dynamodb.NewFromConfig(cfg)
	}
	return nil
}

func (s *s3Store) load() error {
	ctx := context.Background()

	result, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		// A missing object is simply empty state.
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) ||
			strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "404") {
			s.snapshots = make(map[string]*ir.Snapshot)
			return nil
		}
		return fmt.Errorf("failed to read state from s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer result.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(result.Body); err != nil {
		return fmt.Errorf("failed to read state object body: %w", err)
	}

	var doc s3Document
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		return fmt.Errorf("failed to parse state from s3://%s/%s: %w", s.bucket, s.key, err)
	}
	if doc.Snapshots == nil {
		doc.Snapshots = make(map[string]*ir.Snapshot)
	}
	s.snapshots = doc.Snapshots
	return nil
}

func (s *s3Store) flushLocked() error {
	doc := s3Document{Version: 1, Snapshots: s.snapshots}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	_, err = s.s3Client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(s.key),
		Body:                 bytes.NewReader(raw),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return fmt.Errorf("failed to write state to s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

func (s *s3Store) Get(id string) (*ir.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshots[id], nil
}

func (s *s3Store) Put(id string, snap *ir.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[id] = snap
	return s.flushLocked()
}

func (s *s3Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, id)
	return s.flushLocked()
}

func (s *s3Store) All() (map[string]*ir.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*ir.Snapshot, len(s.snapshots))
	for id, snap := range s.snapshots {
		out[id] = snap
	}
	return out, nil
}

func (s *s3Store) Lock() error {
	if s.lockTable == "" {
		return nil // No locking without DynamoDB
	}

	s.lockID = fmt.Sprintf("kiln-%d-%d", os.Getpid(), time.Now().UnixNano())

	_, err := s.dbClient.PutItem(context.Background(), &dynamodb.PutItemInput{
		TableName: aws.String(s.lockTable),
		Item: map[string]dbtypes.AttributeValue{
			"LockID":  &dbtypes.AttributeValueMemberS{Value: s.key},
			"Info":    &dbtypes.AttributeValueMemberS{Value: s.lockID},
			"Created": &dbtypes.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_not_exists(LockID)"),
	})
	if err != nil {
		if strings.Contains(err.Error(), "ConditionalCheckFailedException") {
			return fmt.Errorf("state is locked by another process. If this is an error, "+
				"manually delete the lock item with LockID=%q from DynamoDB table %q", s.key, s.lockTable)
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	return nil
}

func (s *s3Store) Unlock() error {
	if s.lockTable == "" {
		return nil
	}

	_, err := s.dbClient.DeleteItem(context.Background(), &dynamodb.DeleteItemInput{
		TableName: aws.String(s.lockTable),
		Key: map[string]dbtypes.AttributeValue{
			"LockID": &dbtypes.AttributeValueMemberS{Value: s.key},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func (s *s3Store) Close() error {
	return nil
}
