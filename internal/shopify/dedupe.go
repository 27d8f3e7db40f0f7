package shopify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/redis/go-redis/v9"
)

const (
	HeaderWebhookID = "X-Shopify-Webhook-Id"

	// DefaultDedupeTTL covers the platform's redelivery window.
	DefaultDedupeTTL = 7 * 24 * time.Hour
)

// WebhookDeduper remembers delivery IDs so a redelivered webhook is handled
// once.
type WebhookDeduper interface {
	// Claim records id and reports whether it was already claimed.
	Claim(ctx context.Context, id, shop, topic string) (duplicate bool, err error)
	// Release forgets id so a failed delivery is processed on retry.
	Release(ctx context.Context, id string) error
}

type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{seen: map[string]time.Time{}, ttl: ttl, now: time.Now}
}

func (d *MemoryDeduper) Claim(_ context.Context, id, _, _ string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, exp := range d.seen {
		if !now.Before(exp) {
			delete(d.seen, k)
		}
	}

	if _, ok := d.seen[id]; ok {
		return true, nil
	}
	d.seen[id] = now.Add(d.ttl)
	return false, nil
}

func (d *MemoryDeduper) Release(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}

// RedisDedupeClient is the subset of *redis.Client the deduper uses.
type RedisDedupeClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type RedisDeduper struct {
	client RedisDedupeClient
	prefix string
	ttl    time.Duration
}

func NewRedisDeduper(client RedisDedupeClient, prefix string, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, prefix: prefix, ttl: ttl}
}

func (d *RedisDeduper) Claim(ctx context.Context, id, shop, topic string) (bool, error) {
	set, err := d.client.SetNX(ctx, d.prefix+id, shop+" "+topic, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim webhook %s: %w", id, err)
	}
	return !set, nil
}

func (d *RedisDeduper) Release(ctx context.Context, id string) error {
	if err := d.client.Del(ctx, d.prefix+id).Err(); err != nil {
		return fmt.Errorf("release webhook %s: %w", id, err)
	}
	return nil
}

// DedupeDynamoAPI is the subset of *dynamodb.Client the deduper uses.
type DedupeDynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// deliveryItem shares the credentials table: PK=WEBHOOK#<id>, SK=DELIVERY.
// The table TTL on ExpiresAt reaps old deliveries.
type deliveryItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Shop      string `dynamodbav:"Shop,omitempty"`
	Topic     string `dynamodbav:"Topic,omitempty"`
	CreatedAt string `dynamodbav:"CreatedAt"`
	ExpiresAt int64  `dynamodbav:"ExpiresAt"`
}

const deliverySK = "DELIVERY"

type DynamoDeduper struct {
	client DedupeDynamoAPI
	table  string
	ttl    time.Duration
	now    func() time.Time
}

func NewDynamoDeduper(client DedupeDynamoAPI, table string, ttl time.Duration) *DynamoDeduper {
	return &DynamoDeduper{client: client, table: table, ttl: ttl, now: time.Now}
}

func deliveryKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "WEBHOOK#" + id},
		"SK": &types.AttributeValueMemberS{Value: deliverySK},
	}
}

func (d *DynamoDeduper) Claim(ctx context.Context, id, shop, topic string) (bool, error) {
	now := d.now().UTC()
	item, err := attributevalue.MarshalMap(deliveryItem{
		PK:        "WEBHOOK#" + id,
		SK:        deliverySK,
		Shop:      shop,
		Topic:     topic,
		CreatedAt: now.Format(time.RFC3339),
		ExpiresAt: now.Add(d.ttl).Unix(),
	})
	if err != nil {
		return false, fmt.Errorf("encode delivery: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
		// An expired item the TTL sweeper has not reaped yet can be claimed again.
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return true, nil
		}
		return false, fmt.Errorf("claim webhook %s: %w", id, err)
	}
	return false, nil
}

func (d *DynamoDeduper) Release(ctx context.Context, id string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       deliveryKey(id),
	})
	if err != nil {
		return fmt.Errorf("release webhook %s: %w", id, err)
	}
	return nil
}
