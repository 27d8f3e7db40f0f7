package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

const (
	backendDynamo = "dynamodb"
	tokenSK       = "TOKEN"
)

// DynamoAPI is the subset of *dynamodb.Client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// credentialItem mirrors the table layout: PK=SHOP#<shop>, SK=TOKEN.
type credentialItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	Shop        string `dynamodbav:"Shop"`
	AccessToken string `dynamodbav:"AccessToken"`
	Scope       string `dynamodbav:"Scope,omitempty"`
	UpdatedAt   string `dynamodbav:"UpdatedAt"`
	// ExpiresAt is only set on probe items so the table TTL reaps leftovers.
	ExpiresAt int64 `dynamodbav:"ExpiresAt,omitempty"`
}

type DynamoStore struct {
	client DynamoAPI
	table  string
}

func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

func shopKey(shop string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "SHOP#" + shop},
		"SK": &types.AttributeValueMemberS{Value: tokenSK},
	}
}

func (s *DynamoStore) Get(ctx context.Context, shop string) (Credential, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            shopKey(shop),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Credential{}, unavailable(backendDynamo, "get", shop, err)
	}
	if len(out.Item) == 0 {
		return Credential{}, ErrNotFound
	}

	var item credentialItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return Credential{}, unavailable(backendDynamo, "get", shop, fmt.Errorf("decode item: %w", err))
	}
	if item.AccessToken == "" {
		return Credential{}, ErrNotFound
	}

	updated, _ := time.Parse(time.RFC3339, item.UpdatedAt)
	return Credential{
		Shop:        shop,
		AccessToken: item.AccessToken,
		Scope:       item.Scope,
		UpdatedAt:   updated,
	}, nil
}

func (s *DynamoStore) Set(ctx context.Context, cred Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}
	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = now()
	}
	return s.put(ctx, "set", credentialItem{
		PK:          "SHOP#" + cred.Shop,
		SK:          tokenSK,
		Shop:        cred.Shop,
		AccessToken: cred.AccessToken,
		Scope:       cred.Scope,
		UpdatedAt:   cred.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *DynamoStore) put(ctx context.Context, op string, item credentialItem) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}); err != nil {
		return unavailable(backendDynamo, op, item.Shop, err)
	}
	return nil
}

func (s *DynamoStore) Delete(ctx context.Context, shop string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       shopKey(shop),
	}); err != nil {
		return unavailable(backendDynamo, "delete", shop, err)
	}
	return nil
}

func (s *DynamoStore) Ping(ctx context.Context) error {
	probe := "__probe__." + uuid.NewString()
	ts := now()

	err := s.put(ctx, "ping", credentialItem{
		PK:          "SHOP#" + probe,
		SK:          tokenSK,
		Shop:        probe,
		AccessToken: "probe",
		UpdatedAt:   ts.Format(time.RFC3339),
		ExpiresAt:   ts.Add(probeTTL).Unix(),
	})
	if err != nil {
		return err
	}

	if _, err := s.Get(ctx, probe); err != nil {
		return unavailable(backendDynamo, "ping", "", err)
	}
	if err := s.Delete(ctx, probe); err != nil {
		return unavailable(backendDynamo, "ping", "", err)
	}
	return nil
}
