package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const ttlDuration = 30 * 24 * time.Hour

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// *dynamodb.Client satisfies it.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore keeps the session id of one client in a DynamoDB table keyed
// by PK=CLIENT#<client> and SK=KEY#spa_chat_session_id. Items expire 30 days
// after the last save.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	clientID  string
	now       func() time.Time
}

func NewDynamoStore(api dynamodbAPI, tableName, clientID string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("session: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("session: table name must not be empty")
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, errors.New("session: client id must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName, clientID: strings.TrimSpace(clientID), now: time.Now}, nil
}

func (s *DynamoStore) key() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "CLIENT#" + s.clientID},
		"SK": &types.AttributeValueMemberS{Value: "KEY#" + Key},
	}
}

func (s *DynamoStore) Load(ctx context.Context) (string, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("session: Load get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return "", nil
	}
	v, err := strAttr(out.Item, "value")
	if err != nil {
		return "", fmt.Errorf("session: Load decode: %w", err)
	}
	return v, nil
}

func (s *DynamoStore) Save(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("session: Save: id must not be empty")
	}
	now := s.now().UTC()
	item := s.key()
	item["value"] = &types.AttributeValueMemberS{Value: id}
	item["updatedAt"] = &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)}
	item["ttl"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Add(ttlDuration).Unix())}

	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("session: Save: %w", err)
	}
	return nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("session: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("session: attribute %q is not a string", key)
	}
	return s.Value, nil
}
