package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	getOut       *dynamodb.GetItemOutput
	getErr       error
	putErr       error
	lastGetInput *dynamodb.GetItemInput
	lastPutInput *dynamodb.PutItemInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func sAttr(item map[string]types.AttributeValue, key string) string {
	return item[key].(*types.AttributeValueMemberS).Value
}

func TestNewDynamoStore_Validates(t *testing.T) {
	_, err := NewDynamoStore(nil, "t", "c")
	require.Error(t, err)
	_, err = NewDynamoStore(&fakeDynamo{}, " ", "c")
	require.Error(t, err)
	_, err = NewDynamoStore(&fakeDynamo{}, "t", "")
	require.Error(t, err)
}

func TestDynamoStore_LoadMissing(t *testing.T) {
	fake := &fakeDynamo{getOut: &dynamodb.GetItemOutput{}}
	s, err := NewDynamoStore(fake, "sessions", "kiosk-1")
	require.NoError(t, err)

	id, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, id)
	require.Equal(t, "sessions", *fake.lastGetInput.TableName)
	require.True(t, *fake.lastGetInput.ConsistentRead)
	require.Equal(t, "CLIENT#kiosk-1", sAttr(fake.lastGetInput.Key, "PK"))
	require.Equal(t, "KEY#spa_chat_session_id", sAttr(fake.lastGetInput.Key, "SK"))
}

func TestDynamoStore_LoadExisting(t *testing.T) {
	fake := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"value": &types.AttributeValueMemberS{Value: "sess-123"},
	}}}
	s, err := NewDynamoStore(fake, "sessions", "kiosk-1")
	require.NoError(t, err)
	id, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sess-123", id)
}

func TestDynamoStore_LoadErrors(t *testing.T) {
	s, err := NewDynamoStore(&fakeDynamo{getErr: errors.New("throttled")}, "sessions", "kiosk-1")
	require.NoError(t, err)
	_, err = s.Load(context.Background())
	require.ErrorContains(t, err, "throttled")

	bad := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"value": &types.AttributeValueMemberN{Value: "1"},
	}}}
	s, err = NewDynamoStore(bad, "sessions", "kiosk-1")
	require.NoError(t, err)
	_, err = s.Load(context.Background())
	require.ErrorContains(t, err, "not a string")
}

func TestDynamoStore_Save(t *testing.T) {
	fake := &fakeDynamo{}
	s, err := NewDynamoStore(fake, "sessions", "kiosk-1")
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC) }

	require.NoError(t, s.Save(context.Background(), "sess-9"))
	item := fake.lastPutInput.Item
	require.Equal(t, "sessions", *fake.lastPutInput.TableName)
	require.Equal(t, "CLIENT#kiosk-1", sAttr(item, "PK"))
	require.Equal(t, "sess-9", sAttr(item, "value"))
	require.Equal(t, "2026-10-17T09:00:00Z", sAttr(item, "updatedAt"))
	require.Equal(t, "1794819600", item["ttl"].(*types.AttributeValueMemberN).Value)

	require.Error(t, s.Save(context.Background(), " "))
	fake.putErr = errors.New("boom")
	require.ErrorContains(t, s.Save(context.Background(), "sess-9"), "boom")
}
