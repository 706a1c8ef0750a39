package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeClient serves GetItem and "#pk = :pk" queries from in-memory tables,
// records writes and applies transactional puts.
type fakeClient struct {
	mu      sync.Mutex
	tables  map[string][]map[string]types.AttributeValue
	queries []dynamodb.QueryInput
	updates []dynamodb.UpdateItemInput
	txs     []dynamodb.TransactWriteItemsInput

	updateErr error
	txErr     error
}

var _ Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{tables: make(map[string][]map[string]types.AttributeValue)}
}

func (c *fakeClient) seed(table string, item any) {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[table] = append(c.tables[table], av)
}

func matches(item, key map[string]types.AttributeValue) bool {
	for k, want := range key {
		got, ok := item[k].(*types.AttributeValueMemberS)
		if !ok {
			return false
		}
		w, ok := want.(*types.AttributeValueMemberS)
		if !ok || w.Value != got.Value {
			return false
		}
	}
	return true
}

func (c *fakeClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.tables[*in.TableName] {
		if matches(item, in.Key) {
			return &dynamodb.GetItemOutput{Item: item}, nil
		}
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (c *fakeClient) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, *in)

	key := map[string]types.AttributeValue{
		in.ExpressionAttributeNames["#pk"]: in.ExpressionAttributeValues[":pk"],
	}
	var now time.Time
	if in.FilterExpression != nil {
		if n, ok := in.ExpressionAttributeValues[":now"].(*types.AttributeValueMemberN); ok {
			sec, _ := strconv.ParseInt(n.Value, 10, 64)
			now = time.Unix(sec, 0)
		}
	}

	out := &dynamodb.QueryOutput{}
	for _, item := range c.tables[*in.TableName] {
		if !matches(item, key) {
			continue
		}
		if !now.IsZero() && expiredAt(item, now) {
			continue
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func (c *fakeClient) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, *in)
	if c.updateErr != nil {
		return nil, c.updateErr
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (c *fakeClient) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txs = append(c.txs, *in)
	if c.txErr != nil {
		return nil, c.txErr
	}
	for _, item := range in.TransactItems {
		if item.Put != nil {
			c.tables[*item.Put.TableName] = append(c.tables[*item.Put.TableName], item.Put.Item)
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}
