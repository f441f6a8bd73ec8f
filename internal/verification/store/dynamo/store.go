// Package dynamo implements the LedgerStore contract on DynamoDB. The table
// keys on (pk, sk) and carries a global secondary index on the reference
// attribute so every row of one attempt can be fetched together.
package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"attest/internal/verification/models"
)

// Store implements ports.LedgerStore.
type Store struct {
	client *dynamodb.Client
}

func New(client *dynamodb.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Put(ctx context.Context, table string, rec models.Record) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal ledger record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put ledger record: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, table, partitionKey, sortKey string) (*models.Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: partitionKey},
			"sk": &types.AttributeValueMemberS{Value: sortKey},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get ledger record: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var rec models.Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal ledger record: %w", err)
	}
	return &rec, nil
}

func (s *Store) QueryByPartition(ctx context.Context, table, partitionKey string, limit int32) ([]models.Record, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		KeyConditionExpression:    aws.String("#pk = :pk"),
		ExpressionAttributeNames:  map[string]string{"#pk": "pk"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":pk": &types.AttributeValueMemberS{Value: partitionKey}},
		Limit:                     aws.Int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("query ledger partition: %w", err)
	}
	return unmarshalItems(out.Items)
}

func (s *Store) QueryByIndex(ctx context.Context, table, index, reference string, limit int32) ([]models.Record, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#ref = :ref"),
		ExpressionAttributeNames:  map[string]string{"#ref": "reference"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":ref": &types.AttributeValueMemberS{Value: reference}},
		Limit:                     aws.Int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("query ledger reference index: %w", err)
	}
	return unmarshalItems(out.Items)
}

func unmarshalItems(items []map[string]types.AttributeValue) ([]models.Record, error) {
	var recs []models.Record
	if err := attributevalue.UnmarshalListOfMaps(items, &recs); err != nil {
		return nil, fmt.Errorf("unmarshal ledger records: %w", err)
	}
	return recs, nil
}
