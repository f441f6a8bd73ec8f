// Package dynamo builds the DynamoDB client used by the ledger adapter.
package dynamo

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"attest/internal/platform/config"
)

// New creates a DynamoDB client from the store configuration. A non-empty
// endpoint overrides the resolved AWS endpoint, which is how local stacks
// (dynamodb-local, localstack) are pointed at.
func New(ctx context.Context, cfg config.Store) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.DynamoRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoEndpoint != "" {
			o.BaseEndpoint = &cfg.DynamoEndpoint
		}
	}), nil
}
