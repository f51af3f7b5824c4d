package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"storefront/internal/config"
	dynamostore "storefront/internal/store/dynamo"
)

// NewClient builds a DynamoDB client from the default AWS credential chain.
// A non-empty endpoint points it at DynamoDB Local or another emulator.
func NewClient(ctx context.Context, cfg config.DynamoConfig) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

type TableCreator interface {
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// EnsureTables creates the products and orders tables with the listing
// indexes. Tables that already exist are left alone.
func EnsureTables(ctx context.Context, api TableCreator, cfg config.DynamoConfig) error {
	for _, in := range tableDefinitions(cfg) {
		_, err := api.CreateTable(ctx, in)
		var inUse *types.ResourceInUseException
		if err != nil && !errors.As(err, &inUse) {
			return fmt.Errorf("creating table %s: %w", aws.ToString(in.TableName), err)
		}
	}
	return nil
}

func tableDefinitions(cfg config.DynamoConfig) []*dynamodb.CreateTableInput {
	str := func(name string) types.AttributeDefinition {
		return types.AttributeDefinition{AttributeName: aws.String(name), AttributeType: types.ScalarAttributeTypeS}
	}
	hash := func(name string) types.KeySchemaElement {
		return types.KeySchemaElement{AttributeName: aws.String(name), KeyType: types.KeyTypeHash}
	}
	byCreatedAt := func(index, attr string) types.GlobalSecondaryIndex {
		return types.GlobalSecondaryIndex{
			IndexName: aws.String(index),
			KeySchema: []types.KeySchemaElement{
				hash(attr),
				{AttributeName: aws.String("createdAt"), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}
	}

	return []*dynamodb.CreateTableInput{
		{
			TableName:            aws.String(cfg.ProductsTable),
			AttributeDefinitions: []types.AttributeDefinition{str("id")},
			KeySchema:            []types.KeySchemaElement{hash("id")},
			BillingMode:          types.BillingModePayPerRequest,
		},
		{
			TableName: aws.String(cfg.OrdersTable),
			AttributeDefinitions: []types.AttributeDefinition{
				str("pk"), str("sellerId"), str("customerEmail"), str("createdAt"),
			},
			KeySchema: []types.KeySchemaElement{hash("pk")},
			GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
				byCreatedAt(dynamostore.SellerIndex, "sellerId"),
				byCreatedAt(dynamostore.CustomerIndex, "customerEmail"),
			},
			BillingMode: types.BillingModePayPerRequest,
		},
	}
}
