package database

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	appConfig "github.com/imyashkale/inventoryserver/internal/config"
	"github.com/imyashkale/inventoryserver/internal/logger"
)

// DynamoConfig holds the DynamoDB events table configuration
type DynamoConfig struct {
	TableName string
	Region    string
}

// DynamoClient wraps the DynamoDB client used by the event sink
type DynamoClient struct {
	DynamoDB  *dynamodb.Client
	TableName string
}

// NewDynamoConfig creates the events table configuration from the application config
func NewDynamoConfig(appCfg *appConfig.Config) *DynamoConfig {
	return &DynamoConfig{
		TableName: appCfg.DynamoDBEventsTable,
		Region:    appCfg.AWSRegion,
	}
}

// NewDynamoClient creates a new DynamoDB client
func NewDynamoClient(ctx context.Context, cfg *DynamoConfig) (*DynamoClient, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg)

	// A missing table only surfaces as delivery failures, so it is not fatal here
	if err := ensureTableExists(ctx, client, cfg.TableName); err != nil {
		logger.WithError(err).Warn("Could not verify events table")
	}

	return &DynamoClient{
		DynamoDB:  client,
		TableName: cfg.TableName,
	}, nil
}

// ensureTableExists checks if the DynamoDB table exists
func ensureTableExists(ctx context.Context, client *dynamodb.Client, tableName string) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		return fmt.Errorf("table %s does not exist or cannot be accessed: %w", tableName, err)
	}

	logger.WithField("table", tableName).Info("DynamoDB table verified")
	return nil
}
