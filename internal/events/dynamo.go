package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imyashkale/inventoryserver/internal/database"
	"github.com/imyashkale/inventoryserver/internal/logger"
	"github.com/imyashkale/inventoryserver/internal/models"
)

// PutItemAPI is the slice of the DynamoDB client the sink needs
type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoPublisher appends events to a DynamoDB table keyed by EventId
type DynamoPublisher struct {
	client    PutItemAPI
	tableName string
}

// NewDynamoPublisher creates a sink writing to tableName
func NewDynamoPublisher(client PutItemAPI, tableName string) *DynamoPublisher {
	return &DynamoPublisher{client: client, tableName: tableName}
}

// NewDynamoPublisherFromClient creates a sink over an initialised DynamoDB client
func NewDynamoPublisherFromClient(client *database.DynamoClient) *DynamoPublisher {
	return NewDynamoPublisher(client.DynamoDB, client.TableName)
}

// Publish writes the event once. A redelivered event hits the condition and
// counts as delivered.
func (p *DynamoPublisher) Publish(ctx context.Context, event models.DomainEvent) error {
	oldValue, err := json.Marshal(event.OldValue())
	if err != nil {
		return fmt.Errorf("failed to marshal old value: %w", err)
	}
	newValue, err := json.Marshal(event.NewValue())
	if err != nil {
		return fmt.Errorf("failed to marshal new value: %w", err)
	}

	av, err := attributevalue.MarshalMap(map[string]interface{}{
		"EventId":       event.EventID().String(),
		"AggregateType": string(event.AggregateType()),
		"AggregateId":   event.AggregateID().String(),
		"Kind":          string(event.Kind()),
		"RoutingKey":    event.RoutingKey(),
		"OldValue":      string(oldValue),
		"NewValue":      string(newValue),
		"OccurredOn":    event.OccurredOn().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = p.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(p.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(EventId)"),
	})
	if err != nil {
		var exists *types.ConditionalCheckFailedException
		if errors.As(err, &exists) {
			logger.WithFields(eventFields(event)).Debug("Event already stored, skipping")
			return nil
		}
		return fmt.Errorf("failed to put event: %w", err)
	}

	logger.WithFields(eventFields(event)).Debug("Event stored in DynamoDB")
	return nil
}
