package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

const runTTL = 7 * 24 * time.Hour

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// RunRecord is the DynamoDB item written per run.
type RunRecord struct {
	RunID          string       `dynamodbav:"runId"`
	StartedAt      string       `dynamodbav:"startedAt"`
	FinishedAt     string       `dynamodbav:"finishedAt"`
	TotalProcessed int          `dynamodbav:"totalProcessed"`
	Sent           int          `dynamodbav:"sent"`
	Failed         int          `dynamodbav:"failed"`
	Results        []ItemResult `dynamodbav:"results,omitempty"`
	ExpiresAt      int64        `dynamodbav:"expiresAt"`
}

// RunLedger stores run summaries in DynamoDB with a TTL attribute.
type RunLedger struct {
	client    dynamoAPI
	tableName string
}

func NewRunLedger(client dynamoAPI, tableName string) *RunLedger {
	if client == nil {
		panic("reminders: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("reminders: table name cannot be empty")
	}
	return &RunLedger{client: client, tableName: tableName}
}

func (l *RunLedger) Record(ctx context.Context, summary Summary) error {
	record := RunRecord{
		RunID:          summary.RunID,
		StartedAt:      summary.StartedAt.UTC().Format(time.RFC3339Nano),
		FinishedAt:     summary.FinishedAt.UTC().Format(time.RFC3339Nano),
		TotalProcessed: summary.TotalProcessed,
		Sent:           summary.Sent,
		Failed:         summary.Failed,
		Results:        summary.Results,
		ExpiresAt:      summary.StartedAt.Add(runTTL).Unix(),
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("reminders: failed to marshal run: %w", err)
	}
	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(runId)"),
	})
	if err != nil {
		return fmt.Errorf("reminders: failed to persist run: %w", err)
	}
	return nil
}
