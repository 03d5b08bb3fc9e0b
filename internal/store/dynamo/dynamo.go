// Package dynamo stores users, doctors and appointments in three DynamoDB
// tables keyed by user_id, doctor_id and appointment_id.
//
// Uniqueness of emails and booked slots is enforced with claim items that
// live in the same table as their owner and are written in the same
// transaction, guarded by attribute_not_exists. Rows written by the
// earlier Flask service carry no claims; a claim lookup that misses falls
// back to a filtered Scan and adopts the legacy row by writing its claim.
package dynamo

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

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

type Tables struct {
	Users        string
	Doctors      string
	Appointments string
}

type Store struct {
	api    API
	tables Tables
}

func New(api API, tables Tables) *Store {
	return &Store{api: api, tables: tables}
}

func (s *Store) Name() string { return "dynamodb" }

func (s *Store) Ping(ctx context.Context) error {
	for _, t := range []string{s.tables.Users, s.tables.Doctors, s.tables.Appointments} {
		if _, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t)}); err != nil {
			return fmt.Errorf("dynamodb: describe %s: %w", t, err)
		}
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *Store) Close() error { return nil }

const (
	emailClaimPrefix = "email#"
	slotClaimPrefix  = "slot#"
)

// claimItem reserves key in a table whose partition key is keyAttr.
func claimItem(keyAttr, key, owner string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		keyAttr:    &types.AttributeValueMemberS{Value: key},
		"owner_id": &types.AttributeValueMemberS{Value: owner},
	}
}

func keyOf(attr, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{attr: &types.AttributeValueMemberS{Value: value}}
}

func emailClaimKey(email string) string { return emailClaimPrefix + email }

func slotClaimKey(doctorID, date, time string) string {
	return slotClaimPrefix + strings.Join([]string{doctorID, date, time}, "#")
}

// conditionFailed reports whether a transaction was cancelled because one of
// its condition checks failed.
func conditionFailed(err error) bool {
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, r := range tce.CancellationReasons {
			if aws.ToString(r.Code) == "ConditionalCheckFailed" {
				return true
			}
		}
		return false
	}
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// adoptClaim writes the claim for a row that predates claims. Losing the
// race to another adopter is fine: the key is held either way.
func (s *Store) adoptClaim(ctx context.Context, table, keyAttr, key, owner string) error {
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(table),
		Item:                claimItem(keyAttr, key, owner),
		ConditionExpression: aws.String(fmt.Sprintf("attribute_not_exists(%s)", keyAttr)),
	})
	if conditionFailed(err) {
		return nil
	}
	return err
}

// scanFirst pages through table and returns the first item matching filter,
// or nil when nothing matches.
func (s *Store) scanFirst(ctx context.Context, table, filter string, names map[string]string, values map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	var start map[string]types.AttributeValue
	for {
		page, err := s.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(table),
			FilterExpression:          aws.String(filter),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         start,
		})
		if err != nil {
			return nil, err
		}
		if len(page.Items) > 0 {
			return page.Items[0], nil
		}
		if len(page.LastEvaluatedKey) == 0 {
			return nil, nil
		}
		start = page.LastEvaluatedKey
	}
}

func attrS(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

// parseTime accepts RFC 3339 and the zone-less isoformat() timestamps of
// legacy rows, which are read as UTC. Empty means unknown.
func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("dynamodb: created_at %q: %w", v, err)
	}
	return t, nil
}
