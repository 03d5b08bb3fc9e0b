package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"hospital-booking-api/internal/model"
	"hospital-booking-api/internal/store"
)

type userItem struct {
	UserID       string `dynamodbav:"user_id"`
	Name         string `dynamodbav:"name"`
	Email        string `dynamodbav:"email"`
	Phone        string `dynamodbav:"phone"`
	PasswordHash string `dynamodbav:"password_hash"`
	CreatedAt    string `dynamodbav:"created_at,omitempty"`
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	switch _, err := s.emailOwner(ctx, u.Email); {
	case err == nil:
		return store.ErrDuplicateEmail
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	item, err := attributevalue.MarshalMap(userItem{
		UserID:       u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}

	_, err = s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(s.tables.Users),
				Item:                claimItem("user_id", emailClaimKey(u.Email), u.ID),
				ConditionExpression: aws.String("attribute_not_exists(user_id)"),
			}},
			{Put: &types.Put{
				TableName:           aws.String(s.tables.Users),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(user_id)"),
			}},
		},
	})
	if conditionFailed(err) {
		return store.ErrDuplicateEmail
	}
	return err
}

// emailOwner resolves an email to its user_id through the claim item,
// adopting a legacy user row when no claim exists yet.
func (s *Store) emailOwner(ctx context.Context, email string) (string, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Users),
		Key:            keyOf("user_id", emailClaimKey(email)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}
	if out.Item != nil {
		owner, ok := out.Item["owner_id"].(*types.AttributeValueMemberS)
		if !ok {
			return "", fmt.Errorf("dynamodb: email claim for %q has no owner", email)
		}
		return owner.Value, nil
	}

	// claim items carry no email attribute, so only user rows match
	legacy, err := s.scanFirst(ctx, s.tables.Users, "email = :e", nil,
		map[string]types.AttributeValue{":e": attrS(email)})
	if err != nil {
		return "", err
	}
	if legacy == nil {
		return "", store.ErrNotFound
	}
	id, ok := legacy["user_id"].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("dynamodb: user row for %q has no user_id", email)
	}
	if err := s.adoptClaim(ctx, s.tables.Users, "user_id", emailClaimKey(email), id.Value); err != nil {
		return "", err
	}
	return id.Value, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	id, err := s.emailOwner(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.UserByID(ctx, id)
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	if strings.HasPrefix(id, emailClaimPrefix) {
		return nil, store.ErrNotFound
	}
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Users),
		Key:       keyOf("user_id", id),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, store.ErrNotFound
	}

	var it userItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	created, err := parseTime(it.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return &model.User{
		ID:           it.UserID,
		Name:         it.Name,
		Email:        it.Email,
		Phone:        it.Phone,
		PasswordHash: it.PasswordHash,
		CreatedAt:    created,
	}, nil
}
