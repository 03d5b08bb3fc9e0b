package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"hospital-booking-api/internal/model"
	"hospital-booking-api/internal/store"
)

type appointmentItem struct {
	AppointmentID string `dynamodbav:"appointment_id"`
	UserID        string `dynamodbav:"user_id"`
	DoctorID      string `dynamodbav:"doctor_id"`
	Date          string `dynamodbav:"date"`
	Time          string `dynamodbav:"time"`
	Status        string `dynamodbav:"status"`
	CreatedAt     string `dynamodbav:"created_at"`
}

func (it appointmentItem) toModel() (model.Appointment, error) {
	created, err := parseTime(it.CreatedAt)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", it.AppointmentID, err)
	}
	return model.Appointment{
		ID:        it.AppointmentID,
		UserID:    it.UserID,
		DoctorID:  it.DoctorID,
		Date:      it.Date,
		Time:      it.Time,
		Status:    model.AppointmentStatus(it.Status),
		CreatedAt: created,
	}, nil
}

func (s *Store) SlotBooked(ctx context.Context, doctorID, date, time string) (bool, error) {
	_, err := s.slotOwner(ctx, doctorID, date, time)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// slotOwner returns the appointment holding a slot. A booked legacy row
// without a claim is found by Scan and its claim written.
func (s *Store) slotOwner(ctx context.Context, doctorID, date, at string) (string, error) {
	key := slotClaimKey(doctorID, date, at)
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Appointments),
		Key:            keyOf("appointment_id", key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}
	if out.Item != nil {
		owner, _ := out.Item["owner_id"].(*types.AttributeValueMemberS)
		if owner == nil {
			return "", fmt.Errorf("dynamodb: slot claim %q has no owner", key)
		}
		return owner.Value, nil
	}

	// date, time and status are reserved words
	legacy, err := s.scanFirst(ctx, s.tables.Appointments,
		"doctor_id = :d AND #date = :dt AND #time = :tm AND #status = :st",
		map[string]string{"#date": "date", "#time": "time", "#status": "status"},
		map[string]types.AttributeValue{
			":d":  attrS(doctorID),
			":dt": attrS(date),
			":tm": attrS(at),
			":st": attrS(string(model.StatusBooked)),
		})
	if err != nil {
		return "", err
	}
	if legacy == nil {
		return "", store.ErrNotFound
	}
	id, _ := legacy["appointment_id"].(*types.AttributeValueMemberS)
	if id == nil {
		return "", fmt.Errorf("dynamodb: booked row for %q has no appointment_id", key)
	}
	if err := s.adoptClaim(ctx, s.tables.Appointments, "appointment_id", key, id.Value); err != nil {
		return "", err
	}
	return id.Value, nil
}

// CreateAppointment writes the appointment together with its slot claim.
// Only booked appointments claim a slot.
func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	if a.Status == model.StatusBooked {
		switch _, err := s.slotOwner(ctx, a.DoctorID, a.Date, a.Time); {
		case err == nil:
			return store.ErrSlotTaken
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
	}

	item, err := attributevalue.MarshalMap(appointmentItem{
		AppointmentID: a.ID,
		UserID:        a.UserID,
		DoctorID:      a.DoctorID,
		Date:          a.Date,
		Time:          a.Time,
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}

	writes := []types.TransactWriteItem{{Put: &types.Put{
		TableName:           aws.String(s.tables.Appointments),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(appointment_id)"),
	}}}
	if a.Status == model.StatusBooked {
		writes = append(writes, types.TransactWriteItem{Put: &types.Put{
			TableName:           aws.String(s.tables.Appointments),
			Item:                claimItem("appointment_id", slotClaimKey(a.DoctorID, a.Date, a.Time), a.ID),
			ConditionExpression: aws.String("attribute_not_exists(appointment_id)"),
		}})
	}

	_, err = s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	if conditionFailed(err) {
		return store.ErrSlotTaken
	}
	return err
}

func (s *Store) AppointmentByID(ctx context.Context, id string) (*model.Appointment, error) {
	if strings.HasPrefix(id, slotClaimPrefix) {
		return nil, store.ErrNotFound
	}
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Appointments),
		Key:       keyOf("appointment_id", id),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, store.ErrNotFound
	}
	var it appointmentItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	a, err := it.toModel()
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AppointmentsByUser scans with a filter; the table has no user index.
func (s *Store) AppointmentsByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	out := []model.Appointment{}
	var start map[string]types.AttributeValue
	for {
		page, err := s.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.tables.Appointments),
			FilterExpression: aws.String("user_id = :u"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":u": &types.AttributeValueMemberS{Value: userID},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, err
		}
		var items []appointmentItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, err
		}
		for _, it := range items {
			a, err := it.toModel()
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		start = page.LastEvaluatedKey
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
