package dynamo

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"hospital-booking-api/internal/model"
	"hospital-booking-api/internal/store"
)

type doctorItem struct {
	DoctorID       string   `dynamodbav:"doctor_id"`
	Name           string   `dynamodbav:"name"`
	Specialization string   `dynamodbav:"specialization"`
	AvailableSlots []string `dynamodbav:"available_slots"`
}

func (it doctorItem) toModel() model.Doctor {
	slots := it.AvailableSlots
	if slots == nil {
		slots = []string{}
	}
	return model.Doctor{ID: it.DoctorID, Name: it.Name, Specialization: it.Specialization, AvailableSlots: slots}
}

// ListDoctors scans the whole table. DynamoDB keeps no insertion order, so
// results are sorted by doctor_id, which matches seed order for doc-NNN ids.
func (s *Store) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	out := []model.Doctor{}
	var start map[string]types.AttributeValue
	for {
		page, err := s.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.tables.Doctors),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, err
		}
		var items []doctorItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, err
		}
		for _, it := range items {
			out = append(out, it.toModel())
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		start = page.LastEvaluatedKey
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DoctorByID(ctx context.Context, id string) (*model.Doctor, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Doctors),
		Key:       keyOf("doctor_id", id),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, store.ErrNotFound
	}
	var it doctorItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, err
	}
	d := it.toModel()
	return &d, nil
}

func (s *Store) UpsertDoctor(ctx context.Context, d *model.Doctor) error {
	slots := d.AvailableSlots
	if slots == nil {
		slots = []string{}
	}
	item, err := attributevalue.MarshalMap(doctorItem{
		DoctorID:       d.ID,
		Name:           d.Name,
		Specialization: d.Specialization,
		AvailableSlots: slots,
	})
	if err != nil {
		return err
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Doctors),
		Item:      item,
	})
	return err
}
