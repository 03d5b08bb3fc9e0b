package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hospital-booking-api/internal/model"
	"hospital-booking-api/internal/store"
)

// fakeAPI is an in-memory DynamoDB that understands the expressions the
// store issues: attribute_not_exists(<key>) and conjunctions of
// "<attr> = :<name>", where attr may be a #placeholder.
type fakeAPI struct {
	mu       sync.Mutex
	keys     map[string]string // table -> partition key attribute
	tables   map[string]map[string]map[string]types.AttributeValue
	pageSize int
	scans    int
}

func newFakeAPI(t Tables) *fakeAPI {
	f := &fakeAPI{
		keys: map[string]string{
			t.Users:        "user_id",
			t.Doctors:      "doctor_id",
			t.Appointments: "appointment_id",
		},
		tables:   map[string]map[string]map[string]types.AttributeValue{},
		pageSize: 2,
	}
	for name := range f.keys {
		f.tables[name] = map[string]map[string]types.AttributeValue{}
	}
	return f
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeAPI) table(name *string) (map[string]map[string]types.AttributeValue, string, error) {
	tbl, ok := f.tables[aws.ToString(name)]
	if !ok {
		return nil, "", &types.ResourceNotFoundException{Message: aws.String("no table " + aws.ToString(name))}
	}
	return tbl, f.keys[aws.ToString(name)], nil
}

func (f *fakeAPI) conditionHolds(tbl map[string]map[string]types.AttributeValue, key string, cond *string) bool {
	if cond == nil {
		return true
	}
	if strings.HasPrefix(aws.ToString(cond), "attribute_not_exists(") {
		_, exists := tbl[key]
		return !exists
	}
	return true
}

func (f *fakeAPI) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tbl, keyAttr, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: tbl[str(in.Key[keyAttr])]}, nil
}

func (f *fakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tbl, keyAttr, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	key := str(in.Item[keyAttr])
	if !f.conditionHolds(tbl, key, in.ConditionExpression) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("conditional check failed")}
	}
	tbl[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	tbl, keyAttr, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(tbl))
	for k := range tbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if in.ExclusiveStartKey != nil {
		after := str(in.ExclusiveStartKey[keyAttr])
		i := sort.SearchStrings(keys, after)
		if i < len(keys) && keys[i] == after {
			i++
		}
		keys = keys[i:]
	}

	filter := map[string]string{}
	if in.FilterExpression != nil {
		for _, term := range strings.Split(aws.ToString(in.FilterExpression), " AND ") {
			parts := strings.SplitN(term, " = ", 2)
			attr := parts[0]
			if name, ok := in.ExpressionAttributeNames[attr]; ok {
				attr = name
			}
			filter[attr] = str(in.ExpressionAttributeValues[parts[1]])
		}
	}

	out := &dynamodb.ScanOutput{}
	for i, k := range keys {
		if i == f.pageSize {
			out.LastEvaluatedKey = map[string]types.AttributeValue{keyAttr: &types.AttributeValueMemberS{Value: keys[i-1]}}
			break
		}
		if item := tbl[k]; matches(item, filter) {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

func matches(item map[string]types.AttributeValue, filter map[string]string) bool {
	for attr, want := range filter {
		v, ok := item[attr]
		if !ok || str(v) != want {
			return false
		}
	}
	return true
}

func (f *fakeAPI) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, w := range in.TransactItems {
		reasons[i] = types.CancellationReason{Code: aws.String("None")}
		tbl, keyAttr, err := f.table(w.Put.TableName)
		if err != nil {
			return nil, err
		}
		if !f.conditionHolds(tbl, str(w.Put.Item[keyAttr]), w.Put.ConditionExpression) {
			reasons[i] = types.CancellationReason{Code: aws.String("ConditionalCheckFailed")}
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}
	for _, w := range in.TransactItems {
		tbl, keyAttr, _ := f.table(w.Put.TableName)
		tbl[str(w.Put.Item[keyAttr])] = w.Put.Item
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeAPI) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, _, err := f.table(in.TableName); err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableName: in.TableName}}, nil
}

var testTables = Tables{Users: "users", Doctors: "doctors", Appointments: "appointments"}

func newTestStore() (*Store, *fakeAPI) {
	api := newFakeAPI(testTables)
	return New(api, testTables), api
}

func TestUserRoundTrip(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	u := &model.User{ID: "u-1", Name: "A", Email: "a@x.com", Phone: "1", PasswordHash: "h", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.UserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.ID)
	assert.Equal(t, "h", got.PasswordHash)
	assert.WithinDuration(t, u.CreatedAt, got.CreatedAt, time.Millisecond)

	_, err = s.UserByEmail(ctx, "b@x.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.UserByID(ctx, emailClaimKey("a@x.com"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDuplicateEmailWritesNothing(t *testing.T) {
	s, api := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &model.User{ID: "u-1", Email: "a@x.com"}))
	err := s.CreateUser(ctx, &model.User{ID: "u-2", Email: "a@x.com"})
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)

	_, err = s.UserByID(ctx, "u-2")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Len(t, api.tables["users"], 2)
}

func TestDoctorsSortedAcrossPages(t *testing.T) {
	s, api := newTestStore()
	ctx := context.Background()

	for _, id := range []string{"doc-005", "doc-001", "doc-003", "doc-002", "doc-004"} {
		require.NoError(t, s.UpsertDoctor(ctx, &model.Doctor{ID: id, Name: "Dr " + id, Specialization: "X"}))
	}
	require.NoError(t, s.UpsertDoctor(ctx, &model.Doctor{ID: "doc-001", Name: "Sarah Johnson", AvailableSlots: []string{"09:00"}}))

	all, err := s.ListDoctors(ctx)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, d := range all {
		assert.Equal(t, fmt.Sprintf("doc-%03d", i+1), d.ID)
	}
	assert.Equal(t, "Sarah Johnson", all[0].Name)
	assert.Equal(t, []string{"09:00"}, all[0].AvailableSlots)
	assert.Greater(t, api.scans, 1)

	_, err = s.DoctorByID(ctx, "doc-404")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEmptyDirectory(t *testing.T) {
	s, _ := newTestStore()
	all, err := s.ListDoctors(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func appt(id, user, date, at string, created time.Time) *model.Appointment {
	return &model.Appointment{
		ID: id, UserID: user, DoctorID: "doc-001", Date: date, Time: at,
		Status: model.StatusBooked, CreatedAt: created,
	}
}

func TestSlotClaim(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateAppointment(ctx, appt("a-1", "u-1", "2024-01-01", "09:00", now)))

	booked, err := s.SlotBooked(ctx, "doc-001", "2024-01-01", "09:00")
	require.NoError(t, err)
	assert.True(t, booked)

	err = s.CreateAppointment(ctx, appt("a-2", "u-2", "2024-01-01", "09:00", now))
	assert.ErrorIs(t, err, store.ErrSlotTaken)

	_, err = s.AppointmentByID(ctx, "a-2")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.AppointmentByID(ctx, slotClaimKey("doc-001", "2024-01-01", "09:00"))
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.AppointmentByID(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusBooked, got.Status)
}

func TestConcurrentClaims(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.CreateAppointment(ctx, appt(fmt.Sprintf("a-%d", i), "u-1", "2024-05-05", "15:00", time.Now()))
		}(i)
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, store.ErrSlotTaken), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)
}

func TestAppointmentsByUserNewestFirst(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateAppointment(ctx, appt("a-1", "u-1", "2024-01-01", "09:00", base)))
	require.NoError(t, s.CreateAppointment(ctx, appt("a-2", "u-2", "2024-01-01", "10:00", base)))
	require.NoError(t, s.CreateAppointment(ctx, appt("a-3", "u-1", "2024-01-02", "09:00", base.Add(time.Hour))))
	require.NoError(t, s.CreateAppointment(ctx, appt("a-4", "u-1", "2024-01-03", "09:00", base.Add(-time.Hour))))

	list, err := s.AppointmentsByUser(ctx, "u-1")
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"a-3", "a-1", "a-4"}, ids)
}

func TestPing(t *testing.T) {
	s, _ := newTestStore()
	assert.NoError(t, s.Ping(context.Background()))

	broken := New(newFakeAPI(testTables), Tables{Users: "users", Doctors: "missing", Appointments: "appointments"})
	assert.Error(t, broken.Ping(context.Background()))
}

// putRaw stores an item the way the Flask service wrote it: no claims.
func (f *fakeAPI) putRaw(table string, item map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[table][str(item[f.keys[table]])] = item
}

func sItem(kv ...string) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{}
	for i := 0; i+1 < len(kv); i += 2 {
		item[kv[i]] = &types.AttributeValueMemberS{Value: kv[i+1]}
	}
	return item
}

func TestLegacyUserRows(t *testing.T) {
	s, api := newTestStore()
	ctx := context.Background()

	// padding rows push the legacy user past the first scan page
	api.putRaw("users", sItem("user_id", "0-other", "email", "other@x.com", "password_hash", "x"))
	api.putRaw("users", sItem("user_id", "1-other", "email", "else@x.com", "password_hash", "x"))
	api.putRaw("users", sItem(
		"user_id", "legacy-1",
		"name", "Old Timer",
		"email", "old@x.com",
		"phone", "555",
		"password_hash", "pbkdf2:sha256:600000$salt$abc",
	))

	got, err := s.UserByEmail(ctx, "old@x.com")
	require.NoError(t, err)
	assert.Equal(t, "legacy-1", got.ID)
	assert.Equal(t, "pbkdf2:sha256:600000$salt$abc", got.PasswordHash)
	assert.True(t, got.CreatedAt.IsZero())

	// the lookup adopted the row, so the next one needs no scan
	_, ok := api.tables["users"][emailClaimKey("old@x.com")]
	assert.True(t, ok)
	scans := api.scans
	_, err = s.UserByEmail(ctx, "old@x.com")
	require.NoError(t, err)
	assert.Equal(t, scans, api.scans)

	err = s.CreateUser(ctx, &model.User{ID: "u-new", Email: "else@x.com"})
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)
	_, err = s.UserByID(ctx, "u-new")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLegacyBookedSlot(t *testing.T) {
	s, api := newTestStore()
	ctx := context.Background()

	api.putRaw("appointments", sItem(
		"appointment_id", "legacy-a", "user_id", "legacy-1", "doctor_id", "doc-001",
		"date", "2024-06-01", "time", "10:00", "status", "booked",
		"created_at", "2024-05-20T08:15:42.123456",
	))
	api.putRaw("appointments", sItem(
		"appointment_id", "legacy-b", "user_id", "legacy-1", "doctor_id", "doc-001",
		"date", "2024-06-01", "time", "11:00", "status", "cancelled",
		"created_at", "2024-05-19T08:00:00",
	))

	booked, err := s.SlotBooked(ctx, "doc-001", "2024-06-01", "10:00")
	require.NoError(t, err)
	assert.True(t, booked)

	err = s.CreateAppointment(ctx, appt("a-new", "u-1", "2024-06-01", "10:00", time.Now()))
	assert.ErrorIs(t, err, store.ErrSlotTaken)

	// a cancelled legacy row does not hold its slot
	require.NoError(t, s.CreateAppointment(ctx, appt("a-11", "u-1", "2024-06-01", "11:00", time.Now())))

	got, err := s.AppointmentByID(ctx, "legacy-a")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 20, 8, 15, 42, 123456000, time.UTC), got.CreatedAt)

	list, err := s.AppointmentsByUser(ctx, "legacy-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "legacy-a", list[0].ID)
}

func TestBadCreatedAt(t *testing.T) {
	s, api := newTestStore()
	api.putRaw("appointments", sItem("appointment_id", "bad", "created_at", "yesterday"))

	_, err := s.AppointmentByID(context.Background(), "bad")
	assert.ErrorContains(t, err, "bad")
}
