package sqlite_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hospital-booking-api/internal/model"
	"hospital-booking-api/internal/store"
	"hospital-booking-api/internal/store/sqlite"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seed(t *testing.T, st *sqlite.Store) (*model.User, *model.Doctor) {
	t.Helper()
	ctx := context.Background()
	u := &model.User{
		ID: uuid.NewString(), Name: "A", Email: "a@x.com", Phone: "1",
		PasswordHash: "hash", CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.CreateUser(ctx, u))
	d := &model.Doctor{ID: "doc-001", Name: "Sarah Johnson", Specialization: "Cardiology",
		AvailableSlots: []string{"09:00", "10:00"}}
	require.NoError(t, st.UpsertDoctor(ctx, d))
	return u, d
}

func booking(u *model.User, d *model.Doctor, date, at string) *model.Appointment {
	return &model.Appointment{
		ID: uuid.NewString(), UserID: u.ID, DoctorID: d.ID,
		Date: date, Time: at, Status: model.StatusBooked, CreatedAt: time.Now().UTC(),
	}
}

func TestUsers(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	u, _ := seed(t, st)

	got, err := st.UserByEmail(ctx, "A@X.COM")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	got, err = st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)

	_, err = st.UserByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	dup := *u
	dup.ID = uuid.NewString()
	dup.Email = "A@x.com"
	assert.ErrorIs(t, st.CreateUser(ctx, &dup), store.ErrDuplicateEmail)
}

func TestDoctors(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	empty, err := st.ListDoctors(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, id := range []string{"doc-003", "doc-001", "doc-002"} {
		require.NoError(t, st.UpsertDoctor(ctx, &model.Doctor{ID: id, Name: "Dr " + id, Specialization: "X"}))
	}
	// update must not move doc-003 to the end
	require.NoError(t, st.UpsertDoctor(ctx, &model.Doctor{
		ID: "doc-003", Name: "Emily Davis", Specialization: "Dermatology", AvailableSlots: []string{"10:00"},
	}))

	all, err := st.ListDoctors(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "doc-003", all[0].ID)
	assert.Equal(t, "Emily Davis", all[0].Name)
	assert.Equal(t, []string{"10:00"}, all[0].AvailableSlots)
	assert.Equal(t, []string{}, all[1].AvailableSlots)

	_, err = st.DoctorByID(ctx, "doc-999")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSlotConflict(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	u, d := seed(t, st)

	require.NoError(t, st.CreateAppointment(ctx, booking(u, d, "2024-01-01", "09:00")))

	booked, err := st.SlotBooked(ctx, d.ID, "2024-01-01", "09:00")
	require.NoError(t, err)
	assert.True(t, booked)

	booked, err = st.SlotBooked(ctx, d.ID, "2024-01-01", "10:00")
	require.NoError(t, err)
	assert.False(t, booked)

	err = st.CreateAppointment(ctx, booking(u, d, "2024-01-01", "09:00"))
	assert.ErrorIs(t, err, store.ErrSlotTaken)
}

func TestCancelledDoesNotHoldSlot(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	u, d := seed(t, st)

	old := booking(u, d, "2024-01-01", "09:00")
	old.Status = model.StatusCancelled
	require.NoError(t, st.CreateAppointment(ctx, old))
	assert.NoError(t, st.CreateAppointment(ctx, booking(u, d, "2024-01-01", "09:00")))
}

func TestConcurrentCreate(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	u, d := seed(t, st)

	const n = 10
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- st.CreateAppointment(ctx, booking(u, d, "2024-05-05", "15:00"))
		}()
	}
	wg.Wait()
	close(results)

	successes, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, store.ErrSlotTaken):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
}

func TestAppointmentsByUser(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	u, d := seed(t, st)

	older := booking(u, d, "2024-01-01", "09:00")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := booking(u, d, "2024-01-02", "09:00")
	require.NoError(t, st.CreateAppointment(ctx, older))
	require.NoError(t, st.CreateAppointment(ctx, newer))

	list, err := st.AppointmentsByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, model.StatusBooked, list[0].Status)

	none, err := st.AppointmentsByUser(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, none)

	got, err := st.AppointmentByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", got.Date)
	assert.WithinDuration(t, older.CreatedAt, got.CreatedAt, time.Second)

	_, err = st.AppointmentByID(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestForeignKeys(t *testing.T) {
	st := openStore(t)
	u, _ := seed(t, st)

	err := st.CreateAppointment(context.Background(), booking(u, &model.Doctor{ID: "doc-404"}, "2024-01-01", "09:00"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, store.ErrSlotTaken))
}

// error paths that a real database will not produce on demand

func mockStore(t *testing.T) (*sqlite.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlite.New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestCreateUserUniqueViolationMapped(t *testing.T) {
	st, mock := mockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique})

	err := st.CreateUser(context.Background(), &model.User{ID: "u1", Email: "a@x.com"})
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserOtherErrorPassesThrough(t *testing.T) {
	st, mock := mockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrBusy})

	err := st.CreateUser(context.Background(), &model.User{ID: "u1", Email: "a@x.com"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, store.ErrDuplicateEmail))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAppointmentUniqueViolationMapped(t *testing.T) {
	st, mock := mockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO appointments`)).
		WithArgs("a1", "u1", "doc-001", "2024-01-01", "09:00", "booked", sqlmock.AnyArg()).
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique})

	err := st.CreateAppointment(context.Background(), &model.Appointment{
		ID: "a1", UserID: "u1", DoctorID: "doc-001", Date: "2024-01-01", Time: "09:00",
		Status: model.StatusBooked, CreatedAt: time.Now(),
	})
	assert.ErrorIs(t, err, store.ErrSlotTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCorruptSlotsReported(t *testing.T) {
	st, mock := mockStore(t)

	rows := sqlmock.NewRows([]string{"doctor_id", "name", "specialization", "available_slots"}).
		AddRow("doc-001", "Sarah Johnson", "Cardiology", "not-json")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT doctor_id, name, specialization, available_slots FROM doctors`)).
		WillReturnRows(rows)

	_, err := st.ListDoctors(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "doc-001"))
	require.NoError(t, mock.ExpectationsWereMet())
}
