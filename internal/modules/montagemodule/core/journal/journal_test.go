package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/fragreel/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupTestJournal(t *testing.T) *Journal {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:", hclog.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	j, err := New(db, hclog.NewNullLogger())
	require.NoError(t, err)
	return j
}

func newMockDb(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})
	db, err := database.OpenDialector(dialector)
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db, mock
}

func TestJournal_RecordAndEvents(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, JobEvent{JobID: "job-1", Type: EventCreated}))
	require.NoError(t, j.Record(ctx, JobEvent{JobID: "job-1", Type: EventStageStarted, Stage: "detecting_kills", Progress: 10}))
	require.NoError(t, j.Record(ctx, JobEvent{JobID: "job-2", Type: EventCreated}))
	require.NoError(t, j.Record(ctx, JobEvent{JobID: "job-1", Type: EventFailed, Stage: "detecting_kills", Progress: 10, Message: "detector crashed"}))

	events, err := j.Events(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, EventCreated, events[0].Type)
	assert.Equal(t, EventStageStarted, events[1].Type)
	assert.Equal(t, 10, events[1].Progress)
	assert.Equal(t, EventFailed, events[2].Type)
	assert.Equal(t, "detector crashed", events[2].Message)
	assert.False(t, events[0].CreatedAt.IsZero())

	none, err := j.Events(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestJournal_Clear(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, JobEvent{JobID: "job-1", Type: EventCreated}))
	require.NoError(t, j.Clear(ctx))

	events, err := j.Events(ctx, "job-1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestJournal_Disabled(t *testing.T) {
	j := Disabled(hclog.NewNullLogger())
	ctx := context.Background()

	assert.False(t, j.Enabled())
	assert.NoError(t, j.Record(ctx, JobEvent{JobID: "job-1", Type: EventCreated}))
	events, err := j.Events(ctx, "job-1")
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, j.Clear(ctx))
}

func TestJournal_RecordFailureIsReported(t *testing.T) {
	db, mock := newMockDb(t)
	j := &Journal{db: db, logger: hclog.NewNullLogger()}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "job_events"`).WillReturnError(errors.New("connection refused"))
	mock.ExpectRollback()

	err := j.Record(context.Background(), JobEvent{JobID: "job-1", Type: EventCreated})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournal_EventsQueryFailure(t *testing.T) {
	db, mock := newMockDb(t)
	j := &Journal{db: db, logger: hclog.NewNullLogger()}

	mock.ExpectQuery(`SELECT \* FROM "job_events" WHERE job_id = \$1`).
		WithArgs("job-1").
		WillReturnError(errors.New("relation does not exist"))

	_, err := j.Events(context.Background(), "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load job events")
	assert.NoError(t, mock.ExpectationsWereMet())
}
