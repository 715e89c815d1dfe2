package store

import (
	"context"
	"testing"
	"time"

	"github.com/soyeahso/forager/internal/domain"
	"github.com/soyeahso/forager/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(context.Background(), MemoryPath, log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db)
	assert.NotNil(t, db.SQL())
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := t.TempDir() + "/nested/journal.db"
	db, err := Open(context.Background(), path, logging.New(nil, "silent"))
	require.NoError(t, err)
	assert.Equal(t, path, db.Path())
	require.NoError(t, db.Close())
	assert.FileExists(t, path)

	// reopening an existing journal applies nothing new
	db, err = Open(context.Background(), path, logging.New(nil, "silent"))
	require.NoError(t, err)
	defer db.Close()
	v, err := db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, v)
}

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)

	err := db.migrate(context.Background())
	require.NoError(t, err)

	var count int
	err = db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestSchemaVersion(t *testing.T) {
	db := testDB(t)
	v, err := db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestOpen_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Open(ctx, MemoryPath, logging.New(nil, "silent"))
	assert.Error(t, err)
}

func TestSchema_TurnsTableExists(t *testing.T) {
	db := testDB(t)

	var name string
	err := db.sql.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='turns'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "turns", name)
}

// --- Journal tests ---

func sampleHistory() []domain.Message {
	return []domain.Message{
		{Role: domain.RoleUser, Parts: []domain.Part{
			domain.TextPart(domain.KindUserPrompt, `{"health":80}`),
			domain.AttachmentPart("binary"),
		}},
		{Role: domain.RoleAssistant, Parts: []domain.Part{
			domain.ToolCallPart("final_result", map[string]any{"next_action": "GatherBehavior"}),
		}},
	}
}

func TestJournal_RecordAndList(t *testing.T) {
	j := NewJournal(testDB(t))
	ctx := context.Background()

	action := &domain.StructuredAction{Reasoning: "food", NextAction: domain.ActionGather}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.Record(ctx, TurnRecord{
		EntityID:  1,
		RequestID: "req-1",
		Status:    StatusOK,
		Action:    action,
		History:   sampleHistory(),
		Model:     "openai/gpt-4.1-mini",
		Duration:  1500 * time.Millisecond,
		CreatedAt: base,
	}))
	require.NoError(t, j.Record(ctx, TurnRecord{
		EntityID:  1,
		Status:    StatusFailed,
		Error:     "collaborator failure",
		CreatedAt: base.Add(time.Minute),
	}))
	require.NoError(t, j.Record(ctx, TurnRecord{
		EntityID:  2,
		Status:    StatusOK,
		CreatedAt: base.Add(2 * time.Minute),
	}))

	recs, err := j.ListByEntity(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	// newest first
	assert.Equal(t, StatusFailed, recs[0].Status)
	assert.Equal(t, "collaborator failure", recs[0].Error)
	assert.Nil(t, recs[0].Action)
	assert.Nil(t, recs[0].History)

	ok := recs[1]
	assert.NotEmpty(t, ok.ID)
	assert.Equal(t, domain.EntityID(1), ok.EntityID)
	assert.Equal(t, "req-1", ok.RequestID)
	assert.Equal(t, action, ok.Action)
	assert.Equal(t, sampleHistory(), ok.History)
	assert.Equal(t, "openai/gpt-4.1-mini", ok.Model)
	assert.Equal(t, 1500*time.Millisecond, ok.Duration)
	assert.True(t, base.Equal(ok.CreatedAt))
}

func TestJournal_ListLimit(t *testing.T) {
	j := NewJournal(testDB(t))
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(ctx, TurnRecord{EntityID: 9, Status: StatusOK, CreatedAt: base.Add(time.Duration(i) * time.Second)}))
	}

	recs, err := j.ListByEntity(ctx, 9, 3)
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	recs, err = j.ListByEntity(ctx, 9, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 5)

	recs, err = j.ListByEntity(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestJournal_RecentAndCount(t *testing.T) {
	j := NewJournal(testDB(t))
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, j.Record(ctx, TurnRecord{EntityID: 1, Status: StatusOK, CreatedAt: base}))
	require.NoError(t, j.Record(ctx, TurnRecord{EntityID: 2, Status: StatusOK, CreatedAt: base.Add(time.Second)}))

	recs, err := j.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.EntityID(2), recs[0].EntityID)

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestJournal_HistoryCarriesNoBinary(t *testing.T) {
	db := testDB(t)
	j := NewJournal(db)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, TurnRecord{EntityID: 3, Status: StatusOK, History: sampleHistory()}))

	var raw string
	require.NoError(t, db.sql.QueryRow("SELECT history FROM turns WHERE entity_id = 3").Scan(&raw))
	assert.Contains(t, raw, domain.AttachmentMarker)
	assert.Contains(t, raw, `"type":"attachment"`)
}
