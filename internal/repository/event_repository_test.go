package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popeskul/evolution-gateway/internal/models"
	"github.com/popeskul/evolution-gateway/internal/repository"
)

func newTestEvent(key, kind string) *models.WebhookEvent {
	return &models.WebhookEvent{
		DedupeKey: key,
		Kind:      kind,
		EventName: kind,
		Instance:  sql.NullString{String: "sales", Valid: true},
		Sender:    sql.NullString{String: "5511999887766", Valid: true},
		MessageID: sql.NullString{String: key, Valid: true},
		Data:      []byte(`{"key":{"id":"` + key + `"}}`),
	}
}

func TestEventRepository_CreateEvent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewEventRepository(db)
	ctx := context.Background()

	evt := newTestEvent("ABC", "messages.upsert")
	created, err := repo.CreateEvent(ctx, evt)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, evt.ID)
	assert.False(t, evt.ReceivedAt.IsZero())

	again := newTestEvent("ABC", "messages.upsert")
	created, err = repo.CreateEvent(ctx, again)
	require.NoError(t, err)
	assert.False(t, created, "dedupe key already stored")
	assert.Zero(t, again.ID)

	bare := &models.WebhookEvent{DedupeKey: "d41d8cd98f00b204e9800998ecf8427e", Kind: "unknown"}
	created, err = repo.CreateEvent(ctx, bare)
	require.NoError(t, err)
	assert.True(t, created)

	events, err := repo.ListEvents(ctx, nil, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "unknown", events[0].Kind)
	assert.False(t, events[0].Sender.Valid)
	assert.JSONEq(t, `{}`, string(events[0].Data))

	assert.Equal(t, "ABC", events[1].DedupeKey)
	assert.Equal(t, "sales", events[1].Instance.String)
	assert.JSONEq(t, `{"key":{"id":"ABC"}}`, string(events[1].Data))
}

func TestEventRepository_CreateEvent_LongValues(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewEventRepository(db)
	ctx := context.Background()

	name := "community." + strings.Repeat("participants_update_", 10)
	id := strings.Repeat("3EB0C767D26A", 30)
	evt := newTestEvent(name+":"+id, name)
	evt.Sender = sql.NullString{String: strings.Repeat("5511999887766", 10), Valid: true}
	evt.Instance = sql.NullString{String: strings.Repeat("sales-", 40), Valid: true}

	created, err := repo.CreateEvent(ctx, evt)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateEvent(ctx, newTestEvent(name+":"+id, name))
	require.NoError(t, err)
	assert.False(t, created)

	events, err := repo.ListEvents(ctx, &name, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, name+":"+id, events[0].DedupeKey)
	assert.Equal(t, evt.Sender.String, events[0].Sender.String)
}

func TestEventRepository_ListAndCount(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewEventRepository(db)
	ctx := context.Background()
	cleanupTestData(t, db)

	base := time.Now().UTC().Add(-time.Hour)
	kinds := []string{"messages.upsert", "messages.upsert", "messages.upsert", "connection.update", "qrcode.updated"}
	for i, kind := range kinds {
		evt := newTestEvent(fmt.Sprintf("key-%d", i), kind)
		evt.ReceivedAt = base.Add(time.Duration(i) * time.Minute)
		created, err := repo.CreateEvent(ctx, evt)
		require.NoError(t, err)
		require.True(t, created)
	}

	tests := []struct {
		name          string
		kind          *string
		offset, limit int
		expectedKeys  []string
		expectedTotal int64
	}{
		{name: "all newest first", limit: 2, expectedKeys: []string{"key-4", "key-3"}, expectedTotal: 5},
		{name: "by kind", kind: ptr("messages.upsert"), limit: 10, expectedKeys: []string{"key-2", "key-1", "key-0"}, expectedTotal: 3},
		{name: "by kind second page", kind: ptr("messages.upsert"), offset: 2, limit: 2, expectedKeys: []string{"key-0"}, expectedTotal: 3},
		{name: "unknown kind", kind: ptr("presence.update"), limit: 10, expectedKeys: nil, expectedTotal: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := repo.ListEvents(ctx, tt.kind, tt.offset, tt.limit)
			require.NoError(t, err)

			var keys []string
			for _, e := range events {
				keys = append(keys, e.DedupeKey)
			}
			assert.Equal(t, tt.expectedKeys, keys)

			total, err := repo.CountEvents(ctx, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedTotal, total)
		})
	}
}
