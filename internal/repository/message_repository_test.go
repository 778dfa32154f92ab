package repository_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popeskul/evolution-gateway/internal/models"
	"github.com/popeskul/evolution-gateway/internal/repository"
)

func TestMessageRepository_CreateMessage(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewMessageRepository(db)
	ctx := context.Background()

	msg := newTestMessage("5511999887766", "hello")
	require.NoError(t, repo.CreateMessage(ctx, msg))

	assert.NotZero(t, msg.ID)
	assert.Equal(t, models.MessageStatusPending, msg.Status)
	assert.False(t, msg.CreatedAt.IsZero())

	claimed, err := repo.ClaimPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	got := claimed[0]
	assert.Equal(t, models.MessageStatusSending, got.Status)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, msg.CorrelationID, got.CorrelationID)
	assert.Equal(t, "text", got.Kind)
	assert.Equal(t, "5511999887766", got.Recipient)
	assert.JSONEq(t, string(msg.Payload), string(got.Payload))
	assert.Equal(t, 0, got.Attempts)
	assert.False(t, got.MessageID.Valid)
	assert.False(t, got.SentAt.Valid)

	dup := newTestMessage("5511999887766", "again")
	dup.CorrelationID = msg.CorrelationID
	assert.Error(t, repo.CreateMessage(ctx, dup), "correlation ids are unique")
}

func TestMessageRepository_ClaimPendingMessages(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewMessageRepository(db)
	ctx := context.Background()

	tests := []struct {
		name          string
		pending       int
		sent          int
		limit         int
		expectedCount int
	}{
		{name: "limit below pending count", pending: 5, sent: 2, limit: 3, expectedCount: 3},
		{name: "limit above pending count", pending: 2, sent: 2, limit: 10, expectedCount: 2},
		{name: "no pending messages", pending: 0, sent: 3, limit: 10, expectedCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanupTestData(t, db)

			for i := 0; i < tt.sent; i++ {
				m := newTestMessage("5511000000000", fmt.Sprintf("sent %d", i))
				m.Status = models.MessageStatusSent
				require.NoError(t, repo.CreateMessage(ctx, m))
			}
			var ids []int64
			for i := 0; i < tt.pending; i++ {
				m := newTestMessage("5511999887766", fmt.Sprintf("pending %d", i))
				require.NoError(t, repo.CreateMessage(ctx, m))
				ids = append(ids, m.ID)
			}

			messages, err := repo.ClaimPendingMessages(ctx, tt.limit)
			require.NoError(t, err)
			require.Len(t, messages, tt.expectedCount)

			for i, msg := range messages {
				assert.Equal(t, models.MessageStatusSending, msg.Status)
				assert.Equal(t, ids[i], msg.ID, "oldest pending messages come first")
			}

			again, err := repo.ClaimPendingMessages(ctx, tt.limit)
			require.NoError(t, err)
			for _, msg := range again {
				assert.NotContains(t, ids[:tt.expectedCount], msg.ID, "a claimed message is not handed out twice")
			}
		})
	}
}

func TestMessageRepository_ClaimPendingMessages_Concurrent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewMessageRepository(db)
	ctx := context.Background()

	const total = 20
	for i := 0; i < total; i++ {
		require.NoError(t, repo.CreateMessage(ctx, newTestMessage("5511999887766", fmt.Sprintf("message %d", i))))
	}

	var (
		mu      sync.Mutex
		claimed = map[int64]int{}
		wg      sync.WaitGroup
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				batch, err := repo.ClaimPendingMessages(ctx, 3)
				if !assert.NoError(t, err) || len(batch) == 0 {
					return
				}
				mu.Lock()
				for _, msg := range batch {
					claimed[msg.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, total)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "message %d claimed more than once", id)
	}
}

func TestMessageRepository_ReleaseMessages(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewMessageRepository(db)
	ctx := context.Background()

	first := newTestMessage("5511999887766", "first")
	second := newTestMessage("5511999887766", "second")
	require.NoError(t, repo.CreateMessage(ctx, first))
	require.NoError(t, repo.CreateMessage(ctx, second))

	claimed, err := repo.ClaimPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	require.NoError(t, repo.UpdateMessageStatus(ctx, first.ID, models.MessageStatusSent, ptr("BAE5F0"), nil))
	require.NoError(t, repo.ReleaseMessages(ctx, []int64{first.ID, second.ID}))
	require.NoError(t, repo.ReleaseMessages(ctx, nil))

	sent, err := repo.CountMessages(ctx, ptr(models.MessageStatusSent))
	require.NoError(t, err)
	assert.Equal(t, int64(1), sent, "recorded outcomes are not released")

	again, err := repo.ClaimPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, second.ID, again[0].ID)
}

func TestMessageRepository_LongRecipient(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewMessageRepository(db)
	ctx := context.Background()

	jid := strings.Repeat("120363041234567890", 8) + "@g.us"
	msg := newTestMessage(jid, "hello group")
	msg.Kind = "reaction"
	require.NoError(t, repo.CreateMessage(ctx, msg))
	require.NoError(t, repo.UpdateMessageStatus(ctx, msg.ID, models.MessageStatusSent, ptr(strings.Repeat("BAE5", 60)), nil))

	sent, err := repo.ListMessages(ctx, ptr(models.MessageStatusSent), 0, 10)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, jid, sent[0].Recipient)
}

func TestMessageRepository_UpdateMessageStatus(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewMessageRepository(db)
	ctx := context.Background()

	t.Run("failed then sent", func(t *testing.T) {
		cleanupTestData(t, db)
		msg := newTestMessage("5511999887766", "hello")
		require.NoError(t, repo.CreateMessage(ctx, msg))

		require.NoError(t, repo.UpdateMessageStatus(ctx, msg.ID, models.MessageStatusFailed, nil, ptr("upstream unavailable")))

		failed, err := repo.ListMessages(ctx, ptr(models.MessageStatusFailed), 0, 10)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, 1, failed[0].Attempts)
		assert.Equal(t, "upstream unavailable", failed[0].Error.String)
		assert.False(t, failed[0].SentAt.Valid)

		require.NoError(t, repo.UpdateMessageStatus(ctx, msg.ID, models.MessageStatusSent, ptr("BAE5F0"), nil))

		sent, err := repo.ListMessages(ctx, ptr(models.MessageStatusSent), 0, 10)
		require.NoError(t, err)
		require.Len(t, sent, 1)
		assert.Equal(t, 2, sent[0].Attempts)
		assert.Equal(t, "BAE5F0", sent[0].MessageID.String)
		assert.False(t, sent[0].Error.Valid)
		assert.True(t, sent[0].SentAt.Valid)
		assert.WithinDuration(t, time.Now(), sent[0].SentAt.Time, time.Minute)
	})

	t.Run("unknown id", func(t *testing.T) {
		err := repo.UpdateMessageStatus(ctx, 999999, models.MessageStatusSent, nil, nil)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestMessageRepository_ListAndCount(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewMessageRepository(db)
	ctx := context.Background()
	cleanupTestData(t, db)

	statuses := []models.MessageStatus{
		models.MessageStatusSent, models.MessageStatusSent, models.MessageStatusSent,
		models.MessageStatusPending, models.MessageStatusPending,
		models.MessageStatusFailed,
	}
	for i, status := range statuses {
		m := newTestMessage("5511999887766", fmt.Sprintf("message %d", i))
		m.Status = status
		require.NoError(t, repo.CreateMessage(ctx, m))
	}

	tests := []struct {
		name          string
		status        *models.MessageStatus
		offset, limit int
		expectedCount int
		expectedTotal int64
	}{
		{name: "all", offset: 0, limit: 10, expectedCount: 6, expectedTotal: 6},
		{name: "sent first page", status: ptr(models.MessageStatusSent), offset: 0, limit: 2, expectedCount: 2, expectedTotal: 3},
		{name: "sent second page", status: ptr(models.MessageStatusSent), offset: 2, limit: 2, expectedCount: 1, expectedTotal: 3},
		{name: "failed", status: ptr(models.MessageStatusFailed), offset: 0, limit: 10, expectedCount: 1, expectedTotal: 1},
		{name: "offset past end", offset: 10, limit: 5, expectedCount: 0, expectedTotal: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages, err := repo.ListMessages(ctx, tt.status, tt.offset, tt.limit)
			require.NoError(t, err)
			assert.Len(t, messages, tt.expectedCount)

			for i := 1; i < len(messages); i++ {
				assert.False(t, messages[i-1].CreatedAt.Before(messages[i].CreatedAt), "messages are ordered newest first")
			}
			if tt.status != nil {
				for _, m := range messages {
					assert.Equal(t, *tt.status, m.Status)
				}
			}

			total, err := repo.CountMessages(ctx, tt.status)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedTotal, total)
		})
	}
}

func TestMessageRepository_Failure(t *testing.T) {
	db, cleanup := setupTestDB(t)
	repo := repository.NewMessageRepository(db)
	ctx := context.Background()

	_, err := repo.ListMessages(ctx, nil, -1, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OFFSET must not be negative")

	cleanup()

	_, err = repo.ClaimPendingMessages(ctx, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is closed")

	_, err = repo.CountMessages(ctx, nil)
	assert.Error(t, err)
}
