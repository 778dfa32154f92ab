package repository_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/popeskul/evolution-gateway/internal/infrastructure/migrate"
	"github.com/popeskul/evolution-gateway/internal/models"
)

func setupTestDB(t *testing.T) (*sqlx.DB, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	runner := migrate.NewRunner(&migrate.Config{DatabaseURL: dsn, MigrationsPath: "../../migrations"}, nil)
	require.NoError(t, runner.Run())

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)

	cleanup := func() {
		_ = db.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return db, cleanup
}

func cleanupTestData(t *testing.T, db *sqlx.DB) {
	t.Helper()
	_, err := db.Exec("TRUNCATE TABLE outbound_messages, webhook_events RESTART IDENTITY CASCADE")
	require.NoError(t, err)
}

func newTestMessage(recipient, text string) *models.OutboundMessage {
	payload, _ := json.Marshal(map[string]any{"type": "text", "number": recipient, "text": text})
	return &models.OutboundMessage{
		CorrelationID: uuid.New(),
		Kind:          "text",
		Recipient:     recipient,
		Payload:       payload,
	}
}

func ptr[T any](v T) *T {
	return &v
}
