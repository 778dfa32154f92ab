package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

const pingTimeout = 2 * time.Second

// repositoryImpl is the concrete implementation of Repository interface.
type repositoryImpl struct {
	db      *sqlx.DB
	message MessageRepository
	event   EventRepository
}

// NewRepository creates a new repository instance.
func NewRepository(db *sqlx.DB) Repository {
	return &repositoryImpl{
		db:      db,
		message: NewMessageRepository(db),
		event:   NewEventRepository(db),
	}
}

// Message returns the outbound message repository.
func (r *repositoryImpl) Message() MessageRepository {
	return r.message
}

// Event returns the webhook event repository.
func (r *repositoryImpl) Event() EventRepository {
	return r.event
}

// Ping checks if the database connection is healthy.
func (r *repositoryImpl) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	return r.db.PingContext(ctx)
}
