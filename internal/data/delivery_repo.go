package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/target/specops-api/internal/core"
	"github.com/target/specops-api/internal/data/database"
	"github.com/target/specops-api/internal/data/pgxutil"
	"github.com/target/specops-api/internal/domain/model"
	apperrors "github.com/target/specops-api/internal/errors"
)

const (
	deliveriesTable     = "notification_deliveries"
	defaultDeliveryPage = 50
	maxDeliveryPage     = 500
)

// deliveryColumns keeps SELECT and INSERT column order in one place.
var deliveryColumns = []string{
	"id", "event_type", "correlation_id", "role", "recipient", "subject",
	"transport", "provider_message_id", "status", "error", "created_at",
}

// DeliveryRepo persists notification delivery outcomes in Postgres.
type DeliveryRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ core.DeliveryRepository = (*DeliveryRepo)(nil)

// NewDeliveryRepo creates a DeliveryRepo on db.
func NewDeliveryRepo(db *sql.DB) *DeliveryRepo {
	return &DeliveryRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// Create inserts rec. A missing ID or CreatedAt is filled in.
func (r *DeliveryRepo) Create(ctx context.Context, rec *model.DeliveryRecord) error {
	if rec == nil {
		return errors.New("delivery record is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.timeProvider.Now().UTC()
	}

	const query = `
		INSERT INTO notification_deliveries (
			id, event_type, correlation_id, role, recipient, subject,
			transport, provider_message_id, status, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, execErr := conn.Exec(ctx, query,
			rec.ID, rec.EventType, rec.CorrelationID, rec.Role, rec.Recipient, rec.Subject,
			rec.Transport, rec.ProviderMessageID, rec.Status, rec.Error, rec.CreatedAt,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("create delivery: %w", apperrors.MapDBError(err))
	}
	return nil
}

// List returns delivery records newest first.
func (r *DeliveryRepo) List(ctx context.Context, opts model.DeliveryListOptions) ([]*model.DeliveryRecord, error) {
	query, args := database.BuildListQuery(deliveryListQuery(opts))

	var out []*model.DeliveryRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qErr := conn.Query(ctx, query, args...)
		if qErr != nil {
			return qErr
		}
		recs, collectErr := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.DeliveryRecord])
		if collectErr != nil {
			return collectErr
		}
		out = recs
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", apperrors.MapDBError(err))
	}
	if out == nil {
		out = []*model.DeliveryRecord{}
	}
	return out, nil
}

func deliveryListQuery(opts model.DeliveryListOptions) *database.ListQueryOptions {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultDeliveryPage
	}
	limit = min(limit, maxDeliveryPage)

	qopts := []database.ListQueryOption{
		database.WithColumns(deliveryColumns...),
		database.WithOrderBy("created_at", "DESC"),
		database.WithLimit(limit),
		database.WithOffset(max(opts.Offset, 0)),
	}
	if opts.EventType != nil {
		qopts = append(qopts, database.WithCondition(
			database.WhereCond("event_type", database.Equal, string(*opts.EventType))))
	}
	if opts.CorrelationID != nil {
		qopts = append(qopts, database.WithCondition(
			database.WhereCond("correlation_id", database.Equal, *opts.CorrelationID)))
	}
	return database.NewListQueryOptions(deliveriesTable, qopts...)
}
