package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"ride-driver/internal/ports"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS booking_changes (
	id          BIGSERIAL PRIMARY KEY,
	driver_id   TEXT        NOT NULL,
	booking_id  TEXT        NOT NULL,
	from_status TEXT        NOT NULL DEFAULT '',
	to_status   TEXT        NOT NULL DEFAULT '',
	source      TEXT        NOT NULL,
	changed_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS booking_changes_booking_idx ON booking_changes (booking_id, changed_at);

CREATE TABLE IF NOT EXISTS driver_active_booking (
	driver_id  TEXT PRIMARY KEY,
	booking_id TEXT        NOT NULL DEFAULT '',
	status     TEXT        NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL
);`

// BookingJournalRepo appends every applied active-booking change and keeps
// a one-row-per-driver view of the latest state, both in one transaction.
type BookingJournalRepo struct {
	uow ports.UnitOfWork
}

func NewBookingJournalRepo(pool *pgxpool.Pool) *BookingJournalRepo {
	return &BookingJournalRepo{uow: NewUnitOfWork(pool)}
}

var _ ports.BookingJournal = (*BookingJournalRepo)(nil)

// EnsureSchema creates the journal tables when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, journalSchema); err != nil {
		return fmt.Errorf("ensure journal schema: %w", err)
	}
	return nil
}

func (repo *BookingJournalRepo) Append(ctx context.Context, c ports.BookingChange) error {
	return repo.uow.WithinTx(ctx, func(ctx context.Context) error {
		tx, err := MustTxFromContext(ctx)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO booking_changes (driver_id, booking_id, from_status, to_status, source, changed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, c.DriverID, c.BookingID, string(c.FromStatus), string(c.ToStatus), c.Source, c.At.UTC()); err != nil {
			return fmt.Errorf("insert booking change: %w", err)
		}

		current := c.BookingID
		if c.ToStatus == "" {
			current = ""
		}
		// out-of-order appends must not move the view backwards
		if _, err := tx.Exec(ctx, `
			INSERT INTO driver_active_booking (driver_id, booking_id, status, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (driver_id) DO UPDATE
			SET booking_id = EXCLUDED.booking_id,
			    status     = EXCLUDED.status,
			    updated_at = EXCLUDED.updated_at
			WHERE driver_active_booking.updated_at <= EXCLUDED.updated_at
		`, c.DriverID, current, string(c.ToStatus), c.At.UTC()); err != nil {
			return fmt.Errorf("upsert driver booking view: %w", err)
		}
		return nil
	})
}
