/**
 * @description
 * PostgreSQL implementation of EventRepository and DonationRepository.
 *
 * @notes
 * - UpdateEvent locks the event row with SELECT ... FOR UPDATE so the
 *   registrant array and the attendee counter are rewritten together.
 * - MutateDonation serialises writers per reference with a transaction-scoped
 *   advisory lock, which also covers the not-yet-inserted case.
 */
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const eventColumns = `
	id, title, description, location, starts_at, ends_at, capacity, current_attendees,
	registration_deadline, registration_required, registrants, status, created_at, updated_at`

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	var status string
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Location, &e.StartsAt, &e.EndsAt, &e.Capacity, &e.CurrentAttendees,
		&e.RegistrationDeadline, &e.RegistrationRequired, &e.Registrants, &status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = domain.EventStatus(status)
	if e.Registrants == nil {
		e.Registrants = []string{}
	}
	return &e, nil
}

func (r *PostgresRepository) CreateEvent(ctx context.Context, e domain.Event) error {
	registrants := e.Registrants
	if registrants == nil {
		registrants = []string{}
	}
	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.Exec(ctx, query,
		e.ID, e.Title, e.Description, e.Location, e.StartsAt, e.EndsAt, e.Capacity, e.CurrentAttendees,
		e.RegistrationDeadline, e.RegistrationRequired, registrants, string(e.Status), e.CreatedAt, e.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("event %s: %w", e.ID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) ListEvents(ctx context.Context) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY starts_at ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (r *PostgresRepository) UpdateEvent(ctx context.Context, id string, fn func(domain.Event) (domain.Event, error)) (*domain.Event, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Lock the event row.
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`
	current, err := scanEvent(tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get and lock event: %w", err)
	}

	// 2. Apply the state transition in memory.
	next, err := fn(*current)
	if err != nil {
		return nil, err
	}
	registrants := next.Registrants
	if registrants == nil {
		registrants = []string{}
	}

	// 3. Write counter and registrant set together.
	updateQuery := `
		UPDATE events
		SET title = $2, description = $3, location = $4, starts_at = $5, ends_at = $6,
		    capacity = $7, current_attendees = $8, registration_deadline = $9,
		    registration_required = $10, registrants = $11, status = $12, updated_at = $13
		WHERE id = $1
	`
	_, err = tx.Exec(ctx, updateQuery,
		id, next.Title, next.Description, next.Location, next.StartsAt, next.EndsAt,
		next.Capacity, next.CurrentAttendees, next.RegistrationDeadline,
		next.RegistrationRequired, registrants, string(next.Status), next.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit event update: %w", err)
	}
	next.Registrants = registrants
	return &next, nil
}

const donationColumns = `
	reference, status, category, frequency, anonymous, donor_name, donor_email,
	amount, fees, total, transaction_id, payment_url, provider_status, is_test_mode,
	attempts, last_error, created_at, updated_at`

func scanDonation(row pgx.Row) (*domain.DonationRecord, error) {
	var rec domain.DonationRecord
	var status, frequency string
	var amount, fees, total int64
	err := row.Scan(
		&rec.Reference, &status, &rec.Category, &frequency, &rec.Anonymous, &rec.DonorName, &rec.DonorEmail,
		&amount, &fees, &total, &rec.TransactionID, &rec.PaymentURL, &rec.ProviderState, &rec.IsTestMode,
		&rec.Attempts, &rec.LastError, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.DonationStatus(status)
	rec.Frequency = domain.Frequency(frequency)
	rec.Breakdown = domain.FeeBreakdown{Amount: domain.Money(amount), Fees: domain.Money(fees), Total: domain.Money(total)}
	return &rec, nil
}

func (r *PostgresRepository) GetDonation(ctx context.Context, reference string) (*domain.DonationRecord, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE reference = $1`
	rec, err := scanDonation(r.db.QueryRow(ctx, query, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDonationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get donation: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) MutateDonation(ctx context.Context, reference string, fn func(current *domain.DonationRecord) (domain.DonationRecord, error)) (*domain.DonationRecord, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, reference); err != nil {
		return nil, fmt.Errorf("failed to lock donation reference: %w", err)
	}

	query := `SELECT ` + donationColumns + ` FROM donations WHERE reference = $1 FOR UPDATE`
	current, err := scanDonation(tx.QueryRow(ctx, query, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		current = nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get and lock donation: %w", err)
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	next.Reference = reference

	upsertQuery := `
		INSERT INTO donations (` + donationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (reference) DO UPDATE SET
			status = EXCLUDED.status,
			category = EXCLUDED.category,
			frequency = EXCLUDED.frequency,
			anonymous = EXCLUDED.anonymous,
			donor_name = EXCLUDED.donor_name,
			donor_email = EXCLUDED.donor_email,
			amount = EXCLUDED.amount,
			fees = EXCLUDED.fees,
			total = EXCLUDED.total,
			transaction_id = EXCLUDED.transaction_id,
			payment_url = EXCLUDED.payment_url,
			provider_status = EXCLUDED.provider_status,
			is_test_mode = EXCLUDED.is_test_mode,
			attempts = EXCLUDED.attempts,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at
	`
	_, err = tx.Exec(ctx, upsertQuery,
		next.Reference, string(next.Status), next.Category, string(next.Frequency), next.Anonymous,
		next.DonorName, next.DonorEmail, int64(next.Breakdown.Amount), int64(next.Breakdown.Fees),
		int64(next.Breakdown.Total), next.TransactionID, next.PaymentURL, next.ProviderState,
		next.IsTestMode, next.Attempts, next.LastError, next.CreatedAt, next.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert donation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit donation: %w", err)
	}
	return &next, nil
}

func (r *PostgresRepository) ListDonationsByStatus(ctx context.Context, status domain.DonationStatus, updatedBefore time.Time) ([]domain.DonationRecord, error) {
	query := `
		SELECT ` + donationColumns + `
		FROM donations
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
	`
	rows, err := r.db.Query(ctx, query, string(status), updatedBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	defer rows.Close()

	var out []domain.DonationRecord
	for rows.Next() {
		rec, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donation: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}
