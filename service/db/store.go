package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a submission does not exist.
var ErrNotFound = errors.New("submission not found")

// Store provides the submission archive: one row per pipeline run, updated
// with the delivery report once the run completes. Submissions are never
// updated in place by callers; a resubmission creates a new row.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Submission is one archived pipeline run.
type Submission struct {
	ID                string
	TransactionID     string
	Address           string
	MLSNumber         string
	Filename          string
	EmailSent         bool
	AttachmentSuccess bool
	PDFURL            string
	RawRecord         []byte // original form payload, JSONB
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CreateSubmissionParams contains the parameters for archiving a submission.
type CreateSubmissionParams struct {
	TransactionID string
	Address       string
	MLSNumber     string
	Filename      string
	RawRecord     []byte
}

// UpdateReportParams contains the delivery outcome written after the run.
type UpdateReportParams struct {
	EmailSent         bool
	AttachmentSuccess bool
	PDFURL            string
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS submissions (
		id UUID PRIMARY KEY,
		transaction_id TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		mls_number TEXT NOT NULL DEFAULT '',
		filename TEXT NOT NULL DEFAULT '',
		email_sent BOOLEAN NOT NULL DEFAULT FALSE,
		attachment_success BOOLEAN NOT NULL DEFAULT FALSE,
		pdf_url TEXT NOT NULL DEFAULT '',
		raw_record JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS submissions_transaction_id_idx ON submissions (transaction_id)`,
	`CREATE INDEX IF NOT EXISTS submissions_created_at_idx ON submissions (created_at DESC)`,
}

// EnsureSchema creates the submissions table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

const submissionColumns = `id, transaction_id, address, mls_number, filename,
	email_sent, attachment_success, pdf_url, raw_record, created_at, updated_at`

// CreateSubmission inserts a new submission row and returns it.
func (s *Store) CreateSubmission(ctx context.Context, params CreateSubmissionParams) (*Submission, error) {
	id := uuid.New().String()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO submissions (id, transaction_id, address, mls_number, filename, raw_record)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+submissionColumns,
		id, params.TransactionID, params.Address, params.MLSNumber, params.Filename, params.RawRecord,
	)
	return scanSubmission(row)
}

// UpdateSubmissionReport writes the delivery outcome onto an existing row.
func (s *Store) UpdateSubmissionReport(ctx context.Context, id string, params UpdateReportParams) (*Submission, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE submissions
		SET email_sent = $2, attachment_success = $3, pdf_url = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+submissionColumns,
		id, params.EmailSent, params.AttachmentSuccess, params.PDFURL,
	)
	sub, err := scanSubmission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sub, err
}

// GetSubmission retrieves a submission by id.
func (s *Store) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE id = $1`,
		id,
	)
	sub, err := scanSubmission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sub, err
}

// ListSubmissionsParams contains pagination parameters.
type ListSubmissionsParams struct {
	Limit  int32
	Offset int32
}

// ListSubmissions retrieves submissions ordered most recent first.
func (s *Store) ListSubmissions(ctx context.Context, params ListSubmissionsParams) ([]*Submission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`,
		params.Limit, params.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func scanSubmission(row pgx.Row) (*Submission, error) {
	var sub Submission
	err := row.Scan(
		&sub.ID,
		&sub.TransactionID,
		&sub.Address,
		&sub.MLSNumber,
		&sub.Filename,
		&sub.EmailSent,
		&sub.AttachmentSuccess,
		&sub.PDFURL,
		&sub.RawRecord,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
