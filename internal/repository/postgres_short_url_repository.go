package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SergeiKhy/url-service/internal/apperr"
	"github.com/SergeiKhy/url-service/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolationCode  = "23505"
	slugUniqueConstraint = "short_urls_slug_key"
)

const shortURLColumns = `id, slug, locator_id, locator_version, locator_state, refs, access_count, access_date, create_date`

// PostgresShortURLRepository stores records in the short_urls table. Slug
// uniqueness is the table's unique constraint.
type PostgresShortURLRepository struct {
	db *PostgresDB
}

// NewPostgresShortURLRepository expects the schema to be migrated.
func NewPostgresShortURLRepository(db *PostgresDB) *PostgresShortURLRepository {
	return &PostgresShortURLRepository{db: db}
}

func (r *PostgresShortURLRepository) Create(ctx context.Context, record *models.ShortURLRecord) error {
	refs, err := marshalReferences(record.References)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO short_urls (` + shortURLColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.Pool.Exec(ctx, query,
		record.ID,
		record.Slug,
		record.LocatorID,
		record.LocatorVersion,
		stateJSON(record.State),
		refs,
		record.AccessCount,
		record.AccessDate,
		record.CreateDate,
	)
	if err != nil {
		if isSlugUniqueViolation(err) {
			return apperr.SlugExists(record.Slug)
		}
		return fmt.Errorf("failed to create short url: %w", err)
	}

	return nil
}

func (r *PostgresShortURLRepository) GetByID(ctx context.Context, id string) (*models.ShortURLRecord, error) {
	query := `SELECT ` + shortURLColumns + ` FROM short_urls WHERE id = $1`

	record, err := scanShortURL(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundByID(id)
		}
		return nil, fmt.Errorf("failed to get short url: %w", err)
	}
	return record, nil
}

func (r *PostgresShortURLRepository) GetBySlug(ctx context.Context, slug string) (*models.ShortURLRecord, error) {
	query := `SELECT ` + shortURLColumns + ` FROM short_urls WHERE slug = $1`

	record, err := scanShortURL(r.db.Pool.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundBySlug(slug)
		}
		return nil, fmt.Errorf("failed to get short url: %w", err)
	}
	return record, nil
}

// Update writes the patch's non-nil fields. NULL parameters keep the
// current column value; access counters never move backwards.
func (r *PostgresShortURLRepository) Update(ctx context.Context, id string, patch models.ShortURLPatch) error {
	var state, refs any
	if patch.State != nil {
		state = string(patch.State)
	}
	if patch.References != nil {
		encoded, err := marshalReferences(patch.References)
		if err != nil {
			return err
		}
		refs = encoded
	}

	query := `
		UPDATE short_urls SET
			locator_version = COALESCE($2, locator_version),
			locator_state   = COALESCE($3::jsonb, locator_state),
			refs            = COALESCE($4::jsonb, refs),
			access_count    = GREATEST(access_count, COALESCE($5, access_count)),
			access_date     = GREATEST(access_date, COALESCE($6, access_date))
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query,
		id,
		patch.LocatorVersion,
		state,
		refs,
		patch.AccessCount,
		patch.AccessDate,
	)
	if err != nil {
		return fmt.Errorf("failed to update short url: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperr.NotFoundByID(id)
	}
	return nil
}

func (r *PostgresShortURLRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM short_urls WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete short url: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperr.NotFoundByID(id)
	}
	return nil
}

func scanShortURL(row pgx.Row) (*models.ShortURLRecord, error) {
	var (
		record models.ShortURLRecord
		state  []byte
		refs   []byte
	)

	err := row.Scan(
		&record.ID,
		&record.Slug,
		&record.LocatorID,
		&record.LocatorVersion,
		&state,
		&refs,
		&record.AccessCount,
		&record.AccessDate,
		&record.CreateDate,
	)
	if err != nil {
		return nil, err
	}

	record.State = json.RawMessage(state)
	if err := json.Unmarshal(refs, &record.References); err != nil {
		return nil, fmt.Errorf("failed to decode references: %w", err)
	}
	record.AccessDate = record.AccessDate.UTC()
	record.CreateDate = record.CreateDate.UTC()
	return &record, nil
}

func marshalReferences(refs []models.Reference) (string, error) {
	if refs == nil {
		refs = []models.Reference{}
	}
	data, err := json.Marshal(refs)
	if err != nil {
		return "", fmt.Errorf("failed to encode references: %w", err)
	}
	return string(data), nil
}

func stateJSON(state json.RawMessage) string {
	if len(state) == 0 {
		return "{}"
	}
	return string(state)
}

func isSlugUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolationCode && pgErr.ConstraintName == slugUniqueConstraint
}
