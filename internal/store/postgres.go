// Package store provides storage backends for consultation records.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/playcat/catconsult/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("PostgresStore failed to open connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgresStore ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("PostgresStore failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresStore ready")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveConsultation(record *models.ConsultationRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	prepareForSave(record)

	catsJSON, err := json.Marshal(record.Cats)
	if err != nil {
		return fmt.Errorf("failed to marshal cats: %w", err)
	}

	_, err = s.db.Exec(`INSERT INTO consultations (
			id, session_id, consultation_type, installation_region, installation_location,
			cat_count, width, height, ceiling_height, product_color, cats,
			contact_name, contact_phone, contact_email, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			consultation_type = EXCLUDED.consultation_type,
			installation_region = EXCLUDED.installation_region,
			installation_location = EXCLUDED.installation_location,
			cat_count = EXCLUDED.cat_count,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			ceiling_height = EXCLUDED.ceiling_height,
			product_color = EXCLUDED.product_color,
			cats = EXCLUDED.cats,
			contact_name = EXCLUDED.contact_name,
			contact_phone = EXCLUDED.contact_phone,
			contact_email = EXCLUDED.contact_email,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		record.ID, record.SessionID, nilIfEmpty(record.ConsultationType), record.InstallationRegion,
		nilIfEmpty(record.InstallationLocation), record.CatCount, record.Width, record.Height,
		record.CeilingHeight, nilIfEmpty(record.ProductColor), string(catsJSON),
		nilIfEmpty(record.ContactName), nilIfEmpty(record.ContactPhone), nilIfEmpty(record.ContactEmail),
		string(record.Status), record.CreatedAt, record.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConsultation failed", "error", err, "id", record.ID)
		return fmt.Errorf("failed to save consultation %s: %w", record.ID, err)
	}
	slog.Debug("PostgresStore SaveConsultation succeeded", "id", record.ID, "sessionID", record.SessionID)
	return nil
}

func (s *PostgresStore) GetConsultation(id string) (*models.ConsultationRecord, error) {
	row := s.db.QueryRow(`SELECT `+consultationColumns+` FROM consultations WHERE id = $1`, id)
	record, err := scanConsultation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetConsultation failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get consultation %s: %w", id, err)
	}
	return record, nil
}

func (s *PostgresStore) GetConsultationsBySession(sessionID string) ([]*models.ConsultationRecord, error) {
	rows, err := s.db.Query(`SELECT `+consultationColumns+
		` FROM consultations WHERE session_id = $1 ORDER BY created_at DESC`, sessionID)
	if err != nil {
		slog.Error("PostgresStore GetConsultationsBySession query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query consultations for session %s: %w", sessionID, err)
	}
	defer rows.Close()
	return scanConsultationRows(rows)
}

func (s *PostgresStore) ListConsultations(limit int) ([]*models.ConsultationRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT `+consultationColumns+
		` FROM consultations ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		slog.Error("PostgresStore ListConsultations query failed", "error", err)
		return nil, fmt.Errorf("failed to list consultations: %w", err)
	}
	defer rows.Close()
	return scanConsultationRows(rows)
}

func (s *PostgresStore) UpdateConsultationStatus(id string, status models.ConsultationStatus) error {
	if !models.IsValidConsultationStatus(status) {
		return fmt.Errorf("invalid consultation status: %s", status)
	}
	result, err := s.db.Exec(`UPDATE consultations SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), id)
	if err != nil {
		slog.Error("PostgresStore UpdateConsultationStatus failed", "error", err, "id", id)
		return fmt.Errorf("failed to update consultation %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// nilIfEmpty returns nil for empty strings so nullable columns stay NULL.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
