// Package store provides storage backends for consultation records.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/playcat/catconsult/internal/models"
)

// DefaultDirPermissions defines the default permissions for database
// directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN is
// a file path to the SQLite database file; the directory is created if
// missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("SQLiteStore failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("SQLiteStore failed to open connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLiteStore ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("SQLiteStore failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore ready", "dsn", dsn)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveConsultation(record *models.ConsultationRecord) error {
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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			consultation_type = excluded.consultation_type,
			installation_region = excluded.installation_region,
			installation_location = excluded.installation_location,
			cat_count = excluded.cat_count,
			width = excluded.width,
			height = excluded.height,
			ceiling_height = excluded.ceiling_height,
			product_color = excluded.product_color,
			cats = excluded.cats,
			contact_name = excluded.contact_name,
			contact_phone = excluded.contact_phone,
			contact_email = excluded.contact_email,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		record.ID, record.SessionID, record.ConsultationType, record.InstallationRegion,
		record.InstallationLocation, record.CatCount, record.Width, record.Height,
		record.CeilingHeight, record.ProductColor, string(catsJSON),
		record.ContactName, record.ContactPhone, record.ContactEmail,
		string(record.Status), record.CreatedAt, record.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConsultation failed", "error", err, "id", record.ID)
		return fmt.Errorf("failed to save consultation %s: %w", record.ID, err)
	}
	slog.Debug("SQLiteStore SaveConsultation succeeded", "id", record.ID, "sessionID", record.SessionID)
	return nil
}

const consultationColumns = `id, session_id, consultation_type, installation_region,
	installation_location, cat_count, width, height, ceiling_height, product_color,
	cats, contact_name, contact_phone, contact_email, status, created_at, updated_at`

func (s *SQLiteStore) GetConsultation(id string) (*models.ConsultationRecord, error) {
	row := s.db.QueryRow(`SELECT `+consultationColumns+` FROM consultations WHERE id = ?`, id)
	record, err := scanConsultation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetConsultation failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get consultation %s: %w", id, err)
	}
	return record, nil
}

func (s *SQLiteStore) GetConsultationsBySession(sessionID string) ([]*models.ConsultationRecord, error) {
	rows, err := s.db.Query(`SELECT `+consultationColumns+
		` FROM consultations WHERE session_id = ? ORDER BY created_at DESC`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore GetConsultationsBySession query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query consultations for session %s: %w", sessionID, err)
	}
	defer rows.Close()
	return scanConsultationRows(rows)
}

func (s *SQLiteStore) ListConsultations(limit int) ([]*models.ConsultationRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT `+consultationColumns+
		` FROM consultations ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		slog.Error("SQLiteStore ListConsultations query failed", "error", err)
		return nil, fmt.Errorf("failed to list consultations: %w", err)
	}
	defer rows.Close()
	return scanConsultationRows(rows)
}

func (s *SQLiteStore) UpdateConsultationStatus(id string, status models.ConsultationStatus) error {
	if !models.IsValidConsultationStatus(status) {
		return fmt.Errorf("invalid consultation status: %s", status)
	}
	result, err := s.db.Exec(`UPDATE consultations SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(status), id)
	if err != nil {
		slog.Error("SQLiteStore UpdateConsultationStatus failed", "error", err, "id", id)
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
