// Package store provides storage backends for consultation records.
//
// It includes an in-memory store for tests and single-process deployments,
// plus SQLite and PostgreSQL backed stores selected by DSN.
package store

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/playcat/catconsult/internal/models"
	"github.com/playcat/catconsult/internal/util"
)

// ErrNotFound is returned when a consultation id does not exist.
var ErrNotFound = errors.New("consultation not found")

// Store persists consultation records submitted through the intake surface.
type Store interface {
	SaveConsultation(record *models.ConsultationRecord) error
	GetConsultation(id string) (*models.ConsultationRecord, error)
	GetConsultationsBySession(sessionID string) ([]*models.ConsultationRecord, error)
	ListConsultations(limit int) ([]*models.ConsultationRecord, error)
	UpdateConsultationStatus(id string, status models.ConsultationStatus) error
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option defines a functional option for store configuration.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DSN type names returned by DetectDSNType.
const (
	DSNTypePostgres = "postgres"
	DSNTypeSQLite   = "sqlite"
)

// DetectDSNType inspects a DSN and reports which backend it addresses.
// Anything that is not a postgres URL or key-value string is treated as a
// SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DSNTypePostgres
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return DSNTypePostgres
	}
	return DSNTypeSQLite
}

// NewStore opens the backend matching the DSN. An empty DSN yields the
// in-memory store.
func NewStore(dsn string) (Store, error) {
	if dsn == "" {
		return NewInMemoryStore(), nil
	}
	switch DetectDSNType(dsn) {
	case DSNTypePostgres:
		return NewPostgresStore(WithPostgresDSN(dsn))
	default:
		return NewSQLiteStore(WithSQLiteDSN(dsn))
	}
}

// InMemoryStore keeps consultation records in a map. Safe for concurrent
// use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.ConsultationRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*models.ConsultationRecord)}
}

func (s *InMemoryStore) SaveConsultation(record *models.ConsultationRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	prepareForSave(record)

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *record
	s.records[record.ID] = &stored
	return nil
}

func (s *InMemoryStore) GetConsultation(id string) (*models.ConsultationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *record
	return &result, nil
}

func (s *InMemoryStore) GetConsultationsBySession(sessionID string) ([]*models.ConsultationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []*models.ConsultationRecord
	for _, record := range s.records {
		if record.SessionID == sessionID {
			result := *record
			results = append(results, &result)
		}
	}
	sortByCreatedAtDesc(results)
	return results, nil
}

func (s *InMemoryStore) ListConsultations(limit int) ([]*models.ConsultationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]*models.ConsultationRecord, 0, len(s.records))
	for _, record := range s.records {
		result := *record
		results = append(results, &result)
	}
	sortByCreatedAtDesc(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *InMemoryStore) UpdateConsultationStatus(id string, status models.ConsultationStatus) error {
	if !models.IsValidConsultationStatus(status) {
		return errors.New("invalid consultation status")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	record.Status = status
	record.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

// prepareForSave fills the generated and defaulted fields of a record.
func prepareForSave(record *models.ConsultationRecord) {
	now := time.Now()
	if record.ID == "" {
		record.ID = util.GenerateConsultationID()
	}
	if record.Status == "" {
		record.Status = models.ConsultationStatusPending
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
}

func sortByCreatedAtDesc(records []*models.ConsultationRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
