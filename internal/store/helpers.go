package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/playcat/catconsult/internal/models"
)

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanConsultation scans one consultation row into a record.
func scanConsultation(row rowScanner) (*models.ConsultationRecord, error) {
	var r models.ConsultationRecord
	var consultationType, installationLocation, productColor sql.NullString
	var contactName, contactPhone, contactEmail, catsJSON sql.NullString
	var width, height, ceilingHeight sql.NullFloat64
	var status string

	err := row.Scan(
		&r.ID, &r.SessionID, &consultationType, &r.InstallationRegion,
		&installationLocation, &r.CatCount, &width, &height, &ceilingHeight,
		&productColor, &catsJSON, &contactName, &contactPhone, &contactEmail,
		&status, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.ConsultationType = consultationType.String
	r.InstallationLocation = installationLocation.String
	r.ProductColor = productColor.String
	r.ContactName = contactName.String
	r.ContactPhone = contactPhone.String
	r.ContactEmail = contactEmail.String
	r.Width = width.Float64
	r.Height = height.Float64
	r.CeilingHeight = ceilingHeight.Float64
	r.Status = models.ConsultationStatus(status)

	if catsJSON.Valid && catsJSON.String != "" && catsJSON.String != "null" {
		if err := json.Unmarshal([]byte(catsJSON.String), &r.Cats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cats for consultation %s: %w", r.ID, err)
		}
	}
	return &r, nil
}

func scanConsultationRows(rows *sql.Rows) ([]*models.ConsultationRecord, error) {
	var records []*models.ConsultationRecord
	for rows.Next() {
		record, err := scanConsultation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan consultation row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate consultation rows: %w", err)
	}
	return records, nil
}
