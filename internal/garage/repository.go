package garage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for registration persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a registration by its unique identifier.
	// Returns ErrNotFound if the registration does not exist.
	GetByID(ctx context.Context, id string) (*Registration, error)

	// GetByDeviceID retrieves a registration by its device identifier.
	// Returns ErrNotFound if no controller with that identifier is registered.
	GetByDeviceID(ctx context.Context, deviceID string) (*Registration, error)

	// List retrieves all registrations.
	List(ctx context.Context) ([]Registration, error)

	// Create inserts a new registration.
	// Returns ErrExists if the device identifier is already registered.
	Create(ctx context.Context, reg *Registration) error

	// SetApproved updates the approval flag of a registration.
	// Returns ErrNotFound if the registration does not exist.
	SetApproved(ctx context.Context, id string, approved bool) error

	// Rename updates the display name of a registration.
	// Returns ErrNotFound if the registration does not exist.
	Rename(ctx context.Context, id, name string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a registration by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Registration, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, device_id, approved, created_at, updated_at
		FROM garages
		WHERE id = ?`, id)

	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying registration by id: %w", err)
	}
	return reg, nil
}

// GetByDeviceID retrieves a registration by its device identifier.
func (r *SQLiteRepository) GetByDeviceID(ctx context.Context, deviceID string) (*Registration, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, device_id, approved, created_at, updated_at
		FROM garages
		WHERE device_id = ?`, deviceID)

	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying registration by device id: %w", err)
	}
	return reg, nil
}

// List retrieves all registrations ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Registration, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, device_id, approved, created_at, updated_at
		FROM garages
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying registrations: %w", err)
	}
	defer rows.Close()

	var regs []Registration
	for rows.Next() {
		reg, scanErr := scanRegistration(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning registration: %w", scanErr)
		}
		regs = append(regs, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating registrations: %w", err)
	}

	if regs == nil {
		regs = []Registration{}
	}
	return regs, nil
}

// Create inserts a new registration. The ID and timestamps are generated
// if unset; an unset name defaults to the device identifier.
func (r *SQLiteRepository) Create(ctx context.Context, reg *Registration) error {
	if reg.ID == "" {
		reg.ID = "gar-" + uuid.NewString()[:8]
	}
	if reg.Name == "" {
		reg.Name = reg.DeviceID
	}
	now := time.Now().UTC()
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = now
	}
	reg.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO garages (id, name, device_id, approved, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		reg.ID, reg.Name, reg.DeviceID, reg.Approved,
		reg.CreatedAt.Format(time.RFC3339), reg.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting registration: %w", err)
	}
	return nil
}

// SetApproved updates the approval flag of a registration.
func (r *SQLiteRepository) SetApproved(ctx context.Context, id string, approved bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE garages SET approved = ?, updated_at = ? WHERE id = ?`,
		approved, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating approval: %w", err)
	}
	return requireRow(result)
}

// Rename updates the display name of a registration.
func (r *SQLiteRepository) Rename(ctx context.Context, id, name string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE garages SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("renaming registration: %w", err)
	}
	return requireRow(result)
}

// requireRow converts a zero-rows-affected result into ErrNotFound.
func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint error.
// The mattn driver exposes this only via the error string, so match on it
// rather than importing driver internals.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// scanner abstracts sql.Row and sql.Rows for scanRegistration.
type scanner interface {
	Scan(dest ...any) error
}

// scanRegistration scans a registration row in column order.
func scanRegistration(row scanner) (*Registration, error) {
	var reg Registration
	var createdAt, updatedAt string

	if err := row.Scan(&reg.ID, &reg.Name, &reg.DeviceID, &reg.Approved, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if reg.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	if reg.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at %q: %w", updatedAt, err)
	}

	return &reg, nil
}
