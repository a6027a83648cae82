package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
)

const deliveryColumns = `id, sequence, run_id, item_id, kind, group_label, title, destination, format, status, reason, bytes, created_at, updated_at`

// DeliveryRepository implements models.Repository[*models.Delivery] for the delivery ledger.
//
// Rows are append-only in practice: every run records one row per queue entry, so the latest row of an
// item is its current state.
type DeliveryRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.Delivery] = (*DeliveryRepository)(nil)

// NewDeliveryRepository creates a new DeliveryRepository with the given database connection
func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// Create inserts a new delivery with generated ID and sequence
func (r *DeliveryRepository) Create(d *models.Delivery) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "deliveries")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	d.SetID(id)
	d.SetSequence(sequence)

	query := `INSERT INTO deliveries (` + deliveryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.Exec(query,
		id,
		sequence,
		d.RunID(),
		string(d.ItemID()),
		d.Kind().String(),
		d.Group(),
		d.Title(),
		d.Destination(),
		string(d.Format()),
		string(d.Status()),
		d.Reason(),
		d.Bytes(),
		d.CreatedAt(),
		d.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert delivery: %w", err)
	}
	return nil
}

// Get retrieves a delivery by ID
func (r *DeliveryRepository) Get(id string) (*models.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = ?`
	return r.scan(r.db.QueryRow(query, id))
}

// Update rewrites the outcome fields of a delivery
func (r *DeliveryRepository) Update(d *models.Delivery) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	d.SetUpdatedAt(now)

	query := `
		UPDATE deliveries
		SET title = ?, destination = ?, format = ?, status = ?, reason = ?, bytes = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query,
		d.Title(),
		d.Destination(),
		string(d.Format()),
		string(d.Status()),
		d.Reason(),
		d.Bytes(),
		now,
		d.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update delivery: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: delivery %s", shared.ErrNotFound, d.ID())
	}
	return nil
}

// List retrieves deliveries newest first.
//
// Supported criteria: "run_id" (string), "item_id" (string), "status" (models.DeliveryStatus or string)
// and "limit" (int).
func (r *DeliveryRepository) List(criteria map[string]any) ([]*models.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE 1 = 1`
	args := []any{}

	if runID, ok := criteria["run_id"].(string); ok && runID != "" {
		query += " AND run_id = ?"
		args = append(args, runID)
	}
	if itemID, ok := criteria["item_id"].(string); ok && itemID != "" {
		query += " AND item_id = ?"
		args = append(args, itemID)
	}
	switch status := criteria["status"].(type) {
	case models.DeliveryStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	}

	query += " ORDER BY sequence DESC"
	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return r.query(query, args...)
}

// LatestFailed returns, oldest first, the items whose most recent recorded outcome is a failure.
func (r *DeliveryRepository) LatestFailed() ([]*models.Delivery, error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM deliveries d
		WHERE d.status = 'failed'
		  AND d.sequence = (SELECT MAX(sequence) FROM deliveries WHERE item_id = d.item_id)
		ORDER BY d.sequence ASC
	`
	return r.query(query)
}

func (r *DeliveryRepository) query(query string, args ...any) ([]*models.Delivery, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*models.Delivery
	for rows.Next() {
		d, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return deliveries, nil
}

func (r *DeliveryRepository) scan(row scanner) (*models.Delivery, error) {
	var (
		id          string
		sequence    int
		runID       string
		itemID      string
		kind        string
		group       string
		title       string
		destination string
		format      string
		status      string
		reason      string
		bytes       int64
		createdAt   time.Time
		updatedAt   time.Time
	)

	err := row.Scan(&id, &sequence, &runID, &itemID, &kind, &group, &title, &destination, &format,
		&status, &reason, &bytes, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: delivery", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan delivery: %w", err)
	}

	itemKind, err := models.ParseItemKind(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to scan delivery %s: %w", id, err)
	}

	entry := models.QueueEntry{ID: models.ItemID(itemID), Kind: itemKind, Group: group}
	d := models.NewDelivery(runID, entry, models.DeliveryStatus(status))
	d.SetID(id)
	d.SetSequence(sequence)
	d.SetTitle(title)
	d.SetDestination(destination)
	d.SetFormat(models.FileFormat(format))
	d.SetReason(reason)
	d.SetBytes(bytes)
	d.SetCreatedAt(createdAt)
	d.SetUpdatedAt(updatedAt)
	return d, nil
}
