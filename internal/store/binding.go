package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Binding maps an object label and gesture key onto a command name.
type Binding struct {
	ID          string    `json:"id"`
	ObjectLabel string    `json:"object_label"`
	GestureKey  string    `json:"gesture_key"`
	Command     string    `json:"command"`
	CreatedAt   time.Time `json:"created_at"`
}

// Key returns the composite "label:gestureKey" key.
func (b *Binding) Key() string {
	return b.ObjectLabel + ":" + b.GestureKey
}

// BindingRepository provides CRUD operations for bindings.
type BindingRepository struct {
	db *sql.DB
}

// Bindings returns the binding repository for this store.
func (s *Store) Bindings() *BindingRepository {
	return &BindingRepository{db: s.db}
}

const bindingColumns = `id, object_label, gesture_key, command, created_at`

// Set creates or replaces the binding for (ObjectLabel, GestureKey).
// A replaced binding keeps its original ID and creation time; b is updated
// to reflect the stored row.
func (r *BindingRepository) Set(b *Binding) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}

	_, err := r.db.Exec(
		`INSERT INTO bindings (id, object_label, gesture_key, command, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(object_label, gesture_key) DO UPDATE SET command = excluded.command`,
		b.ID, b.ObjectLabel, b.GestureKey, b.Command, time.Now(),
	)
	if err != nil {
		return err
	}

	stored, err := r.GetByKey(b.ObjectLabel, b.GestureKey)
	if err != nil {
		return err
	}
	*b = *stored
	return nil
}

// Get retrieves a binding by its ID.
func (r *BindingRepository) Get(id string) (*Binding, error) {
	return r.scanOne(r.db.QueryRow(`SELECT `+bindingColumns+` FROM bindings WHERE id = ?`, id))
}

// GetByKey retrieves the binding for a label and gesture key.
func (r *BindingRepository) GetByKey(label, gestureKey string) (*Binding, error) {
	return r.scanOne(r.db.QueryRow(
		`SELECT `+bindingColumns+` FROM bindings WHERE object_label = ? AND gesture_key = ?`,
		label, gestureKey,
	))
}

func (r *BindingRepository) scanOne(row *sql.Row) (*Binding, error) {
	b := &Binding{}
	err := row.Scan(&b.ID, &b.ObjectLabel, &b.GestureKey, &b.Command, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// List retrieves all bindings ordered by label and gesture key.
func (r *BindingRepository) List() ([]*Binding, error) {
	rows, err := r.db.Query(`SELECT ` + bindingColumns + ` FROM bindings ORDER BY object_label, gesture_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*Binding
	for rows.Next() {
		b := &Binding{}
		if err := rows.Scan(&b.ID, &b.ObjectLabel, &b.GestureKey, &b.Command, &b.CreatedAt); err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bindings, nil
}

// Table returns the bindings as a "label:gestureKey" → command map.
func (r *BindingRepository) Table() (map[string]string, error) {
	bindings, err := r.List()
	if err != nil {
		return nil, err
	}

	table := make(map[string]string, len(bindings))
	for _, b := range bindings {
		table[b.Key()] = b.Command
	}
	return table, nil
}

// Delete removes a binding by its ID.
func (r *BindingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM bindings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// DeleteKey removes the binding for a label and gesture key.
func (r *BindingRepository) DeleteKey(label, gestureKey string) error {
	result, err := r.db.Exec(`DELETE FROM bindings WHERE object_label = ? AND gesture_key = ?`, label, gestureKey)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Clear removes every binding and returns how many were deleted.
func (r *BindingRepository) Clear() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM bindings`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
