package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Object is a registered physical object and where it was last seen.
type Object struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	Affordance string    `json:"affordance"`
	Y          float64   `json:"y"`
	X          float64   `json:"x"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ObjectRepository provides CRUD operations for registered objects.
type ObjectRepository struct {
	db *sql.DB
}

// Objects returns the object repository for this store.
func (s *Store) Objects() *ObjectRepository {
	return &ObjectRepository{db: s.db}
}

const objectColumns = `id, label, affordance, y, x, created_at, updated_at`

// Upsert inserts an object or updates the affordance and position of the
// object with the same label. o is updated to reflect the stored row.
func (r *ObjectRepository) Upsert(o *Object) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	now := time.Now()

	_, err := r.db.Exec(
		`INSERT INTO objects (id, label, affordance, y, x, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(label) DO UPDATE SET
		   affordance = excluded.affordance,
		   y = excluded.y,
		   x = excluded.x,
		   updated_at = excluded.updated_at`,
		o.ID, o.Label, o.Affordance, o.Y, o.X, now, now,
	)
	if err != nil {
		return err
	}

	stored, err := r.GetByLabel(o.Label)
	if err != nil {
		return err
	}
	*o = *stored
	return nil
}

// Get retrieves an object by its ID.
func (r *ObjectRepository) Get(id string) (*Object, error) {
	return r.scanOne(r.db.QueryRow(`SELECT `+objectColumns+` FROM objects WHERE id = ?`, id))
}

// GetByLabel retrieves an object by its label.
func (r *ObjectRepository) GetByLabel(label string) (*Object, error) {
	return r.scanOne(r.db.QueryRow(`SELECT `+objectColumns+` FROM objects WHERE label = ?`, label))
}

func (r *ObjectRepository) scanOne(row *sql.Row) (*Object, error) {
	o := &Object{}
	err := row.Scan(&o.ID, &o.Label, &o.Affordance, &o.Y, &o.X, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

// List retrieves all registered objects ordered by label.
func (r *ObjectRepository) List() ([]*Object, error) {
	rows, err := r.db.Query(`SELECT ` + objectColumns + ` FROM objects ORDER BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objects []*Object
	for rows.Next() {
		o := &Object{}
		if err := rows.Scan(&o.ID, &o.Label, &o.Affordance, &o.Y, &o.X, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		objects = append(objects, o)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return objects, nil
}

// Delete removes an object by its ID. Bindings that name its label are kept.
func (r *ObjectRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM objects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Clear removes every registered object.
func (r *ObjectRepository) Clear() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM objects`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
