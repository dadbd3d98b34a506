package store

import (
	"database/sql"
	"time"
)

// CommandRecord is one emitted command in the command log.
type CommandRecord struct {
	ID          int64     `json:"id"`
	ObjectLabel string    `json:"object_label"`
	Gesture     string    `json:"gesture"`
	Command     string    `json:"command"`
	Action      string    `json:"action"`
	Value       int       `json:"value"`
	Direction   string    `json:"direction"`
	Intensity   float64   `json:"intensity"`
	GestureType string    `json:"gesture_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// CommandLogRepository appends to and reads the command log.
type CommandLogRepository struct {
	db *sql.DB
}

// Commands returns the command log repository for this store.
func (s *Store) Commands() *CommandLogRepository {
	return &CommandLogRepository{db: s.db}
}

// Append inserts a record and sets its ID and CreatedAt.
func (r *CommandLogRepository) Append(c *CommandRecord) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO command_log (object_label, gesture, command, action, value, direction, intensity, gesture_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ObjectLabel, c.Gesture, c.Command, c.Action, c.Value, c.Direction, c.Intensity, c.GestureType, c.CreatedAt,
	)
	if err != nil {
		return err
	}

	c.ID, err = result.LastInsertId()
	return err
}

// Recent returns up to n records, newest first.
func (r *CommandLogRepository) Recent(n int) ([]CommandRecord, error) {
	if n <= 0 {
		n = 50
	}

	rows, err := r.db.Query(
		`SELECT id, object_label, gesture, command, action, value, direction, intensity, gesture_type, created_at
		 FROM command_log ORDER BY id DESC LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []CommandRecord
	for rows.Next() {
		var c CommandRecord
		err := rows.Scan(&c.ID, &c.ObjectLabel, &c.Gesture, &c.Command, &c.Action,
			&c.Value, &c.Direction, &c.Intensity, &c.GestureType, &c.CreatedAt)
		if err != nil {
			return nil, err
		}
		records = append(records, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// Prune keeps the newest n records and deletes the rest.
func (r *CommandLogRepository) Prune(keep int) (int64, error) {
	result, err := r.db.Exec(
		`DELETE FROM command_log WHERE id NOT IN (SELECT id FROM command_log ORDER BY id DESC LIMIT ?)`,
		keep,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
