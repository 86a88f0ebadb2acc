package storage

import "time"

// Derived is a stored derived record. Body is the JSON form of the shape.
type Derived struct {
	ID          int64     `db:"id"`
	SourceRawID int64     `db:"source_raw_id"`
	Shape       string    `db:"shape"`
	Body        []byte    `db:"body"`
	CreatedAt   time.Time `db:"created_at"`
}
