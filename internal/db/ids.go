package db

import "github.com/google/uuid"

// NewID returns a UUIDv7 string: globally unique and sortable by creation time.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
