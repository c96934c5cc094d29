package app

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// generateID produces a ULID: lexicographically sortable by creation
// time, which keeps tenant listings in insertion order for free.
func generateID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
