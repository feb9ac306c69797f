package util

import (
	"github.com/google/uuid"
)

// IDGenerator returns a fresh identifier for outbox messages and callback log entries.
type IDGenerator func() string

func GenerateUUID() string {
	return uuid.NewString()
}

// SequenceIDs returns a generator that yields the given ids in order and then
// falls back to random UUIDs. Tests use it to pin row ids.
func SequenceIDs(ids ...string) IDGenerator {
	next := 0
	return func() string {
		if next < len(ids) {
			id := ids[next]
			next++
			return id
		}
		return GenerateUUID()
	}
}
