package generator

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator is an interface that defines a method to generate a new value of type T.
// Probe results use it for their IDs.
type Generator[T any] interface {
	Next() (T, error)
}

// UUIDV4Generator is a generator that produces UUIDv4 strings.
// It implements the Generator interface.
type UUIDV4Generator struct{}

func (g *UUIDV4Generator) Next() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var _ Generator[string] = &UUIDV4Generator{}

// SequenceGenerator produces deterministic UUID-shaped strings from a
// counter. It is safe for concurrent use.
type SequenceGenerator struct {
	counter atomic.Uint64
}

func (g *SequenceGenerator) Next() (string, error) {
	n := g.counter.Add(1)
	return fmt.Sprintf("00000000-0000-4000-8000-%012x", n), nil
}

var _ Generator[string] = &SequenceGenerator{}
