package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type (
	// Handler processes jobs of one type, identified by Name.
	Handler interface {
		Name() string
		Handle(ctx context.Context, payload json.RawMessage) error
	}

	// HandlerFunc is a typed job handler; the payload type doubles as the
	// job type name, so registration stays compile-time checked.
	HandlerFunc[T any] func(ctx context.Context, payload T) error
)

// NewHandler wraps a typed function into a Handler. The job type name is
// derived from the payload struct, matching what Enqueue records.
func NewHandler[T any](handler HandlerFunc[T]) Handler {
	var payload T
	return &typedHandler[T]{
		name:    qualifiedStructName(payload),
		handler: handler,
	}
}

type typedHandler[T any] struct {
	name    string
	handler HandlerFunc[T]
}

func (h *typedHandler[T]) Name() string {
	return h.name
}

func (h *typedHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return err
	}
	return h.handler(ctx, t)
}

func qualifiedStructName(v any) string {
	s := fmt.Sprintf("%T", v)
	return strings.TrimLeft(s, "*")
}
