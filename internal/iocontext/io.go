// Package iocontext lets commands resolve their I/O streams from context so
// tests and quiet modes can swap them out.
package iocontext

import (
	"context"
	"io"
	"os"
)

// IO bundles the three streams a command writes to and reads from.
type IO struct {
	Out    io.Writer
	ErrOut io.Writer
	In     io.Reader
}

type ioKey struct{}

// DefaultIO returns the process streams.
func DefaultIO() *IO {
	return &IO{Out: os.Stdout, ErrOut: os.Stderr, In: os.Stdin}
}

// WithIO attaches streams to the context.
func WithIO(ctx context.Context, streams *IO) context.Context {
	return context.WithValue(ctx, ioKey{}, streams)
}

// GetIO returns the streams attached to the context, falling back to the
// process streams when none are set.
func GetIO(ctx context.Context) *IO {
	if streams, ok := ctx.Value(ioKey{}).(*IO); ok && streams != nil {
		return streams
	}
	return DefaultIO()
}
