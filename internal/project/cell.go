package project

import (
	"errors"
	"sync/atomic"
)

// ErrAlreadyInitialized is returned by Cell.Set on the second call.
var ErrAlreadyInitialized = errors.New("project context already initialized")

// Cell holds the project context for the lifetime of the process. It can be set once.
type Cell struct {
	v atomic.Pointer[Context]
}

// Set stores pc. Subsequent calls fail with ErrAlreadyInitialized.
func (c *Cell) Set(pc *Context) error {
	if pc == nil {
		return errors.New("project context is nil")
	}
	if !c.v.CompareAndSwap(nil, pc) {
		return ErrAlreadyInitialized
	}
	return nil
}

// Get returns the stored context, or nil before Set.
func (c *Cell) Get() *Context {
	return c.v.Load()
}
