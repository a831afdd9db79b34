package medialib

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Connections holds the last known cloud connection state. It is refreshed
// from the service on demand and never trusted for longer than a session.
type Connections struct {
	backend Backend

	mu       sync.RWMutex
	snapshot []CloudConnection
}

func NewConnections(backend Backend) *Connections {
	return &Connections{backend: backend}
}

// Refresh reads the live connection state.
func (c *Connections) Refresh(ctx context.Context) ([]CloudConnection, error) {
	conns, err := c.backend.CloudConnections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cloud connections, %w", err)
	}

	c.Update(conns)
	return slices.Clone(conns), nil
}

// Update replaces the snapshot with state obtained elsewhere.
func (c *Connections) Update(conns []CloudConnection) {
	c.mu.Lock()
	c.snapshot = slices.Clone(conns)
	c.mu.Unlock()
}

func (c *Connections) Snapshot() []CloudConnection {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.snapshot)
}

// Active returns the provider operations should target: the first connected
// one in the snapshot.
func (c *Connections) Active() (Provider, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, conn := range c.snapshot {
		if conn.Connected {
			return conn.Provider, true
		}
	}

	return "", false
}
