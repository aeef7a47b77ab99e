package sched

import (
	"fmt"
)

// Registry holds the available scheduler client implementations. The variant
// to use is picked once at startup; there is no mid-run fallback.
type Registry struct {
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: map[string]Client{}}
}

func (r *Registry) Register(c Client) {
	r.clients[c.Name()] = c
}

func (r *Registry) Get(name string) (Client, error) {
	c, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("scheduler client not registered: %s", name)
	}
	return c, nil
}
