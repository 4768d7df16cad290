package services

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Registry indexes the monitors of every configured device
type Registry struct {
	monitors map[string]*MonitorService
	targets  map[string]*MonitorService
}

// NewRegistry creates a registry from the given monitors
func NewRegistry(monitors ...*MonitorService) *Registry {
	r := &Registry{
		monitors: make(map[string]*MonitorService, len(monitors)),
		targets:  make(map[string]*MonitorService, len(monitors)),
	}
	for _, m := range monitors {
		r.monitors[m.Name()] = m
		r.targets[m.Config().Target] = m
	}
	return r
}

// Get returns the monitor for a device name
func (r *Registry) Get(name string) (*MonitorService, bool) {
	m, ok := r.monitors[name]
	return m, ok
}

// ByTarget returns the monitor whose device target matches host
func (r *Registry) ByTarget(host string) (*MonitorService, bool) {
	m, ok := r.targets[host]
	return m, ok
}

// All returns every monitor sorted by device name
func (r *Registry) All() []*MonitorService {
	all := make([]*MonitorService, 0, len(r.monitors))
	for _, m := range r.monitors {
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })
	return all
}

// Run starts the polling loop of every monitor and blocks until ctx is done
func (r *Registry) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, m := range r.All() {
		m := m // per-iteration copy; go.mod targets go1.21 loop semantics
		g.Go(func() error {
			return m.Run(ctx, m.Config().PollInterval)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close drops every device session
func (r *Registry) Close() {
	for _, m := range r.monitors {
		m.Close()
	}
}
