package keeper

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zkutil/keeper-lb/internal/logger"
)

// Table holds one LoadBalancer per cluster configuration name. All entries
// are constructed eagerly at startup, so there is no first-use
// initialization race; the mutex only guards replacement on config reload.
type Table struct {
	balancers map[string]*LoadBalancer
	mu        sync.Mutex
}

// NewTable builds a LoadBalancer for every configuration. Any invalid
// configuration fails the whole table.
func NewTable(cfgs ...Config) (*Table, error) {
	t := &Table{balancers: make(map[string]*LoadBalancer, len(cfgs))}
	for _, cfg := range cfgs {
		if _, exists := t.balancers[cfg.Name]; exists {
			return nil, fmt.Errorf("%w: duplicate balancer name %q", ErrBadArguments, cfg.Name)
		}
		lb, err := NewLoadBalancer(cfg)
		if err != nil {
			return nil, fmt.Errorf("balancer %q: %w", cfg.Name, err)
		}
		t.balancers[cfg.Name] = lb
	}
	return t, nil
}

// Get returns the balancer for the configuration name.
func (t *Table) Get(name string) (*LoadBalancer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	lb, ok := t.balancers[name]
	return lb, ok
}

// Replace swaps in a freshly built balancer for the configuration. Existing
// sessions are unaffected; endpoint statuses start over as undef.
func (t *Table) Replace(cfg Config) error {
	lb, err := NewLoadBalancer(cfg)
	if err != nil {
		return fmt.Errorf("balancer %q: %w", cfg.Name, err)
	}

	t.mu.Lock()
	t.balancers[cfg.Name] = lb
	t.mu.Unlock()

	logger.Info("balancer_replaced", "name", cfg.Name, "hosts", cfg.Hosts, "policy", string(cfg.Policy))
	return nil
}

// Names returns the configured balancer names in sorted order.
func (t *Table) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.balancers))
	for name := range t.balancers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
