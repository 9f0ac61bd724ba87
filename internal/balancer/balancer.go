// Package balancer provides endpoint selection policies for coordination clusters.
package balancer

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/zkutil/keeper-lb/internal/logger"
)

var (
	// ErrAllConnectionTriesFailed is returned by Next when no endpoint is
	// online or undef. Offline statuses are reset before returning it, so a
	// subsequent Next starts over with every previously failed endpoint.
	ErrAllConnectionTriesFailed = errors.New("all connection tries failed")

	// ErrNoHosts is returned when a balancer is constructed without hosts.
	ErrNoHosts = errors.New("no hosts configured")
)

// Policy selects the endpoint ordering strategy.
type Policy string

const (
	// PolicyRandom picks uniformly among available endpoints.
	PolicyRandom Policy = "random"
	// PolicyRoundRobin rotates through endpoints.
	PolicyRoundRobin Policy = "round_robin"
	// PolicyFirstOrRandom strongly prefers the first configured endpoint.
	PolicyFirstOrRandom Policy = "first_or_random"
	// PolicyInOrder prefers endpoints in configuration order.
	PolicyInOrder Policy = "in_order"
	// PolicyNearestHostname prefers endpoints with the smallest hostname
	// prefix distance (hostutil.PrefixDistance) to the local hostname.
	PolicyNearestHostname Policy = "nearest_hostname"
	// PolicyLevenshtein prefers endpoints whose hostname has the smallest
	// Levenshtein distance to the local hostname.
	PolicyLevenshtein Policy = "hostname_levenshtein_distance"
)

// ParsePolicy converts a configuration string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyRandom, PolicyRoundRobin, PolicyFirstOrRandom,
		PolicyInOrder, PolicyNearestHostname, PolicyLevenshtein:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown load balancing policy: %q", s)
}

// ClientSettings carries per-connection hints for the session constructor.
type ClientSettings struct {
	// UseFallbackSessionLifetime tells the caller to shorten the session
	// deadline so the balancer is re-consulted sooner. Set when the selected
	// endpoint is sub-optimal under the active policy.
	UseFallbackSessionLifetime bool
}

// EndpointInfo is the result of a selection: the endpoint to connect to plus
// the session settings the caller should apply.
type EndpointInfo struct {
	Address  string
	Secure   bool
	ID       int
	Settings ClientSettings
}

// NoCurrentEndpoint is passed to WorthChecking when the caller has no
// current endpoint.
const NoCurrentEndpoint = -1

// Balancer is the interface the connection loop drives. Implementations are
// not safe for concurrent use; callers serialize access externally.
type Balancer interface {
	// Next returns the endpoint to attempt next. When no endpoint is online
	// or undef it resets offline statuses and returns
	// ErrAllConnectionTriesFailed.
	Next() (EndpointInfo, error)
	// MarkOnline records a successful connection to the endpoint.
	MarkOnline(id int)
	// MarkOffline records a failed connection to the endpoint.
	MarkOffline(id int)
	// ResetOffline moves every offline endpoint back to undef.
	ResetOffline()
	// EndpointCount returns the number of configured endpoints.
	EndpointCount() int
	// AvailableCount returns the number of online plus undef endpoints.
	AvailableCount() int
	// HasBetter reports whether an endpoint strictly preferred over the
	// current one is online right now.
	HasBetter(currentID int) bool
	// WorthChecking returns endpoints worth probing speculatively: those
	// that would outrank the current endpoint if they came online. Pass
	// NoCurrentEndpoint to get every candidate. Policies with no notion of
	// "better" return nil.
	WorthChecking(currentID int) []EndpointInfo
	// Endpoints returns a snapshot of all endpoints and their statuses.
	Endpoints() []Endpoint
}

// Config holds balancer construction parameters.
type Config struct {
	// Hosts is the ordered list of configured host strings, each either
	// host:port or secure://host:port. Order matters for the in_order and
	// first_or_random policies.
	Hosts []string
	// Policy selects the endpoint ordering strategy.
	Policy Policy
	// LocalHostname overrides the local hostname used by the hostname
	// distance policies. Defaults to os.Hostname.
	LocalHostname string
}

// New creates a balancer for the given policy and hosts.
func New(cfg Config) (Balancer, error) {
	if len(cfg.Hosts) == 0 {
		return nil, ErrNoHosts
	}

	local := cfg.LocalHostname
	if local == "" {
		if h, err := os.Hostname(); err == nil {
			local = h
		} else {
			logger.Warn("local_hostname_unavailable", "error", err)
		}
	}

	base := newStatusBase(cfg.Hosts)
	switch cfg.Policy {
	case PolicyRandom:
		return &randomBalancer{statusBase: base}, nil
	case PolicyRoundRobin:
		return &roundRobinBalancer{statusBase: base}, nil
	case PolicyFirstOrRandom:
		return &firstOrRandomBalancer{statusBase: base}, nil
	case PolicyInOrder:
		return newPriorityBalancer(base, priorityInOrder), nil
	case PolicyNearestHostname:
		return newPriorityBalancer(base, priorityNearestHostname(local)), nil
	case PolicyLevenshtein:
		return newPriorityBalancer(base, priorityLevenshtein(local)), nil
	default:
		return nil, fmt.Errorf("unknown load balancing policy: %q", cfg.Policy)
	}
}

// statusBase is the shared substrate of every policy: the endpoint registry
// plus the facade methods that do not depend on the selection strategy.
type statusBase struct {
	registry Registry
	// intN is the random source, overridable in tests.
	intN func(n int) int
}

func newStatusBase(hosts []string) statusBase {
	base := statusBase{intN: rand.IntN}
	for _, raw := range hosts {
		address, secure := ParseHostToken(raw)
		base.registry.Add(address, secure)
	}
	return base
}

func (b *statusBase) MarkOnline(id int)  { b.registry.MarkOnline(id) }
func (b *statusBase) MarkOffline(id int) { b.registry.MarkOffline(id) }
func (b *statusBase) ResetOffline()      { b.registry.ResetOffline() }

func (b *statusBase) EndpointCount() int { return b.registry.Count() }

func (b *statusBase) AvailableCount() int {
	return len(b.registry.IDsWithStatus(StatusOnline)) + len(b.registry.IDsWithStatus(StatusUndef))
}

func (b *statusBase) Endpoints() []Endpoint { return b.registry.Snapshot() }

// asOptimal builds an EndpointInfo with the optimal session lifetime.
func (b *statusBase) asOptimal(id int) EndpointInfo {
	e := b.registry.ByID(id)
	return EndpointInfo{Address: e.Address, Secure: e.Secure, ID: id}
}

// asTemporary builds an EndpointInfo asking the caller to use the fallback
// session lifetime.
func (b *statusBase) asTemporary(id int) EndpointInfo {
	e := b.registry.ByID(id)
	return EndpointInfo{
		Address:  e.Address,
		Secure:   e.Secure,
		ID:       id,
		Settings: ClientSettings{UseFallbackSessionLifetime: true},
	}
}

// exhausted resets offline statuses and returns the sentinel error. Called by
// every policy once no endpoint is online or undef.
func (b *statusBase) exhausted() error {
	b.registry.ResetOffline()
	logger.Warn("no_available_endpoints", "endpoints", b.registry.Count())
	return fmt.Errorf("%w: no available endpoints left, all offline endpoints reset to undef status (endpoints count is %d)",
		ErrAllConnectionTriesFailed, b.registry.Count())
}
