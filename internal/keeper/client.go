// Package keeper drives session establishment against a coordination
// cluster through a load balancing policy.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zkutil/keeper-lb/internal/balancer"
	"github.com/zkutil/keeper-lb/internal/logger"
	"github.com/zkutil/keeper-lb/internal/metrics"
)

var (
	// ErrConnectionLoss is returned when no configured node yields a usable
	// session.
	ErrConnectionLoss = errors.New("connection loss")

	// ErrBadArguments is returned for invalid client configuration.
	ErrBadArguments = errors.New("bad arguments")
)

// FallbackSessionLifetime bounds the shortened deadline applied to sessions
// built against sub-optimal endpoints.
type FallbackSessionLifetime struct {
	Min time.Duration
	Max time.Duration
}

// Config holds the parameters of one named load balancer.
type Config struct {
	// Name identifies the cluster configuration, used in logs and metrics.
	Name string
	// Hosts is the ordered list of configured host strings.
	Hosts []string
	// Policy selects the endpoint ordering strategy.
	Policy balancer.Policy
	// FallbackSessionLifetime bounds the shortened session deadline for
	// sub-optimal endpoints.
	FallbackSessionLifetime FallbackSessionLifetime
	// SessionTimeout is the coordination session timeout.
	SessionTimeout time.Duration
	// ConnectTimeout bounds each connection attempt.
	ConnectTimeout time.Duration
	// LocalHostname overrides the local hostname for the distance policies.
	LocalHostname string
	// Dial builds sessions; defaults to NewZooKeeperSession.
	Dial SessionConstructor
	// Resolver performs DNS pre-checks; defaults to a caching resolver over
	// net.DefaultResolver.
	Resolver *CachingResolver
}

// LoadBalancer owns one balancer instance for a cluster configuration and
// runs the connection loop against it. Every method that touches the
// balancer serializes on an internal mutex; the connection loop runs one
// attempt sequence at a time.
type LoadBalancer struct {
	cfg      Config
	bal      balancer.Balancer
	resolver *CachingResolver
	dial     SessionConstructor
	log      *slog.Logger
	mu       sync.Mutex
}

// NewLoadBalancer builds the balancer for the configuration. It fails with
// ErrBadArguments when the host list is empty or the fallback lifetime
// bounds are inverted.
func NewLoadBalancer(cfg Config) (*LoadBalancer, error) {
	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("%w: no hosts specified", ErrBadArguments)
	}
	fl := cfg.FallbackSessionLifetime
	if fl.Min < 0 || fl.Max < fl.Min {
		return nil, fmt.Errorf("%w: invalid fallback session lifetime [%s, %s]", ErrBadArguments, fl.Min, fl.Max)
	}

	bal, err := balancer.New(balancer.Config{
		Hosts:         cfg.Hosts,
		Policy:        cfg.Policy,
		LocalHostname: cfg.LocalHostname,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArguments, err)
	}

	if cfg.Dial == nil {
		cfg.Dial = NewZooKeeperSession
	}
	if cfg.Resolver == nil {
		cfg.Resolver = NewCachingResolver(nil)
	}

	lb := &LoadBalancer{
		cfg:      cfg,
		bal:      bal,
		resolver: cfg.Resolver,
		dial:     cfg.Dial,
		log:      logger.With("balancer", cfg.Name),
	}
	for _, e := range bal.Endpoints() {
		metrics.EndpointStatus.WithLabelValues(cfg.Name, e.Address).Set(float64(e.Status))
	}
	return lb, nil
}

// Name returns the configuration name.
func (lb *LoadBalancer) Name() string { return lb.cfg.Name }

// CreateClient runs the connection loop: select an endpoint, pre-check DNS,
// build a session, and keep looking while a strictly better endpoint is
// online. It returns the first session on a locally optimal endpoint, or
// ErrConnectionLoss once every endpoint has been exhausted.
func (lb *LoadBalancer) CreateClient(ctx context.Context) (Session, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	dnsErrorOccurred := false
	attempts := 0
	for {
		logger.LogEndpointStatus(lb.cfg.Name, lb.statusView())
		endpoint, err := lb.bal.Next()
		if err != nil {
			lb.syncStatusMetrics()
			if !errors.Is(err, balancer.ErrAllConnectionTriesFailed) {
				return nil, err
			}
			metrics.ExhaustedTotal.WithLabelValues(lb.cfg.Name).Inc()
			if dnsErrorOccurred {
				return nil, fmt.Errorf("%w: Cannot resolve any of provided ZooKeeper hosts due to DNS error", ErrConnectionLoss)
			}
			return nil, fmt.Errorf("%w: Cannot use any of provided ZooKeeper nodes", ErrConnectionLoss)
		}
		attempts++

		lifetime := "optimal"
		if endpoint.Settings.UseFallbackSessionLifetime {
			lifetime = "fallback"
		}
		metrics.SelectionsTotal.WithLabelValues(lb.cfg.Name, endpoint.Address, lifetime).Inc()
		logger.LogSelection(lb.cfg.Name, endpoint.Address, endpoint.ID, endpoint.Settings.UseFallbackSessionLifetime)

		if ok, transient := lb.resolver.probeHost(ctx, endpoint.Address); !ok {
			if transient {
				dnsErrorOccurred = true
			}
			lb.markOffline(endpoint.ID)
			metrics.ConnectAttemptsTotal.WithLabelValues(lb.cfg.Name, "dns_error").Inc()
			continue
		}

		lb.log.Info("connecting_to_keeper_host",
			"address", endpoint.Address,
			"attempted_hosts", attempts,
			"endpoints", lb.bal.EndpointCount(),
		)

		start := time.Now()
		session, err := lb.dial(ctx, Node{
			Address:       endpoint.Address,
			OriginalIndex: endpoint.ID,
			Secure:        endpoint.Secure,
		}, SessionConfig{
			SessionTimeout: lb.cfg.SessionTimeout,
			ConnectTimeout: lb.cfg.ConnectTimeout,
		})
		if err != nil {
			lb.markOffline(endpoint.ID)
			metrics.ConnectAttemptsTotal.WithLabelValues(lb.cfg.Name, "connect_error").Inc()
			lb.log.Error("keeper_connect_failed", "address", endpoint.Address, "error", err)
			continue
		}
		metrics.ConnectAttemptsTotal.WithLabelValues(lb.cfg.Name, "ok").Inc()
		metrics.SessionCreateDuration.WithLabelValues(lb.cfg.Name).Observe(time.Since(start).Seconds())

		if endpoint.Settings.UseFallbackSessionLifetime {
			fl := lb.cfg.FallbackSessionLifetime
			deadline, err := session.SetClientSessionDeadline(fl.Min, fl.Max)
			if err != nil {
				lb.log.Warn("session_deadline_not_applied", "address", endpoint.Address, "error", err)
			} else {
				lb.log.Info("connected_to_suboptimal_keeper_host",
					"address", endpoint.Address,
					"session_deadline", deadline,
				)
			}
		}

		lb.markOnline(endpoint.ID)

		if lb.bal.HasBetter(endpoint.ID) {
			lb.log.Info("better_host_exists", "address", endpoint.Address)
			metrics.BetterHostRetriesTotal.WithLabelValues(lb.cfg.Name).Inc()
			session.Close()
			continue
		}

		lb.log.Info("keeper_host_selected", "address", endpoint.Address)
		return session, nil
	}
}

// EndpointsWorthChecking returns the endpoints a caller might probe in the
// background because they would outrank the current one.
func (lb *LoadBalancer) EndpointsWorthChecking(currentID int) []balancer.EndpointInfo {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.bal.WorthChecking(currentID)
}

// Endpoints returns a snapshot of all endpoints and their statuses.
func (lb *LoadBalancer) Endpoints() []balancer.Endpoint {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.bal.Endpoints()
}

// markOnline updates the balancer and the status gauge.
func (lb *LoadBalancer) markOnline(id int) {
	lb.bal.MarkOnline(id)
	e := lb.endpointByID(id)
	metrics.EndpointStatus.WithLabelValues(lb.cfg.Name, e.Address).Set(float64(balancer.StatusOnline))
}

// markOffline updates the balancer and the status gauge.
func (lb *LoadBalancer) markOffline(id int) {
	lb.bal.MarkOffline(id)
	e := lb.endpointByID(id)
	metrics.EndpointStatus.WithLabelValues(lb.cfg.Name, e.Address).Set(float64(balancer.StatusOffline))
}

func (lb *LoadBalancer) endpointByID(id int) balancer.Endpoint {
	return lb.bal.Endpoints()[id]
}

// statusView converts the endpoint snapshot into the logger's view.
func (lb *LoadBalancer) statusView() []logger.EndpointStatus {
	endpoints := lb.bal.Endpoints()
	view := make([]logger.EndpointStatus, len(endpoints))
	for i, e := range endpoints {
		view[i] = logger.EndpointStatus{ID: e.ID, Address: e.Address, Status: e.Status.String()}
	}
	return view
}

// syncStatusMetrics refreshes every endpoint gauge; used after the balancer
// resets offline statuses in bulk.
func (lb *LoadBalancer) syncStatusMetrics() {
	for _, e := range lb.bal.Endpoints() {
		metrics.EndpointStatus.WithLabelValues(lb.cfg.Name, e.Address).Set(float64(e.Status))
	}
}
