package keeper

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/zkutil/keeper-lb/internal/logger"
	"github.com/zkutil/keeper-lb/internal/metrics"
	"github.com/zkutil/keeper-lb/pkg/hostutil"
)

// Resolver is the subset of net.Resolver the client needs.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// CachingResolver caches successful resolutions per host. The connection
// loop purges the entry for an endpoint before probing it, so liveness
// decisions are always made against a fresh resolution.
type CachingResolver struct {
	inner Resolver
	cache map[string][]string
	mu    sync.Mutex
}

// NewCachingResolver wraps the given resolver. A nil inner resolver defaults
// to net.DefaultResolver.
func NewCachingResolver(inner Resolver) *CachingResolver {
	if inner == nil {
		inner = net.DefaultResolver
	}
	return &CachingResolver{
		inner: inner,
		cache: make(map[string][]string),
	}
}

// Purge drops the cached resolution for the host, if any.
func (r *CachingResolver) Purge(host string) {
	r.mu.Lock()
	delete(r.cache, host)
	r.mu.Unlock()
}

// LookupHost resolves the host, serving from cache when possible.
func (r *CachingResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	r.mu.Lock()
	addrs, ok := r.cache[host]
	r.mu.Unlock()
	if ok {
		return addrs, nil
	}

	addrs, err := r.inner.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[host] = addrs
	r.mu.Unlock()
	return addrs, nil
}

// probeHost checks that the endpoint address resolves, bypassing the cache.
// It returns ok=false with transient=false for a misconfigured host
// (host not found, unparsable address) and transient=true when DNS itself
// looks unavailable right now.
func (r *CachingResolver) probeHost(ctx context.Context, address string) (ok, transient bool) {
	host := hostutil.ParseHost(address)
	r.Purge(host)

	if _, err := r.LookupHost(ctx, host); err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			// Most likely a misconfiguration: a wrong hostname was specified.
			logger.Error("keeper_host_not_found", "address", address, "error", err)
			metrics.DNSFailures.WithLabelValues("host_not_found").Inc()
			return false, false
		}
		// Most likely DNS is not available right now.
		logger.Error("keeper_host_dns_error", "address", address, "error", err)
		metrics.DNSFailures.WithLabelValues("transient").Inc()
		return false, true
	}
	return true, false
}
