package keeper

import (
	"context"
	"crypto/tls"
	"time"
)

// Node identifies the endpoint a session is built against.
type Node struct {
	// Address is the host:port of the coordination node.
	Address string
	// OriginalIndex is the endpoint ID in the configured host list.
	OriginalIndex int
	// Secure selects a TLS connection.
	Secure bool
}

// Session is an established coordination session.
type Session interface {
	// SetClientSessionDeadline schedules the session to expire after a
	// duration sampled uniformly from [min, max]. Used when the session was
	// built against a sub-optimal endpoint, so the balancer is re-consulted
	// soon. Returns the chosen duration.
	SetClientSessionDeadline(min, max time.Duration) (time.Duration, error)
	// Close tears the session down.
	Close()
}

// SessionConfig carries the session construction arguments that do not
// depend on the selected endpoint.
type SessionConfig struct {
	// SessionTimeout is the coordination session timeout negotiated with
	// the server.
	SessionTimeout time.Duration
	// ConnectTimeout bounds the wait for the session to become live.
	ConnectTimeout time.Duration
	// TLS is used for secure:// endpoints. A nil config enables the
	// defaults.
	TLS *tls.Config
}

// SessionConstructor builds a live session against a single node or fails.
type SessionConstructor func(ctx context.Context, node Node, cfg SessionConfig) (Session, error)
