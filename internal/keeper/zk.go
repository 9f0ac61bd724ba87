package keeper

import (
	"context"
	"crypto/tls"
	"fmt"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"

	"github.com/zkutil/keeper-lb/internal/logger"
	"github.com/zkutil/keeper-lb/pkg/hostutil"
)

// zkSession adapts a go-zookeeper connection to the Session interface.
type zkSession struct {
	conn     *zk.Conn
	deadline *time.Timer
	mu       sync.Mutex
	closed   bool
}

// NewZooKeeperSession dials a single ZooKeeper node and waits until the
// session is live. It is the default SessionConstructor.
func NewZooKeeperSession(ctx context.Context, node Node, cfg SessionConfig) (Session, error) {
	dialer := sessionDialer(node, cfg)
	conn, events, err := zk.Connect(
		[]string{node.Address},
		cfg.SessionTimeout,
		zk.WithDialer(dialer),
		zk.WithLogger(zkLogAdapter{}),
		zk.WithLogInfo(false),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", node.Address, err)
	}

	deadline := time.NewTimer(cfg.ConnectTimeout)
	defer deadline.Stop()

	for {
		select {
		case ev := <-events:
			if ev.State == zk.StateHasSession {
				return &zkSession{conn: conn}, nil
			}
			if ev.Err != nil {
				conn.Close()
				return nil, fmt.Errorf("connecting to %s: %w", node.Address, ev.Err)
			}
		case <-deadline.C:
			conn.Close()
			return nil, fmt.Errorf("connecting to %s: no session after %s", node.Address, cfg.ConnectTimeout)
		case <-ctx.Done():
			conn.Close()
			return nil, fmt.Errorf("connecting to %s: %w", node.Address, ctx.Err())
		}
	}
}

// sessionDialer returns the dialer for the node, wrapping the connection in
// TLS for secure:// endpoints.
func sessionDialer(node Node, cfg SessionConfig) zk.Dialer {
	return func(network, address string, timeout time.Duration) (net.Conn, error) {
		conn, err := net.DialTimeout(network, address, timeout)
		if err != nil {
			return nil, err
		}
		if !node.Secure {
			return conn, nil
		}

		tlsCfg := cfg.TLS
		if tlsCfg == nil {
			tlsCfg = &tls.Config{}
		}
		if tlsCfg.ServerName == "" {
			tlsCfg = tlsCfg.Clone()
			tlsCfg.ServerName = hostutil.ParseHost(node.Address)
		}
		tlsConn := tls.Client(conn, tlsCfg)
		if err := tlsConn.HandshakeContext(context.Background()); err != nil {
			conn.Close()
			return nil, err
		}
		return tlsConn, nil
	}
}

// SetClientSessionDeadline closes the session after a duration sampled
// uniformly from [min, max].
func (s *zkSession) SetClientSessionDeadline(min, max time.Duration) (time.Duration, error) {
	if min < 0 || max < min {
		return 0, fmt.Errorf("invalid session deadline range [%s, %s]", min, max)
	}

	d := min
	if max > min {
		d += rand.N(max - min + 1)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("session already closed")
	}
	if s.deadline != nil {
		s.deadline.Stop()
	}
	s.deadline = time.AfterFunc(d, s.Close)
	return d, nil
}

// Close tears down the session and cancels any pending deadline.
func (s *zkSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.deadline != nil {
		s.deadline.Stop()
	}
	s.mu.Unlock()

	s.conn.Close()
}

// zkLogAdapter routes go-zookeeper internal logging to the global logger.
type zkLogAdapter struct{}

func (zkLogAdapter) Printf(format string, args ...interface{}) {
	logger.Debug("zookeeper_client", "message", fmt.Sprintf(format, args...))
}
