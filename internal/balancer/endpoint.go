// Package balancer provides endpoint selection policies for coordination clusters.
package balancer

import "strings"

// secureScheme marks hosts that require a TLS connection.
const secureScheme = "secure://"

// Status represents the liveness status of an endpoint.
type Status int

const (
	// StatusUndef means the endpoint has not been probed yet, or was offline
	// and has been reset by ResetOffline.
	StatusUndef Status = iota
	// StatusOnline means the last connection attempt to the endpoint succeeded.
	StatusOnline
	// StatusOffline means the last connection attempt to the endpoint failed.
	StatusOffline
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusUndef:
		return "undef"
	case StatusOnline:
		return "online"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Endpoint is a single configured coordination node.
type Endpoint struct {
	// Address is the host:port of the node, without the secure:// prefix.
	Address string
	// Secure is true if the node was configured with the secure:// prefix.
	Secure bool
	// ID is the dense index assigned at registration.
	ID int
	// Status is the current liveness status.
	Status Status
}

// ParseHostToken splits a configured host string into its address and
// security flag. The secure:// prefix is stripped from the address.
func ParseHostToken(raw string) (address string, secure bool) {
	if strings.HasPrefix(raw, secureScheme) {
		return raw[len(secureScheme):], true
	}
	return raw, false
}

// Registry stores the configured endpoints and their statuses. Endpoints are
// added at construction and never removed; IDs are dense indexes into the
// backing slice. The registry is policy-agnostic.
type Registry struct {
	endpoints []Endpoint
}

// Add appends a new endpoint with status undef and returns its assigned ID.
func (r *Registry) Add(address string, secure bool) int {
	id := len(r.endpoints)
	r.endpoints = append(r.endpoints, Endpoint{
		Address: address,
		Secure:  secure,
		ID:      id,
	})
	return id
}

// ByID returns the endpoint with the given ID.
func (r *Registry) ByID(id int) Endpoint {
	return r.endpoints[id]
}

// Count returns the number of registered endpoints.
func (r *Registry) Count() int {
	return len(r.endpoints)
}

// IDsWithStatus returns the IDs of all endpoints with the given status, in
// ascending ID order.
func (r *Registry) IDsWithStatus(status Status) []int {
	var ids []int
	for _, e := range r.endpoints {
		if e.Status == status {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// MarkOnline sets the endpoint status to online.
func (r *Registry) MarkOnline(id int) {
	r.endpoints[id].Status = StatusOnline
}

// MarkOffline sets the endpoint status to offline.
func (r *Registry) MarkOffline(id int) {
	r.endpoints[id].Status = StatusOffline
}

// ResetOffline moves every offline endpoint back to undef, giving failed
// endpoints another chance.
func (r *Registry) ResetOffline() {
	for i := range r.endpoints {
		if r.endpoints[i].Status == StatusOffline {
			r.endpoints[i].Status = StatusUndef
		}
	}
}

// Snapshot returns a copy of all endpoints.
func (r *Registry) Snapshot() []Endpoint {
	out := make([]Endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}
