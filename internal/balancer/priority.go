package balancer

import (
	"github.com/agnivade/levenshtein"

	"github.com/zkutil/keeper-lb/pkg/hostutil"
)

// priorityFunc computes the rank of an endpoint. Lower values rank higher;
// ties are broken by the lowest ID.
type priorityFunc func(Endpoint) int

// priorityInOrder ranks endpoints by configuration order.
func priorityInOrder(e Endpoint) int { return e.ID }

// priorityNearestHostname ranks endpoints by hostname prefix distance to the
// local hostname. Ports are stripped before comparison.
func priorityNearestHostname(local string) priorityFunc {
	localHost := hostutil.NormalizeHost(local)
	return func(e Endpoint) int {
		return hostutil.PrefixDistance(localHost, hostutil.NormalizeHost(e.Address))
	}
}

// priorityLevenshtein ranks endpoints by Levenshtein distance between the
// local hostname and the endpoint hostname.
func priorityLevenshtein(local string) priorityFunc {
	localHost := hostutil.NormalizeHost(local)
	return func(e Endpoint) int {
		return levenshtein.ComputeDistance(localHost, hostutil.NormalizeHost(e.Address))
	}
}

// priorityBalancer ranks endpoints by a priority vector computed once at
// construction. The in_order, nearest_hostname and
// hostname_levenshtein_distance policies differ only in the priority
// function.
type priorityBalancer struct {
	statusBase
	priorities []int
	// minPriority is the global minimum over all endpoints, precomputed so
	// the optimal check does not rescan the vector on every selection.
	minPriority int
}

func newPriorityBalancer(base statusBase, priority priorityFunc) *priorityBalancer {
	b := &priorityBalancer{statusBase: base}
	b.priorities = make([]int, b.registry.Count())
	for i := 0; i < b.registry.Count(); i++ {
		b.priorities[i] = priority(b.registry.ByID(i))
	}
	b.minPriority = b.priorities[0]
	for _, p := range b.priorities[1:] {
		if p < b.minPriority {
			b.minPriority = p
		}
	}
	return b
}

// mostPriority returns the lowest-priority endpoint with the given status,
// or -1 when none has it. Ties resolve to the lowest ID because IDs are
// scanned in ascending order.
func (b *priorityBalancer) mostPriority(status Status) int {
	best := -1
	for _, id := range b.registry.IDsWithStatus(status) {
		if best == -1 || b.priorities[id] < b.priorities[best] {
			best = id
		}
	}
	return best
}

// withSetting marks the endpoint as optimal only when its priority equals
// the global minimum; anything else gets the fallback session lifetime.
func (b *priorityBalancer) withSetting(id int) EndpointInfo {
	if b.priorities[id] == b.minPriority {
		return b.asOptimal(id)
	}
	return b.asTemporary(id)
}

func (b *priorityBalancer) Next() (EndpointInfo, error) {
	if id := b.mostPriority(StatusOnline); id >= 0 {
		return b.withSetting(id), nil
	}
	if id := b.mostPriority(StatusUndef); id >= 0 {
		return b.withSetting(id), nil
	}
	return EndpointInfo{}, b.exhausted()
}

func (b *priorityBalancer) HasBetter(currentID int) bool {
	id := b.mostPriority(StatusOnline)
	return id >= 0 && id != currentID
}

func (b *priorityBalancer) WorthChecking(currentID int) []EndpointInfo {
	outranks := func(id int) bool {
		if currentID == NoCurrentEndpoint {
			return true
		}
		return b.priorities[id] < b.priorities[currentID]
	}

	var endpoints []EndpointInfo
	for _, status := range []Status{StatusUndef, StatusOffline} {
		for _, id := range b.registry.IDsWithStatus(status) {
			if outranks(id) {
				endpoints = append(endpoints, b.withSetting(id))
			}
		}
	}
	return endpoints
}
