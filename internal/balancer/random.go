package balancer

// randomBalancer picks uniformly among online endpoints, falling back to
// never-tried endpoints. Every pick is considered optimal.
type randomBalancer struct {
	statusBase
}

func (b *randomBalancer) Next() (EndpointInfo, error) {
	if ids := b.registry.IDsWithStatus(StatusOnline); len(ids) > 0 {
		return b.asOptimal(ids[b.intN(len(ids))]), nil
	}
	if ids := b.registry.IDsWithStatus(StatusUndef); len(ids) > 0 {
		return b.asOptimal(ids[b.intN(len(ids))]), nil
	}
	return EndpointInfo{}, b.exhausted()
}

func (b *randomBalancer) HasBetter(int) bool { return false }

func (b *randomBalancer) WorthChecking(int) []EndpointInfo { return nil }
