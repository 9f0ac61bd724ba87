package balancer

// firstOrRandomBalancer designates endpoint 0 as the primary and falls back
// to a uniformly random available endpoint. Sessions on a fallback endpoint
// get the shortened lifetime so the primary is re-tried soon.
type firstOrRandomBalancer struct {
	statusBase
}

func (b *firstOrRandomBalancer) Next() (EndpointInfo, error) {
	if b.registry.ByID(0).Status == StatusOnline {
		return b.asOptimal(0), nil
	}

	if ids := b.registry.IDsWithStatus(StatusOnline); len(ids) > 0 {
		return b.asTemporary(ids[b.intN(len(ids))]), nil
	}

	if b.registry.ByID(0).Status == StatusUndef {
		return b.asOptimal(0), nil
	}

	if ids := b.registry.IDsWithStatus(StatusUndef); len(ids) > 0 {
		return b.asTemporary(ids[b.intN(len(ids))]), nil
	}

	return EndpointInfo{}, b.exhausted()
}

func (b *firstOrRandomBalancer) HasBetter(currentID int) bool {
	return b.registry.ByID(0).Status == StatusOnline && currentID != 0
}

func (b *firstOrRandomBalancer) WorthChecking(currentID int) []EndpointInfo {
	if currentID == 0 {
		return nil
	}
	return []EndpointInfo{b.asOptimal(0)}
}
