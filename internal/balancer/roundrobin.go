package balancer

// roundRobinBalancer rotates through endpoints, preferring the cursor
// position while it is healthy.
type roundRobinBalancer struct {
	statusBase
	cursor int
}

func (b *roundRobinBalancer) Next() (EndpointInfo, error) {
	if b.registry.ByID(b.cursor).Status == StatusOnline {
		return b.advancePast(b.cursor), nil
	}

	if ids := b.registry.IDsWithStatus(StatusOnline); len(ids) > 0 {
		return b.advancePast(ids[0]), nil
	}

	// An untried cursor position is retried without advancing, so endpoints
	// that have never been probed are not skipped over.
	if b.registry.ByID(b.cursor).Status == StatusUndef {
		return b.asOptimal(b.cursor), nil
	}

	if ids := b.registry.IDsWithStatus(StatusUndef); len(ids) > 0 {
		return b.advancePast(ids[0]), nil
	}

	return EndpointInfo{}, b.exhausted()
}

// advancePast selects the endpoint and moves the cursor to its successor.
func (b *roundRobinBalancer) advancePast(id int) EndpointInfo {
	b.cursor = (id + 1) % b.registry.Count()
	return b.asOptimal(id)
}

func (b *roundRobinBalancer) HasBetter(int) bool { return false }

func (b *roundRobinBalancer) WorthChecking(int) []EndpointInfo { return nil }
