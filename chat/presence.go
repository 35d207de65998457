package chat

// presenceSet tracks which contacts are currently online. Events arriving
// more than once for the same contact collapse to a single membership
// change, so callers can skip redundant roster updates.
//
// presenceSet is guarded by the client mutex.
type presenceSet struct {
	online map[string]struct{}
}

func newPresenceSet() *presenceSet {
	return &presenceSet{online: make(map[string]struct{})}
}

// setOnline marks goSipID online and reports whether that changed anything.
func (p *presenceSet) setOnline(goSipID string) bool {
	if _, ok := p.online[goSipID]; ok {
		return false
	}
	p.online[goSipID] = struct{}{}
	return true
}

// setOffline marks goSipID offline and reports whether that changed anything.
func (p *presenceSet) setOffline(goSipID string) bool {
	if _, ok := p.online[goSipID]; !ok {
		return false
	}
	delete(p.online, goSipID)
	return true
}

// replace swaps the whole set for the given membership, as delivered by a
// full online-friends snapshot.
func (p *presenceSet) replace(goSipIDs []string) {
	p.online = make(map[string]struct{}, len(goSipIDs))
	for _, id := range goSipIDs {
		p.online[id] = struct{}{}
	}
}

func (p *presenceSet) isOnline(goSipID string) bool {
	_, ok := p.online[goSipID]
	return ok
}
