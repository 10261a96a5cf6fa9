package bus

import "github.com/sarchlab/coherence/protocol"

type mesiSnoop struct{}

func (mesiSnoop) isValid(state protocol.State) bool {
	return state != protocol.Invalid
}

func (mesiSnoop) onRead(state protocol.State) (protocol.State, bool) {
	return protocol.Shared, state == protocol.Modified
}

// The remote copy already has the latest data, so an invalidation needs no
// write-back. Outside the optimized mode the previous owner of a modified
// copy still stalls.
func (mesiSnoop) onUpdate(
	state protocol.State,
	optimize bool,
) (protocol.State, bool) {
	return protocol.Invalid, !optimize && state == protocol.Modified
}
