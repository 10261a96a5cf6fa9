package bus

import "github.com/sarchlab/coherence/protocol"

type dragonSnoop struct{}

func (dragonSnoop) isValid(protocol.State) bool {
	return true
}

func (dragonSnoop) onRead(state protocol.State) (protocol.State, bool) {
	switch state {
	case protocol.DragonModified, protocol.SharedModified:
		return protocol.SharedModified, false
	default:
		return protocol.SharedClean, false
	}
}

func (dragonSnoop) onUpdate(protocol.State, bool) (protocol.State, bool) {
	return protocol.SharedClean, false
}
