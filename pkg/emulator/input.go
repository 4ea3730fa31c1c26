package emulator

import "sync/atomic"

// InputState stores full controller state per player: a packed button
// bitmask and four analog axis values, all behind atomics so input
// writers never block the emulation thread.
type (
	InputState [maxPort]State
	State      struct {
		keys uint32
		axes [dpadAxes]int32
	}
)

const (
	maxPort  = 2
	dpadAxes = 4
)

func NewInputState() *InputState { return &InputState{} }

// SetInput sets input state for some player.
func (s *InputState) SetInput(player int, data []byte) {
	if player < 0 || player >= maxPort || len(data) < 2 {
		return
	}
	atomic.StoreUint32(&s[player].keys, uint32(uint16(data[1])<<8+uint16(data[0])))
	for i, axes := 0, len(data); i < dpadAxes && i<<1+3 < axes; i++ {
		axis := i<<1 + 2
		atomic.StoreInt32(&s[player].axes[i], int32(data[axis+1])<<8+int32(data[axis]))
	}
}

// IsKeyPressed checks if some button is pressed by a player.
func (s *InputState) IsKeyPressed(port uint, key int) int {
	return int((atomic.LoadUint32(&s[port].keys) >> uint(key)) & 1)
}

// IsDpadTouched checks if D-pad is used by a player.
func (s *InputState) IsDpadTouched(port uint, axis uint) (shift int16) {
	return int16(atomic.LoadInt32(&s[port].axes[axis]))
}
