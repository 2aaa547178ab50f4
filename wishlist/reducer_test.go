package wishlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReduce(t *testing.T) {
	state := Reduce(nil, Action{Type: Add, ID: 3})
	state = Reduce(state, Action{Type: Add, ID: 1})
	state = Reduce(state, Action{Type: Add, ID: 3})
	assert.Equal(t, []uint{3, 1}, state)

	state = Reduce(state, Action{Type: Toggle, ID: 3})
	assert.Equal(t, []uint{1}, state)
	state = Reduce(state, Action{Type: Toggle, ID: 7})
	assert.Equal(t, []uint{1, 7}, state)

	state = Reduce(state, Action{Type: Remove, ID: 1})
	assert.Equal(t, []uint{7}, state)

	assert.Equal(t, []uint{}, Reduce(state, Action{Type: Clear}))
}

func TestLoadDeduplicates(t *testing.T) {
	state := Reduce([]uint{9}, Action{Type: Load, IDs: []uint{4, 2, 4, 8, 2}})
	assert.Equal(t, []uint{4, 2, 8}, state)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	state := make([]uint, 2, 10)
	state[0], state[1] = 1, 2

	added := Reduce(state, Action{Type: Add, ID: 3})
	added[0] = 42
	assert.Equal(t, []uint{1, 2}, state)

	Reduce(state, Action{Type: Remove, ID: 1})
	assert.Equal(t, []uint{1, 2}, state)
}
