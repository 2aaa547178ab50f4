package wishlist

type ActionType string

const (
	Add    ActionType = "ADD"
	Remove ActionType = "REMOVE"
	Toggle ActionType = "TOGGLE"
	Clear  ActionType = "CLEAR"
	Load   ActionType = "LOAD"
)

type Action struct {
	Type ActionType
	ID   uint
	IDs  []uint
}

// 收藏清單為不重複且保持加入順序的商品ID
func Reduce(state []uint, action Action) []uint {
	switch action.Type {
	case Add:
		if contains(state, action.ID) {
			return clone(state)
		}
		return append(clone(state), action.ID)
	case Remove:
		return without(state, action.ID)
	case Toggle:
		if contains(state, action.ID) {
			return without(state, action.ID)
		}
		return append(clone(state), action.ID)
	case Clear:
		return []uint{}
	case Load:
		out := []uint{}
		for _, id := range action.IDs {
			if !contains(out, id) {
				out = append(out, id)
			}
		}
		return out
	}
	return clone(state)
}

func contains(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func clone(ids []uint) []uint {
	out := make([]uint, len(ids))
	copy(out, ids)
	return out
}

func without(ids []uint, id uint) []uint {
	out := []uint{}
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
