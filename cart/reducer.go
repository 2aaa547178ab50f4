package cart

import "github.com/shopspring/decimal"

type ActionType string

const (
	AddItem        ActionType = "ADD_ITEM"
	RemoveItem     ActionType = "REMOVE_ITEM"
	UpdateQuantity ActionType = "UPDATE_QUANTITY"
	ClearCart      ActionType = "CLEAR_CART"
	LoadCart       ActionType = "LOAD_CART"
)

type Item struct {
	ID            uint            `json:"id"`
	Name          string          `json:"name"`
	Slug          string          `json:"slug"`
	SKU           string          `json:"sku"`
	ImageURL      string          `json:"imageUrl"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	StockQuantity int             `json:"stockQuantity"`
}

type State struct {
	Items     []Item          `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

type Action struct {
	Type     ActionType
	Item     Item
	ID       uint
	Quantity int
	Items    []Item
}

func Empty() State {
	return State{Items: []Item{}, Total: decimal.Zero}
}

// 依action計算新的購物車狀態，不修改傳入的state
func Reduce(state State, action Action) State {
	items := make([]Item, len(state.Items))
	copy(items, state.Items)

	switch action.Type {
	case AddItem:
		items = addItem(items, action.Item)
	case RemoveItem:
		items = removeItem(items, action.ID)
	case UpdateQuantity:
		if action.Quantity <= 0 {
			items = removeItem(items, action.ID)
			break
		}
		for i := range items {
			if items[i].ID == action.ID {
				items[i].Quantity = clamp(action.Quantity, items[i].StockQuantity)
			}
		}
	case ClearCart:
		items = []Item{}
	case LoadCart:
		items = []Item{}
		for _, item := range action.Items {
			items = addItem(items, item)
		}
	default:
		return state
	}

	return summarize(items)
}

func addItem(items []Item, item Item) []Item {
	if item.StockQuantity <= 0 {
		return items
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}

	for i := range items {
		if items[i].ID != item.ID {
			continue
		}
		quantity := items[i].Quantity + item.Quantity
		items[i] = item
		items[i].Quantity = clamp(quantity, item.StockQuantity)
		return items
	}

	item.Quantity = clamp(item.Quantity, item.StockQuantity)
	return append(items, item)
}

func removeItem(items []Item, id uint) []Item {
	out := items[:0]
	for _, item := range items {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out
}

func clamp(quantity, stock int) int {
	if quantity > stock {
		return stock
	}
	return quantity
}

func summarize(items []Item) State {
	state := State{Items: items, Total: decimal.Zero}
	for _, item := range items {
		state.Total = state.Total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		state.ItemCount += item.Quantity
	}
	return state
}
