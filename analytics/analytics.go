// Package analytics 以應用程式端迭代訂單資料計算後台統計。
// 營收不計入已取消或已退款的訂單。
package analytics

import (
	"dentalshop/models"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type Overview struct {
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	TotalOrders       int             `json:"totalOrders"`
	AverageOrderValue decimal.Decimal `json:"averageOrderValue"`
	PendingOrders     int             `json:"pendingOrders"`
	TotalCustomers    int64           `json:"totalCustomers"`
	TotalProducts     int64           `json:"totalProducts"`
	LowStockProducts  int64           `json:"lowStockProducts"`
	RevenueGrowth     float64         `json:"revenueGrowth"`
}

type MonthlySales struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int             `json:"orders"`
}

type ProductSales struct {
	ProductID uint            `json:"productId"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type StatusCount struct {
	Status     string  `json:"status"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type CategorySales struct {
	CategoryID *uint           `json:"categoryId"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Revenue    decimal.Decimal `json:"revenue"`
}

const UncategorizedName = "Uncategorized"

// 統計總覽，customers、products、lowStock由呼叫端以COUNT查詢
func ComputeOverview(orders []models.Order, customers, products, lowStock int64, now time.Time) Overview {
	overview := Overview{
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		TotalOrders:       len(orders),
		TotalCustomers:    customers,
		TotalProducts:     products,
		LowStockProducts:  lowStock,
	}

	currentStart := monthStart(now)
	previousStart := currentStart.AddDate(0, -1, 0)
	current, previous := decimal.Zero, decimal.Zero
	counted := 0

	for _, order := range orders {
		if order.Status == models.OrderStatusPending {
			overview.PendingOrders++
		}
		if !order.CountsAsRevenue() {
			continue
		}
		counted++
		overview.TotalRevenue = overview.TotalRevenue.Add(order.Total)

		switch created := order.CreatedAt; {
		case !created.Before(currentStart):
			current = current.Add(order.Total)
		case !created.Before(previousStart):
			previous = previous.Add(order.Total)
		}
	}

	if counted > 0 {
		overview.AverageOrderValue = overview.TotalRevenue.Div(decimal.NewFromInt(int64(counted))).Round(2)
	}
	overview.RevenueGrowth = Growth(current, previous)
	return overview
}

// 與前期相比的成長百分比，前期為0時回傳0
func Growth(current, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		return 0
	}
	growth, _ := current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(1).Float64()
	return growth
}

// 最近months個月的營收，由舊到新，沒有訂單的月份補0
func ComputeMonthlySales(orders []models.Order, months int, now time.Time) []MonthlySales {
	start := monthStart(now).AddDate(0, -(months - 1), 0)
	buckets := make([]MonthlySales, months)
	index := make(map[string]int, months)
	for i := range buckets {
		month := start.AddDate(0, i, 0).Format("2006-01")
		buckets[i] = MonthlySales{Month: month, Revenue: decimal.Zero}
		index[month] = i
	}

	for _, order := range orders {
		if !order.CountsAsRevenue() {
			continue
		}
		i, ok := index[order.CreatedAt.In(now.Location()).Format("2006-01")]
		if !ok {
			continue
		}
		buckets[i].Revenue = buckets[i].Revenue.Add(order.Total)
		buckets[i].Orders++
	}
	return buckets
}

// 依訂單商品快照彙總銷售，營收高者在前
func ComputeTopProducts(orders []models.Order, limit int) []ProductSales {
	byProduct := map[uint]*ProductSales{}
	for _, order := range orders {
		if !order.CountsAsRevenue() {
			continue
		}
		for _, item := range order.Items {
			sales, ok := byProduct[item.ProductID]
			if !ok {
				sales = &ProductSales{ProductID: item.ProductID, Revenue: decimal.Zero}
				byProduct[item.ProductID] = sales
			}
			sales.Name = item.Name
			sales.SKU = item.SKU
			sales.Quantity += item.Quantity
			sales.Revenue = sales.Revenue.Add(lineTotal(item))
		}
	}

	out := make([]ProductSales, 0, len(byProduct))
	for _, sales := range byProduct {
		out = append(out, *sales)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].ProductID < out[j].ProductID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// 各訂單狀態的數量與百分比，依固定順序
func ComputeStatusBreakdown(orders []models.Order) []StatusCount {
	counts := map[string]int{}
	for _, order := range orders {
		counts[order.Status]++
	}

	out := make([]StatusCount, 0, len(models.OrderStatuses))
	for _, status := range models.OrderStatuses {
		count := counts[status]
		percentage := 0.0
		if len(orders) > 0 {
			percentage = math.Round(float64(count)*1000/float64(len(orders))) / 10
		}
		out = append(out, StatusCount{Status: status, Count: count, Percentage: percentage})
	}
	return out
}

// 依商品目前所屬分類彙總銷售，找不到分類的歸入未分類
func ComputeCategorySales(orders []models.Order, products []models.Product, categories []models.Category) []CategorySales {
	productCategory := make(map[uint]*uint, len(products))
	for _, product := range products {
		productCategory[product.ID] = product.CategoryID
	}

	out := make([]CategorySales, 0, len(categories)+1)
	index := make(map[uint]int, len(categories))
	for _, category := range categories {
		id := category.ID
		index[id] = len(out)
		out = append(out, CategorySales{CategoryID: &id, Name: category.Name, Revenue: decimal.Zero})
	}
	uncategorized := CategorySales{Name: UncategorizedName, Revenue: decimal.Zero}

	for _, order := range orders {
		if !order.CountsAsRevenue() {
			continue
		}
		for _, item := range order.Items {
			bucket := &uncategorized
			if categoryID := productCategory[item.ProductID]; categoryID != nil {
				if i, ok := index[*categoryID]; ok {
					bucket = &out[i]
				}
			}
			bucket.Quantity += item.Quantity
			bucket.Revenue = bucket.Revenue.Add(lineTotal(item))
		}
	}

	if uncategorized.Quantity > 0 {
		out = append(out, uncategorized)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Revenue.Cmp(out[j].Revenue) > 0
	})
	return out
}

func lineTotal(item models.OrderItem) decimal.Decimal {
	if !item.LineTotal.IsZero() {
		return item.LineTotal
	}
	return item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
