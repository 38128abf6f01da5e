package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnalyticsSummary aggregates completed sales within a period. Profit is
// computed against the current product cost, not a cost snapshot.
type AnalyticsSummary struct {
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalProfit       decimal.Decimal `json:"total_profit"`
	TotalTransactions int64           `json:"total_transactions"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	ProfitMargin      decimal.Decimal `json:"profit_margin"`
}

type DailySales struct {
	Date    time.Time       `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Count   int64           `json:"count"`
}

type ProductSales struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type PaymentMethodStats struct {
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

type AnalyticsReport struct {
	Summary        AnalyticsSummary                     `json:"summary"`
	DailySales     []DailySales                         `json:"daily_sales"`
	BestSellers    []ProductSales                       `json:"best_sellers"`
	PaymentMethods map[PaymentMethod]PaymentMethodStats `json:"payment_methods"`
	LowStock       []*Product                           `json:"low_stock"`
}

// DashboardStats is the lightweight seven-day overview for the dashboard.
type DashboardStats struct {
	TotalProducts     int64           `json:"total_products"`
	LowStockProducts  int64           `json:"low_stock_products"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalProfit       decimal.Decimal `json:"total_profit"`
	TotalTransactions int64           `json:"total_transactions"`
	LatestSales       []*Sale         `json:"latest_sales"`
}
