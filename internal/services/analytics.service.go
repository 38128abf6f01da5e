package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockflow/stockflow/internal/model"
)

const bestSellerLimit = 10

type AnalyticsSaleRepository interface {
	ListCompletedBetween(ctx context.Context, from, to time.Time) ([]*model.Sale, error)
	Latest(ctx context.Context, n int) ([]*model.Sale, error)
}

type AnalyticsProductRepository interface {
	ListLowStock(ctx context.Context, limit int) ([]*model.Product, error)
	CountActive(ctx context.Context) (int64, error)
	CountLowStock(ctx context.Context) (int64, error)
}

// AnalyticsService derives reports from completed sales. It only reads; a
// report never changes ledger or sale state.
type AnalyticsService struct {
	saleRepo    AnalyticsSaleRepository
	productRepo AnalyticsProductRepository
}

func NewAnalyticsService(saleRepo AnalyticsSaleRepository, productRepo AnalyticsProductRepository) *AnalyticsService {
	return &AnalyticsService{
		saleRepo:    saleRepo,
		productRepo: productRepo,
	}
}

// PeriodRange resolves a named period to a [from, to) window ending now.
func PeriodRange(period string, now time.Time) (time.Time, time.Time, error) {
	to := now
	switch period {
	case "", "7d":
		return to.AddDate(0, 0, -7), to, nil
	case "24h":
		return to.Add(-24 * time.Hour), to, nil
	case "30d":
		return to.AddDate(0, 0, -30), to, nil
	case "90d":
		return to.AddDate(0, 0, -90), to, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("unknown period %q", period)
}

// Report builds the full analytics view over [from, to). A window with no
// completed sales yields a zeroed summary, never an error.
func (s *AnalyticsService) Report(ctx context.Context, from, to time.Time) (*model.AnalyticsReport, error) {
	sales, err := s.saleRepo.ListCompletedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	lowStock, err := s.productRepo.ListLowStock(ctx, bestSellerLimit)
	if err != nil {
		return nil, err
	}

	report := &model.AnalyticsReport{
		Summary:        summarize(sales),
		DailySales:     dailyBuckets(sales),
		BestSellers:    bestSellers(sales),
		PaymentMethods: paymentBreakdown(sales),
		LowStock:       lowStock,
	}
	return report, nil
}

// DashboardStats summarizes the last seven days of trading plus inventory
// health.
func (s *AnalyticsService) DashboardStats(ctx context.Context, now time.Time) (*model.DashboardStats, error) {
	sales, err := s.saleRepo.ListCompletedBetween(ctx, now.AddDate(0, 0, -7), now)
	if err != nil {
		return nil, err
	}
	summary := summarize(sales)

	totalProducts, err := s.productRepo.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	lowStockCount, err := s.productRepo.CountLowStock(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := s.saleRepo.Latest(ctx, 5)
	if err != nil {
		return nil, err
	}

	return &model.DashboardStats{
		TotalProducts:     totalProducts,
		LowStockProducts:  lowStockCount,
		TotalRevenue:      summary.TotalRevenue,
		TotalProfit:       summary.TotalProfit,
		TotalTransactions: summary.TotalTransactions,
		LatestSales:       latest,
	}, nil
}

func summarize(sales []*model.Sale) model.AnalyticsSummary {
	summary := model.AnalyticsSummary{
		TotalRevenue: decimal.Zero,
		TotalProfit:  decimal.Zero,
	}

	for _, sale := range sales {
		summary.TotalRevenue = summary.TotalRevenue.Add(sale.Total)
		summary.TotalTransactions++
		for _, item := range sale.Items {
			if item.Product == nil {
				continue
			}
			// per-item margin at the current cost price; discounts do not
			// reduce profit
			qty := decimal.NewFromInt(int64(item.Quantity))
			margin := item.UnitPrice.Sub(item.Product.CostPrice).Mul(qty)
			summary.TotalProfit = summary.TotalProfit.Add(margin)
		}
	}

	if summary.TotalTransactions > 0 {
		summary.AverageOrderValue = summary.TotalRevenue.Div(decimal.NewFromInt(summary.TotalTransactions)).Round(2)
	}
	if summary.TotalRevenue.IsPositive() {
		summary.ProfitMargin = summary.TotalProfit.Div(summary.TotalRevenue).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return summary
}

func dailyBuckets(sales []*model.Sale) []model.DailySales {
	byDay := map[time.Time]*model.DailySales{}
	for _, sale := range sales {
		at := sale.CreatedAt
		day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
		bucket, ok := byDay[day]
		if !ok {
			bucket = &model.DailySales{Date: day, Revenue: decimal.Zero}
			byDay[day] = bucket
		}
		bucket.Revenue = bucket.Revenue.Add(sale.Total)
		bucket.Count++
	}

	out := make([]model.DailySales, 0, len(byDay))
	for _, bucket := range byDay {
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func bestSellers(sales []*model.Sale) []model.ProductSales {
	byProduct := map[int64]*model.ProductSales{}
	for _, sale := range sales {
		for _, item := range sale.Items {
			entry, ok := byProduct[item.ProductID]
			if !ok {
				entry = &model.ProductSales{ProductID: item.ProductID, Revenue: decimal.Zero}
				if item.Product != nil {
					entry.Name = item.Product.Name
				}
				byProduct[item.ProductID] = entry
			}
			entry.Quantity += int64(item.Quantity)
			entry.Revenue = entry.Revenue.Add(item.Subtotal)
		}
	}

	out := make([]model.ProductSales, 0, len(byProduct))
	for _, entry := range byProduct {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Revenue.Equal(out[j].Revenue) {
			return out[i].Revenue.GreaterThan(out[j].Revenue)
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > bestSellerLimit {
		out = out[:bestSellerLimit]
	}
	return out
}

func paymentBreakdown(sales []*model.Sale) map[model.PaymentMethod]model.PaymentMethodStats {
	out := map[model.PaymentMethod]model.PaymentMethodStats{}
	for _, sale := range sales {
		stats := out[sale.PaymentMethod]
		stats.Count++
		stats.Total = stats.Total.Add(sale.Total)
		out[sale.PaymentMethod] = stats
	}
	return out
}
