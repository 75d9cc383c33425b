package service

import (
	"context"
	"sort"
	"time"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"

	"github.com/shopspring/decimal"
)

// LowStockThreshold marks products with fewer units left as low on stock.
const LowStockThreshold = 5

type DashboardService interface {
	SessionSummary(ctx context.Context, sessionID string) (*SessionSummary, error)
	Overview(ctx context.Context) (*Overview, error)
}

type ProductSales struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	Units     int             `json:"units"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type SessionSummary struct {
	SessionID     string                     `json:"session_id"`
	Status        model.SessionStatus        `json:"status"`
	SaleCount     int                        `json:"sale_count"`
	GrossTotal    decimal.Decimal            `json:"gross_total"`
	DiscountTotal decimal.Decimal            `json:"discount_total"`
	ByPayment     map[string]decimal.Decimal `json:"by_payment"`
	Products      []ProductSales             `json:"products"`
	LowStock      []model.SessionProduct     `json:"low_stock"`
}

type Overview struct {
	ProductCount   int64           `json:"product_count"`
	ActiveSessions int             `json:"active_sessions"`
	TodaySaleCount int             `json:"today_sale_count"`
	TodayRevenue   decimal.Decimal `json:"today_revenue"`
}

type dashboardService struct {
	inventory   InventoryService
	sessionRepo repository.SessionRepository
	productRepo repository.ProductRepository
	now         func() time.Time
}

func NewDashboardService(inventory InventoryService, sRepo repository.SessionRepository, pRepo repository.ProductRepository) DashboardService {
	return &dashboardService{
		inventory:   inventory,
		sessionRepo: sRepo,
		productRepo: pRepo,
		now:         time.Now,
	}
}

func (s *dashboardService) SessionSummary(ctx context.Context, sessionID string) (*SessionSummary, error) {
	session, err := s.inventory.GetSessionWithProducts(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	summary := &SessionSummary{
		SessionID:     session.ID,
		Status:        session.Status,
		SaleCount:     len(session.Sales),
		GrossTotal:    decimal.Zero,
		DiscountTotal: decimal.Zero,
		ByPayment:     map[string]decimal.Decimal{},
		Products:      []ProductSales{},
		LowStock:      []model.SessionProduct{},
	}

	byProduct := map[uint]*ProductSales{}
	for _, sale := range session.Sales {
		summary.GrossTotal = summary.GrossTotal.Add(sale.Total)
		summary.DiscountTotal = summary.DiscountTotal.Add(sale.Discount)
		method := string(sale.PaymentMethod)
		summary.ByPayment[method] = summary.ByPayment[method].Add(sale.Total)

		for _, it := range sale.Items {
			summary.DiscountTotal = summary.DiscountTotal.Add(it.Discount)
			ps, ok := byProduct[it.ProductID]
			if !ok {
				ps = &ProductSales{ProductID: it.ProductID, Name: it.Name, Revenue: decimal.Zero}
				byProduct[it.ProductID] = ps
			}
			ps.Units += it.Quantity
			ps.Revenue = ps.Revenue.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))).Sub(it.Discount))
		}
	}

	for _, ps := range byProduct {
		summary.Products = append(summary.Products, *ps)
	}
	sort.Slice(summary.Products, func(i, j int) bool {
		if summary.Products[i].Units != summary.Products[j].Units {
			return summary.Products[i].Units > summary.Products[j].Units
		}
		return summary.Products[i].ProductID < summary.Products[j].ProductID
	})

	for _, p := range session.Products {
		if p.CurrentStock < LowStockThreshold {
			summary.LowStock = append(summary.LowStock, p)
		}
	}
	return summary, nil
}

func (s *dashboardService) Overview(ctx context.Context) (*Overview, error) {
	count, err := s.productRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessionRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().In(jakartaLoc)
	y, m, d := now.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, jakartaLoc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	ov := &Overview{ProductCount: count, TodayRevenue: decimal.Zero}
	for _, session := range sessions {
		if session.Status == model.SessionActive {
			ov.ActiveSessions++
		}
		for _, sale := range session.Sales {
			if sale.Timestamp.Before(dayStart) || !sale.Timestamp.Before(dayEnd) {
				continue
			}
			ov.TodaySaleCount++
			ov.TodayRevenue = ov.TodayRevenue.Add(sale.Total)
		}
	}
	return ov, nil
}
