package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"doordashboard/internal/core"
)

// MerchantSort selects the order of the merchant rollup.
type MerchantSort string

const (
	SortByEarnings   MerchantSort = "earnings"
	SortByDeliveries MerchantSort = "deliveries"
)

// ParseMerchantSort accepts "" (earnings) or one of the sort keys.
func ParseMerchantSort(s string) (MerchantSort, error) {
	switch MerchantSort(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortByEarnings:
		return SortByEarnings, nil
	case SortByDeliveries:
		return SortByDeliveries, nil
	default:
		return "", fmt.Errorf("unknown merchant sort %q", s)
	}
}

// Merchant is the per-restaurant rollup.
type Merchant struct {
	Name           string            `json:"name"`
	MerchantType   core.MerchantType `json:"merchant_type"`
	Deliveries     int               `json:"deliveries_count"`
	TotalEarnings  float64           `json:"total_earnings"`
	BasePayTotal   float64           `json:"base_pay_total"`
	TipsTotal      float64           `json:"tips_total"`
	Dates          []string          `json:"dates"`
	VisitCount     int               `json:"visit_count"`
	AvgPerDelivery float64           `json:"avg_per_delivery"`
}

// ByMerchant groups deliveries of delivery-bearing sessions by restaurant
// name. Dates are distinct and kept in first-seen order; VisitCount is the
// number of distinct dates.
func ByMerchant(sessions []core.Session, order MerchantSort) []Merchant {
	index := make(map[string]int)
	seenDate := make(map[string]map[string]bool)
	var out []Merchant

	for _, s := range sessions {
		if s.IsBonusOnly() {
			continue
		}
		for _, d := range s.Deliveries {
			name := strings.TrimSpace(d.Restaurant)
			if name == "" {
				name = "Unknown"
			}
			pos, ok := index[name]
			if !ok {
				out = append(out, Merchant{Name: name, MerchantType: d.MerchantType, Dates: []string{}})
				pos = len(out) - 1
				index[name] = pos
				seenDate[name] = make(map[string]bool)
			}
			m := &out[pos]
			m.Deliveries++
			m.TotalEarnings += d.Total
			m.BasePayTotal += d.DoordashPay
			m.TipsTotal += d.Tip
			if s.Date != "" && !seenDate[name][s.Date] {
				seenDate[name][s.Date] = true
				m.Dates = append(m.Dates, s.Date)
			}
		}
	}

	for i := range out {
		out[i].VisitCount = len(out[i].Dates)
		if out[i].Deliveries > 0 {
			out[i].AvgPerDelivery = out[i].TotalEarnings / float64(out[i].Deliveries)
		}
	}

	switch order {
	case SortByDeliveries:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Deliveries > out[j].Deliveries })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].TotalEarnings > out[j].TotalEarnings })
	}
	if out == nil {
		out = []Merchant{}
	}
	return out
}

// Rounded returns a copy with money fields rounded to cents.
func (m Merchant) Rounded() Merchant {
	m.TotalEarnings = Round2(m.TotalEarnings)
	m.BasePayTotal = Round2(m.BasePayTotal)
	m.TipsTotal = Round2(m.TipsTotal)
	m.AvgPerDelivery = Round2(m.AvgPerDelivery)
	return m
}
