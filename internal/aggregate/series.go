package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"doordashboard/internal/core"
)

// Point is one session in the time series.
type Point struct {
	Date          string  `json:"date"`
	Earnings      float64 `json:"earnings"`
	Deliveries    int     `json:"deliveries"`
	DashMinutes   float64 `json:"dash_time"`
	ActiveMinutes float64 `json:"active_time"`
}

// TimeSeries returns one point per dated session in ascending date order.
// Sessions without a date are skipped. Bonus-only sessions carry their bonus
// as earnings and zero deliveries and minutes, matching Summarize.
func TimeSeries(sessions []core.Session) []Point {
	out := make([]Point, 0, len(sessions))
	for _, s := range sessions {
		if _, ok := s.ParseDate(); !ok {
			continue
		}
		p := Point{Date: s.Date, Earnings: s.Earnings}
		if !s.IsBonusOnly() {
			p.Deliveries = len(s.Deliveries)
			p.DashMinutes = s.DashMinutes.Value
			p.ActiveMinutes = s.ActiveMinutes.Value
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Columns is the columnar form of a time series used by chart clients.
type Columns struct {
	Labels     []string  `json:"labels"`
	Earnings   []float64 `json:"earnings"`
	Deliveries []int     `json:"deliveries"`
	DashTime   []float64 `json:"dash_time"`
	ActiveTime []float64 `json:"active_time"`
}

// ToColumns pivots points into parallel arrays, rounding earnings to cents.
func ToColumns(points []Point) Columns {
	c := Columns{
		Labels:     make([]string, len(points)),
		Earnings:   make([]float64, len(points)),
		Deliveries: make([]int, len(points)),
		DashTime:   make([]float64, len(points)),
		ActiveTime: make([]float64, len(points)),
	}
	for i, p := range points {
		c.Labels[i] = p.Date
		c.Earnings[i] = Round2(p.Earnings)
		c.Deliveries[i] = p.Deliveries
		c.DashTime[i] = p.DashMinutes
		c.ActiveTime[i] = p.ActiveMinutes
	}
	return c
}

// LocationKey selects which delivery field Locations groups by.
type LocationKey string

const (
	ByDropoff    LocationKey = "dropoff"
	ByRestaurant LocationKey = "restaurant"
)

// ParseLocationKey accepts "" (dropoff) or one of the keys.
func ParseLocationKey(s string) (LocationKey, error) {
	switch LocationKey(strings.ToLower(strings.TrimSpace(s))) {
	case "", ByDropoff:
		return ByDropoff, nil
	case ByRestaurant:
		return ByRestaurant, nil
	default:
		return "", fmt.Errorf("unknown location key %q", s)
	}
}

// LocationCount is how many deliveries share one location.
type LocationCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Locations counts deliveries by location, most frequent first. Ties keep
// first-seen order. Deliveries without a value for the key are ignored.
func Locations(sessions []core.Session, key LocationKey) []LocationCount {
	index := make(map[string]int)
	out := []LocationCount{}
	for _, s := range sessions {
		if s.IsBonusOnly() {
			continue
		}
		for _, d := range s.Deliveries {
			name := d.DropoffLocation
			if key == ByRestaurant {
				name = strings.TrimSpace(d.Restaurant)
			}
			if name == "" {
				continue
			}
			pos, ok := index[name]
			if !ok {
				out = append(out, LocationCount{Name: name})
				pos = len(out) - 1
				index[name] = pos
			}
			out[pos].Count++
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
