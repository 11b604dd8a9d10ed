// Package aggregate computes derived views over normalized sessions.
//
// Every function here is pure: it reads a slice of sessions and returns a new
// value. Accumulation is done at full float precision; rounding to cents
// happens only in the presentation helpers (Round2 and the Rounded methods).
package aggregate

import (
	"math"

	"doordashboard/internal/core"
)

// Summary holds collection-wide totals.
type Summary struct {
	TotalEarnings       float64 `json:"total_earnings"`
	TotalDeliveries     int     `json:"total_deliveries"`
	TotalDashMinutes    float64 `json:"total_dash_min"`
	TotalActiveMinutes  float64 `json:"total_active_min"`
	ChallengeBonusTotal float64 `json:"challenge_bonus_total"`
	ChallengeBonusCount int     `json:"challenge_bonus_count"`
	SessionCount        int     `json:"session_count"`
	AvgPerDelivery      float64 `json:"avg_per_delivery"`
	AvgPerHour          float64 `json:"avg_per_hour"`
	TimeEfficiency      float64 `json:"time_efficiency"`
}

// Summarize computes totals and the derived ratios.
func Summarize(sessions []core.Session) Summary {
	var s Summary
	s.SessionCount = len(sessions)
	for _, sess := range sessions {
		s.TotalEarnings += sess.Earnings
		if sess.IsBonusOnly() {
			s.ChallengeBonusTotal += sess.ChallengeBonus
			if sess.HasBonus {
				s.ChallengeBonusCount++
			}
			continue
		}
		s.TotalDeliveries += len(sess.Deliveries)
		if sess.HasTime() {
			s.TotalDashMinutes += sess.DashMinutes.Value
			s.TotalActiveMinutes += sess.ActiveMinutes.Value
		}
	}

	s.AvgPerDelivery = s.TotalEarnings / float64(max(1, s.TotalDeliveries))
	if s.TotalDashMinutes > 0 {
		s.AvgPerHour = s.TotalEarnings / (s.TotalDashMinutes / 60)
		s.TimeEfficiency = s.TotalActiveMinutes / s.TotalDashMinutes * 100
	}
	return s
}

// Rounded returns a copy with money and percentage fields rounded to cents.
func (s Summary) Rounded() Summary {
	s.TotalEarnings = Round2(s.TotalEarnings)
	s.ChallengeBonusTotal = Round2(s.ChallengeBonusTotal)
	s.AvgPerDelivery = Round2(s.AvgPerDelivery)
	s.AvgPerHour = Round2(s.AvgPerHour)
	s.TimeEfficiency = Round2(s.TimeEfficiency)
	s.TotalDashMinutes = Round2(s.TotalDashMinutes)
	s.TotalActiveMinutes = Round2(s.TotalActiveMinutes)
	return s
}

// Round2 rounds half away from zero to two decimals.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}
