package aggregate

import (
	"sort"
	"time"

	"doordashboard/internal/core"
)

// Week is one Monday-to-Sunday bucket.
type Week struct {
	ID             int     `json:"id"`
	WeekNumber     int     `json:"week_number"`
	Year           int     `json:"year"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	Earnings       float64 `json:"earnings"`
	Deliveries     int     `json:"deliveries"`
	DashMinutes    float64 `json:"dash_minutes"`
	ActiveMinutes  float64 `json:"active_minutes"`
	ChallengeBonus float64 `json:"challenge_bonus"`
}

type weekKey struct {
	year, week int
}

// Weekly groups sessions by ISO week. Sessions are visited in ascending date
// order so ids follow the first week seen. Sessions without a parseable date
// are skipped.
func Weekly(sessions []core.Session) []Week {
	type dated struct {
		s core.Session
		t time.Time
	}
	ordered := make([]dated, 0, len(sessions))
	for _, s := range sessions {
		if t, ok := s.ParseDate(); ok {
			ordered = append(ordered, dated{s, t})
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].t.Before(ordered[j].t) })

	index := make(map[weekKey]int)
	var weeks []Week
	for _, d := range ordered {
		year, num := d.t.ISOWeek()
		key := weekKey{year, num}
		pos, ok := index[key]
		if !ok {
			start := MondayOf(d.t)
			weeks = append(weeks, Week{
				ID:         len(weeks) + 1,
				WeekNumber: num,
				Year:       year,
				StartDate:  start.Format(core.DateLayout),
				EndDate:    start.AddDate(0, 0, 6).Format(core.DateLayout),
			})
			pos = len(weeks) - 1
			index[key] = pos
		}

		w := &weeks[pos]
		w.Earnings += d.s.Earnings
		if d.s.IsBonusOnly() {
			w.ChallengeBonus += d.s.ChallengeBonus
			continue
		}
		w.Deliveries += len(d.s.Deliveries)
		if d.s.HasTime() {
			w.DashMinutes += d.s.DashMinutes.Value
			w.ActiveMinutes += d.s.ActiveMinutes.Value
		}
	}

	sort.SliceStable(weeks, func(i, j int) bool { return weeks[i].StartDate < weeks[j].StartDate })
	if weeks == nil {
		weeks = []Week{}
	}
	return weeks
}

// MondayOf returns the Monday starting t's ISO week.
func MondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Rounded returns a copy with money fields rounded to cents.
func (w Week) Rounded() Week {
	w.Earnings = Round2(w.Earnings)
	w.ChallengeBonus = Round2(w.ChallengeBonus)
	return w
}
