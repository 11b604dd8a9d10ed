package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doordashboard/internal/core"
)

func delivery(restaurant string, pay, tip, total float64) core.Delivery {
	return core.Delivery{
		Restaurant:   restaurant,
		DoordashPay:  pay,
		Tip:          tip,
		Total:        total,
		MerchantType: core.Classify(restaurant),
	}
}

func dashSession(date string, dash, active float64, ds ...core.Delivery) core.Session {
	s := core.Session{
		Date:            date,
		Kind:            core.KindDeliveryBearing,
		Deliveries:      ds,
		DeliveriesCount: len(ds),
		DashMinutes:     core.Minutes{Value: dash, Present: dash > 0},
		ActiveMinutes:   core.Minutes{Value: active, Present: active > 0},
	}
	for _, d := range ds {
		s.Earnings += d.Total
	}
	return s
}

func bonusSession(date string, amount float64) core.Session {
	return core.Session{Date: date, Kind: core.KindBonusOnly, ChallengeBonus: amount, HasBonus: true, Earnings: amount}
}

func TestSummarize_ExampleScenario(t *testing.T) {
	sessions := []core.Session{
		dashSession("2024-01-02", 0, 0, delivery("McDonald's", 4, 2.5, 6.5)),
		bonusSession("2024-01-03", 10),
	}
	s := Summarize(sessions)

	assert.InDelta(t, 16.5, s.TotalEarnings, 1e-9)
	assert.Equal(t, 1, s.TotalDeliveries)
	assert.InDelta(t, 10.0, s.ChallengeBonusTotal, 1e-9)
	assert.Equal(t, 1, s.ChallengeBonusCount)
	assert.InDelta(t, 16.5, s.AvgPerDelivery, 1e-9)
	assert.Zero(t, s.AvgPerHour)
	assert.Zero(t, s.TimeEfficiency)
}

func TestSummarize_DefaultedBonusNotCounted(t *testing.T) {
	// stored without deliveries or challenge_bonus
	defaulted := core.Session{Date: "2024-01-04", Kind: core.KindBonusOnly, DeliveriesCount: 3}
	s := Summarize([]core.Session{bonusSession("2024-01-03", 10), defaulted})

	assert.Equal(t, 1, s.ChallengeBonusCount)
	assert.Equal(t, 2, s.SessionCount)
	assert.InDelta(t, 10.0, s.ChallengeBonusTotal, 1e-9)
	assert.Zero(t, s.TotalDeliveries)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.TotalEarnings)
	assert.Zero(t, s.AvgPerDelivery)
	assert.Zero(t, s.AvgPerHour)
}

func TestSummarize_TimeMetrics(t *testing.T) {
	sessions := []core.Session{
		dashSession("2024-01-02", 120, 90, delivery("A", 5, 5, 10), delivery("B", 5, 5, 10)),
		// only dash present, so no time contribution
		dashSession("2024-01-03", 60, 0, delivery("C", 3, 2, 5)),
	}
	s := Summarize(sessions)

	assert.InDelta(t, 120.0, s.TotalDashMinutes, 1e-9)
	assert.InDelta(t, 90.0, s.TotalActiveMinutes, 1e-9)
	assert.InDelta(t, 25.0/2, s.AvgPerHour, 1e-9)
	assert.InDelta(t, 75.0, s.TimeEfficiency, 1e-9)
	assert.Equal(t, 3, s.TotalDeliveries)
}

func TestSummarize_BonusExclusion(t *testing.T) {
	base := []core.Session{dashSession("2024-01-02", 60, 30, delivery("A", 1, 1, 2))}
	bonus := bonusSession("2024-01-02", 7)
	bonus.DashMinutes = core.Minutes{Value: 500, Present: true}
	bonus.ActiveMinutes = core.Minutes{Value: 500, Present: true}

	without := Summarize(base)
	with := Summarize(append(base, bonus))

	assert.InDelta(t, without.TotalEarnings+7, with.TotalEarnings, 1e-9)
	assert.InDelta(t, without.ChallengeBonusTotal+7, with.ChallengeBonusTotal, 1e-9)
	assert.Equal(t, without.TotalDeliveries, with.TotalDeliveries)
	assert.Equal(t, without.TotalDashMinutes, with.TotalDashMinutes)
	assert.Equal(t, without.TotalActiveMinutes, with.TotalActiveMinutes)
}

func TestSummarize_Additive(t *testing.T) {
	a := []core.Session{
		dashSession("2024-01-02", 60, 40, delivery("A", 1.1, 0.3, 1.4)),
		bonusSession("2024-01-04", 3.33),
	}
	b := []core.Session{
		dashSession("2024-02-02", 30, 20, delivery("B", 2.2, 1, 3.2), delivery("C", 0.1, 0.1, 0.2)),
	}
	sa, sb := Summarize(a), Summarize(b)
	sum := Summarize(append(append([]core.Session{}, a...), b...))

	assert.InDelta(t, sa.TotalEarnings+sb.TotalEarnings, sum.TotalEarnings, 1e-9)
	assert.Equal(t, sa.TotalDeliveries+sb.TotalDeliveries, sum.TotalDeliveries)
	assert.InDelta(t, sa.TotalDashMinutes+sb.TotalDashMinutes, sum.TotalDashMinutes, 1e-9)
	assert.InDelta(t, sa.TotalActiveMinutes+sb.TotalActiveMinutes, sum.TotalActiveMinutes, 1e-9)
	assert.InDelta(t, sa.ChallengeBonusTotal+sb.ChallengeBonusTotal, sum.ChallengeBonusTotal, 1e-9)
}

func TestSummary_Rounded(t *testing.T) {
	s := Summary{TotalEarnings: 10.006, AvgPerDelivery: 3.33333}.Rounded()
	assert.Equal(t, 10.01, s.TotalEarnings)
	assert.Equal(t, 3.33, s.AvgPerDelivery)
}

func TestWeekly_MondayToSundayIsOneBucket(t *testing.T) {
	sessions := []core.Session{
		dashSession("2024-01-07", 0, 0, delivery("A", 1, 1, 2)),
		dashSession("2024-01-01", 0, 0, delivery("B", 1, 1, 3)),
		bonusSession("2024-01-04", 5),
	}
	weeks := Weekly(sessions)
	require.Len(t, weeks, 1)

	w := weeks[0]
	assert.Equal(t, 1, w.ID)
	assert.Equal(t, "2024-01-01", w.StartDate)
	assert.Equal(t, "2024-01-07", w.EndDate)
	assert.Equal(t, 1, w.WeekNumber)
	assert.Equal(t, 2, w.Deliveries)
	assert.InDelta(t, 10.0, w.Earnings, 1e-9)
	assert.InDelta(t, 5.0, w.ChallengeBonus, 1e-9)
}

func TestWeekly_SplitsAndOrders(t *testing.T) {
	sessions := []core.Session{
		dashSession("2024-01-08", 60, 50, delivery("A", 1, 1, 2)),
		dashSession("2023-12-31", 0, 0, delivery("B", 1, 1, 3)),
		{Date: "not-a-date", Kind: core.KindDeliveryBearing, Earnings: 99},
		dashSession("2024-01-02", 0, 0, delivery("C", 1, 1, 4)),
	}
	weeks := Weekly(sessions)
	require.Len(t, weeks, 3)

	assert.Equal(t, "2023-12-25", weeks[0].StartDate)
	assert.Equal(t, "2024-01-01", weeks[1].StartDate)
	assert.Equal(t, "2024-01-08", weeks[2].StartDate)
	for i, w := range weeks {
		assert.Equal(t, i+1, w.ID)
	}
	assert.InDelta(t, 60.0, weeks[2].DashMinutes, 1e-9)
	assert.InDelta(t, 50.0, weeks[2].ActiveMinutes, 1e-9)
	assert.Equal(t, 52, weeks[0].WeekNumber)
}

func TestWeekly_Empty(t *testing.T) {
	weeks := Weekly(nil)
	require.NotNil(t, weeks)
	assert.Empty(t, weeks)
}

func TestMondayOf(t *testing.T) {
	for _, d := range []string{"2024-01-01", "2024-01-03", "2024-01-07"} {
		ts, err := time.Parse(core.DateLayout, d)
		require.NoError(t, err)
		assert.Equal(t, "2024-01-01", MondayOf(ts).Format(core.DateLayout), d)
	}
}

func TestByMerchant(t *testing.T) {
	sessions := []core.Session{
		dashSession("2024-01-02", 0, 0,
			delivery("McDonald's", 4, 2, 6),
			delivery("Kroger", 8, 10, 18),
			delivery("McDonald's", 3, 1, 4),
		),
		dashSession("2024-01-03", 0, 0, delivery("McDonald's", 2, 0, 2)),
		dashSession("2024-01-03", 0, 0, delivery("McDonald's", 2, 0, 2)),
		bonusSession("2024-01-04", 50),
	}

	byEarnings := ByMerchant(sessions, SortByEarnings)
	require.Len(t, byEarnings, 2)
	assert.Equal(t, "Kroger", byEarnings[0].Name)
	assert.Equal(t, "McDonald's", byEarnings[1].Name)

	mcd := byEarnings[1]
	assert.Equal(t, 4, mcd.Deliveries)
	assert.InDelta(t, 14.0, mcd.TotalEarnings, 1e-9)
	assert.InDelta(t, 11.0, mcd.BasePayTotal, 1e-9)
	assert.InDelta(t, 3.0, mcd.TipsTotal, 1e-9)
	assert.Equal(t, []string{"2024-01-02", "2024-01-03"}, mcd.Dates)
	assert.Equal(t, 2, mcd.VisitCount)
	assert.InDelta(t, 3.5, mcd.AvgPerDelivery, 1e-9)
	assert.Equal(t, core.MerchantFastFood, mcd.MerchantType)

	byCount := ByMerchant(sessions, SortByDeliveries)
	assert.Equal(t, "McDonald's", byCount[0].Name)
}

func TestParseMerchantSort(t *testing.T) {
	s, err := ParseMerchantSort("")
	require.NoError(t, err)
	assert.Equal(t, SortByEarnings, s)
	s, err = ParseMerchantSort("Deliveries")
	require.NoError(t, err)
	assert.Equal(t, SortByDeliveries, s)
	_, err = ParseMerchantSort("name")
	assert.Error(t, err)
}

func TestTimeSeries(t *testing.T) {
	sessions := []core.Session{
		dashSession("2024-01-03", 30, 20, delivery("A", 1, 1, 2)),
		{Kind: core.KindDeliveryBearing, Earnings: 100},
		bonusSession("2024-01-02", 10),
		dashSession("2024-01-02", 0, 0, delivery("B", 1, 1, 3), delivery("C", 0, 0, 1)),
	}
	points := TimeSeries(sessions)
	require.Len(t, points, 3)

	assert.Equal(t, "2024-01-02", points[0].Date)
	assert.InDelta(t, 10.0, points[0].Earnings, 1e-9)
	assert.Zero(t, points[0].Deliveries)
	assert.Equal(t, "2024-01-02", points[1].Date)
	assert.Equal(t, 2, points[1].Deliveries)
	assert.Equal(t, "2024-01-03", points[2].Date)
	assert.InDelta(t, 30.0, points[2].DashMinutes, 1e-9)

	cols := ToColumns(points)
	assert.Equal(t, []string{"2024-01-02", "2024-01-02", "2024-01-03"}, cols.Labels)
	assert.Equal(t, []int{0, 2, 1}, cols.Deliveries)
}

func TestLocations(t *testing.T) {
	withDrop := func(r, loc string) core.Delivery {
		d := delivery(r, 1, 1, 2)
		d.DropoffLocation = loc
		return d
	}
	sessions := []core.Session{
		dashSession("2024-01-02", 0, 0, withDrop("A", "Elm"), withDrop("B", "Oak"), withDrop("A", "")),
		dashSession("2024-01-03", 0, 0, withDrop("B", "Oak"), withDrop("C", "Pine")),
	}

	locs := Locations(sessions, ByDropoff)
	require.Equal(t, []LocationCount{{"Oak", 2}, {"Elm", 1}, {"Pine", 1}}, locs)

	byRest := Locations(sessions, ByRestaurant)
	require.Equal(t, []LocationCount{{"A", 2}, {"B", 2}, {"C", 1}}, byRest)

	assert.Empty(t, Locations(nil, ByDropoff))
}

func TestCompute(t *testing.T) {
	v := Compute([]core.Session{
		dashSession("2024-01-02", 0, 0, delivery("McDonald's", 4, 2.5, 6.5)),
		bonusSession("2024-01-03", 10),
	})
	assert.Equal(t, 16.5, v.Summary.TotalEarnings)
	require.Len(t, v.Weekly, 1)
	require.Len(t, v.Merchants, 1)
	assert.Len(t, v.TimeSeries.Labels, 2)
}
