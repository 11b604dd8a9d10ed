// Package export renders derived views for the operator CLI as JSON, CSV or
// YAML.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"doordashboard/internal/aggregate"
	"doordashboard/internal/sheets"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// View names accepted by Write.
const (
	ViewAll        = "all"
	ViewSummary    = "summary"
	ViewWeekly     = "weekly"
	ViewMerchants  = "merchants"
	ViewTimeSeries = "timeseries"
	ViewLocations  = "locations"
)

// Views lists the selectable views in display order.
var Views = []string{ViewAll, ViewSummary, ViewWeekly, ViewMerchants, ViewTimeSeries, ViewLocations}

// ParseFormat accepts json, csv, yaml or yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json, csv or yaml)", s)
	}
}

// Select picks one view out of views. "all" returns views itself.
func Select(views aggregate.Views, name string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ViewAll:
		return views, nil
	case ViewSummary:
		return views.Summary, nil
	case ViewWeekly:
		return views.Weekly, nil
	case ViewMerchants:
		return views.Merchants, nil
	case ViewTimeSeries:
		return views.TimeSeries, nil
	case ViewLocations:
		return views.Locations, nil
	default:
		return nil, fmt.Errorf("unknown view %q (want one of %s)", name, strings.Join(Views, ", "))
	}
}

// Write renders the named view to w.
func Write(w io.Writer, views aggregate.Views, name string, format Format) error {
	v, err := Select(views, name)
	if err != nil {
		return err
	}
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		return writeYAML(w, v)
	case FormatCSV:
		rows, err := table(v)
		if err != nil {
			return err
		}
		cw := csv.NewWriter(w)
		if err := cw.WriteAll(rows); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// writeYAML goes through the JSON encoding so field names match the API.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode view: %w", err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("decode view: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("write yaml: %w", err)
	}
	return enc.Close()
}

// table flattens a single view into CSV rows with a header.
func table(v any) ([][]string, error) {
	switch view := v.(type) {
	case aggregate.Summary:
		return [][]string{
			{"metric", "value"},
			{"total_earnings", money(view.TotalEarnings)},
			{"total_deliveries", strconv.Itoa(view.TotalDeliveries)},
			{"total_dash_min", num(view.TotalDashMinutes)},
			{"total_active_min", num(view.TotalActiveMinutes)},
			{"challenge_bonus_total", money(view.ChallengeBonusTotal)},
			{"challenge_bonus_count", strconv.Itoa(view.ChallengeBonusCount)},
			{"session_count", strconv.Itoa(view.SessionCount)},
			{"avg_per_delivery", money(view.AvgPerDelivery)},
			{"avg_per_hour", money(view.AvgPerHour)},
			{"time_efficiency", num(view.TimeEfficiency)},
		}, nil
	case []aggregate.Week:
		rows := [][]string{sheets.WeeklyHeader}
		for _, w := range view {
			perDelivery := 0.0
			if w.Deliveries > 0 {
				perDelivery = w.Earnings / float64(w.Deliveries)
			}
			rows = append(rows, []string{
				strconv.Itoa(w.WeekNumber),
				strconv.Itoa(w.Year),
				w.StartDate,
				w.EndDate,
				money(w.Earnings),
				strconv.Itoa(w.Deliveries),
				num(w.DashMinutes),
				num(w.ActiveMinutes),
				money(w.ChallengeBonus),
				money(perDelivery),
			})
		}
		return rows, nil
	case []aggregate.Merchant:
		rows := [][]string{{"name", "merchant_type", "deliveries_count", "total_earnings", "base_pay_total", "tips_total", "visit_count", "avg_per_delivery"}}
		for _, m := range view {
			rows = append(rows, []string{
				m.Name,
				string(m.MerchantType),
				strconv.Itoa(m.Deliveries),
				money(m.TotalEarnings),
				money(m.BasePayTotal),
				money(m.TipsTotal),
				strconv.Itoa(m.VisitCount),
				money(m.AvgPerDelivery),
			})
		}
		return rows, nil
	case aggregate.Columns:
		rows := [][]string{{"date", "earnings", "deliveries", "dash_time", "active_time"}}
		for i, label := range view.Labels {
			rows = append(rows, []string{
				label,
				money(view.Earnings[i]),
				strconv.Itoa(view.Deliveries[i]),
				num(view.DashTime[i]),
				num(view.ActiveTime[i]),
			})
		}
		return rows, nil
	case []aggregate.LocationCount:
		rows := [][]string{{"name", "count"}}
		for _, l := range view {
			rows = append(rows, []string{l.Name, strconv.Itoa(l.Count)})
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("csv needs a single view, not %T; pick one with --view", v)
	}
}

func money(f float64) string {
	return strconv.FormatFloat(aggregate.Round2(f), 'f', 2, 64)
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
