package google

import (
	"fmt"
	"strconv"
	"strings"

	"doordashboard/internal/aggregate"
	"doordashboard/internal/core"
	ports "doordashboard/internal/sheets"
)

// parseWeekly converts a values matrix (as returned by Sheets API) back into
// weeks. The first row must be a header containing every WeeklyHeader
// column except "Per Delivery", which is derived. Rows without a start date
// are skipped.
func parseWeekly(values [][]any) ([]aggregate.Week, error) {
	if len(values) == 0 {
		return []aggregate.Week{}, nil
	}
	headers := toStrings(values[0])
	required := ports.WeeklyHeader[:len(ports.WeeklyHeader)-1]
	cols := make(map[string]int, len(required))
	var missing []string
	for _, h := range required {
		idx := indexOf(headers, h)
		if idx == -1 {
			missing = append(missing, h)
		}
		cols[h] = idx
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unexpected weekly header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	out := make([]aggregate.Week, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		start := safeGet(row, cols["Start"])
		if start == "" {
			continue
		}
		out = append(out, aggregate.Week{
			ID:             len(out),
			WeekNumber:     atoi(safeGet(row, cols["Week"])),
			Year:           atoi(safeGet(row, cols["Year"])),
			StartDate:      start,
			EndDate:        safeGet(row, cols["End"]),
			Earnings:       core.NormalizeNumeric(safeGet(row, cols["Earnings"])),
			Deliveries:     atoi(safeGet(row, cols["Deliveries"])),
			DashMinutes:    core.NormalizeNumeric(safeGet(row, cols["Dash Minutes"])),
			ActiveMinutes:  core.NormalizeNumeric(safeGet(row, cols["Active Minutes"])),
			ChallengeBonus: core.NormalizeNumeric(safeGet(row, cols["Challenge Bonus"])),
		})
	}
	return out, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return int(core.NormalizeNumeric(s))
	}
	return n
}
