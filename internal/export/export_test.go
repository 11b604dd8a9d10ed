package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"doordashboard/internal/aggregate"
	"doordashboard/internal/core"
)

func sampleViews() aggregate.Views {
	return aggregate.Compute([]core.Session{
		{
			Index:           0,
			Date:            "2024-01-02",
			Kind:            core.KindDeliveryBearing,
			DashMinutes:     core.Minutes{Value: 60, Present: true},
			ActiveMinutes:   core.Minutes{Value: 45, Present: true},
			DeliveriesCount: 1,
			Earnings:        6.5,
			Deliveries: []core.Delivery{
				{Restaurant: "McDonald's", MerchantType: core.MerchantFastFood, DoordashPay: 4, Tip: 2.5, Total: 6.5, DropoffLocation: "Elm St"},
			},
		},
		{
			Index:          1,
			Date:           "2024-01-03",
			Kind:           core.KindBonusOnly,
			ChallengeBonus: 10,
			HasBonus:       true,
			Earnings:       10,
		},
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"yml", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("format = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrite_JSONAll(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleViews(), ViewAll, FormatJSON))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	for _, key := range []string{"summary", "weekly", "merchants", "timeseries", "locations"} {
		assert.Contains(t, doc, key)
	}
	summary := doc["summary"].(map[string]any)
	assert.Equal(t, 16.5, summary["total_earnings"])
}

func TestWrite_YAMLKeepsAPIFieldNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleViews(), ViewSummary, FormatYAML))

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, 16.5, doc["total_earnings"])
	assert.Equal(t, 2, doc["session_count"])
}

func TestWrite_CSV(t *testing.T) {
	tests := []struct {
		view   string
		header string
		rows   int
	}{
		{ViewSummary, "metric", 11},
		{ViewWeekly, "Week", 2},
		{ViewMerchants, "name", 2},
		{ViewTimeSeries, "date", 3},
		{ViewLocations, "name", 2},
	}
	for _, tt := range tests {
		t.Run(tt.view, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, sampleViews(), tt.view, FormatCSV))

			records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
			require.NoError(t, err)
			assert.Equal(t, tt.header, records[0][0])
			assert.Len(t, records, tt.rows)
		})
	}
}

func TestWrite_CSVMerchantRow(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleViews(), ViewMerchants, FormatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"McDonald's", "Fast Food", "1", "6.50", "4.00", "2.50", "1", "6.50"}, records[1])
}

func TestWrite_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, sampleViews(), "payouts", FormatJSON))
	assert.Error(t, Write(&buf, sampleViews(), ViewAll, FormatCSV), "csv needs a single view")
	assert.Error(t, Write(&buf, sampleViews(), ViewSummary, Format("xml")))
}
