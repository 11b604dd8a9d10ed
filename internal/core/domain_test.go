package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := map[string]MerchantType{
		"McDonald's":            MerchantFastFood,
		"BURGER KING #441":      MerchantFastFood,
		"Whole Foods Market":    MerchantGrocery,
		"Kroger":                MerchantGrocery,
		"CVS Pharmacy":          MerchantShopping,
		"7-Eleven":              MerchantShopping,
		"Joe's Diner":           MerchantRestaurant,
		"":                      MerchantRestaurant,
		"   ":                   MerchantRestaurant,
		"Target Kroger Express": MerchantShopping,
		"Aldi Chipotle":         MerchantGrocery,
	}
	for name, want := range cases {
		if got := Classify(name); got != want {
			t.Errorf("Classify(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestValidateRecord(t *testing.T) {
	good := RawSession{
		"date":             "2024-01-02",
		"deliveries_count": 1,
		"deliveries": []any{
			map[string]any{"restaurant": "A", "doordash_pay": 1, "tip": 1, "total": 2},
		},
	}
	require.NoError(t, ValidateRecord(good))
	require.NoError(t, ValidateRecord(RawSession{"date": "2024-01-03", "deliveries_count": 0, "challenge_bonus": 10}))

	bads := []RawSession{
		nil,
		{"deliveries_count": 1},
		{"date": "2024-01-02"},
		{"date": "01-02-2024", "deliveries_count": 1},
		{"date": 20240102, "deliveries_count": 1},
		{"date": "2024-01-02", "deliveries_count": 1, "deliveries": "x"},
		{"date": "2024-01-02", "deliveries_count": 1, "deliveries": []any{"x"}},
		{"date": "2024-01-02", "deliveries_count": 1, "deliveries": []any{
			map[string]any{"restaurant": "A", "doordash_pay": 1, "tip": 1},
		}},
	}
	for i, r := range bads {
		err := ValidateRecord(r)
		if err == nil || !errors.Is(err, ErrMalformedRecord) {
			t.Fatalf("case %d: expected ErrMalformedRecord, got %v", i, err)
		}
	}
}

func TestSessionMarshalJSON(t *testing.T) {
	s := Session{
		Index:           2,
		Date:            "2024-01-02",
		Kind:            KindDeliveryBearing,
		DeliveriesCount: 1,
		Earnings:        6.5,
		DashMinutes:     Minutes{Value: 60, Present: true},
		Deliveries: []Delivery{{
			Restaurant:   "McDonald's",
			DoordashPay:  4,
			Tip:          2.5,
			Total:        6.5,
			MerchantType: MerchantFastFood,
			Extra:        map[string]any{"order_id": "x1"},
		}},
		Extra: map[string]any{"start_time": "10:00"},
	}
	b, err := json.Marshal(s)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "10:00", out["start_time"])
	assert.Equal(t, float64(2), out["index"])
	assert.Equal(t, float64(60), out["dash_time_minutes"])
	assert.NotContains(t, out, "active_time_minutes")
	assert.NotContains(t, out, "challenge_bonus")

	deliveries := out["deliveries"].([]any)
	require.Len(t, deliveries, 1)
	d := deliveries[0].(map[string]any)
	assert.Equal(t, "Fast Food", d["merchant_type"])
	assert.Equal(t, "x1", d["order_id"])

	bonus := Session{Date: "2024-01-03", Kind: KindBonusOnly, ChallengeBonus: 10, Earnings: 10}
	b, err = json.Marshal(bonus)
	require.NoError(t, err)
	out = nil
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, float64(10), out["challenge_bonus"])
	assert.NotContains(t, out, "deliveries")
}

func TestRawSessionClone(t *testing.T) {
	orig := RawSession{
		"date":       "2024-01-02",
		"deliveries": []any{map[string]any{"total": "$1"}},
	}
	cp := orig.Clone()
	cp["date"] = "2024-02-02"
	cp["deliveries"].([]any)[0].(map[string]any)["total"] = 1.0

	assert.Equal(t, "2024-01-02", orig["date"])
	assert.Equal(t, "$1", orig["deliveries"].([]any)[0].(map[string]any)["total"])
}

func TestSessionParseDate(t *testing.T) {
	_, ok := Session{}.ParseDate()
	assert.False(t, ok)
	_, ok = Session{Date: "2024-13-01"}.ParseDate()
	assert.False(t, ok)
	ts, ok := Session{Date: "2024-01-07"}.ParseDate()
	require.True(t, ok)
	assert.Equal(t, 7, ts.Day())
}
