package core

import (
	"encoding/json"
	"errors"
	"time"
)

// DateLayout is the calendar date format used by session records.
const DateLayout = "2006-01-02"

// Record field names as they appear in the backing document.
const (
	FieldID              = "id"
	FieldDate            = "date"
	FieldDeliveries      = "deliveries"
	FieldDeliveriesCount = "deliveries_count"
	FieldDashMinutes     = "dash_time_minutes"
	FieldActiveMinutes   = "active_time_minutes"
	FieldChallengeBonus  = "challenge_bonus"
	FieldEarnings        = "earnings"

	FieldRestaurant      = "restaurant"
	FieldDoordashPay     = "doordash_pay"
	FieldTip             = "tip"
	FieldTotal           = "total"
	FieldMerchantType    = "merchant_type"
	FieldDropoffLocation = "dropoff_location"
)

const (
	KindDeliveryBearing SessionKind = iota
	KindBonusOnly
)

type (
	// SessionKind tags which shape a normalized session has.
	SessionKind int

	// RawSession is a session record exactly as stored.
	RawSession map[string]any

	// Minutes is an optional duration metric.
	Minutes struct {
		Value   float64
		Present bool
	}

	Delivery struct {
		Restaurant      string
		DoordashPay     float64
		Tip             float64
		Total           float64
		MerchantType    MerchantType
		DropoffLocation string
		Extra           map[string]any
	}

	// Session is a normalized shift record. Kind decides which fields carry
	// meaning: delivery-bearing sessions use Deliveries, bonus-only sessions
	// use ChallengeBonus. HasBonus is false for bonus-only sessions that were
	// stored without a challenge_bonus and defaulted to 0.
	Session struct {
		Index           int
		ID              string
		Date            string
		Kind            SessionKind
		Deliveries      []Delivery
		DeliveriesCount int
		DashMinutes     Minutes
		ActiveMinutes   Minutes
		ChallengeBonus  float64
		HasBonus        bool
		Earnings        float64
		Extra           map[string]any
	}
)

var (
	ErrMalformedValue  = errors.New("malformed value")
	ErrMalformedRecord = errors.New("malformed record")
	ErrNotFound        = errors.New("not found")
)

func (k SessionKind) String() string {
	switch k {
	case KindBonusOnly:
		return "bonus_only"
	default:
		return "delivery_bearing"
	}
}

func (s Session) IsBonusOnly() bool {
	return s.Kind == KindBonusOnly
}

// HasTime reports whether both time metrics are present.
func (s Session) HasTime() bool {
	return s.DashMinutes.Present && s.ActiveMinutes.Present
}

// CountedDeliveries is the number of deliveries the session contributes to
// aggregates. Bonus-only sessions contribute none.
func (s Session) CountedDeliveries() int {
	if s.IsBonusOnly() {
		return 0
	}
	return len(s.Deliveries)
}

// ParseDate parses the session date. The second result is false when the date
// is missing or not a calendar date.
func (s Session) ParseDate() (time.Time, bool) {
	if s.Date == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Clone returns a deep copy of the raw record's top level and delivery list so
// callers can modify it without touching the original.
func (r RawSession) Clone() RawSession {
	out := make(RawSession, len(r))
	for k, v := range r {
		out[k] = v
	}
	if list, ok := r[FieldDeliveries].([]any); ok {
		cp := make([]any, len(list))
		for i, item := range list {
			if m, ok := item.(map[string]any); ok {
				dm := make(map[string]any, len(m))
				for k, v := range m {
					dm[k] = v
				}
				cp[i] = dm
				continue
			}
			cp[i] = item
		}
		out[FieldDeliveries] = cp
	}
	return out
}

// ID returns the record's stable identifier, if any.
func (r RawSession) ID() string {
	id, _ := r[FieldID].(string)
	return id
}

func (d Delivery) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+6)
	for k, v := range d.Extra {
		out[k] = v
	}
	out[FieldRestaurant] = d.Restaurant
	out[FieldDoordashPay] = d.DoordashPay
	out[FieldTip] = d.Tip
	out[FieldTotal] = d.Total
	out[FieldMerchantType] = d.MerchantType
	if d.DropoffLocation != "" {
		out[FieldDropoffLocation] = d.DropoffLocation
	}
	return json.Marshal(out)
}

func (s Session) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+10)
	for k, v := range s.Extra {
		out[k] = v
	}
	out["index"] = s.Index
	if s.ID != "" {
		out[FieldID] = s.ID
	}
	out[FieldDate] = s.Date
	out[FieldDeliveriesCount] = s.DeliveriesCount
	out[FieldEarnings] = s.Earnings
	if s.DashMinutes.Present {
		out[FieldDashMinutes] = s.DashMinutes.Value
	}
	if s.ActiveMinutes.Present {
		out[FieldActiveMinutes] = s.ActiveMinutes.Value
	}
	switch s.Kind {
	case KindBonusOnly:
		out[FieldChallengeBonus] = s.ChallengeBonus
	default:
		deliveries := s.Deliveries
		if deliveries == nil {
			deliveries = []Delivery{}
		}
		out[FieldDeliveries] = deliveries
	}
	return json.Marshal(out)
}
