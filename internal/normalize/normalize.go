// Package normalize turns raw session records into the tagged core.Session
// form that aggregation works on.
//
// Normalization never rejects a record: every malformed scalar is replaced
// with a zero default and reported to a Sink.
package normalize

import (
	"fmt"
	"strings"

	"doordashboard/internal/core"
)

// Normalizer converts raw records. The zero value reports nothing.
type Normalizer struct {
	sink Sink
}

func New(sink Sink) *Normalizer {
	if sink == nil {
		sink = Discard
	}
	return &Normalizer{sink: sink}
}

// Normalize returns one session per raw record, in input order. The input is
// not modified.
func (n *Normalizer) Normalize(raw []core.RawSession) []core.Session {
	out := make([]core.Session, len(raw))
	for i, r := range raw {
		out[i] = n.Session(i, r)
	}
	return out
}

// Session normalizes a single record found at position idx.
func (n *Normalizer) Session(idx int, r core.RawSession) core.Session {
	if r == nil {
		n.report(idx, "", ReasonNonObjectSession, "stored entry is not an object")
		return core.Session{Index: idx, Kind: core.KindBonusOnly, Extra: map[string]any{}}
	}

	s := core.Session{
		Index: idx,
		ID:    r.ID(),
		Extra: passThrough(r, sessionFields),
	}
	s.Date = n.date(idx, r)
	s.DashMinutes = n.minutes(idx, r, core.FieldDashMinutes)
	s.ActiveMinutes = n.minutes(idx, r, core.FieldActiveMinutes)

	bonus, hasBonus := r[core.FieldChallengeBonus]
	rawDeliveries, hasDeliveries := r[core.FieldDeliveries]

	switch {
	case hasBonus:
		s.Kind = core.KindBonusOnly
		s.HasBonus = true
		s.ChallengeBonus = n.number(idx, core.FieldChallengeBonus, bonus)
		s.Earnings = s.ChallengeBonus
		s.DeliveriesCount = n.count(idx, r)
		if hasDeliveries {
			n.report(idx, core.FieldDeliveries, ReasonShapeConflict, "challenge_bonus present, deliveries kept as pass-through")
			s.Extra[core.FieldDeliveries] = rawDeliveries
		}
	case !hasDeliveries:
		s.Kind = core.KindBonusOnly
		s.DeliveriesCount = n.count(idx, r)
		n.report(idx, core.FieldDeliveries, ReasonMissingDeliveries, "no deliveries and no challenge_bonus")
		if v, ok := r[core.FieldEarnings]; ok {
			s.Earnings = n.number(idx, core.FieldEarnings, v)
		}
	default:
		s.Kind = core.KindDeliveryBearing
		s.Deliveries = n.deliveries(idx, rawDeliveries)
		s.DeliveriesCount = len(s.Deliveries)
		if v, ok := r[core.FieldEarnings]; ok {
			s.Earnings = n.number(idx, core.FieldEarnings, v)
		} else {
			for _, d := range s.Deliveries {
				s.Earnings += d.Total
			}
		}
	}
	return s
}

var sessionFields = []string{
	core.FieldID, core.FieldDate, core.FieldDeliveries, core.FieldDeliveriesCount,
	core.FieldDashMinutes, core.FieldActiveMinutes, core.FieldChallengeBonus, core.FieldEarnings,
	"index",
}

var deliveryFields = []string{
	core.FieldRestaurant, core.FieldDoordashPay, core.FieldTip, core.FieldTotal,
	core.FieldMerchantType, core.FieldDropoffLocation,
}

func (n *Normalizer) deliveries(idx int, raw any) []core.Delivery {
	list, ok := raw.([]any)
	if !ok {
		if raw != nil {
			n.report(idx, core.FieldDeliveries, ReasonMalformedValue, fmt.Sprintf("expected list, got %T", raw))
		}
		return []core.Delivery{}
	}

	out := make([]core.Delivery, 0, len(list))
	for j, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			n.report(idx, fmt.Sprintf("deliveries[%d]", j), ReasonNonObjectDelivery, fmt.Sprintf("got %T", item))
			out = append(out, core.Delivery{MerchantType: core.MerchantRestaurant})
			continue
		}
		out = append(out, n.delivery(idx, j, m))
	}
	return out
}

func (n *Normalizer) delivery(idx, j int, m map[string]any) core.Delivery {
	field := func(name string) string { return fmt.Sprintf("deliveries[%d].%s", j, name) }

	d := core.Delivery{
		Restaurant:      stringValue(m[core.FieldRestaurant]),
		DoordashPay:     n.number(idx, field(core.FieldDoordashPay), m[core.FieldDoordashPay]),
		Tip:             n.number(idx, field(core.FieldTip), m[core.FieldTip]),
		Total:           n.number(idx, field(core.FieldTotal), m[core.FieldTotal]),
		DropoffLocation: strings.TrimSpace(stringValue(m[core.FieldDropoffLocation])),
		Extra:           passThrough(m, deliveryFields),
	}
	if mt := strings.TrimSpace(stringValue(m[core.FieldMerchantType])); mt != "" {
		d.MerchantType = core.MerchantType(mt)
	} else {
		d.MerchantType = core.Classify(d.Restaurant)
	}
	return d
}

func (n *Normalizer) date(idx int, r core.RawSession) string {
	v, ok := r[core.FieldDate]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		n.report(idx, core.FieldDate, ReasonMalformedValue, fmt.Sprintf("expected string, got %T", v))
		return ""
	}
	return strings.TrimSpace(s)
}

func (n *Normalizer) minutes(idx int, r core.RawSession, field string) core.Minutes {
	v, ok := r[field]
	if !ok || v == nil {
		return core.Minutes{}
	}
	return core.Minutes{Value: n.number(idx, field, v), Present: true}
}

func (n *Normalizer) count(idx int, r core.RawSession) int {
	v, ok := r[core.FieldDeliveriesCount]
	if !ok {
		return 0
	}
	return int(n.number(idx, core.FieldDeliveriesCount, v))
}

func (n *Normalizer) number(idx int, field string, v any) float64 {
	f, err := core.ParseNumeric(v)
	if err != nil {
		n.report(idx, field, ReasonMalformedValue, err.Error())
	}
	return f
}

func (n *Normalizer) report(idx int, field, reason, detail string) {
	if n == nil || n.sink == nil {
		return
	}
	n.sink.Report(Diagnostic{Index: idx, Field: field, Reason: reason, Detail: detail})
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func passThrough(m map[string]any, known []string) map[string]any {
	out := make(map[string]any)
	for k, v := range m {
		out[k] = v
	}
	for _, k := range known {
		delete(out, k)
	}
	return out
}
