package core

import (
	"fmt"
	"time"
)

var (
	requiredSessionFields  = []string{FieldDate, FieldDeliveriesCount}
	requiredDeliveryFields = []string{FieldRestaurant, FieldDoordashPay, FieldTip, FieldTotal}
)

// ValidateRecord checks that a raw record can be appended to the store.
// Errors wrap ErrMalformedRecord.
func ValidateRecord(r RawSession) error {
	if r == nil {
		return fmt.Errorf("%w: empty record", ErrMalformedRecord)
	}
	for _, f := range requiredSessionFields {
		if _, ok := r[f]; !ok {
			return fmt.Errorf("%w: missing required field %q", ErrMalformedRecord, f)
		}
	}

	date, ok := r[FieldDate].(string)
	if !ok {
		return fmt.Errorf("%w: %q must be a string", ErrMalformedRecord, FieldDate)
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", ErrMalformedRecord, date)
	}

	raw, present := r[FieldDeliveries]
	if !present {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("%w: %q must be a list", ErrMalformedRecord, FieldDeliveries)
	}
	for i, item := range list {
		d, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: delivery %d must be an object", ErrMalformedRecord, i)
		}
		for _, f := range requiredDeliveryFields {
			if _, ok := d[f]; !ok {
				return fmt.Errorf("%w: delivery %d missing required field %q", ErrMalformedRecord, i, f)
			}
		}
	}
	return nil
}
