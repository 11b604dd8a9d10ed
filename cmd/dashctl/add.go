package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"doordashboard/internal/aggregate"
	"doordashboard/internal/core"
)

const timeOfDayLayout = "15:04"

// sessionEntry is what the interactive form collects. Everything is kept as
// typed text until record converts it.
type sessionEntry struct {
	Date           string
	StartTime      string
	EndTime        string
	DashMinutes    string
	ActiveMinutes  string
	ChallengeBonus string
	Deliveries     []deliveryEntry
}

type deliveryEntry struct {
	Restaurant string
	Pay        string
	Tip        string
	Dropoff    string
}

func newAddCmd(e *env) *cobra.Command {
	var fromFile string
	var bonusOnly bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a session, interactively or from a JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				rec core.RawSession
				err error
			)
			if fromFile != "" {
				rec, err = readRecordFile(fromFile)
			} else {
				var entry sessionEntry
				entry, err = promptSession(bonusOnly)
				if err == nil {
					rec, err = entry.record()
				}
			}
			if err != nil {
				return err
			}

			c, closeCore := e.core(true)
			defer closeCore()
			appended, err := c.Sessions.Append(commandContext(cmd), rec)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added session %s at index %d\n", appended.ID, appended.Index)
			return nil
		},
	}
	cmd.Flags().StringVar(&fromFile, "from", "", "read the session record from a JSON file instead of prompting")
	cmd.Flags().BoolVar(&bonusOnly, "bonus", false, "enter a challenge bonus instead of a dash")
	return cmd
}

func readRecordFile(path string) (core.RawSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec core.RawSession
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrMalformedRecord, path, err)
	}
	return rec, nil
}

func promptSession(bonusOnly bool) (sessionEntry, error) {
	entry := sessionEntry{Date: time.Now().Format(core.DateLayout)}

	if bonusOnly {
		err := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Date (YYYY-MM-DD)").Value(&entry.Date).Validate(validateDate),
			huh.NewInput().Title("Challenge bonus").Value(&entry.ChallengeBonus).Validate(validateAmount),
		)).Run()
		return entry, err
	}

	var count string
	err := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Date (YYYY-MM-DD)").Value(&entry.Date).Validate(validateDate),
		huh.NewInput().Title("Start time (HH:MM, 24h)").Value(&entry.StartTime).Validate(validateTimeOfDay),
		huh.NewInput().Title("End time (HH:MM, 24h)").Value(&entry.EndTime).Validate(validateTimeOfDay),
		huh.NewInput().Title("Active time (minutes)").Value(&entry.ActiveMinutes).Validate(validateMinutes),
		huh.NewInput().Title("Dash time (minutes)").Value(&entry.DashMinutes).Validate(validateMinutes),
		huh.NewInput().Title("Number of deliveries").Value(&count).Validate(validateCount),
	)).Run()
	if err != nil {
		return entry, err
	}

	n, _ := strconv.Atoi(strings.TrimSpace(count))
	entry.Deliveries = make([]deliveryEntry, n)
	for i := range entry.Deliveries {
		d := &entry.Deliveries[i]
		err := huh.NewForm(huh.NewGroup(
			huh.NewNote().Title(fmt.Sprintf("Delivery #%d", i+1)),
			huh.NewInput().Title("Restaurant name").Value(&d.Restaurant).Validate(required("restaurant")),
			huh.NewInput().Title("DoorDash pay").Value(&d.Pay).Validate(validateAmount),
			huh.NewInput().Title("Customer tip").Value(&d.Tip).Validate(validateAmount),
			huh.NewInput().Title("Dropoff location (optional)").Value(&d.Dropoff),
		)).Run()
		if err != nil {
			return entry, err
		}
	}
	return entry, nil
}

// record converts the entry into a store record. Delivery totals are pay
// plus tip, rounded to cents.
func (e sessionEntry) record() (core.RawSession, error) {
	if err := validateDate(e.Date); err != nil {
		return nil, err
	}
	rec := core.RawSession{core.FieldDate: strings.TrimSpace(e.Date)}

	if strings.TrimSpace(e.ChallengeBonus) != "" {
		bonus, err := core.ParseNumeric(e.ChallengeBonus)
		if err != nil {
			return nil, fmt.Errorf("challenge bonus: %w", err)
		}
		rec[core.FieldChallengeBonus] = bonus
		rec[core.FieldDeliveriesCount] = 0
		return rec, nil
	}

	for key, v := range map[string]string{"start_time": e.StartTime, "end_time": e.EndTime} {
		if v = strings.TrimSpace(v); v != "" {
			rec[key] = v
		}
	}
	for key, v := range map[string]string{core.FieldDashMinutes: e.DashMinutes, core.FieldActiveMinutes: e.ActiveMinutes} {
		if strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s: want a non-negative whole number of minutes, got %q", key, v)
		}
		rec[key] = n
	}

	deliveries := make([]any, 0, len(e.Deliveries))
	for i, d := range e.Deliveries {
		pay, err := core.ParseNumeric(d.Pay)
		if err != nil {
			return nil, fmt.Errorf("delivery %d pay: %w", i+1, err)
		}
		tip, err := core.ParseNumeric(d.Tip)
		if err != nil {
			return nil, fmt.Errorf("delivery %d tip: %w", i+1, err)
		}
		item := map[string]any{
			core.FieldRestaurant:   strings.TrimSpace(d.Restaurant),
			core.FieldDoordashPay:  pay,
			core.FieldTip:          tip,
			core.FieldTotal:        aggregate.Round2(pay + tip),
			core.FieldMerchantType: string(core.Classify(d.Restaurant)),
		}
		if dropoff := strings.TrimSpace(d.Dropoff); dropoff != "" {
			item[core.FieldDropoffLocation] = dropoff
		}
		deliveries = append(deliveries, item)
	}
	rec[core.FieldDeliveries] = deliveries
	rec[core.FieldDeliveriesCount] = len(deliveries)

	if err := core.ValidateRecord(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func validateDate(s string) error {
	if _, err := time.Parse(core.DateLayout, strings.TrimSpace(s)); err != nil {
		return errors.New("use YYYY-MM-DD")
	}
	return nil
}

func validateTimeOfDay(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := time.Parse(timeOfDayLayout, strings.TrimSpace(s)); err != nil {
		return errors.New("use HH:MM")
	}
	return nil
}

func validateMinutes(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err != nil || n < 0 {
		return errors.New("enter whole minutes")
	}
	return nil
}

func validateCount(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > 100 {
		return errors.New("enter a number between 0 and 100")
	}
	return nil
}

func validateAmount(s string) error {
	if _, err := core.ParseNumeric(s); err != nil {
		return errors.New("enter an amount like 4.50")
	}
	return nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}
