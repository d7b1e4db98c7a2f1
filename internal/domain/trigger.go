package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidFrequency = errors.New("invalid ping frequency")
	ErrInvalidTimezone  = errors.New("invalid timezone")
)

// TestingFrequency is the designated sub-hour frequency. It schedules a fire
// every minute and intentionally bypasses the do-not-disturb window.
// (An earlier revision advertised "every 2 minutes" while actually firing every
// minute; the per-minute trigger is the contract here and all copy matches it.)
const TestingFrequency = 0.03

// Frequencies is the enumerated set of accepted ping frequencies, in hours.
var Frequencies = []float64{TestingFrequency, 1, 2, 3, 4, 6, 8, 12, 24}

// Do-not-disturb policy: no ping fires between 00:00 and 05:59 local time.
const (
	activeFromHour = 6
	activeToHour   = 23
)

// TriggerSpec is a planned recurring trigger: a minute field, an hour field and
// the resolved location. It is the only scheduling vocabulary the rest of the
// system speaks; rendering to a cron line happens in CronSpec.
type TriggerSpec struct {
	Minute   string
	Hour     string
	Location *time.Location

	hours []int // nil means every hour
}

// CronSpec renders the trigger as a standard 5-field cron line with a CRON_TZ
// prefix, suitable for robfig/cron's standard parser.
func (t TriggerSpec) CronSpec() string {
	return fmt.Sprintf("CRON_TZ=%s %s %s * * *", t.Location.String(), t.Minute, t.Hour)
}

// FireHours returns the local hours at which the trigger fires, ascending.
// For a per-minute trigger it returns all 24 hours.
func (t TriggerSpec) FireHours() []int {
	if t.hours != nil {
		return t.hours
	}
	all := make([]int, 24)
	for i := range all {
		all[i] = i
	}
	return all
}

// ValidFrequency reports whether hours is one of the enumerated frequencies.
func ValidFrequency(hours float64) bool {
	for _, f := range Frequencies {
		if hours == f {
			return true
		}
	}
	return false
}

// ParseFrequency parses a user-supplied frequency argument and validates it
// against the enumerated set.
func ParseFrequency(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
	if !ValidFrequency(f) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFrequency, f)
	}
	return f, nil
}

// FormatFrequency renders a frequency for user-facing copy.
func FormatFrequency(hours float64) string {
	if hours < 1 {
		return "every minute (testing)"
	}
	if hours == 24 {
		return "once daily at 06:00"
	}
	return fmt.Sprintf("every %dh (06:00–23:00)", int(hours))
}

// Plan maps a validated frequency and an IANA timezone to a recurring trigger:
//
//   - hours < 1: fire every minute of every hour, DND window ignored (testing).
//   - hours == 24: fire once daily at 06:00 local, the start of the active window.
//   - hours in {1,2,3,4,6,8,12}: fire at minute 0 of every hours-th hour from
//     06:00 through 23:00 local. The step pattern never reaches the DND window.
//
// Callers validate the frequency up front; Plan still rejects anything outside
// the enumerated set.
func Plan(frequencyHours float64, timeZone string) (TriggerSpec, error) {
	if !ValidFrequency(frequencyHours) {
		return TriggerSpec{}, fmt.Errorf("%w: %v", ErrInvalidFrequency, frequencyHours)
	}
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return TriggerSpec{}, fmt.Errorf("%w: %q: %v", ErrInvalidTimezone, timeZone, err)
	}

	switch {
	case frequencyHours < 1:
		return TriggerSpec{Minute: "*", Hour: "*", Location: loc}, nil
	case frequencyHours == 24:
		return TriggerSpec{Minute: "0", Hour: "6", Location: loc, hours: []int{activeFromHour}}, nil
	default:
		step := int(frequencyHours)
		var hours []int
		for h := activeFromHour; h <= activeToHour; h += step {
			hours = append(hours, h)
		}
		return TriggerSpec{
			Minute:   "0",
			Hour:     fmt.Sprintf("%d-%d/%d", activeFromHour, activeToHour, step),
			Location: loc,
			hours:    hours,
		}, nil
	}
}

// ValidateTZ checks that tz is a valid IANA location and returns its
// canonical name.
func ValidateTZ(tz string) (string, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(tz))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	return loc.String(), nil
}
