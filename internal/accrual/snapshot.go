// Package accrual turns raw purchase payloads from the platform backend into typed,
// fully-derived snapshots: progress, expected earnings, deficit and next earning time.
//
// Nothing here touches the network or the clock; every derivation takes "now" as input.
package accrual

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Interval is the payout period of a purchase.
type Interval string

const (
	IntervalHourly Interval = "hourly"
	IntervalDaily  Interval = "daily"
)

// ParseInterval maps backend spellings to an Interval. Unknown values are daily.
func ParseInterval(raw string) Interval {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "hourly", "hour", "1h", "h":
		return IntervalHourly
	default:
		return IntervalDaily
	}
}

// Duration returns the length of one period.
func (i Interval) Duration() time.Duration {
	if i == IntervalHourly {
		return time.Hour
	}
	return 24 * time.Hour
}

// Status is the lifecycle state of a purchase.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// UpToDateTolerance is the largest deficit still considered "up to date".
var UpToDateTolerance = decimal.New(1, -2)

var (
	// ErrMissingID rejects records that cannot be identified.
	ErrMissingID = errors.New("accrual: purchase id is required")
	// ErrCoerced marks records that were kept after one or more fields fell back to defaults.
	ErrCoerced = errors.New("accrual: fields coerced to defaults")
)

// Snapshot is one reward-bearing purchase with every derived field populated.
type Snapshot struct {
	ID         string `json:"id"`
	EngineID   string `json:"engine_id,omitempty"`
	EngineName string `json:"engine_name,omitempty"`

	AmountInvested decimal.Decimal `json:"amount_invested"`
	TotalEarned    decimal.Decimal `json:"total_earned"`
	PeriodEarning  decimal.Decimal `json:"period_earning"`

	StartDate       time.Time  `json:"start_date"`
	EndDate         time.Time  `json:"end_date"`
	EarningInterval Interval   `json:"earning_interval"`
	NextEarningTime *time.Time `json:"next_earning_time,omitempty"`

	PeriodsElapsed int64 `json:"periods_elapsed"`
	TotalPeriods   int64 `json:"total_periods"`

	ProgressPercentage float64         `json:"progress_percentage"`
	ExpectedEarnings   decimal.Decimal `json:"expected_earnings"`
	EarningDeficit     decimal.Decimal `json:"earning_deficit"`
	IsEarningUpToDate  bool            `json:"is_earning_up_to_date"`
	DaysRemaining      int64           `json:"days_remaining"`
	Status             Status          `json:"status"`

	// ServerCompleted records that the backend itself flagged the purchase as finished.
	ServerCompleted bool `json:"-"`
}

// Result is the outcome of reading one raw record.
type Result struct {
	Snapshot Snapshot
	Issues   []string
	Err      error
}

// OK reports whether the record produced a usable snapshot.
func (r Result) OK() bool { return r.Err == nil }

// RecordError describes a rejected or coerced record in a batch.
type RecordError struct {
	Index  int
	ID     string
	Issues []string
	Err    error
}

func (e *RecordError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("accrual: record %d", e.Index)
	if e.ID != "" {
		msg = fmt.Sprintf("accrual: record %d (id=%s)", e.Index, e.ID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if len(e.Issues) > 0 {
		msg += " [" + strings.Join(e.Issues, "; ") + "]"
	}
	return msg
}

func (e *RecordError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Read converts one raw backend record into a derived snapshot.
// Malformed amounts become zero and missing dates become now; each coercion is listed in Issues.
func Read(raw RawPurchase, now time.Time) Result {
	now = now.UTC()
	var issues []string
	note := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	id := raw.ID.String()
	if id == "" {
		return Result{Err: ErrMissingID}
	}

	s := Snapshot{
		ID:              id,
		EngineID:        raw.EngineID.String(),
		EngineName:      raw.EngineName.String(),
		EarningInterval: ParseInterval(raw.EarningInterval.String()),
	}

	s.AmountInvested = readAmount("amount_invested", raw.AmountInvested, note)
	s.TotalEarned = readAmount("total_earned", raw.TotalEarned, note)
	s.PeriodEarning = readAmount("period_earning", raw.periodEarning(s.EarningInterval), note)

	s.PeriodsElapsed = readCount("periods_elapsed", raw.PeriodsElapsed, note)
	s.TotalPeriods = readCount("total_periods", raw.TotalPeriods, note)
	if s.TotalPeriods > 0 && s.PeriodsElapsed > s.TotalPeriods {
		note("periods_elapsed %d exceeds total_periods %d", s.PeriodsElapsed, s.TotalPeriods)
		s.PeriodsElapsed = s.TotalPeriods
	}

	period := s.EarningInterval.Duration()
	switch {
	case raw.StartDate.Valid:
		s.StartDate = raw.StartDate.Value
	case raw.EndDate.Valid:
		// The server's end date stays authoritative; start is placed behind it.
		s.StartDate = inferStart(raw.EndDate.Value, s.TotalPeriods, period, now)
		note("start_date missing or invalid (%q), inferred %s from end_date", raw.StartDate.Raw, s.StartDate.Format(time.RFC3339))
	default:
		note("start_date missing or invalid (%q), using now", raw.StartDate.Raw)
		s.StartDate = now
	}
	switch {
	case raw.EndDate.Valid:
		s.EndDate = raw.EndDate.Value
	case s.TotalPeriods > 0:
		note("end_date missing or invalid (%q), inferred from total_periods", raw.EndDate.Raw)
		s.EndDate = s.StartDate.Add(time.Duration(s.TotalPeriods) * period)
	default:
		note("end_date missing or invalid (%q), using now", raw.EndDate.Raw)
		s.EndDate = now
	}
	if !s.EndDate.After(s.StartDate) && raw.StartDate.Valid && raw.EndDate.Valid {
		note("end_date %s is not after start_date %s", s.EndDate.Format(time.RFC3339), s.StartDate.Format(time.RFC3339))
		periods := s.TotalPeriods
		if periods <= 0 {
			periods = 1
		}
		s.EndDate = s.StartDate.Add(time.Duration(periods) * period)
	}

	if raw.NextEarningTime.Valid {
		next := raw.NextEarningTime.Value
		s.NextEarningTime = &next
	} else if raw.NextEarningTime.Present {
		note("next_earning_time invalid (%q), inferred from schedule", raw.NextEarningTime.Raw)
	}

	status := strings.ToLower(raw.Status.String())
	s.ServerCompleted = bool(raw.IsCompleted) || status == string(StatusCompleted)

	Derive(&s, now)
	return Result{Snapshot: s, Issues: issues}
}

// ReadAll reads a batch. Rejected records are dropped; coerced records are kept.
// Both kinds are reported as *RecordError.
func ReadAll(raws []RawPurchase, now time.Time) ([]Snapshot, []error) {
	snapshots := make([]Snapshot, 0, len(raws))
	var errs []error
	for i, raw := range raws {
		res := Read(raw, now)
		if res.Err != nil {
			errs = append(errs, &RecordError{Index: i, ID: raw.ID.String(), Err: res.Err})
			continue
		}
		if len(res.Issues) > 0 {
			errs = append(errs, &RecordError{Index: i, ID: res.Snapshot.ID, Issues: res.Issues, Err: ErrCoerced})
		}
		snapshots = append(snapshots, res.Snapshot)
	}
	return snapshots, errs
}

// Derive recomputes every derived field of s relative to now.
// Completion is sticky: a completed snapshot never reverts to active.
func Derive(s *Snapshot, now time.Time) {
	if s == nil {
		return
	}
	now = now.UTC()

	if s.PeriodsElapsed < 0 {
		s.PeriodsElapsed = 0
	}
	if s.TotalPeriods < 0 {
		s.TotalPeriods = 0
	}

	s.ProgressPercentage = progress(s.PeriodsElapsed, s.TotalPeriods)

	s.ExpectedEarnings = s.PeriodEarning.Mul(decimal.NewFromInt(s.PeriodsElapsed))
	s.EarningDeficit = s.ExpectedEarnings.Sub(s.TotalEarned)
	if s.EarningDeficit.IsNegative() {
		s.EarningDeficit = decimal.Zero
	}
	s.IsEarningUpToDate = s.EarningDeficit.LessThan(UpToDateTolerance)

	s.DaysRemaining = 0
	if now.Before(s.EndDate) {
		s.DaysRemaining = int64(s.EndDate.Sub(now) / (24 * time.Hour))
	}

	completed := s.Status == StatusCompleted ||
		s.ServerCompleted ||
		(s.TotalPeriods > 0 && s.PeriodsElapsed >= s.TotalPeriods) ||
		!now.Before(s.EndDate)
	if completed {
		s.Status = StatusCompleted
		s.NextEarningTime = nil
		return
	}

	s.Status = StatusActive
	if s.NextEarningTime == nil {
		next := s.StartDate.Add(time.Duration(s.PeriodsElapsed+1) * s.EarningInterval.Duration())
		s.NextEarningTime = &next
	}
	if s.NextEarningTime.After(s.EndDate) {
		end := s.EndDate
		s.NextEarningTime = &end
	}
}

// inferStart places a missing start date totalPeriods intervals before end, never after now or end.
func inferStart(end time.Time, totalPeriods int64, period time.Duration, now time.Time) time.Time {
	start := end
	if totalPeriods > 0 {
		start = end.Add(-time.Duration(totalPeriods) * period)
	}
	if start.After(now) {
		start = now
	}
	if start.After(end) {
		start = end
	}
	return start
}

func progress(elapsed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(elapsed) / float64(total) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func readAmount(field string, value FlexDecimal, note func(string, ...any)) decimal.Decimal {
	if !value.Present {
		return decimal.Zero
	}
	if !value.Valid {
		note("%s not a number (%q), using 0", field, value.Raw)
		return decimal.Zero
	}
	if value.Value.IsNegative() {
		note("%s negative (%s), using 0", field, value.Value.String())
		return decimal.Zero
	}
	return value.Value
}

func readCount(field string, value FlexInt, note func(string, ...any)) int64 {
	if !value.Present {
		return 0
	}
	if !value.Valid {
		note("%s not an integer (%q), using 0", field, value.Raw)
		return 0
	}
	if value.Value < 0 {
		note("%s negative (%d), using 0", field, value.Value)
		return 0
	}
	return value.Value
}
