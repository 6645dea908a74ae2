package accrual

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Maturity is one upcoming payout reported by the earnings summary.
type Maturity struct {
	PurchaseID   string          `json:"purchase_id"`
	EngineName   string          `json:"engine_name"`
	NextMaturity time.Time       `json:"next_maturity"`
	NextAmount   decimal.Decimal `json:"next_amount"`
	MinutesUntil int64           `json:"minutes_until"`
}

// Summary aggregates earnings across all of a user's purchases.
type Summary struct {
	Today     decimal.Decimal `json:"today"`
	Last7Days decimal.Decimal `json:"last_7_days"`
	LastHour  decimal.Decimal `json:"last_hour"`
	Lifetime  decimal.Decimal `json:"lifetime"`
	Upcoming  []Maturity      `json:"upcoming_maturities"`
}

// EmptySummary is the degraded value shown when the summary endpoint fails.
func EmptySummary() Summary {
	return Summary{
		Today:     decimal.Zero,
		Last7Days: decimal.Zero,
		LastHour:  decimal.Zero,
		Lifetime:  decimal.Zero,
		Upcoming:  []Maturity{},
	}
}

// SortUpcoming orders maturities soonest-first, ties broken by purchase id.
func (s *Summary) SortUpcoming() {
	slices.SortStableFunc(s.Upcoming, func(a, b Maturity) int {
		if c := a.NextMaturity.Compare(b.NextMaturity); c != 0 {
			return c
		}
		return strings.Compare(a.PurchaseID, b.PurchaseID)
	})
}

type rawMaturity struct {
	PurchaseID   FlexString  `json:"purchase_id"`
	EngineName   FlexString  `json:"engine_name"`
	NextMaturity FlexTime    `json:"next_maturity"`
	NextAmount   FlexDecimal `json:"next_amount"`
	MinutesUntil FlexInt     `json:"minutes_until"`
}

type rawSummary struct {
	Today     FlexDecimal     `json:"today"`
	Last7Days FlexDecimal     `json:"last_7_days"`
	LastHour  FlexDecimal     `json:"last_hour"`
	Lifetime  FlexDecimal     `json:"lifetime"`
	Total     FlexDecimal     `json:"total"`
	Upcoming  json.RawMessage `json:"upcoming_maturities"`
}

// DecodeSummary parses the earnings summary, optionally wrapped in {"summary": …} or {"data": …}.
// Maturities without a purchase id or a parseable time are skipped.
func DecodeSummary(body []byte, now time.Time) (Summary, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return EmptySummary(), ErrEmptyPayload
	}
	var envelope struct {
		Summary json.RawMessage `json:"summary"`
		Data    json.RawMessage `json:"data"`
	}
	if errUnmarshal := json.Unmarshal(trimmed, &envelope); errUnmarshal != nil {
		return EmptySummary(), fmt.Errorf("accrual: decode summary: %w", errUnmarshal)
	}
	inner := trimmed
	if s := bytes.TrimSpace(envelope.Summary); len(s) > 0 && s[0] == '{' {
		inner = s
	} else if d := bytes.TrimSpace(envelope.Data); len(d) > 0 && d[0] == '{' {
		inner = d
	}

	var raw rawSummary
	if errUnmarshal := json.Unmarshal(inner, &raw); errUnmarshal != nil {
		return EmptySummary(), fmt.Errorf("accrual: decode summary: %w", errUnmarshal)
	}

	out := EmptySummary()
	out.Today = raw.Today.Or(decimal.Zero)
	out.Last7Days = raw.Last7Days.Or(decimal.Zero)
	out.LastHour = raw.LastHour.Or(decimal.Zero)
	out.Lifetime = raw.Lifetime.Or(raw.Total.Or(decimal.Zero))

	var items []json.RawMessage
	if len(bytes.TrimSpace(raw.Upcoming)) > 0 {
		_ = json.Unmarshal(raw.Upcoming, &items)
	}
	for _, item := range items {
		var m rawMaturity
		if errUnmarshal := json.Unmarshal(item, &m); errUnmarshal != nil {
			continue
		}
		id := m.PurchaseID.String()
		if id == "" || !m.NextMaturity.Valid {
			continue
		}
		minutes := m.MinutesUntil.Value
		if !m.MinutesUntil.Valid {
			minutes = int64(m.NextMaturity.Value.Sub(now) / time.Minute)
		}
		if minutes < 0 {
			minutes = 0
		}
		out.Upcoming = append(out.Upcoming, Maturity{
			PurchaseID:   id,
			EngineName:   m.EngineName.String(),
			NextMaturity: m.NextMaturity.Value,
			NextAmount:   m.NextAmount.Or(decimal.Zero),
			MinutesUntil: minutes,
		})
	}
	out.SortUpcoming()
	return out, nil
}

// Totals are client-side aggregates over the current snapshot list.
type Totals struct {
	Invested  decimal.Decimal `json:"invested"`
	Earned    decimal.Decimal `json:"earned"`
	Expected  decimal.Decimal `json:"expected"`
	Deficit   decimal.Decimal `json:"deficit"`
	Active    int             `json:"active"`
	Completed int             `json:"completed"`
	Behind    int             `json:"behind"`
}

// ComputeTotals sums amounts and counts purchases by status and up-to-date flag.
func ComputeTotals(snapshots []Snapshot) Totals {
	t := Totals{
		Invested: decimal.Zero,
		Earned:   decimal.Zero,
		Expected: decimal.Zero,
		Deficit:  decimal.Zero,
	}
	for _, s := range snapshots {
		t.Invested = t.Invested.Add(s.AmountInvested)
		t.Earned = t.Earned.Add(s.TotalEarned)
		t.Expected = t.Expected.Add(s.ExpectedEarnings)
		t.Deficit = t.Deficit.Add(s.EarningDeficit)
		if s.Status == StatusCompleted {
			t.Completed++
		} else {
			t.Active++
		}
		if !s.IsEarningUpToDate {
			t.Behind++
		}
	}
	return t
}
