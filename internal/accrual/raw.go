package accrual

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyPayload is returned when the backend sends an empty body.
var ErrEmptyPayload = errors.New("accrual: empty payload")

// RawPurchase is a purchase record as the backend sends it, with timing fields included.
type RawPurchase struct {
	ID         FlexString `json:"id"`
	EngineID   FlexString `json:"engine_id"`
	EngineName FlexString `json:"engine_name"`

	AmountInvested FlexDecimal `json:"amount_invested"`
	TotalEarned    FlexDecimal `json:"total_earned"`
	PeriodEarning  FlexDecimal `json:"period_earning"`
	DailyEarning   FlexDecimal `json:"daily_earning"`
	HourlyEarning  FlexDecimal `json:"hourly_earning"`

	StartDate       FlexTime   `json:"start_date"`
	EndDate         FlexTime   `json:"end_date"`
	EarningInterval FlexString `json:"earning_interval"`
	NextEarningTime FlexTime   `json:"next_earning_time"`

	PeriodsElapsed FlexInt `json:"periods_elapsed"`
	TotalPeriods   FlexInt `json:"total_periods"`

	IsCompleted FlexBool   `json:"is_completed"`
	Status      FlexString `json:"status"`
}

// periodEarning prefers the generic field and falls back to the interval-specific one.
func (r RawPurchase) periodEarning(interval Interval) FlexDecimal {
	if r.PeriodEarning.Present {
		return r.PeriodEarning
	}
	if interval == IntervalHourly && r.HourlyEarning.Present {
		return r.HourlyEarning
	}
	if r.DailyEarning.Present {
		return r.DailyEarning
	}
	return r.HourlyEarning
}

// DecodePurchases accepts a bare JSON array or an envelope with a "purchases" or "data" array.
func DecodePurchases(body []byte) ([]RawPurchase, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrEmptyPayload
	}
	if trimmed[0] == '[' {
		return decodeList(trimmed)
	}

	var envelope struct {
		Purchases json.RawMessage `json:"purchases"`
		Data      json.RawMessage `json:"data"`
	}
	if errUnmarshal := json.Unmarshal(trimmed, &envelope); errUnmarshal != nil {
		return nil, fmt.Errorf("accrual: decode purchases envelope: %w", errUnmarshal)
	}
	inner := envelope.Purchases
	if len(bytes.TrimSpace(inner)) == 0 || string(bytes.TrimSpace(inner)) == "null" {
		inner = envelope.Data
	}
	inner = bytes.TrimSpace(inner)
	if len(inner) == 0 || string(inner) == "null" {
		return []RawPurchase{}, nil
	}
	if inner[0] != '[' {
		return DecodePurchases(inner)
	}
	return decodeList(inner)
}

// decodeList decodes elements one by one; an element that is not an object yields an
// empty record, which the reader rejects without affecting its neighbours.
func decodeList(data []byte) ([]RawPurchase, error) {
	var items []json.RawMessage
	if errUnmarshal := json.Unmarshal(data, &items); errUnmarshal != nil {
		return nil, fmt.Errorf("accrual: decode purchases: %w", errUnmarshal)
	}
	list := make([]RawPurchase, 0, len(items))
	for _, item := range items {
		var raw RawPurchase
		_ = json.Unmarshal(item, &raw)
		list = append(list, raw)
	}
	return list, nil
}

// DecodePurchase decodes a single purchase, optionally wrapped in {"purchase": {...}} or {"data": {...}}.
func DecodePurchase(body []byte) (RawPurchase, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return RawPurchase{}, ErrEmptyPayload
	}
	var envelope struct {
		Purchase json.RawMessage `json:"purchase"`
		Data     json.RawMessage `json:"data"`
	}
	if errUnmarshal := json.Unmarshal(trimmed, &envelope); errUnmarshal != nil {
		return RawPurchase{}, fmt.Errorf("accrual: decode purchase: %w", errUnmarshal)
	}
	inner := trimmed
	if p := bytes.TrimSpace(envelope.Purchase); len(p) > 0 && p[0] == '{' {
		inner = p
	} else if d := bytes.TrimSpace(envelope.Data); len(d) > 0 && d[0] == '{' {
		inner = d
	}
	var raw RawPurchase
	if errUnmarshal := json.Unmarshal(inner, &raw); errUnmarshal != nil {
		return RawPurchase{}, fmt.Errorf("accrual: decode purchase: %w", errUnmarshal)
	}
	return raw, nil
}
