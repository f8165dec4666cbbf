package models

import "fmt"

// Field names shared by TradeOutput, ExpectedResult and the consensus
// aggregator. The order is the reporting order.
const (
	FieldMaturityDate     = "maturity_date"
	FieldTenorYears       = "tenor_years"
	FieldEffectiveDate    = "effective_date"
	FieldPayLegNotional   = "pay_leg_notional"
	FieldPayLegCcy        = "pay_leg_ccy"
	FieldPayLegBasis      = "pay_leg_basis"
	FieldPayLegFreqMonths = "pay_leg_freq_months"
	FieldPayLegFloatIndex = "pay_leg_float_index"
	FieldPayLegSpreadBp   = "pay_leg_float_spread_bp"
	FieldPayLegFixedRate  = "pay_leg_fixed_rate_pct"
	FieldRecLegNotional   = "rec_leg_notional"
	FieldRecLegCcy        = "rec_leg_ccy"
	FieldRecLegBasis      = "rec_leg_basis"
	FieldRecLegFreqMonths = "rec_leg_freq_months"
	FieldRecLegFloatIndex = "rec_leg_float_index"
	FieldRecLegSpreadBp   = "rec_leg_float_spread_bp"
	FieldRecLegFixedRate  = "rec_leg_fixed_rate_pct"
)

// FieldNames lists every extracted field in reporting order.
var FieldNames = []string{
	FieldMaturityDate,
	FieldTenorYears,
	FieldEffectiveDate,
	FieldPayLegNotional,
	FieldPayLegCcy,
	FieldPayLegBasis,
	FieldPayLegFreqMonths,
	FieldPayLegFloatIndex,
	FieldPayLegSpreadBp,
	FieldPayLegFixedRate,
	FieldRecLegNotional,
	FieldRecLegCcy,
	FieldRecLegBasis,
	FieldRecLegFreqMonths,
	FieldRecLegFloatIndex,
	FieldRecLegSpreadBp,
	FieldRecLegFixedRate,
}

// TradeOutput holds the fields extracted from a single trade description by
// one solution run. TrialID is empty for the consensus output and set for
// per-trial outputs.
type TradeOutput struct {
	Solution   string `json:"solution"`
	TradeGroup string `json:"trade_group"`
	TradeID    int    `json:"trade_id"`
	TrialID    string `json:"trial_id,omitempty"`
	EntryText  string `json:"entry_text"`

	MaturityDate     string `json:"maturity_date,omitempty"`
	TenorYears       string `json:"tenor_years,omitempty"`
	EffectiveDate    string `json:"effective_date,omitempty"`
	PayLegNotional   string `json:"pay_leg_notional,omitempty"`
	PayLegCcy        string `json:"pay_leg_ccy,omitempty"`
	PayLegBasis      string `json:"pay_leg_basis,omitempty"`
	PayLegFreqMonths string `json:"pay_leg_freq_months,omitempty"`
	PayLegFloatIndex string `json:"pay_leg_float_index,omitempty"`
	PayLegSpreadBp   string `json:"pay_leg_float_spread_bp,omitempty"`
	PayLegFixedRate  string `json:"pay_leg_fixed_rate_pct,omitempty"`
	RecLegNotional   string `json:"rec_leg_notional,omitempty"`
	RecLegCcy        string `json:"rec_leg_ccy,omitempty"`
	RecLegBasis      string `json:"rec_leg_basis,omitempty"`
	RecLegFreqMonths string `json:"rec_leg_freq_months,omitempty"`
	RecLegFloatIndex string `json:"rec_leg_float_index,omitempty"`
	RecLegSpreadBp   string `json:"rec_leg_float_spread_bp,omitempty"`
	RecLegFixedRate  string `json:"rec_leg_fixed_rate_pct,omitempty"`

	ScorePct float64 `json:"score_pct,omitempty"`
}

// Key returns the store identifier for the output.
func (o TradeOutput) Key() string {
	if o.TrialID != "" {
		return fmt.Sprintf("output:%s:%s:%d:%s", o.Solution, o.TradeGroup, o.TradeID, o.TrialID)
	}
	return fmt.Sprintf("output:%s:%s:%d", o.Solution, o.TradeGroup, o.TradeID)
}

// Fields returns the populated extraction fields as a map, one entry per
// non-empty field. The consensus aggregator votes over these maps.
func (o TradeOutput) Fields() map[string]string {
	all := map[string]string{
		FieldMaturityDate:     o.MaturityDate,
		FieldTenorYears:       o.TenorYears,
		FieldEffectiveDate:    o.EffectiveDate,
		FieldPayLegNotional:   o.PayLegNotional,
		FieldPayLegCcy:        o.PayLegCcy,
		FieldPayLegBasis:      o.PayLegBasis,
		FieldPayLegFreqMonths: o.PayLegFreqMonths,
		FieldPayLegFloatIndex: o.PayLegFloatIndex,
		FieldPayLegSpreadBp:   o.PayLegSpreadBp,
		FieldPayLegFixedRate:  o.PayLegFixedRate,
		FieldRecLegNotional:   o.RecLegNotional,
		FieldRecLegCcy:        o.RecLegCcy,
		FieldRecLegBasis:      o.RecLegBasis,
		FieldRecLegFreqMonths: o.RecLegFreqMonths,
		FieldRecLegFloatIndex: o.RecLegFloatIndex,
		FieldRecLegSpreadBp:   o.RecLegSpreadBp,
		FieldRecLegFixedRate:  o.RecLegFixedRate,
	}
	fields := make(map[string]string, len(all))
	for name, value := range all {
		if value != "" {
			fields[name] = value
		}
	}
	return fields
}

// SetField assigns a value to the named extraction field. Unknown names are
// ignored so the aggregator can pass through fields this version does not
// model.
func (o *TradeOutput) SetField(name, value string) {
	switch name {
	case FieldMaturityDate:
		o.MaturityDate = value
	case FieldTenorYears:
		o.TenorYears = value
	case FieldEffectiveDate:
		o.EffectiveDate = value
	case FieldPayLegNotional:
		o.PayLegNotional = value
	case FieldPayLegCcy:
		o.PayLegCcy = value
	case FieldPayLegBasis:
		o.PayLegBasis = value
	case FieldPayLegFreqMonths:
		o.PayLegFreqMonths = value
	case FieldPayLegFloatIndex:
		o.PayLegFloatIndex = value
	case FieldPayLegSpreadBp:
		o.PayLegSpreadBp = value
	case FieldPayLegFixedRate:
		o.PayLegFixedRate = value
	case FieldRecLegNotional:
		o.RecLegNotional = value
	case FieldRecLegCcy:
		o.RecLegCcy = value
	case FieldRecLegBasis:
		o.RecLegBasis = value
	case FieldRecLegFreqMonths:
		o.RecLegFreqMonths = value
	case FieldRecLegFloatIndex:
		o.RecLegFloatIndex = value
	case FieldRecLegSpreadBp:
		o.RecLegSpreadBp = value
	case FieldRecLegFixedRate:
		o.RecLegFixedRate = value
	}
}

// ExpectedResult holds the reference answer for one trade, used by the
// scoring harness. Fields use the same names as TradeOutput.Fields.
type ExpectedResult struct {
	TradeGroup string            `json:"trade_group"`
	TradeID    int               `json:"trade_id"`
	Fields     map[string]string `json:"fields"`
}

// Key returns the store identifier for the expected result.
func (e ExpectedResult) Key() string {
	return fmt.Sprintf("expected:%s:%d", e.TradeGroup, e.TradeID)
}

// FieldScore is the per-field breakdown within a ScoreSummary.
type FieldScore struct {
	Matched int `json:"matched"`
	Total   int `json:"total"`
}

// ScoreSummary aggregates scoring results for one solution over a trade
// group.
type ScoreSummary struct {
	Solution     string                `json:"solution"`
	TradeGroup   string                `json:"trade_group"`
	TradesScored int                   `json:"trades_scored"`
	Matched      int                   `json:"matched"`
	Total        int                   `json:"total"`
	ScorePct     float64               `json:"score_pct"`
	PerField     map[string]FieldScore `json:"per_field"`
}

// Key returns the store identifier for the summary.
func (s ScoreSummary) Key() string {
	return fmt.Sprintf("score:%s:%s", s.Solution, s.TradeGroup)
}
