// Package extract orchestrates trade-entry extraction: for each trade it
// runs N independent trials of field-by-field annotation retrieval, then
// reconciles the trials into one output by consensus vote.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/tradentry/tradentry/internal/cache"
	"github.com/tradentry/tradentry/internal/consensus"
	"github.com/tradentry/tradentry/internal/entries"
	"github.com/tradentry/tradentry/internal/retriever"
	"github.com/tradentry/tradentry/internal/store"
	"github.com/tradentry/tradentry/pkg/models"
)

// Field descriptions sent to the annotation prompt.
const (
	maturityDescription      = "Either maturity date as a date, or tenor (length) as the number of years and/or months"
	effectiveDateDescription = "Effective date as date"
	freqMonthsDescription    = "Payment frequency"
	floatIndexDescription    = "Name of the floating interest rate index"
	floatSpreadDescription   = "Spread over the interest rate index, number only"
	fixedRateDescription     = "Fixed rate value"
	notionalDescription      = "Trade notional"
	basisDescription         = "Day-count basis"
	currencyDescription      = "Currency"
)

// Config holds extraction engine configuration.
type Config struct {
	// Solution names this extraction configuration in output records.
	Solution string
	// Trials is how many independent extraction passes to run per trade.
	Trials int
	// MaxRetries is the per-field retry count inside each trial.
	MaxRetries int
	// AgreementThreshold is the consensus cutoff across trials.
	AgreementThreshold float64
	// Template overrides the annotation prompt, optional.
	Template string
	// CacheDir is where completion side logs are written.
	CacheDir string
	// DisableCacheLog turns off completion side-log writes.
	DisableCacheLog bool
}

// Result summarizes one extraction run over a group of trades.
type Result struct {
	TradesProcessed int
	TrialsRun       int
	LlmCalls        int
	Duration        time.Duration
	Errors          []string
}

// Engine runs the extraction protocol against a record store and an LLM.
type Engine struct {
	config Config
	store  store.RecordStore
	llm    retriever.Completer
	cache  *cache.Cache
}

// New creates an extraction engine. One completion cache is shared by all
// trials so the whole run benefits from previously recorded completions.
func New(ctx context.Context, s store.RecordStore, llm retriever.Completer, config Config) (*Engine, error) {
	if config.Solution == "" {
		return nil, fmt.Errorf("solution name is required")
	}
	if config.Trials <= 0 {
		config.Trials = 1
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}
	if config.AgreementThreshold == 0 {
		config.AgreementThreshold = consensus.DefaultThreshold
	}

	c, err := cache.New(ctx, cache.Config{
		Channel:    llm.Model(),
		Dir:        config.CacheDir,
		Store:      s,
		DisableLog: config.DisableCacheLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create completion cache: %w", err)
	}

	return &Engine{
		config: config,
		store:  s,
		llm:    llm,
		cache:  c,
	}, nil
}

// CompletionLogPath returns the path of the completion side log.
func (e *Engine) CompletionLogPath() string {
	return e.cache.OutputPath()
}

// ProcessGroup extracts every input and stores per-trial and consensus
// outputs. Per-trade failures are collected, not fatal to the run.
func (e *Engine) ProcessGroup(ctx context.Context, inputs []models.TradeInput) (*Result, error) {
	start := time.Now()
	result := &Result{}

	for _, input := range inputs {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, "context cancelled")
			break
		}

		out, trialErrs := e.ProcessTrade(ctx, input)
		result.Errors = append(result.Errors, trialErrs...)
		result.TradesProcessed++
		result.TrialsRun += e.config.Trials

		if err := e.store.Put(ctx, out); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("trade %d: %v", input.TradeID, err))
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// ProcessTrade runs all trials for one trade and returns the consensus
// output. Field-level failures surface in the error list while the
// remaining fields still participate in consensus.
func (e *Engine) ProcessTrade(ctx context.Context, input models.TradeInput) (models.TradeOutput, []string) {
	var errs []string
	trialFields := make([]map[string]string, 0, e.config.Trials)

	for trial := 0; trial < e.config.Trials; trial++ {
		trialID := strconv.Itoa(trial)
		out, trialErrs := e.processTrial(ctx, input, trialID)
		errs = append(errs, trialErrs...)

		if err := e.store.Put(ctx, out); err != nil {
			errs = append(errs, fmt.Sprintf("trade %d trial %s: %v", input.TradeID, trialID, err))
		}
		trialFields = append(trialFields, out.Fields())
	}

	final := models.TradeOutput{
		Solution:   e.config.Solution,
		TradeGroup: input.TradeGroup,
		TradeID:    input.TradeID,
		EntryText:  input.EntryText,
	}
	for name, value := range consensus.Aggregate(trialFields, e.config.AgreementThreshold) {
		final.SetField(name, value)
	}
	return final, errs
}

// processTrial runs one isolated extraction pass over a trade description.
func (e *Engine) processTrial(ctx context.Context, input models.TradeInput, trialID string) (models.TradeOutput, []string) {
	out := models.TradeOutput{
		Solution:   e.config.Solution,
		TradeGroup: input.TradeGroup,
		TradeID:    input.TradeID,
		TrialID:    trialID,
		EntryText:  input.EntryText,
	}

	r, err := retriever.New(retriever.Config{
		RetrieverID: fmt.Sprintf("%s::%s::%d::%s", e.config.Solution, input.TradeGroup, input.TradeID, trialID),
		TrialID:     trialID,
		MaxRetries:  e.config.MaxRetries,
		Template:    e.config.Template,
		LLM:         e.llm,
		Cache:       e.cache,
		Store:       e.store,
	})
	if err != nil {
		return out, []string{fmt.Sprintf("trade %d trial %s: %v", input.TradeID, trialID, err)}
	}

	t := &trialRun{engine: e, retriever: r, input: input, trialID: trialID, out: &out}
	t.tradeParameters(ctx)
	t.legParameters(ctx, "Pay leg")
	t.legParameters(ctx, "Receive leg")
	return out, t.errs
}

// trialRun carries the per-trial state so field helpers stay small.
type trialRun struct {
	engine    *Engine
	retriever *retriever.Retriever
	input     models.TradeInput
	trialID   string
	out       *models.TradeOutput
	errs      []string
}

// field retrieves one optional field and canonicalizes it through its oracle.
// Empty string means the field is absent or failed; failures are accumulated.
func (t *trialRun) field(ctx context.Context, description string, kind entries.Kind) string {
	if t.retriever.CallsRemaining() <= 0 {
		t.fail(description, fmt.Errorf("call budget exhausted"))
		return ""
	}

	raw, found, err := t.retriever.Retrieve(ctx, t.input.EntryText, description, false, nil)
	if err != nil {
		t.fail(description, err)
		return ""
	}
	if !found {
		return ""
	}

	value, err := entries.Canonical(kind, raw)
	if err != nil {
		t.fail(description, fmt.Errorf("extracted %q: %w", raw, err))
		return ""
	}
	return value
}

func (t *trialRun) fail(description string, err error) {
	t.errs = append(t.errs, fmt.Sprintf("trade %d trial %s, %s: %v",
		t.input.TradeID, t.trialID, description, err))
	slog.Debug("field extraction failed",
		"trade", t.input.TradeID, "trial", t.trialID, "field", description, "error", err)
}

// tradeParameters extracts the trade-level fields shared by both legs.
func (t *trialRun) tradeParameters(ctx context.Context) {
	if raw := t.rawField(ctx, maturityDescription); raw != "" {
		if dt, err := entries.ParseDateOrTenor(raw); err != nil {
			t.fail(maturityDescription, err)
		} else if dt.Date != "" {
			t.out.MaturityDate = dt.Date
		} else {
			t.out.TenorYears = entries.FormatNumber(dt.Years)
		}
	}

	t.out.EffectiveDate = t.field(ctx, effectiveDateDescription, entries.KindDate)

	// Trade-level notional seeds both legs; a leg-specific notional found
	// later overrides it.
	amount, ccy := t.notional(ctx, notionalDescription)
	t.out.PayLegNotional = amount
	t.out.RecLegNotional = amount
	t.out.PayLegCcy = ccy
	t.out.RecLegCcy = ccy
}

// legParameters extracts the per-leg fields, qualifying each description
// with the leg name.
func (t *trialRun) legParameters(ctx context.Context, leg string) {
	suffix := " for the " + leg

	freq := t.field(ctx, freqMonthsDescription+suffix, entries.KindPayFreqMonths)
	index := ""
	if raw := t.rawField(ctx, floatIndexDescription+suffix); raw != "" {
		if id, err := entries.ParseRatesIndex(raw); err != nil {
			t.fail(floatIndexDescription+suffix, err)
		} else {
			index = id
		}
	}
	spread := t.field(ctx, floatSpreadDescription+suffix, entries.KindNumber)
	basis := t.field(ctx, basisDescription+suffix, entries.KindDayCountBasis)
	fixedRate := t.field(ctx, fixedRateDescription+suffix, entries.KindNumber)

	amount, ccy := t.notional(ctx, notionalDescription+suffix)
	if ccy == "" {
		ccy = t.field(ctx, currencyDescription+suffix, entries.KindCurrency)
	}

	set := func(dst *string, value string) {
		if value != "" {
			*dst = value
		}
	}
	switch leg {
	case "Pay leg":
		set(&t.out.PayLegFreqMonths, freq)
		set(&t.out.PayLegFloatIndex, index)
		set(&t.out.PayLegSpreadBp, spread)
		set(&t.out.PayLegBasis, basis)
		set(&t.out.PayLegFixedRate, fixedRate)
		set(&t.out.PayLegNotional, amount)
		set(&t.out.PayLegCcy, ccy)
	case "Receive leg":
		set(&t.out.RecLegFreqMonths, freq)
		set(&t.out.RecLegFloatIndex, index)
		set(&t.out.RecLegSpreadBp, spread)
		set(&t.out.RecLegBasis, basis)
		set(&t.out.RecLegFixedRate, fixedRate)
		set(&t.out.RecLegNotional, amount)
		set(&t.out.RecLegCcy, ccy)
	}
}

// rawField retrieves one optional field without canonicalization.
func (t *trialRun) rawField(ctx context.Context, description string) string {
	if t.retriever.CallsRemaining() <= 0 {
		t.fail(description, fmt.Errorf("call budget exhausted"))
		return ""
	}
	raw, found, err := t.retriever.Retrieve(ctx, t.input.EntryText, description, false, nil)
	if err != nil {
		t.fail(description, err)
		return ""
	}
	if !found {
		return ""
	}
	return raw
}

// notional retrieves and splits a notional mention into amount and currency.
func (t *trialRun) notional(ctx context.Context, description string) (string, string) {
	raw := t.rawField(ctx, description)
	if raw == "" {
		return "", ""
	}
	amount, ccy, err := entries.ParseAmount(raw)
	if err != nil {
		t.fail(description, err)
		return "", ""
	}
	return entries.FormatNumber(amount), ccy
}
