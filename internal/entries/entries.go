// Package entries canonicalizes extracted field text into validated values.
// Each parser acts as the "is this answer well-formed" oracle for one field
// kind; anything it cannot interpret is rejected rather than guessed at.
package entries

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind is the closed set of field kinds the engine extracts.
type Kind int

const (
	KindNumber Kind = iota
	KindAmount
	KindCurrency
	KindDate
	KindDateOrTenor
	KindPayFreqMonths
	KindDayCountBasis
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindAmount:
		return "amount"
	case KindCurrency:
		return "currency"
	case KindDate:
		return "date"
	case KindDateOrTenor:
		return "date_or_tenor"
	case KindPayFreqMonths:
		return "pay_freq_months"
	case KindDayCountBasis:
		return "day_count_basis"
	default:
		return "unknown"
	}
}

// Canonical parses text as the given kind and returns its canonical string
// form.
func Canonical(kind Kind, text string) (string, error) {
	switch kind {
	case KindNumber:
		v, err := ParseNumber(text)
		if err != nil {
			return "", err
		}
		return FormatNumber(v), nil
	case KindAmount:
		amount, ccy, err := ParseAmount(text)
		if err != nil {
			return "", err
		}
		if ccy != "" {
			return FormatNumber(amount) + " " + ccy, nil
		}
		return FormatNumber(amount), nil
	case KindCurrency:
		return ParseCurrency(text)
	case KindDate:
		return ParseDate(text)
	case KindDateOrTenor:
		dt, err := ParseDateOrTenor(text)
		if err != nil {
			return "", err
		}
		if dt.Date != "" {
			return dt.Date, nil
		}
		return FormatNumber(dt.Years), nil
	case KindPayFreqMonths:
		months, err := ParsePayFreqMonths(text)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(months), nil
	case KindDayCountBasis:
		return ParseDayCountBasis(text)
	default:
		return "", fmt.Errorf("unknown field kind %d", kind)
	}
}

// multipliers maps magnitude words and suffixes to their factor.
var multipliers = map[string]float64{
	"k":        1e3,
	"thousand": 1e3,
	"m":        1e6,
	"mm":       1e6,
	"mio":      1e6,
	"million":  1e6,
	"b":        1e9,
	"bn":       1e9,
	"billion":  1e9,
}

var numberRe = regexp.MustCompile(`^([+-]?[0-9]+(?:\.[0-9]+)?)\s*([a-zA-Z]*)$`)

// ParseNumber interprets a numeric string, tolerating thousands separators,
// magnitude suffixes ("10m", "1.5 billion"), a trailing percent sign and a
// basis-point suffix ("25bp" stays 25, the unit is implied by the field).
func ParseNumber(text string) (float64, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)

	m := numberRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%q is not a number", text)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", text)
	}

	suffix := strings.ToLower(m[2])
	switch suffix {
	case "", "bp", "bps", "pct", "percent":
		return value, nil
	}
	factor, ok := multipliers[suffix]
	if !ok {
		return 0, fmt.Errorf("unknown magnitude %q in %q", suffix, text)
	}
	return value * factor, nil
}

// FormatNumber renders a float as an integer string when it has no
// fractional part, so "10" and "10.0" canonicalize identically.
func FormatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// currencyNames maps common currency spellings to ISO codes. ISO codes
// themselves pass through uppercased.
var currencyNames = map[string]string{
	"dollar":   "USD",
	"dollars":  "USD",
	"usd":      "USD",
	"us$":      "USD",
	"$":        "USD",
	"euro":     "EUR",
	"euros":    "EUR",
	"eur":      "EUR",
	"€":        "EUR",
	"sterling": "GBP",
	"pound":    "GBP",
	"pounds":   "GBP",
	"gbp":      "GBP",
	"£":        "GBP",
	"yen":      "JPY",
	"jpy":      "JPY",
	"¥":        "JPY",
	"chf":      "CHF",
	"franc":    "CHF",
	"francs":   "CHF",
}

var isoCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// ParseCurrency maps a currency mention to its ISO code.
func ParseCurrency(text string) (string, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", fmt.Errorf("empty currency")
	}
	if code, ok := currencyNames[strings.ToLower(s)]; ok {
		return code, nil
	}
	upper := strings.ToUpper(s)
	if isoCodeRe.MatchString(upper) {
		return upper, nil
	}
	return "", fmt.Errorf("%q is not a recognized currency", text)
}

// ParseAmount splits a notional like "10 million USD" or "USD 10m" into its
// numeric amount and optional currency.
func ParseAmount(text string) (float64, string, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, "", fmt.Errorf("empty amount")
	}

	words := strings.Fields(s)
	currency := ""
	rest := words
	if len(words) > 1 {
		if code, err := ParseCurrency(words[len(words)-1]); err == nil {
			currency = code
			rest = words[:len(words)-1]
		} else if code, err := ParseCurrency(words[0]); err == nil {
			currency = code
			rest = words[1:]
		}
	}

	amount, err := ParseNumber(strings.Join(rest, " "))
	if err != nil {
		return 0, "", fmt.Errorf("cannot parse amount from %q: %w", text, err)
	}
	return amount, currency, nil
}

// dateLayouts are tried in order when parsing a date mention.
var dateLayouts = []string{
	"2006-01-02",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"01/02/2006",
	"2006/01/02",
	"02-Jan-2006",
}

// ParseDate maps a date mention to ISO-8601 yyyy-mm-dd.
func ParseDate(text string) (string, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("%q is not a recognized date", text)
}

// DateOrTenor is either a calendar date or a tenor length. Exactly one of
// Date and Years/Months is set.
type DateOrTenor struct {
	Date   string  // ISO-8601 when the text was a date
	Years  float64 // tenor length in years otherwise
	Months int     // leftover months not folded into Years
}

var tenorRe = regexp.MustCompile(`(?i)^(?:([0-9]+(?:\.[0-9]+)?)\s*(?:y|yr|yrs|year|years))?\s*(?:([0-9]+)\s*(?:m|mo|mos|month|months))?$`)

var compactTenorRe = regexp.MustCompile(`(?i)^([0-9]+(?:\.[0-9]+)?)\s*(y|m)$`)

// ParseDateOrTenor interprets text as either a maturity date or a tenor such
// as "5 years", "18 months", "5y", "10y6m".
func ParseDateOrTenor(text string) (DateOrTenor, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return DateOrTenor{}, fmt.Errorf("empty date or tenor")
	}

	if date, err := ParseDate(s); err == nil {
		return DateOrTenor{Date: date}, nil
	}

	if m := compactTenorRe.FindStringSubmatch(s); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		if strings.EqualFold(m[2], "y") {
			return DateOrTenor{Years: v}, nil
		}
		return DateOrTenor{Years: v / 12, Months: int(v)}, nil
	}

	normalized := strings.ReplaceAll(s, "-", " ")
	if m := tenorRe.FindStringSubmatch(normalized); m != nil && (m[1] != "" || m[2] != "") {
		var years float64
		var months int
		if m[1] != "" {
			years, _ = strconv.ParseFloat(m[1], 64)
		}
		if m[2] != "" {
			months, _ = strconv.Atoi(m[2])
			years += float64(months) / 12
		}
		return DateOrTenor{Years: years, Months: months}, nil
	}

	return DateOrTenor{}, fmt.Errorf("%q is neither a date nor a tenor", text)
}

// payFreqNames maps frequency words to months per period.
var payFreqNames = map[string]int{
	"monthly":      1,
	"quarterly":    3,
	"semiannual":   6,
	"semi-annual":  6,
	"semiannually": 6,
	"semi":         6,
	"annual":       12,
	"annually":     12,
	"yearly":       12,
	"1m":           1,
	"3m":           3,
	"6m":           6,
	"12m":          12,
	"1y":           12,
}

// validPayFreqMonths is the closed set of supported payment frequencies.
var validPayFreqMonths = map[int]bool{1: true, 3: true, 6: true, 12: true}

// ParsePayFreqMonths maps a payment frequency mention to months per period.
// Only monthly, quarterly, semiannual and annual frequencies are valid.
func ParsePayFreqMonths(text string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return 0, fmt.Errorf("empty payment frequency")
	}
	if months, ok := payFreqNames[s]; ok {
		return months, nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		if validPayFreqMonths[v] {
			return v, nil
		}
		return 0, fmt.Errorf("%d is not a valid payment frequency in months", v)
	}
	if strings.Contains(s, "every") {
		fields := strings.Fields(s)
		for _, f := range fields {
			if v, err := strconv.Atoi(f); err == nil && validPayFreqMonths[v] {
				return v, nil
			}
		}
	}
	return 0, fmt.Errorf("%q is not a recognized payment frequency", text)
}

// dayCountAliases maps day-count mentions to their canonical form.
var dayCountAliases = map[string]string{
	"30/360":        "30/360",
	"30e/360":       "30/360",
	"bond basis":    "30/360",
	"30/365":        "30/365",
	"act/360":       "actual/360",
	"actual/360":    "actual/360",
	"money market":  "actual/360",
	"act/365":       "actual/365",
	"actual/365":    "actual/365",
	"act/365 fixed": "actual/365",
	"act/act":       "actual/actual",
	"actual/actual": "actual/actual",
}

// ParseDayCountBasis maps a day-count mention to one of the canonical bases.
func ParseDayCountBasis(text string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return "", fmt.Errorf("empty day-count basis")
	}
	if basis, ok := dayCountAliases[s]; ok {
		return basis, nil
	}
	return "", fmt.Errorf("%q is not a recognized day-count basis", text)
}

// ratesIndexAliases canonicalizes floating rate index mentions.
var ratesIndexAliases = map[string]string{
	"sofr":           "SOFR",
	"sofr 3m":        "SOFR",
	"term sofr":      "SOFR",
	"estr":           "ESTR",
	"€str":           "ESTR",
	"euribor":        "EURIBOR",
	"euribor 3m":     "EURIBOR",
	"euribor 6m":     "EURIBOR",
	"sonia":          "SONIA",
	"tonar":          "TONAR",
	"saron":          "SARON",
	"libor":          "LIBOR",
	"usd libor":      "LIBOR",
	"usd libor 3m":   "LIBOR",
	"fed funds":      "FEDFUNDS",
	"effr":           "FEDFUNDS",
	"overnight sofr": "SOFR",
}

// ParseRatesIndex maps a floating rate index mention to its canonical id.
func ParseRatesIndex(text string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return "", fmt.Errorf("empty rates index")
	}
	if id, ok := ratesIndexAliases[s]; ok {
		return id, nil
	}
	// Unrecognized indices pass through uppercased rather than fail: the
	// index universe is open-ended.
	return strings.ToUpper(strings.Join(strings.Fields(s), " ")), nil
}
