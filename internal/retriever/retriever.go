// Package retriever implements delimiter-annotation field extraction: the LLM
// is asked to surround the requested field with curly braces in the original
// text, and the response is accepted only if removing the braces reproduces
// the input byte for byte.
package retriever

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/tradentry/tradentry/internal/cache"
	"github.com/tradentry/tradentry/internal/digest"
	"github.com/tradentry/tradentry/internal/store"
	"github.com/tradentry/tradentry/pkg/models"
)

// MaxCalls is the per-retriever call budget. The budget is enforced by the
// caller through CallsRemaining, not by Retrieve itself.
const MaxCalls = 50

// DefaultTemplate instructs the model to annotate the requested field with
// curly braces and reply in strict JSON.
const DefaultTemplate = `You will be provided with an input text and a description of a parameter.
Your goal is to surround each piece of information about this parameter you find in the input text by curly braces.
Use multiple non-nested pairs of opening and closing curly braces if you find more than one piece of information.

You must reply with JSON formatted strictly according to the JSON specification in which all values are strings.
The JSON must have the following keys:

{
    "success": <Y if at least one piece of information was found and N otherwise. This parameter is required.>
    "annotated_text": "<The input text where each piece of information about this parameter is surrounded by curly braces. There should be no changes other than adding curly braces, even to whitespace. Leave this field empty in case of failure. Do not add additional quotation marks.>,"
    "justification": "<Justification for your annotations in case of success or the reason why you were not able to find the parameter in case of failure.>"
}
Input text: ` + "```{InputText}```" + `
Parameter description: ` + "```{ParamDescription}```" + `
`

var bracesRe = regexp.MustCompile(`\{(.*?)\}`)

// Completer is the LLM boundary consumed by the retriever.
type Completer interface {
	// Complete sends a prompt and returns the raw completion text.
	Complete(ctx context.Context, prompt string) (string, error)
	// Model reports the llm id used for cache keys.
	Model() string
}

// Config holds retriever configuration.
type Config struct {
	// RetrieverID identifies this retriever in persisted retrieval records.
	RetrieverID string
	// TrialID is the outer trial context; retry indices are appended to it
	// for cache-key isolation when MaxRetries > 1.
	TrialID string
	// MaxRetries is how many isolated attempts to run per field, default 1.
	MaxRetries int
	// Template is the annotation prompt, default DefaultTemplate.
	Template string

	LLM   Completer
	Cache *cache.Cache
	Store store.RecordStore
}

// Retriever extracts fields from free text via brace annotation. It is a
// stateful orchestrator reused across many field extractions within one
// trial; it is not safe for concurrent use, each trial gets its own instance.
type Retriever struct {
	config    Config
	callCount int
}

// New creates a retriever. The LLM, cache and store are required.
func New(config Config) (*Retriever, error) {
	if config.LLM == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if config.Cache == nil {
		return nil, fmt.Errorf("completion cache is required")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}
	if config.Template == "" {
		config.Template = DefaultTemplate
	}
	return &Retriever{config: config}, nil
}

// CallCount reports how many times Retrieve has been called.
func (r *Retriever) CallCount() int {
	return r.callCount
}

// CallsRemaining reports the remaining call budget for budget-aware callers.
func (r *Retriever) CallsRemaining() int {
	return MaxCalls - r.callCount
}

// Retrieve extracts the described field from the input text. It returns the
// extracted value and true on success, and ("", false, nil) when the field is
// optional and genuinely absent. Every other outcome, after all retries are
// exhausted, is an error carrying the input, the field description and the
// last attempt's failure detail.
func (r *Retriever) Retrieve(ctx context.Context, inputText, fieldDescription string, required bool, samples []string) (string, bool, error) {
	// Budget accounting is per Retrieve call, not per underlying LLM call.
	r.callCount++

	inputText = strings.TrimSpace(inputText)
	prompt := RenderPrompt(r.config.Template, inputText, fieldDescription, samples)

	var lastErr error
	for retry := 0; retry < r.config.MaxRetries; retry++ {
		isLast := retry == r.config.MaxRetries-1
		trialID := r.attemptTrialID(retry)

		value, found, err := r.attempt(ctx, prompt, inputText, fieldDescription, required, samples, trialID, isLast)
		switch {
		case err == nil && found:
			return value, true, nil
		case err == nil:
			// Optional field reported absent, do not retry.
			return "", false, nil
		case isLast:
			return "", false, fmt.Errorf(
				"unable to extract parameter from the input text after %d retries\n"+
					"input text: %s\nparameter description: %s\nlast attempt error: %w",
				r.config.MaxRetries, inputText, fieldDescription, err)
		default:
			lastErr = err
		}
	}

	// Every attempt continued without producing a value (a required field
	// answered "N" on every retry lands here).
	return "", false, fmt.Errorf(
		"unable to extract parameter from the input text\n"+
			"input text: %s\nparameter description: %s\nlast attempt error: %w",
		inputText, fieldDescription, errOrNotFound(lastErr))
}

var errNotFound = fmt.Errorf("parameter not found in any attempt")

func errOrNotFound(err error) error {
	if err == nil {
		return errNotFound
	}
	return err
}

// attemptTrialID appends the retry index to the outer trial id so attempt i
// never reuses attempt i-1's cached answer even though the query is
// identical.
func (r *Retriever) attemptTrialID(retry int) string {
	if r.config.MaxRetries <= 1 {
		return r.config.TrialID
	}
	if r.config.TrialID == "" {
		return strconv.Itoa(retry)
	}
	return r.config.TrialID + "-" + strconv.Itoa(retry)
}

// llmResponse is the JSON shape the annotation prompt demands.
type llmResponse struct {
	Success       string `json:"success"`
	AnnotatedText string `json:"annotated_text"`
	Justification string `json:"justification"`
}

// attempt runs one isolated trial. A nil error with found=false means the
// field is optional and absent; any error means the attempt failed and the
// caller decides whether to retry.
func (r *Retriever) attempt(ctx context.Context, prompt, inputText, fieldDescription string, required bool, samples []string, trialID string, isLast bool) (string, bool, error) {
	rec := models.RetrievalRecord{
		RetrieverID:      r.config.RetrieverID,
		TrialID:          trialID,
		InputText:        inputText,
		FieldDescription: fieldDescription,
		FieldSamples:     samples,
		IsRequired:       required,
	}
	recID, err := digest.Digest(inputText, []string{r.config.RetrieverID, trialID}, []string{fieldDescription})
	if err != nil {
		return "", false, fmt.Errorf("failed to key retrieval record: %w", err)
	}
	rec.RetrievalID = recID
	r.save(ctx, rec)

	completion, err := r.complete(ctx, prompt, trialID)
	if err != nil {
		return "", false, err
	}
	completion = stripSymmetricWrapper(completion)

	parsed, err := extractJSON(completion)
	if err != nil {
		rec.Success = "N"
		rec.Justification = fmt.Sprintf("could not extract JSON from the LLM response, raw response:\n%s", completion)
		r.save(ctx, rec)
		return "", false, fmt.Errorf("%s", rec.Justification)
	}
	rec.Success = parsed.Success
	rec.AnnotatedText = parsed.AnnotatedText
	rec.Justification = parsed.Justification
	r.save(ctx, rec)

	success, err := parseFlag(parsed.Success)
	if err != nil {
		return "", false, err
	}
	if !success {
		if required {
			return "", false, fmt.Errorf("required parameter not found: %s", parsed.Justification)
		}
		return "", false, nil
	}

	if parsed.AnnotatedText == "" {
		// Success reported with an empty payload is an inconsistent
		// response, distinct from "not found".
		return "", false, fmt.Errorf(
			"extraction success reported but the annotated text is empty, input text:\n%s", inputText)
	}

	if Deannotate(parsed.AnnotatedText) != inputText {
		if !isLast {
			return "", false, fmt.Errorf(
				"annotated text has changes other than curly braces\ninput text: ```%s```\nannotated text: ```%s```",
				inputText, parsed.AnnotatedText)
		}
		// On the final retry the mismatch is tolerated rather than
		// raised; the annotated text is already persisted above so the
		// divergence stays observable.
		slog.Warn("annotated text has changes other than curly braces on final retry",
			"retriever", r.config.RetrieverID, "field", fieldDescription)
	}

	matches := bracesRe.FindAllStringSubmatch(parsed.AnnotatedText, -1)
	spans := make([]string, 0, len(matches))
	for _, m := range matches {
		if strings.ContainsAny(m[1], "{}") {
			return "", false, fmt.Errorf(
				"nested curly braces are present in annotated text: ```%s```", parsed.AnnotatedText)
		}
		spans = append(spans, m[1])
	}
	if len(spans) == 0 {
		return "", false, fmt.Errorf(
			"no curly braces are present in annotated text: ```%s```", parsed.AnnotatedText)
	}

	rec.OutputText = strings.Join(spans, " ")
	r.save(ctx, rec)
	return rec.OutputText, true, nil
}

// complete resolves the prompt through the cache, calling the LLM only on a
// miss.
func (r *Retriever) complete(ctx context.Context, prompt, trialID string) (string, error) {
	cached, found, err := r.config.Cache.Get(ctx, prompt, trialID)
	if err != nil {
		return "", err
	}
	if found {
		return cached, nil
	}

	completion, err := r.config.LLM.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("llm call failed: %w", err)
	}
	if err := r.config.Cache.Put(ctx, models.NewRequestID(), prompt, completion, trialID); err != nil {
		return "", err
	}
	return completion, nil
}

// save persists a retrieval checkpoint. Store failures are logged rather than
// failing the attempt: the record trail is diagnostics, not the result.
func (r *Retriever) save(ctx context.Context, rec models.RetrievalRecord) {
	if err := r.config.Store.Put(ctx, rec); err != nil {
		slog.Warn("failed to persist retrieval record", "key", rec.Key(), "error", err)
	}
}

// RenderPrompt fills the annotation template with the input text, the field
// description and, when present, known sample values.
func RenderPrompt(template, inputText, fieldDescription string, samples []string) string {
	prompt := strings.NewReplacer(
		"{InputText}", inputText,
		"{ParamDescription}", fieldDescription,
	).Replace(template)
	if len(samples) > 0 {
		prompt += "Known sample values: ```" + strings.Join(samples, ", ") + "```\n"
	}
	return prompt
}

// Deannotate removes curly braces and backtick wrapping. For a valid
// annotation this reproduces the original input text exactly.
func Deannotate(text string) string {
	result := strings.ReplaceAll(text, "`", "")
	result = strings.TrimSpace(result)
	result = strings.ReplaceAll(result, "{", "")
	result = strings.ReplaceAll(result, "}", "")
	return strings.TrimSpace(result)
}

// stripSymmetricWrapper removes an outer wrapper of three repeated characters
// (commonly a bare code fence) when the same character is repeated at both
// ends.
func stripSymmetricWrapper(s string) string {
	if len(s) < 6 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if first != last {
		return s
	}
	if s[1] != first || s[2] != first {
		return s
	}
	if s[len(s)-2] != last || s[len(s)-3] != last {
		return s
	}
	return s[3 : len(s)-3]
}

// extractJSON pulls the response object out of a completion that may carry a
// fenced code block or surrounding prose.
func extractJSON(completion string) (llmResponse, error) {
	var parsed llmResponse
	start := strings.Index(completion, "{")
	end := strings.LastIndex(completion, "}")
	if start < 0 || end <= start {
		return parsed, fmt.Errorf("no JSON object in completion")
	}
	if err := json.Unmarshal([]byte(completion[start:end+1]), &parsed); err != nil {
		return parsed, fmt.Errorf("malformed JSON in completion: %w", err)
	}
	return parsed, nil
}

// parseFlag interprets the Y/N success flag.
func parseFlag(value string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "Y":
		return true, nil
	case "N", "":
		return false, nil
	default:
		return false, fmt.Errorf("field 'success' must be Y or N, got %q", value)
	}
}
