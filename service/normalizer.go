package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Kartekeya-Sharma/Contract-Guard/model"
)

// Normalized is the canonical clause sequence extracted from an analysis
// response.
type Normalized struct {
	Clauses []model.Clause
	// SkippedRecords counts array entries that were not objects.
	SkippedRecords int
}

// Field names the analysis service has been seen using, in lookup order.
var (
	envelopeFields    = []string{"clauses", "results"}
	textFields        = []string{"text", "clause"}
	typeFields        = []string{"type", "clause_type", "clauseType"}
	riskFields        = []string{"risk", "risk_level", "riskLevel"}
	explanationFields = []string{"explanation"}
	concernFields     = []string{"concerns", "specific_concerns"}
)

// NormalizeJSON decodes an analysis response body and normalizes it.
func NormalizeJSON(body []byte) (Normalized, error) {
	var raw any
	if err := json.Unmarshal(bytes.TrimSpace(body), &raw); err != nil {
		return Normalized{}, &NormalizationError{Detail: fmt.Sprintf("malformed JSON body: %v", err)}
	}
	return Normalize(raw)
}

// Normalize converts the decoded analysis response into clauses. raw is
// either a list of clause records or an object holding that list under a
// known field. Individual records are normalized leniently; only a response
// with no usable list is an error.
func Normalize(raw any) (Normalized, error) {
	records, err := clauseRecords(raw)
	if err != nil {
		return Normalized{}, err
	}

	result := Normalized{Clauses: make([]model.Clause, 0, len(records))}
	for _, record := range records {
		obj, ok := record.(map[string]any)
		if !ok {
			result.SkippedRecords++
			continue
		}
		result.Clauses = append(result.Clauses, normalizeClause(obj))
	}
	return result, nil
}

func clauseRecords(raw any) ([]any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	case map[string]any:
		for _, field := range envelopeFields {
			if list, ok := v[field].([]any); ok {
				return list, nil
			}
		}
		detail := "object has no clause list"
		if msg := firstString(v, "error", "message"); msg != "" {
			detail = fmt.Sprintf("%s (service said: %s)", detail, msg)
		}
		return nil, &NormalizationError{Detail: detail}
	case nil:
		return nil, &NormalizationError{Detail: "empty body"}
	default:
		return nil, &NormalizationError{Detail: fmt.Sprintf("unsupported top-level %T", raw)}
	}
}

func normalizeClause(obj map[string]any) model.Clause {
	return model.Clause{
		Text:        firstString(obj, textFields...),
		Type:        model.ParseClauseType(firstString(obj, typeFields...)),
		Risk:        model.ParseRiskLevel(firstString(obj, riskFields...)),
		Explanation: firstString(obj, explanationFields...),
		Concerns:    stringList(obj, concernFields...),
	}
}

// firstString returns the trimmed value of the first field holding a
// non-empty string.
func firstString(obj map[string]any, fields ...string) string {
	for _, field := range fields {
		if s, ok := obj[field].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// stringList returns the string elements of the first field holding a list.
// The result is never nil.
func stringList(obj map[string]any, fields ...string) []string {
	out := []string{}
	for _, field := range fields {
		list, ok := obj[field].([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	}
	return out
}
