package extract

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/avoronov/billfold/internal/domain"
)

// cleanModelJSON strips Markdown fences and surrounding junk the model may
// emit despite the strict-JSON instructions, keeping the outermost object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	// Remove trailing ``` if present.
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Extra safety: keep only from the first '{' to the last '}'.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

// parseTextResult parses the {"found": bool, "transactions": [...]} shape.
// A payload that cannot be parsed, or one missing the found marker, is a
// hard extraction failure; found=false is a clean empty result.
func parseTextResult(raw string, user domain.User, localTime time.Time) (domain.ExtractionResult, error) {
	payload, found, err := decodeEnvelope(raw)
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	if !found {
		return domain.ExtractionResult{Found: false}, nil
	}

	itemsAny, ok := payload["transactions"]
	if !ok {
		return domain.ExtractionResult{}, domain.External("extraction", "model output missing 'transactions'", nil)
	}
	items, ok := itemsAny.([]interface{})
	if !ok {
		return domain.ExtractionResult{}, domain.External("extraction", "'transactions' is not an array", nil)
	}

	candidates := make([]domain.Candidate, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue // a non-object element degrades to "skipped", not a failure
		}
		candidates = append(candidates, candidateFromRaw(obj, user, localTime))
	}
	if len(candidates) == 0 {
		return domain.ExtractionResult{Found: false}, nil
	}
	return domain.ExtractionResult{Found: true, Candidates: candidates}, nil
}

// parseImageResult parses the single-candidate {"found": bool,
// "transaction": {...}} shape used by the photo path.
func parseImageResult(raw string, user domain.User, localTime time.Time) (domain.ExtractionResult, error) {
	payload, found, err := decodeEnvelope(raw)
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	if !found {
		return domain.ExtractionResult{Found: false}, nil
	}

	obj, ok := payload["transaction"].(map[string]interface{})
	if !ok {
		return domain.ExtractionResult{}, domain.External("extraction", "model output missing 'transaction'", nil)
	}
	return domain.ExtractionResult{
		Found:      true,
		Candidates: []domain.Candidate{candidateFromRaw(obj, user, localTime)},
	}, nil
}

func decodeEnvelope(raw string) (map[string]interface{}, bool, error) {
	clean := cleanModelJSON(raw)

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &payload); err != nil {
		return nil, false, domain.External("extraction", "unparsable model output", err)
	}

	found, ok := payload["found"].(bool)
	if !ok {
		return nil, false, domain.External("extraction", "model output missing 'found'", nil)
	}
	return payload, found, nil
}

// candidateFromRaw maps one loosely-typed model object onto a Candidate.
// Each field that fails type or vocabulary validation degrades to its
// default rather than failing the candidate:
//
//	amount→0, type→expense, category→Other, timestamp→local time,
//	currency→user default, tags∩vocabulary, unknown location dropped,
//	emoji→generic.
func candidateFromRaw(obj map[string]interface{}, user domain.User, localTime time.Time) domain.Candidate {
	c := domain.Candidate{
		Amount:    floatField(obj, "amount"),
		Type:      typeField(obj),
		Timestamp: timeField(obj, "timestamp", localTime),
		Note:      stringField(obj, "note"),
		Emoji:     stringField(obj, "emoji"),
	}

	c.Category = domain.NormalizeCategory(c.Type, stringField(obj, "category"))
	c.Subcategory = domain.NormalizeSubcategory(c.Category, stringField(obj, "subcategory"))

	c.Currency = strings.ToUpper(stringField(obj, "currency"))
	if c.Currency == "" {
		c.Currency = user.DefaultCurrency
	}

	if loc := stringField(obj, "location"); loc != "" {
		c.Location = matchVocabulary(loc, user.Locations)
	}
	c.Tags = intersectVocabulary(stringsField(obj, "tags"), user.Tags)

	if c.Emoji == "" {
		c.Emoji = domain.DefaultEmoji
	}
	return c
}

func stringField(obj map[string]interface{}, key string) string {
	if v, ok := obj[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func floatField(obj map[string]interface{}, key string) float64 {
	if v, ok := obj[key].(float64); ok && v >= 0 {
		return v
	}
	return 0
}

func typeField(obj map[string]interface{}) domain.TransactionType {
	t := domain.TransactionType(stringField(obj, "type"))
	if t.Valid() {
		return t
	}
	return domain.TypeExpense
}

// timestampLayouts are tried in order; models are inconsistent about zone
// suffixes and sub-second precision.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func timeField(obj map[string]interface{}, key string, fallback time.Time) time.Time {
	s := stringField(obj, key)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return fallback
}

func stringsField(obj map[string]interface{}, key string) []string {
	items, ok := obj[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// matchVocabulary returns the canonical vocabulary entry matching value
// case-insensitively, or "" when the value is not in the vocabulary.
func matchVocabulary(value string, vocabulary []string) string {
	for _, entry := range vocabulary {
		if strings.EqualFold(strings.TrimSpace(value), entry) {
			return entry
		}
	}
	return ""
}

func intersectVocabulary(values, vocabulary []string) []string {
	var out []string
	for _, v := range values {
		if match := matchVocabulary(v, vocabulary); match != "" {
			out = append(out, match)
		}
	}
	return out
}
