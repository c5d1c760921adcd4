package extract

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// Entity types produced by the regex extractor.
const (
	TypeEmailAddress   = "EMAIL_ADDRESS"
	TypePhoneNumber    = "PHONE_NUMBER"
	TypeStockSymbol    = "STOCK_SYMBOL"
	TypeMonetaryAmount = "MONETARY_AMOUNT"
)

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\b(?:\+1[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}\b`)
	stockPattern = regexp.MustCompile(`\((?:NYSE|NASDAQ):\s*([A-Z]{1,5})\)`)
	moneyPattern = regexp.MustCompile(`\$[\d,]+(?:\.\d{2})?`)
)

// Words that regex captures sometimes swallow but that are never entities.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
}

const minConfidence = 0.5

// Regex extracts highly structured entities (email addresses, phone
// numbers, exchange-prefixed stock symbols, monetary amounts) from plain
// text. It is a dependency-free fallback for when no NLP service is
// reachable, and mirrors that service's post-processing: overlapping
// matches are deduplicated keeping the higher-confidence entity, and
// low-quality matches are filtered out.
type Regex struct {
	// ContextWindow is the number of characters captured around each
	// match into the entity's "context" property. Zero disables capture.
	ContextWindow int
}

// NewRegex returns a regex extractor with a 15-character context window.
func NewRegex() *Regex {
	return &Regex{ContextWindow: 15}
}

type span struct {
	entity Entity
	start  int
	end    int
}

// Extract implements Extractor.
func (x *Regex) Extract(_ context.Context, text string) (*Result, error) {
	var spans []span

	spans = append(spans, x.matchAll(text, emailPattern, TypeEmailAddress, 0.98, 0)...)
	spans = append(spans, x.matchAll(text, phonePattern, TypePhoneNumber, 0.90, 0)...)
	spans = append(spans, x.matchAll(text, stockPattern, TypeStockSymbol, 0.95, 1)...)
	spans = append(spans, x.matchAll(text, moneyPattern, TypeMonetaryAmount, 0.95, 0)...)

	spans = dedupeOverlaps(spans)

	entities := make([]Entity, 0, len(spans))
	for _, s := range spans {
		if !keep(s.entity) {
			continue
		}
		entities = append(entities, s.entity)
	}

	return &Result{Entities: entities, Relationships: []Relationship{}}, nil
}

// matchAll collects matches for one pattern. group selects a capture group
// for the entity value; 0 uses the whole match.
func (x *Regex) matchAll(text string, re *regexp.Regexp, entityType string, confidence float64, group int) []span {
	var out []span
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		valueStart, valueEnd := start, end
		if group > 0 && len(loc) > 2*group+1 && loc[2*group] >= 0 {
			valueStart, valueEnd = loc[2*group], loc[2*group+1]
		}

		ent := Entity{
			Value:      strings.TrimSpace(text[valueStart:valueEnd]),
			Type:       entityType,
			Label:      entityType,
			Confidence: confidence,
		}
		if x.ContextWindow > 0 {
			ent.Properties = map[string]any{
				"context": contextAround(text, start, end, x.ContextWindow),
			}
		}
		out = append(out, span{entity: ent, start: start, end: end})
	}
	return out
}

func contextAround(text string, start, end, window int) string {
	from := start - window
	if from < 0 {
		from = 0
	}
	to := end + window
	if to > len(text) {
		to = len(text)
	}
	return strings.TrimSpace(text[from:to])
}

// dedupeOverlaps drops position-overlapping entities, keeping the one with
// higher confidence.
func dedupeOverlaps(spans []span) []span {
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].entity.Confidence > spans[j].entity.Confidence
	})

	var kept []span
	for _, candidate := range spans {
		replaced := false
		overlapped := false
		for i, existing := range kept {
			if candidate.end <= existing.start || existing.end <= candidate.start {
				continue
			}
			if candidate.entity.Confidence > existing.entity.Confidence {
				kept[i] = candidate
				replaced = true
			}
			overlapped = true
			break
		}
		if !overlapped && !replaced {
			kept = append(kept, candidate)
		}
	}
	return kept
}

func keep(ent Entity) bool {
	if len(ent.Value) < 2 && ent.Type != TypeStockSymbol {
		return false
	}
	if _, stop := stopwords[strings.ToLower(ent.Value)]; stop {
		return false
	}
	return ent.Confidence >= minConfidence
}
