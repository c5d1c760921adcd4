package ontology

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/kohr2/dashboard-killer-graph-sub005/extract"
	"github.com/kohr2/dashboard-killer-graph-sub005/normalize"
)

// Detector decides which loaded ontologies apply to an item's extracted
// entities and content. Detection degrades through three stages and always
// returns a non-empty set; internal failures fall back to the source-type
// table, never propagate.
type Detector struct {
	registry *Registry
	logger   *slog.Logger

	// keywords maps ontology name to content keywords. Any keyword hit in
	// the lower-cased body selects that ontology. The default table is
	// hard-coded; callers may override it per registry.
	keywords map[string][]string

	// fallback maps source type to ontology name. The "" key is the
	// default.
	fallback map[string]string
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithKeywordTable replaces the default keyword table.
func WithKeywordTable(table map[string][]string) DetectorOption {
	return func(d *Detector) {
		d.keywords = table
	}
}

// WithFallbackTable replaces the default source-type fallback table. The
// "" key holds the default ontology.
func WithFallbackTable(table map[string]string) DetectorOption {
	return func(d *Detector) {
		d.fallback = table
	}
}

// defaultKeywords is the built-in per-ontology keyword table.
func defaultKeywords() map[string][]string {
	return map[string][]string{
		"financial": {
			"investment", "portfolio", "fund", "investor", "wire transfer",
			"stock", "shares", "equity", "deal", "valuation",
		},
		"crm": {
			"meeting", "contact", "follow up", "follow-up", "client",
			"customer", "call", "appointment", "introduction",
		},
	}
}

// defaultFallback is the built-in source-type fallback table.
func defaultFallback() map[string]string {
	return map[string]string{
		"email":    "crm",
		"document": "financial",
		"api":      "financial",
		"database": "financial",
		"":         "crm",
	}
}

// NewDetector creates a Detector over a loaded registry.
func NewDetector(registry *Registry, logger *slog.Logger, opts ...DetectorOption) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{
		registry: registry,
		logger:   logger,
		keywords: defaultKeywords(),
		fallback: defaultFallback(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect returns the ontology names that apply to the item, sorted. The
// result is never empty.
func (d *Detector) Detect(entities []extract.Entity, item *normalize.Data) []string {
	detected := make(map[string]struct{})

	func() {
		// Stages 1 and 2 read schema maps and item content; a malformed
		// item must degrade to the fallback table, not take down the run.
		defer func() {
			if r := recover(); r != nil {
				d.logger.Warn("ontology detection panicked, using fallback", "panic", r)
			}
		}()

		d.detectBySchema(entities, detected)
		if len(detected) == 0 {
			d.detectByContent(item, detected)
		}
	}()

	if len(detected) == 0 {
		detected[d.fallbackFor(item)] = struct{}{}
	}

	names := make([]string, 0, len(detected))
	for name := range detected {
		names = append(names, name)
	}
	sort.Strings(names)

	d.logger.Debug("ontologies detected", "ontologies", names, "entities", len(entities))
	return names
}

// detectBySchema selects every ontology whose entity-schema map contains
// any extracted entity's type.
func (d *Detector) detectBySchema(entities []extract.Entity, detected map[string]struct{}) {
	for _, ent := range entities {
		for _, name := range d.registry.Names() {
			def, ok := d.registry.Definition(name)
			if !ok {
				continue
			}
			if _, has := def.Entities[ent.Type]; has {
				detected[name] = struct{}{}
			}
		}
	}
}

// detectByContent matches the keyword table against the lower-cased body
// and tests the source metadata hint by substring.
func (d *Detector) detectByContent(item *normalize.Data, detected map[string]struct{}) {
	if item == nil {
		return
	}

	body := strings.ToLower(item.Text())
	sourceHint := strings.ToLower(item.Metadata.Source)

	for name, words := range d.keywords {
		for _, word := range words {
			if strings.Contains(body, word) {
				detected[name] = struct{}{}
				break
			}
		}
		if sourceHint != "" && strings.Contains(sourceHint, name) {
			detected[name] = struct{}{}
		}
	}
}

func (d *Detector) fallbackFor(item *normalize.Data) string {
	sourceType := ""
	if item != nil {
		sourceType = strings.ToLower(item.SourceType)
	}
	if name, ok := d.fallback[sourceType]; ok {
		return name
	}
	return d.fallback[""]
}
