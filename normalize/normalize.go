// Package normalize converts raw source items into the canonical in-memory
// record the pipeline operates on. Records are ephemeral: created per item
// and discarded after persistence.
package normalize

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
)

// Content is the textual payload of a normalized item. Field names follow
// the email shape; non-email sources fill Body and leave the rest empty.
type Content struct {
	Body    string   `json:"body"`
	Subject string   `json:"subject,omitempty"`
	From    string   `json:"from,omitempty"`
	To      []string `json:"to,omitempty"`
}

// Metadata carries provenance for a normalized item.
type Metadata struct {
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source,omitempty"` // free-form source hint, e.g. "financial-mailbox"
	Extra     map[string]any `json:"extra,omitempty"`
}

// Data is the canonical in-memory representation of one raw source item.
type Data struct {
	ID         string          `json:"id"`
	SourceType string          `json:"source_type"`
	SourceID   string          `json:"source_id"`
	Content    Content         `json:"content"`
	Metadata   Metadata        `json:"metadata"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// Text returns the content the extractor should see: subject and body
// joined when both are present.
func (d *Data) Text() string {
	if d.Content.Subject == "" {
		return d.Content.Body
	}
	if d.Content.Body == "" {
		return d.Content.Subject
	}
	return d.Content.Subject + "\n\n" + d.Content.Body
}

// Normalizer converts raw source payloads to Data records. Payloads are
// expected to be JSON objects; anything else is treated as a plain-text
// body.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a Normalizer.
func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Aliases accepted for common fields across source formats. First match
// wins.
var (
	idFields        = []string{"id", "message_id", "messageId", "uid"}
	bodyFields      = []string{"body", "content", "text", "message"}
	subjectFields   = []string{"subject", "title"}
	fromFields      = []string{"from", "sender"}
	toFields        = []string{"to", "recipients"}
	timestampFields = []string{"timestamp", "date", "sent_at", "received_at"}
	sourceFields    = []string{"source", "mailbox", "origin"}
)

// Normalize converts one raw item fetched from a source.
func (n *Normalizer) Normalize(sourceID, sourceType string, raw json.RawMessage) (*Data, error) {
	if len(raw) == 0 {
		return nil, errors.WrapInvalid(errors.ErrEmptyContent, "Normalizer", "Normalize", "empty payload")
	}

	data := &Data{
		SourceType: sourceType,
		SourceID:   sourceID,
		Raw:        raw,
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		// Not a JSON object: ingest the payload as a plain-text body.
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, errors.WrapInvalid(errors.ErrEmptyContent, "Normalizer", "Normalize", "blank payload")
		}
		data.ID = uuid.NewString()
		data.Content.Body = body
		data.Metadata.Timestamp = time.Now().UTC()
		return data, nil
	}

	data.ID = firstString(fields, idFields)
	if data.ID == "" {
		data.ID = uuid.NewString()
	}
	data.Content.Body = firstString(fields, bodyFields)
	data.Content.Subject = firstString(fields, subjectFields)
	data.Content.From = firstString(fields, fromFields)
	data.Content.To = stringList(fields, toFields)
	data.Metadata.Source = firstString(fields, sourceFields)
	data.Metadata.Timestamp = firstTimestamp(fields, timestampFields)

	// Keep fields we did not map so downstream consumers can still see them.
	known := make(map[string]struct{})
	for _, group := range [][]string{idFields, bodyFields, subjectFields, fromFields, toFields, timestampFields, sourceFields} {
		for _, f := range group {
			known[f] = struct{}{}
		}
	}
	for key, value := range fields {
		if _, mapped := known[key]; mapped {
			continue
		}
		if data.Metadata.Extra == nil {
			data.Metadata.Extra = make(map[string]any)
		}
		data.Metadata.Extra[key] = value
	}

	if data.Content.Body == "" && data.Content.Subject == "" {
		return nil, errors.WrapInvalid(errors.ErrEmptyContent, "Normalizer", "Normalize", "no body or subject")
	}

	n.logger.Debug("item normalized",
		"item_id", data.ID,
		"source_id", sourceID,
		"source_type", sourceType,
		"body_bytes", len(data.Content.Body))
	return data, nil
}

func firstString(fields map[string]any, names []string) string {
	for _, name := range names {
		if v, ok := fields[name].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func stringList(fields map[string]any, names []string) []string {
	for _, name := range names {
		switch v := fields[name].(type) {
		case string:
			if v != "" {
				return []string{v}
			}
		case []any:
			var out []string
			for _, item := range v {
				if s, ok := item.(string); ok {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

func firstTimestamp(fields map[string]any, names []string) time.Time {
	for _, name := range names {
		s, ok := fields[name].(string)
		if !ok {
			continue
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts
			}
		}
	}
	return time.Now().UTC()
}
