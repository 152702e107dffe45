package observability

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// redacted replaces an email address found in exported span text.
const redacted = "<redacted>"

// exportedPrefixes are the attribute namespaces code996 spans use. Anything
// else is dropped before export.
var exportedPrefixes = []string{
	"analysis.",
	"window.",
	"ranking.",
	"mcp.",
	"http.",
	"error.",
	"exception.",
}

// personalKeys never leave the process, whatever their namespace.
var personalKeys = []string{
	"author.",
	"user.",
	"email",
	"name",
}

var emailPattern = regexp.MustCompile(`[^\s<>()"',;:]+@[^\s<>()"',;:]+`)

// redactingProcessor keeps author identities out of exported spans. It drops
// attributes outside the code996 namespaces or naming a person, and masks
// email addresses in the status, in event attributes and in attribute values.
type redactingProcessor struct {
	next   sdktrace.SpanProcessor
	logger *slog.Logger
}

// NewRedactingProcessor wraps next. When logger is set every dropped key is
// logged as a warning.
func NewRedactingProcessor(next sdktrace.SpanProcessor, logger *slog.Logger) sdktrace.SpanProcessor {
	return &redactingProcessor{next: next, logger: logger}
}

func (p *redactingProcessor) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	p.next.OnStart(parent, s)
}

func (p *redactingProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	p.next.OnEnd(&redactedSpan{ReadOnlySpan: s, processor: p})
}

func (p *redactingProcessor) Shutdown(ctx context.Context) error {
	err := p.next.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("redacting processor shutdown: %w", err)
	}

	return nil
}

func (p *redactingProcessor) ForceFlush(ctx context.Context) error {
	err := p.next.ForceFlush(ctx)
	if err != nil {
		return fmt.Errorf("redacting processor flush: %w", err)
	}

	return nil
}

func (p *redactingProcessor) exported(key string) bool {
	lower := strings.ToLower(key)

	for _, personal := range personalKeys {
		if strings.HasPrefix(lower, personal) || strings.HasSuffix(lower, "."+personal) {
			return false
		}
	}

	for _, prefix := range exportedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}

	return lower == "error"
}

func (p *redactingProcessor) drop(key string) {
	if p.logger != nil {
		p.logger.Warn("span attribute dropped before export", "key", key)
	}
}

// maskValue masks email addresses inside string and string-slice values.
func maskValue(kv attribute.KeyValue) attribute.KeyValue {
	switch kv.Value.Type() {
	case attribute.STRING:
		return attribute.String(string(kv.Key), maskEmails(kv.Value.AsString()))
	case attribute.STRINGSLICE:
		values := kv.Value.AsStringSlice()
		for i, v := range values {
			values[i] = maskEmails(v)
		}

		return attribute.StringSlice(string(kv.Key), values)
	default:
		return kv
	}
}

func maskEmails(s string) string {
	if !strings.Contains(s, "@") {
		return s
	}

	return emailPattern.ReplaceAllString(s, redacted)
}

// redactedSpan is the view of a finished span handed to the exporter.
type redactedSpan struct {
	sdktrace.ReadOnlySpan

	processor *redactingProcessor
}

func (s *redactedSpan) Attributes() []attribute.KeyValue {
	orig := s.ReadOnlySpan.Attributes()
	kept := make([]attribute.KeyValue, 0, len(orig))

	for _, kv := range orig {
		if !s.processor.exported(string(kv.Key)) {
			s.processor.drop(string(kv.Key))

			continue
		}

		kept = append(kept, maskValue(kv))
	}

	return kept
}

func (s *redactedSpan) Status() sdktrace.Status {
	status := s.ReadOnlySpan.Status()
	status.Description = maskEmails(status.Description)

	return status
}

// Events masks addresses in event attributes; RecordError stores the error
// text there.
func (s *redactedSpan) Events() []sdktrace.Event {
	orig := s.ReadOnlySpan.Events()
	events := make([]sdktrace.Event, len(orig))

	for i, event := range orig {
		attrs := make([]attribute.KeyValue, len(event.Attributes))
		for j, kv := range event.Attributes {
			attrs[j] = maskValue(kv)
		}

		event.Attributes = attrs
		events[i] = event
	}

	return events
}
