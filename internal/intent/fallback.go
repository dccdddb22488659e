package intent

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrWong99/voicenav/internal/normalize"
	"github.com/MrWong99/voicenav/internal/observe"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DefaultThreshold is the minimum confidence at which a primary result
	// is accepted without consulting the pattern classifier.
	DefaultThreshold = 0.6

	// errorPenalty scales the pattern confidence when the primary failed.
	errorPenalty = 0.8
)

// FallbackOption configures a [Fallback].
type FallbackOption func(*Fallback)

// WithMemory enables session history and pronoun resolution.
func WithMemory(m Memory) FallbackOption {
	return func(f *Fallback) { f.memory = m }
}

// WithThreshold sets the acceptance threshold. Values outside (0, 1] are
// ignored.
func WithThreshold(t float64) FallbackOption {
	return func(f *Fallback) { f.SetThreshold(t) }
}

// WithDirectNavigation answers page-navigation commands from the alias table
// without calling the primary classifier.
func WithDirectNavigation(on bool) FallbackOption {
	return func(f *Fallback) { f.directNav = on }
}

// WithMetrics records fallbacks and classification latency on m.
func WithMetrics(m *observe.Metrics) FallbackOption {
	return func(f *Fallback) { f.metrics = m }
}

// Fallback tries the primary classifier and falls back to the pattern
// classifier when the primary fails or answers below the threshold. It never
// fails: every transcript yields a well-formed [Result].
type Fallback struct {
	primary   Classifier
	pattern   *PatternClassifier
	memory    Memory
	directNav bool
	metrics   *observe.Metrics
	threshold atomic.Uint64
}

var _ Classifier = (*Fallback)(nil)

// NewFallback composes primary and pattern. primary may be nil, in which
// case every command goes to pattern. A nil pattern gets the defaults.
func NewFallback(primary Classifier, pattern *PatternClassifier, opts ...FallbackOption) *Fallback {
	if pattern == nil {
		pattern = NewPatternClassifier()
	}
	f := &Fallback{primary: primary, pattern: pattern}
	f.threshold.Store(math.Float64bits(DefaultThreshold))
	for _, o := range opts {
		o(f)
	}
	return f
}

// SetThreshold changes the acceptance threshold at runtime. Values outside
// (0, 1] are ignored.
func (f *Fallback) SetThreshold(t float64) {
	if t <= 0 || t > 1 || math.IsNaN(t) {
		return
	}
	f.threshold.Store(math.Float64bits(t))
}

// Threshold returns the current acceptance threshold.
func (f *Fallback) Threshold() float64 {
	return math.Float64frombits(f.threshold.Load())
}

// Pattern returns the pattern classifier.
func (f *Fallback) Pattern() *PatternClassifier {
	return f.pattern
}

// Classify implements [Classifier]. It never returns an error. Results other
// than unknown are recorded in session memory.
func (f *Fallback) Classify(ctx context.Context, req Request) (Result, error) {
	res, transcript := f.Decide(ctx, req)
	if f.memory != nil && res.Action.Kind != KindUnknown {
		f.memory.Record(req.SessionID, transcript, res.Action)
	}
	return res, nil
}

// Decide classifies req without touching session memory. It returns the
// result and the transcript it was decided on, which differs from
// req.Transcript when a pronoun was resolved.
func (f *Fallback) Decide(ctx context.Context, req Request) (Result, string) {
	ctx, span := observe.StartSpan(ctx, "intent.classify")
	defer span.End()
	start := time.Now()

	if strings.TrimSpace(req.Transcript) == "" {
		return unknownResult(SourcePattern), req.Transcript
	}
	if f.memory != nil && req.SessionID != "" && req.History == nil {
		req.History = f.memory.History(req.SessionID)
	}

	original := req.Transcript
	resolved, rewritten := ResolvePronouns(req.Transcript, req.SessionID, f.memory)
	if rewritten {
		req.Transcript = resolved
	}

	res := f.decide(ctx, req)
	if rewritten {
		res.Metadata = withMeta(res.Metadata, "resolved_transcript", resolved)
		res.Metadata["original_transcript"] = original
	}
	if f.metrics != nil {
		f.metrics.ClassifyDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(observe.Attr("source", string(res.Source))))
	}
	return res, req.Transcript
}

func (f *Fallback) decide(ctx context.Context, req Request) Result {
	if f.directNav {
		if res, ok := f.pattern.Navigate(normalize.Normalize(req.Transcript)); ok {
			res.Metadata["direct_navigation"] = true
			return res
		}
	}

	if f.primary == nil {
		f.recordFallback(ctx, "unavailable")
		res, _ := f.pattern.Classify(ctx, req)
		return res
	}

	primary, err := f.primary.Classify(ctx, req)
	threshold := f.Threshold()
	if err == nil && primary.Confidence >= threshold && primary.Action.Kind == primary.Kind {
		return primary
	}

	res, _ := f.pattern.Classify(ctx, req)
	if err != nil {
		observe.Logger(ctx).Warn("intent: llm classification failed, using patterns",
			"session_id", req.SessionID, "err", err)
		f.recordFallback(ctx, "error")
		res.Confidence *= errorPenalty
		res.Metadata = withMeta(res.Metadata, "llm_error", err.Error())
		return res
	}
	slog.Debug("intent: llm confidence below threshold, using patterns",
		"session_id", req.SessionID, "llm_intent", primary.Kind,
		"llm_confidence", primary.Confidence, "threshold", threshold)
	f.recordFallback(ctx, "low_confidence")
	res.Metadata = withMeta(res.Metadata, "llm_fallback", true)
	res.Metadata["llm_confidence"] = primary.Confidence
	return res
}

func (f *Fallback) recordFallback(ctx context.Context, reason string) {
	if f.metrics != nil {
		f.metrics.RecordFallback(ctx, reason)
	}
}

func withMeta(m map[string]any, key string, v any) map[string]any {
	if m == nil {
		m = make(map[string]any)
	}
	m[key] = v
	return m
}
