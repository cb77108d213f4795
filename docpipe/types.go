package docpipe

import (
	"context"
	"time"

	"github.com/hazyhaar/speakdown/element"
	"github.com/hazyhaar/speakdown/emotion"
	"github.com/hazyhaar/speakdown/normalize"
	"github.com/hazyhaar/speakdown/parse"
	"github.com/hazyhaar/speakdown/ssml"
)

// Request is one document to convert.
type Request struct {
	Content string `json:"content"`
	// Format is auto (default), html, json or markdown.
	Format string `json:"format,omitempty"`
	// Filename, when set, lets the extension pick the format if Format is
	// auto.
	Filename string `json:"filename,omitempty"`
	// Platform overrides the configured platform.
	Platform string `json:"platform,omitempty"`
}

// Result is the outcome of a conversion.
type Result struct {
	RunID          string               `json:"run_id"`
	Title          string               `json:"title,omitempty"`
	Format         normalize.Format     `json:"format"`
	Platform       ssml.Platform        `json:"platform"`
	DocType        emotion.DocType      `json:"doc_type"`
	SSML           string               `json:"ssml"`
	SpeechMarkdown string               `json:"speech_markdown"`
	Elements       []element.Element    `json:"elements"`
	Annotations    []emotion.Annotation `json:"annotations"`
	Warnings       []parse.Warning      `json:"warnings,omitempty"`
	Valid          bool                 `json:"valid"`
	Validation     string               `json:"validation"`
	CacheHit       bool                 `json:"cache_hit"`
	Chunks         int                  `json:"chunks"`
	Quality        InputQuality         `json:"quality"`
	Timings        map[string]float64   `json:"timings_ms"`
	Duration       time.Duration        `json:"duration_ns"`
}

// Sink is a synthesis provider. Implementations own their transport and
// retry policy; providers without SSML support strip tags themselves (see
// ssml.StripTags).
type Sink interface {
	Synthesize(ctx context.Context, ssml string, platform ssml.Platform) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ssml string, platform ssml.Platform) error

// Synthesize calls f.
func (f SinkFunc) Synthesize(ctx context.Context, s string, p ssml.Platform) error {
	return f(ctx, s, p)
}
