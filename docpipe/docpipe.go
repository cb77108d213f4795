// Package docpipe turns HTML, JSON or Markdown documents into
// platform-tagged SSML.
//
// A conversion runs six stages in order: normalize to Markdown, parse into
// semantic elements, classify the document, annotate each element with an
// emotion and pauses, serialize to speech markdown, and render SSML for the
// target platform. Parsed elements are cached on disk per chunk, so a
// repeated document skips the parser.
//
// Usage:
//
//	pipe, err := docpipe.New(docpipe.Config{Platform: "azure"})
//	if err != nil { ... }
//	defer pipe.Close()
//	res, err := pipe.Convert(ctx, docpipe.Request{Content: "# Hello"})
//	fmt.Println(res.SSML)
package docpipe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/speakdown/cache"
	"github.com/hazyhaar/speakdown/chunk"
	"github.com/hazyhaar/speakdown/element"
	"github.com/hazyhaar/speakdown/emotion"
	"github.com/hazyhaar/speakdown/normalize"
	"github.com/hazyhaar/speakdown/observability"
	"github.com/hazyhaar/speakdown/parse"
	"github.com/hazyhaar/speakdown/speechmd"
	"github.com/hazyhaar/speakdown/ssml"
)

var (
	// ErrEmptyInput is returned for blank content.
	ErrEmptyInput = errors.New("docpipe: empty input")
	// ErrInvalidEncoding is returned for content that is not UTF-8 text.
	ErrInvalidEncoding = errors.New("docpipe: input is not UTF-8 text")
	// ErrJournalDisabled is returned by Recent when no journal is configured.
	ErrJournalDisabled = errors.New("docpipe: journal disabled")
	// ErrNoSink is returned by Speak when no sink is given.
	ErrNoSink = errors.New("docpipe: nil sink")

	ErrUnknownPlatform = ssml.ErrUnknownPlatform
	ErrUnknownFormat   = normalize.ErrUnknownFormat
)

// Stage names used in Result.Timings and the stage_duration metric.
const (
	StageNormalize = "normalize"
	StageParse     = "parse"
	StageClassify  = "classify"
	StageSpeechMD  = "speechmd"
	StageRender    = "render"
	StageValidate  = "validate"
)

// Pipeline is the speech conversion engine. It is safe for concurrent use.
type Pipeline struct {
	cfg       Config
	platform  ssml.Platform
	logger    *slog.Logger
	metrics   *observability.Metrics
	norm      *normalize.Normalizer
	annotator *emotion.Annotator
	cache     *cache.Cache
	journal   *observability.Journal
}

// New creates a Pipeline. It fails only for an unknown platform name or a
// journal that cannot be opened; an unusable cache directory disables the
// cache instead.
func New(cfg Config) (*Pipeline, error) {
	cfg.defaults()
	platform, err := ssml.ParsePlatform(cfg.Platform)
	if err != nil {
		return nil, fmt.Errorf("docpipe: %w", err)
	}
	p := &Pipeline{
		cfg:       cfg,
		platform:  platform,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		norm:      normalize.New(cfg.Logger),
		annotator: emotion.NewAnnotator(nil),
	}
	p.cache = cache.New(cache.Config{
		Dir:        cfg.Cache.Dir,
		TTL:        cfg.Cache.TTL,
		MaxSize:    int64(cfg.Cache.MaxSizeMB) << 20,
		FlushDelay: cfg.Cache.FlushDelay,
		Disabled:   cfg.Cache.Disabled,
		Logger:     cfg.Logger,
		OnEvict: func(_ string, reason cache.EvictReason) {
			p.metrics.CacheEviction(string(reason))
		},
	})
	if cfg.Journal.Path != "" {
		j, err := observability.OpenJournal(cfg.Journal.Path, observability.JournalConfig{
			BufferSize:    cfg.Journal.BufferSize,
			FlushInterval: cfg.Journal.FlushInterval,
			Logger:        cfg.Logger,
		})
		if err != nil {
			p.cache.Close()
			return nil, fmt.Errorf("docpipe: journal: %w", err)
		}
		p.journal = j
	}
	return p, nil
}

// Convert runs the full pipeline on one document. Malformed content never
// fails a conversion; errors come only from the request itself (blank or
// binary content, unknown platform or format names) or a cancelled ctx.
func (p *Pipeline) Convert(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := p.convert(ctx, req)
	if res != nil {
		res.Duration = time.Since(start)
	}
	p.record(req, res, err, start)
	return res, err
}

func (p *Pipeline) convert(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	platform, err := p.resolvePlatform(req.Platform)
	if err != nil {
		return nil, err
	}
	hint, err := resolveFormat(req.Format, req.Filename)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, ErrEmptyInput
	}
	quality := assessInput(req.Content)
	if !quality.Speakable() {
		return nil, fmt.Errorf("%w (printable ratio %.2f)", ErrInvalidEncoding, quality.PrintableRatio)
	}

	res := &Result{
		RunID:    observability.NewRunID(),
		Platform: platform,
		Format:   hint,
		Quality:  quality,
		Timings:  make(map[string]float64),
	}
	if hint == normalize.FormatAuto {
		res.Format = normalize.Detect(req.Content)
	}

	var markdown string
	p.stage(res, StageNormalize, func() {
		markdown = p.norm.ToMarkdown(req.Content, hint)
	})

	elems, err := p.parseChunks(ctx, res, markdown, hint)
	if err != nil {
		return nil, err
	}
	res.Elements = elems

	p.stage(res, StageClassify, func() {
		res.Annotations, res.DocType = p.annotator.Annotate(elems)
	})
	p.stage(res, StageSpeechMD, func() {
		res.SpeechMarkdown = speechmd.Convert(elems, res.Annotations)
	})
	p.stage(res, StageRender, func() {
		res.SSML = ssml.Render(res.SpeechMarkdown, platform, ssml.Options{
			Language: p.cfg.Language,
			Voice:    p.cfg.Voice,
		})
	})
	p.stage(res, StageValidate, func() {
		res.Valid, res.Validation = ssml.Validate(res.SSML, platform)
	})
	if !res.Valid {
		p.logger.Warn("docpipe: invalid ssml", "run_id", res.RunID, "platform", platform, "errors", res.Validation)
	}

	res.Title = title(elems, markdown)
	p.metrics.Conversion(string(platform), string(res.DocType), res.Valid, res.Chunks)
	return res, nil
}

// parseChunks splits markdown and parses every chunk through the cache.
// CacheHit is true only when every chunk was served from the cache.
func (p *Pipeline) parseChunks(ctx context.Context, res *Result, markdown string, hint normalize.Format) ([]element.Element, error) {
	chunks := chunk.Split(markdown, chunk.Options{MaxChars: p.cfg.Chunk.MaxChars})
	res.Chunks = len(chunks)
	res.CacheHit = true

	start := time.Now()
	var elems []element.Element
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cached, hit := p.cache.Get(c.Text, string(hint))
		if p.cache.Enabled() {
			p.metrics.CacheLookup(hit)
		}
		if hit {
			elems = append(elems, cached...)
			continue
		}
		res.CacheHit = false

		t := time.Now()
		parsed, warnings := parse.ParseWithWarnings(c.Text)
		lineOffset := strings.Count(markdown[:c.Offset], "\n")
		for _, w := range warnings {
			w.Line += lineOffset
			p.logger.Debug("docpipe: parser warning", "run_id", res.RunID, "line", w.Line, "message", w.Message)
			res.Warnings = append(res.Warnings, w)
		}
		if err := p.cache.Put(c.Text, string(hint), parsed, time.Since(t)); err != nil {
			p.logger.Debug("docpipe: cache put failed", "chunk", c.Index, "error", err)
		}
		elems = append(elems, parsed...)
	}
	if !p.cache.Enabled() {
		res.CacheHit = false
	}

	d := time.Since(start)
	res.Timings[StageParse] = ms(d)
	p.metrics.ObserveStage(StageParse, d)
	return elems, nil
}

func (p *Pipeline) stage(res *Result, name string, fn func()) {
	start := time.Now()
	fn()
	d := time.Since(start)
	res.Timings[name] = ms(d)
	p.metrics.ObserveStage(name, d)
}

func (p *Pipeline) record(req Request, res *Result, err error, start time.Time) {
	if p.journal == nil {
		return
	}
	sum := sha256.Sum256([]byte(req.Content))
	run := observability.Run{
		StartedAt:   start,
		ContentHash: hex.EncodeToString(sum[:]),
		Format:      req.Format,
		Platform:    req.Platform,
		Duration:    time.Since(start),
	}
	if res != nil {
		run.ID = res.RunID
		run.Format = string(res.Format)
		run.Platform = string(res.Platform)
		run.DocType = string(res.DocType)
		run.Elements = len(res.Elements)
		run.Chunks = res.Chunks
		run.CacheHit = res.CacheHit
		run.Valid = res.Valid
	}
	if err != nil {
		run.Error = err.Error()
	}
	p.journal.Record(run)
}

// Speak converts req and hands the SSML to sink.
func (p *Pipeline) Speak(ctx context.Context, req Request, sink Sink) (*Result, error) {
	if sink == nil {
		return nil, ErrNoSink
	}
	res, err := p.Convert(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := sink.Synthesize(ctx, res.SSML, res.Platform); err != nil {
		return res, fmt.Errorf("docpipe: synthesize %s: %w", res.RunID, err)
	}
	return res, nil
}

// Validation is the outcome of checking an SSML document.
type Validation struct {
	Platform ssml.Platform `json:"platform"`
	Valid    bool          `json:"valid"`
	Message  string        `json:"message"`
	Text     string        `json:"text,omitempty"`
}

// Validate checks an SSML document for platform. An empty platform means
// the configured default.
func (p *Pipeline) Validate(doc, platform string) (Validation, error) {
	pl, err := p.resolvePlatform(platform)
	if err != nil {
		return Validation{}, err
	}
	ok, msg := ssml.Validate(doc, pl)
	v := Validation{Platform: pl, Valid: ok, Message: msg}
	if ok {
		v.Text = ssml.StripTags(doc)
	}
	return v, nil
}

// Detection describes a document without rendering it.
type Detection struct {
	Format   normalize.Format `json:"format"`
	DocType  emotion.DocType  `json:"doc_type"`
	Scores   emotion.Scores   `json:"scores"`
	Elements int              `json:"elements"`
	Title    string           `json:"title,omitempty"`
}

// Detect reports the input format and document type of content. filename
// may be empty.
func (p *Pipeline) Detect(content, filename string) (Detection, error) {
	if strings.TrimSpace(content) == "" {
		return Detection{}, ErrEmptyInput
	}
	format := normalize.FormatFromFilename(filename)
	if format == normalize.FormatAuto {
		format = normalize.Detect(content)
	}
	markdown := p.norm.ToMarkdown(content, format)
	elems := parse.Parse(markdown)
	scores := p.annotator.Rules().Score(elems)
	return Detection{
		Format:   format,
		DocType:  scores.Best(),
		Scores:   scores,
		Elements: len(elems),
		Title:    title(elems, markdown),
	}, nil
}

// CacheStats flushes the cache index and reports its state.
func (p *Pipeline) CacheStats() cache.Stats {
	return p.cache.Stats()
}

// ClearCache removes every cache entry and returns how many were removed.
func (p *Pipeline) ClearCache() int {
	return p.cache.Clear()
}

// CleanupCache removes expired entries, then shrinks the cache to its
// budget. It returns the number of entries removed.
func (p *Pipeline) CleanupCache() int {
	return p.cache.Cleanup()
}

// Recent returns up to limit journaled conversions, newest first.
func (p *Pipeline) Recent(ctx context.Context, limit int) ([]observability.Run, error) {
	if p.journal == nil {
		return nil, ErrJournalDisabled
	}
	p.journal.Flush()
	return p.journal.Recent(ctx, limit)
}

// PruneRuns deletes journaled runs older than retention and returns how
// many were removed.
func (p *Pipeline) PruneRuns(ctx context.Context, retention time.Duration) (int64, error) {
	if p.journal == nil {
		return 0, ErrJournalDisabled
	}
	if retention <= 0 {
		return 0, fmt.Errorf("docpipe: prune retention must be positive, got %s", retention)
	}
	p.journal.Flush()
	n, err := p.journal.Cleanup(ctx, retention)
	if err != nil {
		return 0, err
	}
	p.logger.Info("docpipe: pruned journal", "removed", n, "retention", retention)
	return n, nil
}

// Metrics returns the pipeline's collectors.
func (p *Pipeline) Metrics() *observability.Metrics {
	return p.metrics
}

// Close flushes the cache index and the journal.
func (p *Pipeline) Close() error {
	err := p.cache.Close()
	if p.journal != nil {
		err = errors.Join(err, p.journal.Close())
	}
	return err
}

func (p *Pipeline) resolvePlatform(name string) (ssml.Platform, error) {
	if strings.TrimSpace(name) == "" {
		return p.platform, nil
	}
	return ssml.ParsePlatform(name)
}

func resolveFormat(name, filename string) (normalize.Format, error) {
	f, err := normalize.ParseFormat(name)
	if err != nil {
		return "", err
	}
	if f == normalize.FormatAuto && filename != "" {
		f = normalize.FormatFromFilename(filename)
	}
	return f, nil
}

// title is the first heading, or the first line of markdown.
func title(elems []element.Element, markdown string) string {
	for _, e := range elems {
		if e.Type == element.TypeHeading {
			return e.Content
		}
	}
	return firstLine(markdown)
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
