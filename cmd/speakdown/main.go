// Command speakdown converts HTML, JSON and Markdown documents to SSML and
// serves the conversion over HTTP and MCP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/speakdown/docpipe"
)

const version = "0.1.0"

// Globals are flags shared by every command.
type Globals struct {
	Config    string `help:"YAML configuration file." type:"path" env:"SPEAKDOWN_CONFIG"`
	CacheDir  string `name:"cache-dir" help:"Element cache directory." env:"SPEAKDOWN_CACHE_DIR"`
	NoCache   bool   `name:"no-cache" help:"Disable the element cache."`
	Journal   string `help:"SQLite conversion journal path." env:"SPEAKDOWN_JOURNAL"`
	LogLevel  string `name:"log-level" default:"info" enum:"debug,info,warn,error" env:"LOG_LEVEL" help:"Log level."`
	LogFormat string `name:"log-format" default:"text" enum:"text,json" help:"Log format."`

	logger *slog.Logger `kong:"-"`
}

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Convert  ConvertCmd  `cmd:"" help:"Convert a document to SSML."`
	Validate ValidateCmd `cmd:"" help:"Validate an SSML document."`
	Detect   DetectCmd   `cmd:"" help:"Detect the format and document type of a document."`
	Cache    CacheCmd    `cmd:"" help:"Inspect and maintain the element cache."`
	History  HistoryCmd  `cmd:"" help:"List recent conversions from the journal."`
	Serve    ServeCmd    `cmd:"" help:"Serve the HTTP API and MCP tools."`
	Version  VersionCmd  `cmd:"" help:"Print version information."`
}

func (g *Globals) setupLogger() {
	var lvl slog.Level
	switch g.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if g.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	g.logger = slog.New(h)
	slog.SetDefault(g.logger)
}

// pipeline builds a Pipeline from the config file and flag overrides.
func (g *Globals) pipeline(platform string) (*docpipe.Pipeline, error) {
	var cfg docpipe.Config
	if g.Config != "" {
		loaded, err := docpipe.LoadConfigFile(g.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if g.CacheDir != "" {
		cfg.Cache.Dir = g.CacheDir
	}
	if g.NoCache {
		cfg.Cache.Disabled = true
	}
	if g.Journal != "" {
		cfg.Journal.Path = g.Journal
	}
	if platform != "" {
		cfg.Platform = platform
	}
	cfg.Logger = g.logger
	return docpipe.New(cfg)
}

// readInput reads path, or stdin for "-".
func readInput(path string) (string, error) {
	var data []byte
	var err error
	if path == "-" || path == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- convert ---

// ConvertCmd converts one document.
type ConvertCmd struct {
	File     string `arg:"" optional:"" default:"-" help:"Input file, or - for stdin."`
	Platform string `short:"p" help:"Target platform (azure, google, amazon, generic)."`
	Format   string `short:"f" default:"auto" help:"Input format (auto, html, json, markdown)."`
	Out      string `short:"o" type:"path" help:"Write output to this file instead of stdout."`
	Emit     string `default:"ssml" enum:"ssml,speechmd,json" help:"What to print: ssml, speechmd or the full json result."`
	Strict   bool   `help:"Fail when the rendered SSML does not validate."`
}

func (c *ConvertCmd) Run(g *Globals) error {
	content, err := readInput(c.File)
	if err != nil {
		return err
	}
	pipe, err := g.pipeline(c.Platform)
	if err != nil {
		return err
	}
	defer pipe.Close()

	req := docpipe.Request{Content: content, Format: c.Format}
	if c.File != "-" {
		req.Filename = c.File
	}
	res, err := pipe.Convert(context.Background(), req)
	if err != nil {
		return err
	}
	if !res.Valid {
		if c.Strict {
			return fmt.Errorf("invalid ssml: %s", res.Validation)
		}
		g.logger.Warn("rendered ssml did not validate", "errors", res.Validation)
	}

	out := io.Writer(os.Stdout)
	if c.Out != "" {
		f, err := os.Create(c.Out)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	switch c.Emit {
	case "json":
		return printJSON(out, res)
	case "speechmd":
		_, err = fmt.Fprintln(out, res.SpeechMarkdown)
	default:
		_, err = fmt.Fprintln(out, res.SSML)
	}
	g.logger.Debug("converted", "run_id", res.RunID, "doc_type", res.DocType, "chunks", res.Chunks, "cache_hit", res.CacheHit, "duration", res.Duration)
	return err
}

// --- validate ---

// ValidateCmd checks an SSML file.
type ValidateCmd struct {
	File     string `arg:"" optional:"" default:"-" help:"SSML file, or - for stdin."`
	Platform string `short:"p" help:"Platform whose rules apply."`
}

var errInvalid = errors.New("invalid ssml")

func (c *ValidateCmd) Run(g *Globals) error {
	doc, err := readInput(c.File)
	if err != nil {
		return err
	}
	pipe, err := g.pipeline("")
	if err != nil {
		return err
	}
	defer pipe.Close()

	v, err := pipe.Validate(doc, c.Platform)
	if err != nil {
		return err
	}
	fmt.Println(v.Message)
	if !v.Valid {
		return errInvalid
	}
	return nil
}

// --- detect ---

// DetectCmd reports the format and document type of a file.
type DetectCmd struct {
	File string `arg:"" optional:"" default:"-" help:"Input file, or - for stdin."`
}

func (c *DetectCmd) Run(g *Globals) error {
	content, err := readInput(c.File)
	if err != nil {
		return err
	}
	pipe, err := g.pipeline("")
	if err != nil {
		return err
	}
	defer pipe.Close()

	name := ""
	if c.File != "-" {
		name = c.File
	}
	d, err := pipe.Detect(content, name)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, d)
}

// --- cache ---

// CacheCmd groups cache maintenance.
type CacheCmd struct {
	Stats   CacheStatsCmd   `cmd:"" help:"Show cache statistics."`
	Clear   CacheClearCmd   `cmd:"" help:"Remove every cache entry."`
	Cleanup CacheCleanupCmd `cmd:"" help:"Remove expired entries and enforce the size budget."`
}

type CacheStatsCmd struct{}

func (c *CacheStatsCmd) Run(g *Globals) error {
	pipe, err := g.pipeline("")
	if err != nil {
		return err
	}
	defer pipe.Close()
	stats := pipe.CacheStats()
	return printJSON(os.Stdout, map[string]any{
		"stats":    stats,
		"hit_rate": stats.HitRate(),
	})
}

type CacheClearCmd struct{}

func (c *CacheClearCmd) Run(g *Globals) error {
	pipe, err := g.pipeline("")
	if err != nil {
		return err
	}
	defer pipe.Close()
	fmt.Printf("removed %d entries\n", pipe.ClearCache())
	return nil
}

type CacheCleanupCmd struct{}

func (c *CacheCleanupCmd) Run(g *Globals) error {
	pipe, err := g.pipeline("")
	if err != nil {
		return err
	}
	defer pipe.Close()
	fmt.Printf("removed %d entries\n", pipe.CleanupCache())
	return nil
}

// --- history ---

// HistoryCmd lists journaled conversions.
type HistoryCmd struct {
	Limit int           `short:"n" default:"20" help:"Number of runs to show."`
	JSON  bool          `help:"Print JSON instead of a table."`
	Prune time.Duration `help:"Delete runs older than this (e.g. 720h) before listing."`
}

func (c *HistoryCmd) Run(g *Globals) error {
	if g.Journal == "" {
		return errors.New("history needs --journal or SPEAKDOWN_JOURNAL")
	}
	pipe, err := g.pipeline("")
	if err != nil {
		return err
	}
	defer pipe.Close()

	if c.Prune > 0 {
		n, err := pipe.PruneRuns(context.Background(), c.Prune)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "pruned %d runs\n", n)
	}

	runs, err := pipe.Recent(context.Background(), c.Limit)
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(os.Stdout, runs)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tFORMAT\tDOC TYPE\tPLATFORM\tCHUNKS\tCACHE\tVALID\tDURATION\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%t\t%t\t%s\t%s\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Format, r.DocType, r.Platform,
			r.Chunks, r.CacheHit, r.Valid, r.Duration.Round(time.Microsecond), r.Error)
	}
	return tw.Flush()
}

// --- serve ---

// ServeCmd runs the HTTP API with the MCP tools mounted at /mcp.
type ServeCmd struct {
	Addr     string `default:":8085" env:"SPEAKDOWN_ADDR" help:"Listen address."`
	Platform string `short:"p" help:"Default platform."`
	Stdio    bool   `help:"Serve MCP over stdin/stdout instead of HTTP."`
}

func (c *ServeCmd) Run(g *Globals) error {
	pipe, err := g.pipeline(c.Platform)
	if err != nil {
		return err
	}
	defer pipe.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "speakdown", Version: version}, nil)
	pipe.RegisterMCP(mcpSrv)

	if c.Stdio {
		g.logger.Info("MCP stdio starting")
		return mcpSrv.Run(ctx, &mcp.StdioTransport{})
	}

	r := chi.NewRouter()
	r.Mount("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))
	r.Mount("/", pipe.Routes())

	srv := &http.Server{
		Addr:              c.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		g.logger.Info("server starting", "addr", c.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	g.logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		g.logger.Error("shutdown", "error", err)
	}
	g.logger.Info("server stopped")
	return nil
}

// --- version ---

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println("speakdown", version)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("speakdown"),
		kong.Description("Convert HTML, JSON and Markdown documents to platform SSML."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	cli.Globals.setupLogger()
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
