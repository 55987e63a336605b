package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"promptforge/internal/analytics"
	"promptforge/internal/optimizer"
	"promptforge/internal/pipeline"
	"promptforge/internal/selector"
	"promptforge/internal/store"
	"promptforge/internal/tokens"
)

var (
	levelFlag     string
	preferredFlag string
	contextFlags  []string
	historyFlags  []string
	jsonOutput    bool
	showStats     bool
)

// constructCmd runs one task through the full pipeline
var constructCmd = &cobra.Command{
	Use:   "construct [task description]",
	Short: "Construct an optimized prompt for a task",
	Long: `Runs a task description through the five pipeline stages and prints
the rendered prompt.

Example:
  promptforge construct "Fix a bug in my Python script that crashes on startup" \
    --context project=billing --history "fixed crash in payment handler"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConstruct,
}

func init() {
	constructCmd.Flags().StringVarP(&levelFlag, "level", "l", "", "Optimization level: minimal, standard, aggressive")
	constructCmd.Flags().StringVar(&preferredFlag, "template", "", "Preferred template ID (used when it exists)")
	constructCmd.Flags().StringArrayVar(&contextFlags, "context", nil, "Context entry as key=value (repeatable)")
	constructCmd.Flags().StringArrayVar(&historyFlags, "history", nil, "Conversation history entry (repeatable)")
	constructCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full result envelope as JSON")
	constructCmd.Flags().BoolVar(&showStats, "stats", false, "Print quality and token stats to stderr")
}

func runConstruct(cmd *cobra.Command, args []string) error {
	task := strings.Join(args, " ")

	st, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	sink, sinkCleanup, err := openSink()
	if err != nil {
		return err
	}
	defer sinkCleanup()

	p := pipeline.New(st,
		pipeline.WithSink(sink),
		pipeline.WithTokenCounter(tokens.NewCounter(cfg.TokenModel)),
		pipeline.WithDefaultLevel(optimizer.ParseLevel(cfg.DefaultLevel)),
	)

	req := pipeline.Request{
		Task:    task,
		Context: buildContext(),
	}
	if levelFlag != "" {
		req.Level = optimizer.ParseLevel(levelFlag)
	}
	if preferredFlag != "" {
		req.Preferences = map[string]any{"preferred_template_id": preferredFlag}
	}

	result := p.Construct(cmd.Context(), req)
	if !result.Success {
		return fmt.Errorf("construction failed: %s", result.Error)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Println(result.Prompt)
	if showStats {
		fmt.Fprintf(os.Stderr, "templates=%v quality=%.2f tokens=%d elapsed=%s\n",
			result.TemplateIDs, result.QualityScore, result.TokenCount, result.Elapsed)
		for _, f := range result.Feedback {
			fmt.Fprintf(os.Stderr, "  feedback: %s\n", f)
		}
	}
	return nil
}

func buildContext() map[string]any {
	ctx := make(map[string]any)
	for _, kv := range contextFlags {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		ctx[key] = value
	}
	if len(historyFlags) > 0 {
		ctx["history_entries"] = historyFlags
	}
	return ctx
}

// openStore opens the configured template source: SQLite when a database
// path is set, otherwise a directory-backed in-memory store.
func openStore() (selector.TemplateStore, func(), error) {
	if cfg.TemplateDB != "" {
		st, err := store.OpenSQLite(cfg.TemplateDB, cfg.CacheSize)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open template database: %w", err)
		}
		return st, func() { _ = st.Close() }, nil
	}

	st := store.NewMemoryStore()
	if cfg.TemplateDir != "" {
		n, err := st.LoadDirectory(cfg.TemplateDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load templates from %s: %w", cfg.TemplateDir, err)
		}
		if n == 0 {
			fmt.Fprintf(os.Stderr, "warning: no templates found in %s\n", cfg.TemplateDir)
		}
		if cfg.Watch {
			if err := st.Watch(cfg.TemplateDir); err != nil {
				return nil, nil, fmt.Errorf("failed to watch %s: %w", cfg.TemplateDir, err)
			}
		}
	}
	return st, func() { _ = st.Close() }, nil
}

// openSink picks the analytics sink: SQLite when configured, otherwise the
// structured log sink.
func openSink() (analytics.Sink, func(), error) {
	if cfg.AnalyticsDB == "" {
		return analytics.NewLogSink(), func() {}, nil
	}
	sink, err := analytics.NewSQLiteSink(cfg.AnalyticsDB, cfg.AnalyticsBuffer)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open analytics database: %w", err)
	}
	return sink, func() { _ = sink.Close() }, nil
}
