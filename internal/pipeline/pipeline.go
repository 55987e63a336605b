// Package pipeline wires the five construction stages — classify, extract,
// select, compose, optimize+score — into the single Construct entry point.
// The pipeline is stateless per request: every stage is a pure function of
// its inputs, so any number of requests may run concurrently against a
// shared Pipeline value.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"promptforge/internal/analytics"
	"promptforge/internal/classifier"
	"promptforge/internal/composer"
	"promptforge/internal/instruction"
	"promptforge/internal/logging"
	"promptforge/internal/optimizer"
	"promptforge/internal/selector"
	"promptforge/internal/taskctx"
	"promptforge/internal/tokens"
)

// Request is one construction call. Collections are optional; a nil map is
// an empty map, and an empty Level means the pipeline default.
type Request struct {
	Task        string
	Context     map[string]any
	Preferences map[string]any
	Level       optimizer.Level
}

// Result is the final envelope handed to the conversation orchestrator.
// It is created once per request and immutable afterwards; a failed
// construction carries no partial document, only the error cause.
type Result struct {
	PromptID       string
	Prompt         string
	TemplateIDs    []string
	QualityScore   float64
	Feedback       []string
	TokenCount     int
	Classification classifier.Result
	Elapsed        time.Duration
	Success        bool
	Error          string
}

// Pipeline composes the five stages over an injected template store and
// analytics sink.
type Pipeline struct {
	classifier *classifier.Classifier
	extractor  *taskctx.Extractor
	selector   *selector.Selector
	composer   *composer.Composer
	optimizer  *optimizer.Optimizer
	counter    *tokens.Counter
	sink       analytics.Sink

	defaultLevel optimizer.Level
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSink sets the analytics sink. Defaults to a log sink.
func WithSink(sink analytics.Sink) Option {
	return func(p *Pipeline) { p.sink = sink }
}

// WithTokenCounter sets the token counter. Defaults to the gpt-4 encoding.
func WithTokenCounter(counter *tokens.Counter) Option {
	return func(p *Pipeline) { p.counter = counter }
}

// WithDefaultLevel sets the optimization level used when a request carries
// none. Defaults to standard.
func WithDefaultLevel(level optimizer.Level) Option {
	return func(p *Pipeline) { p.defaultLevel = level }
}

// New creates a pipeline over a template store.
func New(store selector.TemplateStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		classifier:   classifier.New(),
		extractor:    taskctx.New(),
		selector:     selector.New(store),
		composer:     composer.New(),
		optimizer:    optimizer.New(),
		counter:      tokens.NewCounter(tokens.DefaultModel),
		sink:         analytics.NewLogSink(),
		defaultLevel: optimizer.LevelStandard,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Construct runs the full pipeline for one request. It never panics and
// never returns a Go error: any failure is captured into a Result with
// Success=false and the elapsed time up to the failure point. The context
// is accepted for caller-side timeout composition; the pipeline itself has
// no internal cancellation points.
func (p *Pipeline) Construct(ctx context.Context, req Request) (result Result) {
	start := time.Now()
	promptID := uuid.NewString()
	log := logging.Get(logging.CategoryPipeline)

	defer func() {
		if r := recover(); r != nil {
			result = Result{
				PromptID: promptID,
				Elapsed:  time.Since(start),
				Success:  false,
				Error:    fmt.Sprintf("construction failed: %v", r),
			}
			log.Errorf("construction %s panicked: %v", promptID, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return Result{
			PromptID: promptID,
			Elapsed:  time.Since(start),
			Success:  false,
			Error:    fmt.Sprintf("construction failed: %v", err),
		}
	}

	level := req.Level
	if level == "" {
		level = p.defaultLevel
	}

	// Stage 1: classify.
	cls := p.classifier.Classify(req.Task)

	// Stage 2: reconcile caller context.
	tctx := p.extractor.Extract(req.Context, cls)

	// Stage 3: select candidate templates.
	prefs := selector.Preferences{}
	if req.Preferences != nil {
		if id, ok := req.Preferences["preferred_template_id"].(string); ok {
			prefs.PreferredTemplateID = id
		}
	}
	candidates := p.selector.Select(cls, tctx, prefs)

	templateIDs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		templateIDs = append(templateIDs, c.ID)
	}

	// Stage 4: compose.
	doc := p.composer.Compose(candidates)
	applyContext(&doc, tctx)

	// Stage 5: optimize, score, and flatten.
	doc = p.optimizer.Optimize(doc, level)
	prompt := instruction.Render(&doc, tctx.Custom)
	tokenCount := p.counter.Count(prompt)
	quality := optimizer.Score(&doc, tokenCount)

	result = Result{
		PromptID:       promptID,
		Prompt:         prompt,
		TemplateIDs:    templateIDs,
		QualityScore:   quality.Score,
		Feedback:       quality.Feedback,
		TokenCount:     tokenCount,
		Classification: cls,
		Elapsed:        time.Since(start),
		Success:        true,
	}

	p.record(result)

	log.Infof("constructed %s: category=%s templates=%d quality=%.2f tokens=%d elapsed=%s",
		promptID, cls.Category, len(templateIDs), quality.Score, tokenCount, result.Elapsed)

	return result
}

// applyContext writes the extracted caller context into the composed
// document. Caller values always win over template-provided ones.
func applyContext(doc *instruction.Document, tctx taskctx.Context) {
	if tctx.Project != "" {
		doc.Context.Project = tctx.Project
	}
	if tctx.History != "" {
		doc.Context.History = tctx.History
	}
	if tctx.Priority != "" {
		doc.Context.Priority = tctx.Priority
	}
	if len(tctx.Custom) > 0 && doc.Context.Custom == nil {
		doc.Context.Custom = make(map[string]string, len(tctx.Custom))
	}
	for k, v := range tctx.Custom {
		if v != "" {
			doc.Context.Custom[k] = v
		}
	}
}

// record emits the analytics event without ever blocking or failing the
// caller; sink implementations own their own error handling.
func (p *Pipeline) record(result Result) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryAnalytics).Warnf("analytics sink panicked: %v", r)
		}
	}()

	p.sink.Record(analytics.Event{
		PromptID:     result.PromptID,
		TemplateIDs:  result.TemplateIDs,
		QualityScore: result.QualityScore,
		TokenCount:   result.TokenCount,
		Elapsed:      result.Elapsed,
	})
}
