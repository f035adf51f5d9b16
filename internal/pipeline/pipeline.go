// Package pipeline turns a natural-language question about the invoice table
// into rows: validate, describe the table, build the prompt, generate, extract
// one SELECT statement and run it.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/arquery/arquery/internal/history"
	"github.com/arquery/arquery/internal/llm"
	"github.com/arquery/arquery/internal/observability"
	"github.com/arquery/arquery/internal/security"
	"github.com/arquery/arquery/internal/warehouse"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Stage is a state of a single run. Runs move strictly forward through the
// stages in declaration order or stop in Failed.
type Stage string

const (
	StageReceived    Stage = "Received"
	StageValidated   Stage = "Validated"
	StageSchemaReady Stage = "SchemaReady"
	StagePromptBuilt Stage = "PromptBuilt"
	StageGenerated   Stage = "Generated"
	StageExtracted   Stage = "Extracted"
	StageExecuted    Stage = "Executed"
	StageResponded   Stage = "Responded"
)

// MinQueryLength is the shortest question, in characters, worth sending on.
const MinQueryLength = 15

const (
	detailEmptyQuery     = "Invalid Input : Search must be a non-empty string"
	detailShortQuery     = "Invalid Input : Search text must be more descriptive."
	detailInvalidQuery   = "Generated query is not a valid SQL SELECT statement."
	detailGenerationFail = "Generation service error: "
	detailSQLFail        = "SQL execution error: "
	detailSchemaFail     = "Schema fetch error: "
	detailInternal       = "Internal server error: "
)

var tracer = otel.Tracer("github.com/arquery/arquery/internal/pipeline")

// Config wires a Pipeline. Guards, Audit and History are optional.
type Config struct {
	Cache     *SchemaCache
	Prompts   *PromptBuilder
	Generator llm.Generator
	Warehouse warehouse.Warehouse

	PromptGuard *security.PromptValidator
	SQLGuard    *security.SQLValidator
	Audit       *security.AuditLogger
	History     history.Recorder
}

// Pipeline runs requests. It is safe for concurrent use; the schema cache is
// the only state shared between runs.
type Pipeline struct {
	cache     *SchemaCache
	prompts   *PromptBuilder
	generator llm.Generator
	wh        warehouse.Warehouse

	promptGuard *security.PromptValidator
	sqlGuard    *security.SQLValidator
	audit       *security.AuditLogger
	history     history.Recorder
}

func New(cfg Config) *Pipeline {
	rec := cfg.History
	if rec == nil {
		rec = history.Nop{}
	}
	return &Pipeline{
		cache:       cfg.Cache,
		prompts:     cfg.Prompts,
		generator:   cfg.Generator,
		wh:          cfg.Warehouse,
		promptGuard: cfg.PromptGuard,
		sqlGuard:    cfg.SQLGuard,
		audit:       cfg.Audit,
		history:     rec,
	}
}

// Request is one inbound question. Token is only used for audit hashing.
type Request struct {
	ID    string
	Query string
	Token string
}

// Outcome is a successful run.
type Outcome struct {
	SQL    string
	Result *warehouse.Result
}

// Run executes every stage in order. Any returned error is a *Error.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("request.id", req.ID),
		attribute.Int("query.length", utf8.RuneCountInString(req.Query)),
	))
	defer span.End()

	out, sqlText, perr := p.run(ctx, req)
	elapsed := time.Since(start)

	outcome, detail, rows := "ok", "", 0
	if perr != nil {
		outcome, detail = string(perr.Kind), perr.Detail
		span.RecordError(perr)
		span.SetStatus(codes.Error, outcome)
		evt := log.Warn()
		if perr.Kind.HTTPStatus() >= 500 {
			evt = log.Error()
		}
		evt.Err(perr.Err).
			Str("request_id", req.ID).
			Str("kind", outcome).
			Str("stage", string(perr.Stage)).
			Dur("duration", elapsed).
			Msg("generate sql failed")
	} else {
		rows = len(out.Result.Rows)
		span.SetAttributes(attribute.Int("result.rows", rows))
		log.Info().
			Str("request_id", req.ID).
			Int("rows", rows).
			Dur("duration", elapsed).
			Msg("generate sql")
	}
	observability.ObservePipelineOutcome(outcome)

	// Validation failures never reached a downstream call; nothing worth keeping.
	if perr == nil || perr.Kind != KindValidation {
		p.audit.LogGeneration(security.GenerationAudit{
			RequestID:       req.ID,
			Query:           req.Query,
			Token:           req.Token,
			SQL:             sqlText,
			Outcome:         outcome,
			ExecutionTimeMs: elapsed.Milliseconds(),
			RowCount:        rows,
		})
		p.history.Record(ctx, history.Entry{
			RequestID:  req.ID,
			Query:      req.Query,
			SQL:        sqlText,
			Outcome:    outcome,
			Detail:     detail,
			RowCount:   rows,
			DurationMs: elapsed.Milliseconds(),
			Dialect:    p.wh.Dialect(),
			Model:      p.generator.Model(),
		})
	}

	if perr != nil {
		return nil, perr
	}
	return out, nil
}

// run returns the extracted SQL alongside the result so failures after
// extraction can still be audited.
func (p *Pipeline) run(ctx context.Context, req Request) (*Outcome, string, *Error) {
	// Received -> Validated. No network call may happen before this passes.
	if perr := p.validate(req.Query); perr != nil {
		return nil, "", perr
	}

	// Validated -> SchemaReady
	schema, err := step(ctx, StageSchemaReady, p.cache.Get)
	if err != nil {
		return nil, "", newError(KindSchemaFetch, StageSchemaReady, detailSchemaFail+err.Error(), err)
	}

	// SchemaReady -> PromptBuilt
	prompt := p.prompts.Build(req.Query, schema)

	// PromptBuilt -> Generated
	raw, err := step(ctx, StageGenerated, func(ctx context.Context) (string, error) {
		return p.generator.Generate(ctx, prompt)
	})
	if err != nil {
		return nil, "", newError(KindGenerationService, StageGenerated, detailGenerationFail+err.Error(), err)
	}

	// Generated -> Extracted
	stmt, err := ExtractSQL(raw)
	if err != nil {
		log.Debug().Str("request_id", req.ID).Str("raw_hash", security.HashString(raw)[:16]).Msg("no statement in completion")
		return nil, "", newError(KindInvalidGeneratedQuery, StageExtracted, detailInvalidQuery, err)
	}
	if n := CountStatements(raw); n > 1 {
		log.Warn().Str("request_id", req.ID).Int("statements", n).Msg("completion held several statements, using the first")
	}
	if p.sqlGuard != nil {
		if reason := p.sqlGuard.Validate(stmt); reason != "" {
			return nil, stmt, newError(KindInvalidGeneratedQuery, StageExtracted, detailInvalidQuery, fmt.Errorf("sql guard: %s", reason))
		}
	}

	// Extracted -> Executed
	res, err := step(ctx, StageExecuted, func(ctx context.Context) (*warehouse.Result, error) {
		return p.wh.Query(ctx, stmt)
	})
	if err != nil {
		if warehouse.IsQueryError(err) {
			return nil, stmt, newError(KindSQLExecution, StageExecuted, detailSQLFail+err.Error(), err)
		}
		return nil, stmt, newError(KindInternal, StageExecuted, detailInternal+err.Error(), err)
	}

	// Executed -> Responded happens in the transport layer.
	return &Outcome{SQL: stmt, Result: res}, stmt, nil
}

func (p *Pipeline) validate(query string) *Error {
	if strings.TrimSpace(query) == "" {
		return newError(KindValidation, StageValidated, detailEmptyQuery, nil)
	}
	if utf8.RuneCountInString(query) < MinQueryLength {
		return newError(KindValidation, StageValidated, detailShortQuery, nil)
	}
	if p.promptGuard != nil {
		if r := p.promptGuard.Validate(query); !r.Valid {
			return newError(KindValidation, StageValidated, "Invalid Input : "+r.Message, nil)
		}
	}
	return nil
}

// step runs one blocking stage inside its own span and records its latency.
func step[T any](ctx context.Context, stage Stage, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, "pipeline."+string(stage))
	defer span.End()

	start := time.Now()
	v, err := fn(ctx)
	d := time.Since(start)
	observability.ObserveStage(string(stage), d)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	log.Debug().Str("stage", string(stage)).Dur("duration", d).Bool("ok", err == nil).Msg("pipeline stage")
	return v, err
}
