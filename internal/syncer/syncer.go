// Package syncer drives one full synchronization run from the control-plane
// search API into the catalog.
//
// A run authenticates against the catalog once, then fetches, transforms
// and upserts every mapped type in turn. Services go first because API
// version relations are resolved against them. Only an authentication
// failure stops a run; fetch, transform and upsert failures are recorded
// in the Report and the run carries on.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/blackwell-systems/catalog-sync/internal/konnect"
	"github.com/blackwell-systems/catalog-sync/internal/mapping"
	"github.com/blackwell-systems/catalog-sync/internal/port"
	"github.com/blackwell-systems/catalog-sync/internal/transform"
)

// Source fetches raw entities by type
type Source interface {
	FetchEntities(ctx context.Context, typ string) konnect.FetchResult
}

// Target receives transformed entities
type Target interface {
	Authenticate(ctx context.Context) (string, error)
	Upsert(ctx context.Context, blueprint string, entities []transform.TargetEntity, token string) []port.UpsertResult
}

// Options configures a Syncer
type Options struct {
	Source   Source
	Target   Target
	Registry *transform.Registry
	Mapping  mapping.Mapping
	Logger   logr.Logger
	Tracer   trace.Tracer

	// DryRun skips authentication and upserts; transformed entities are
	// kept in the report instead.
	DryRun bool

	// OnType, when set, is called after each type finishes.
	OnType func(TypeReport)
}

// Syncer runs the pipeline
type Syncer struct {
	opts Options
}

// New creates a Syncer
func New(opts Options) *Syncer {
	if opts.Registry == nil {
		opts.Registry = transform.NewRegistry("")
	}
	if opts.Mapping == nil {
		opts.Mapping = mapping.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Syncer{opts: opts}
}

// Run performs one full sync. The returned error is non-nil only when
// the catalog rejects authentication, in which case nothing was fetched
// or pushed. Partial failures are reported through Report.Err.
func (s *Syncer) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		DryRun:  s.opts.DryRun,
	}
	log := s.opts.Logger.WithValues("runID", report.RunID)

	ctx, span := s.opts.Tracer.Start(ctx, "sync.run", trace.WithAttributes(
		attribute.String("sync.run_id", report.RunID),
		attribute.Bool("sync.dry_run", s.opts.DryRun),
	))
	defer span.End()

	var token string
	if !s.opts.DryRun {
		var err error
		token, err = s.opts.Target.Authenticate(ctx)
		if err != nil {
			log.Error(err, "authentication failed, aborting run")
			span.RecordError(err)
			span.SetStatus(codes.Error, "authentication failed")
			return nil, fmt.Errorf("run %s aborted: %w", report.RunID, err)
		}
	}

	typeCtx, typeSpan := s.startType(ctx, transform.TypeService)
	fetched := s.opts.Source.FetchEntities(typeCtx, transform.TypeService)
	services := transform.ServiceCache(fetched.Entities)
	log.V(1).Info("service cache populated", "count", len(services))

	if blueprint, ok := s.opts.Mapping.Blueprint(transform.TypeService); ok {
		s.record(report, s.process(typeCtx, log, fetched, blueprint, services, token), typeSpan)
	} else {
		if fetched.Err != nil {
			log.Error(fetched.Err, "services unavailable for relation lookups")
			typeSpan.RecordError(fetched.Err)
		}
		typeSpan.End()
	}

	for _, entry := range s.opts.Mapping {
		if entry.Type == transform.TypeService {
			continue
		}
		log.Info("syncing type", "type", entry.Type, "blueprint", entry.Blueprint)

		typeCtx, typeSpan := s.startType(ctx, entry.Type)
		result := s.opts.Source.FetchEntities(typeCtx, entry.Type)
		s.record(report, s.process(typeCtx, log, result, entry.Blueprint, services, token), typeSpan)
	}

	report.Finished = time.Now()
	totals := report.Totals()
	span.SetAttributes(
		attribute.Int("sync.pushed", totals.Pushed),
		attribute.Int("sync.failed", totals.Failed),
		attribute.Int("sync.skipped", totals.Skipped),
	)
	log.Info("run finished", "pushed", totals.Pushed, "failed", totals.Failed)
	return report, nil
}

func (s *Syncer) startType(ctx context.Context, typ string) (context.Context, trace.Span) {
	return s.opts.Tracer.Start(ctx, "sync.type", trace.WithAttributes(attribute.String("sync.type", typ)))
}

// record adds tr to the report and ends its span
func (s *Syncer) record(report *Report, tr TypeReport, span trace.Span) {
	span.SetAttributes(
		attribute.String("sync.blueprint", tr.Blueprint),
		attribute.Int("sync.fetched", tr.Fetched),
		attribute.Int("sync.pushed", tr.Pushed),
		attribute.Int("sync.failed", tr.Failed),
		attribute.Int("sync.skipped", tr.Skipped),
	)
	if err := tr.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	report.Types = append(report.Types, tr)
	if s.opts.OnType != nil {
		s.opts.OnType(tr)
	}
}

func (s *Syncer) process(ctx context.Context, log logr.Logger, fetched konnect.FetchResult, blueprint string, services transform.ServiceCache, token string) TypeReport {
	tr := TypeReport{
		Type:       fetched.Type,
		Blueprint:  blueprint,
		Fetched:    len(fetched.Entities) + len(fetched.DecodeErrs),
		Skipped:    len(fetched.DecodeErrs),
		FetchErr:   fetched.Err,
		DecodeErrs: fetched.DecodeErrs,
	}

	t := s.opts.Registry.For(fetched.Type)
	if !s.opts.Registry.Known(fetched.Type) {
		log.Info("no dedicated transformer, shaping records generically", "type", fetched.Type)
	}

	entities, errs := transform.TransformAll(t, fetched.Entities, services)
	tr.Skipped += len(errs)
	tr.TransformErrs = errs
	for _, err := range errs {
		log.Error(err, "skipping entity", "type", fetched.Type)
	}

	if s.opts.DryRun {
		tr.Entities = entities
		return tr
	}

	for _, r := range s.opts.Target.Upsert(ctx, blueprint, entities, token) {
		if r.OK() {
			tr.Pushed++
			continue
		}
		tr.Failed++
		tr.UpsertErrs = append(tr.UpsertErrs, r)
	}

	return tr
}
