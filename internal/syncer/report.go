package syncer

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/blackwell-systems/catalog-sync/internal/port"
	"github.com/blackwell-systems/catalog-sync/internal/transform"
)

// Report summarizes one run
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	DryRun   bool
	Types    []TypeReport
}

// TypeReport is the outcome for one source type
type TypeReport struct {
	Type      string
	Blueprint string
	Fetched   int
	Pushed    int
	Failed    int
	Skipped   int

	FetchErr      error
	DecodeErrs    []error
	TransformErrs []error
	UpsertErrs    []port.UpsertResult

	// Entities is only filled in dry runs.
	Entities []transform.TargetEntity
}

// Totals is the sum of per-type counters
type Totals struct {
	Fetched int
	Pushed  int
	Failed  int
	Skipped int
}

// Totals adds up the counters of every type
func (r *Report) Totals() Totals {
	var t Totals
	for _, tr := range r.Types {
		t.Fetched += tr.Fetched
		t.Pushed += tr.Pushed
		t.Failed += tr.Failed
		t.Skipped += tr.Skipped
	}
	return t
}

// Duration is the wall time of the run
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Err combines every partial failure of the run, or nil for a clean run
func (r *Report) Err() error {
	var err error
	for _, tr := range r.Types {
		err = multierr.Append(err, tr.Err())
	}
	return err
}

// Err combines the failures recorded for this type
func (tr TypeReport) Err() error {
	var err error
	if tr.FetchErr != nil {
		err = multierr.Append(err, tr.FetchErr)
	}
	for _, e := range tr.DecodeErrs {
		err = multierr.Append(err, e)
	}
	for _, e := range tr.TransformErrs {
		err = multierr.Append(err, e)
	}
	for _, u := range tr.UpsertErrs {
		err = multierr.Append(err, fmt.Errorf("%s/%s: %w", u.Blueprint, u.Identifier, u.Err))
	}
	return err
}
