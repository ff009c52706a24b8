package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/incydecy/internal/database"
	"github.com/TobiSchelling/incydecy/internal/karma"
	"github.com/TobiSchelling/incydecy/internal/source"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a pipeline run.
type Result struct {
	GuildID    string
	Steps      []StepResult
	Tally      *karma.Tally
	Reconciled *database.ReconcileResult
}

// Options are the per-run inputs of the pipeline.
type Options struct {
	GuildID  string
	PageSize int
}

// Pipeline scans an archive, tallies karma, and reconciles it into the
// destination database.
type Pipeline struct {
	opts  Options
	db    *database.DB
	pager source.Pager
}

// New creates a new pipeline. db may be nil for dry runs. If pager is an
// io.Closer it is closed once the scan ends, before anything is written.
func New(opts Options, db *database.DB, pager source.Pager) *Pipeline {
	return &Pipeline{opts: opts, db: db, pager: pager}
}

// Run scans the whole archive and reconciles the tally. A failed step
// aborts the run and its error is returned; the Result still lists the
// steps that ran.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if p.db == nil {
		return nil, errors.New("pipeline: no destination database")
	}
	r := &Result{GuildID: p.opts.GuildID}

	tally, step := p.runScan(ctx)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r, step.Err
	}
	r.Tally = tally

	res, step := p.runReconcile(ctx, tally)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r, step.Err
	}
	r.Reconciled = res

	return r, nil
}

// DryRun scans and tallies without writing anything.
func (p *Pipeline) DryRun(ctx context.Context) (*Result, error) {
	r := &Result{GuildID: p.opts.GuildID}

	tally, step := p.runScan(ctx)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r, step.Err
	}
	r.Tally = tally

	r.Steps = append(r.Steps, StepResult{
		Name: "Reconcile",
		Summary: fmt.Sprintf("[dry-run] would write %d messages and %d values for guild %s",
			len(tally.Entries()), len(tally.Deltas), p.opts.GuildID),
	})
	return r, nil
}

// Scan walks the archive and returns the tally of every matching message.
func (p *Pipeline) Scan(ctx context.Context) (*karma.Tally, error) {
	tally, step := p.runScan(ctx)
	return tally, step.Err
}

func (p *Pipeline) runScan(ctx context.Context) (*karma.Tally, StepResult) {
	log.Info().Int("page_size", p.opts.PageSize).Msg("Step 1/2: Scanning messages...")

	if c, ok := p.pager.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				log.Warn().Err(err).Msg("closing source")
			}
		}()
	}

	tally := karma.NewTally()
	sc := source.NewScanner(p.pager, p.opts.PageSize)
	pages := 0
	for sc.Next(ctx) {
		if sc.Pages() != pages {
			pages = sc.Pages()
			log.Debug().Int("page", pages).Int("offset", sc.Offset()).Msg("read page")
		}
		tally.Add(sc.Record())
	}
	if err := sc.Err(); err != nil {
		return nil, StepResult{Name: "Scan", Err: err}
	}

	log.Info().
		Int("scanned", tally.Scanned()).
		Int("positive", len(tally.Positive)).
		Int("negative", len(tally.Negative)).
		Int("things", len(tally.Deltas)).
		Msg("scan complete")

	return tally, StepResult{
		Name: "Scan",
		Summary: fmt.Sprintf("Scanned %d messages: %d positive, %d negative, %d things",
			tally.Scanned(), len(tally.Positive), len(tally.Negative), len(tally.Deltas)),
	}
}

func (p *Pipeline) runReconcile(ctx context.Context, tally *karma.Tally) (*database.ReconcileResult, StepResult) {
	log.Info().Str("guild", p.opts.GuildID).Msg("Step 2/2: Reconciling values...")

	res, err := p.db.Reconcile(ctx, p.opts.GuildID, tally)
	if err != nil {
		return nil, StepResult{Name: "Reconcile", Err: err}
	}
	return res, StepResult{
		Name:    "Reconcile",
		Summary: fmt.Sprintf("Saved %d messages and %d values", res.Messages, res.Things),
	}
}
