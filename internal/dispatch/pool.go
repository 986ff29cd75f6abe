// Package dispatch runs the conversion of every stale file of every profile
// on a bounded pool of workers.
package dispatch

import (
	"context"
	"runtime"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/harrison/tern/internal/models"
	"github.com/harrison/tern/internal/staleness"
	"github.com/harrison/tern/internal/walker"
)

// Converter performs one file conversion. engine.Invoker implements it.
type Converter interface {
	Convert(ctx context.Context, engineName, src, dst string, options []string) (bool, error)
}

// MetadataSink receives one update per successful conversion. It must not
// block on store I/O.
type MetadataSink interface {
	Upsert(update models.MetadataUpdate) error
}

// Cancellation is peeked before each unit of work starts.
type Cancellation interface {
	IsSet() bool
}

// Logger defines the interface for logging pool progress and results.
type Logger interface {
	LogProfileStart(profile models.Profile)
	LogProfileComplete(profile models.Profile, result models.ProfileResult)
	LogFileResult(result models.FileResult)
	Warnf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Policy controls fan-out and what the pool does with stale files.
type Policy struct {
	ParallelProfiles bool
	ParallelFiles    bool
	MaxWorkers       int // concurrent conversions across all profiles; 0 = number of CPUs
	MaxProfiles      int // concurrent profiles when parallel; 0 = unlimited
	IncludeHidden    bool
	Force            bool
	DryRun           bool // report stale files without converting them
}

// Pool dispatches conversions.
type Pool struct {
	converter Converter
	sink      MetadataSink
	cancel    Cancellation
	logger    Logger
	policy    Policy
}

// NewPool creates a Pool. The logger may be nil.
func NewPool(converter Converter, sink MetadataSink, cancel Cancellation, logger Logger, policy Policy) *Pool {
	return &Pool{
		converter: converter,
		sink:      sink,
		cancel:    cancel,
		logger:    logger,
		policy:    policy,
	}
}

// Workers returns the effective number of concurrent conversions.
func (p *Pool) Workers() int {
	if p.policy.MaxWorkers > 0 {
		return p.policy.MaxWorkers
	}
	return runtime.NumCPU()
}

func (p *Pool) profileLimit() int {
	switch {
	case !p.policy.ParallelProfiles:
		return 1
	case p.policy.MaxProfiles > 0:
		return p.policy.MaxProfiles
	default:
		return -1
	}
}

// run is the mutable state of one Pool.Run call.
type run struct {
	pool    *Pool
	workers *semaphore.Weighted
	mu      sync.Mutex
	result  models.RunResult
}

// Run converts every stale file of profiles and returns the totals. Once
// cancellation is observed no new profile or file starts; conversions
// already running finish and Run returns when they have.
func (p *Pool) Run(ctx context.Context, profiles []models.Profile) models.RunResult {
	start := time.Now()
	r := &run{
		pool:    p,
		workers: semaphore.NewWeighted(int64(p.Workers())),
		result:  models.RunResult{TotalProfiles: len(profiles)},
	}

	g := new(errgroup.Group)
	g.SetLimit(p.profileLimit())

	for i := range profiles {
		if p.cancelled(ctx) {
			break
		}
		profile := profiles[i].Snapshot()
		g.Go(func() error {
			pr := r.runProfile(ctx, &profile)
			r.mu.Lock()
			r.result.Profiles = append(r.result.Profiles, pr)
			r.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(r.result.Profiles, func(a, b models.ProfileResult) int {
		switch {
		case a.ProfileID < b.ProfileID:
			return -1
		case a.ProfileID > b.ProfileID:
			return 1
		}
		return 0
	})
	r.result.Cancelled = p.cancelled(ctx)
	r.result.Duration = time.Since(start)
	return r.result
}

func (p *Pool) cancelled(ctx context.Context) bool {
	return (p.cancel != nil && p.cancel.IsSet()) || ctx.Err() != nil
}

func (r *run) runProfile(ctx context.Context, profile *models.Profile) models.ProfileResult {
	p := r.pool
	start := time.Now()
	pr := models.ProfileResult{ProfileID: profile.ID}

	if p.cancelled(ctx) {
		return pr
	}
	if p.logger != nil {
		p.logger.LogProfileStart(*profile)
	}

	w, err := walker.New(profile, p.policy.IncludeHidden)
	if err != nil {
		pr.Error = err
		if p.logger != nil {
			p.logger.Warnf("Profile %s skipped: %v", profile.Label(), err)
			p.logger.LogProfileComplete(*profile, pr)
		}
		return pr
	}
	w.OnError = func(err error) {
		if p.logger != nil {
			p.logger.Warnf("%v", err)
		}
	}

	var wg sync.WaitGroup
	for src := range w.Files() {
		if p.cancelled(ctx) {
			break
		}

		verdict, err := staleness.Evaluate(src, profile, p.policy.Force)
		switch {
		case err != nil:
			r.record(&pr, models.FileResult{
				ProfileID:  profile.ID,
				SourceFile: src,
				Status:     models.StatusFaulted,
				Error:      err,
			})
			continue
		case !verdict.Stale:
			r.record(&pr, fileResult(profile, src, verdict, models.StatusUpToDate))
			continue
		case p.policy.DryRun:
			r.record(&pr, fileResult(profile, src, verdict, models.StatusPlanned))
			continue
		}

		if err := r.workers.Acquire(ctx, 1); err != nil {
			break
		}

		if !p.policy.ParallelFiles {
			r.record(&pr, r.convert(ctx, profile, src, verdict))
			r.workers.Release(1)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer r.workers.Release(1)
			fr := r.convert(ctx, profile, src, verdict)
			r.record(&pr, fr)
		}()
	}
	wg.Wait()

	pr.Duration = time.Since(start)
	if p.logger != nil {
		p.logger.LogProfileComplete(*profile, pr)
	}
	return pr
}

// convert runs one stale file. The caller holds a worker slot.
func (r *run) convert(ctx context.Context, profile *models.Profile, src string, verdict staleness.Verdict) models.FileResult {
	p := r.pool

	// A unit that waited for its slot must not start after cancellation.
	if p.cancelled(ctx) {
		return fileResult(profile, src, verdict, models.StatusSkipped)
	}

	start := time.Now()
	fr := fileResult(profile, src, verdict, models.StatusConverted)
	ok, err := p.converter.Convert(ctx, profile.Engine, src, verdict.OutputPath, profile.Options)
	fr.Duration = time.Since(start)

	switch {
	case err != nil:
		fr.Status = models.StatusFaulted
		fr.Error = err
	case !ok:
		fr.Status = models.StatusFailed
	default:
		update := models.MetadataUpdate{
			ProfileID:  profile.ID,
			SourceFile: src,
			MTime:      verdict.MTime,
		}
		if err := p.sink.Upsert(update); err != nil {
			r.mu.Lock()
			r.result.PersistenceFaults++
			r.mu.Unlock()
			if p.logger != nil {
				p.logger.Warnf("Metadata for %s not queued: %v", src, err)
			}
		}
	}

	return fr
}

func (r *run) record(pr *models.ProfileResult, fr models.FileResult) {
	r.mu.Lock()
	r.result.Add(fr)
	pr.Add(fr)
	r.mu.Unlock()

	if r.pool.logger != nil {
		r.pool.logger.LogFileResult(fr)
	}
}

func fileResult(profile *models.Profile, src string, verdict staleness.Verdict, status string) models.FileResult {
	return models.FileResult{
		ProfileID:  profile.ID,
		SourceFile: src,
		OutputFile: verdict.OutputPath,
		Status:     status,
	}
}
