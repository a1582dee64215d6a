// Package pipeline orchestrates feature runs: load the specification,
// synthesize the artifact set, pass the consistency gate, commit to the
// store, and register in the feature index. A run ends either stored and
// indexed or with one complete discrepancy report and nothing changed.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ssotgen/pkg/artifact"
	"ssotgen/pkg/index"
	"ssotgen/pkg/lint"
	"ssotgen/pkg/logx"
	"ssotgen/pkg/spec"
	"ssotgen/pkg/store"
	"ssotgen/pkg/synth"
)

// Result is the outcome of one feature run.
type Result struct {
	RunID     string
	FeatureID string
	Report    *lint.Report
	Locations store.Locations
	Stored    bool
	Elapsed   time.Duration
}

// Pipeline runs features end to end.
type Pipeline struct {
	synthesizer *synth.Synthesizer
	store       *store.Store
	index       *index.Index
	metrics     *Metrics
	logger      *logx.Logger
	locks       keyedMutex
}

// New wires a pipeline. metrics may be nil to skip instrumentation.
func New(synthesizer *synth.Synthesizer, st *store.Store, idx *index.Index, metrics *Metrics) *Pipeline {
	return &Pipeline{
		synthesizer: synthesizer,
		store:       st,
		index:       idx,
		metrics:     metrics,
		logger:      logx.NewLogger("pipeline"),
	}
}

// Run executes one feature run from a raw specification document. A blocked
// run (non-empty report) returns a Result with Stored=false and a nil error;
// errors are reserved for runs that could not complete.
func (p *Pipeline) Run(ctx context.Context, rawSpec []byte) (*Result, error) {
	fs, err := spec.Parse(rawSpec)
	if err != nil {
		p.metrics.observeRun(StatusFailed, 0)
		return nil, err
	}

	// Runs for the same feature are serialized; different features proceed
	// concurrently.
	unlock := p.locks.lock(fs.ID)
	defer unlock()

	started := time.Now()
	result := &Result{
		RunID:     uuid.NewString(),
		FeatureID: fs.ID,
	}
	p.logger.Info("run %s: feature %s", result.RunID, fs.ID)

	set, err := p.synthesizer.SynthesizeAll(ctx, fs)
	if err != nil {
		p.metrics.observeRun(StatusFailed, time.Since(started).Seconds())
		return nil, err
	}

	report, err := p.validate(ctx, fs, set)
	if err != nil {
		p.metrics.observeRun(StatusFailed, time.Since(started).Seconds())
		return nil, err
	}
	result.Report = report
	p.metrics.observeReport(report)

	if !report.Passed() {
		result.Elapsed = time.Since(started)
		p.metrics.observeRun(StatusBlocked, result.Elapsed.Seconds())
		p.logger.Warn("run %s: blocked, %d discrepancies", result.RunID, len(report.Discrepancies))
		return result, nil
	}

	// Last cancellation point before anything is persisted.
	if err := ctx.Err(); err != nil {
		p.metrics.observeRun(StatusFailed, time.Since(started).Seconds())
		return nil, fmt.Errorf("run %s canceled before commit: %w", result.RunID, err)
	}

	locations, err := p.store.Commit(fs.ID, set)
	if err != nil {
		p.metrics.observeRun(StatusFailed, time.Since(started).Seconds())
		return nil, err
	}
	if err := p.index.Update(ctx, fs.ID, locations); err != nil {
		return nil, err
	}

	result.Locations = locations
	result.Stored = true
	result.Elapsed = time.Since(started)
	p.metrics.observeRun(StatusStored, result.Elapsed.Seconds())
	p.logger.Info("run %s: stored and indexed %s in %s", result.RunID, fs.ID, result.Elapsed.Round(time.Millisecond))
	return result, nil
}

// validate runs the consistency gate with reference resolution against the
// current index contents. A feature may reference itself.
func (p *Pipeline) validate(ctx context.Context, fs *spec.FeatureSpec, set artifact.Set) (*lint.Report, error) {
	known, err := p.index.KnownFeatures(ctx)
	if err != nil {
		return nil, err
	}
	known[fs.ID] = true
	return lint.New(known).Validate(fs, set)
}

// keyedMutex serializes work per feature identifier.
type keyedMutex struct {
	locks sync.Map
}

func (k *keyedMutex) lock(key string) func() {
	v, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Outcome pairs one input document with its run result.
type Outcome struct {
	Source string
	Result *Result
	Err    error
}

// RunAll runs every specification concurrently and returns outcomes ordered
// by source name.
func (p *Pipeline) RunAll(ctx context.Context, specs map[string][]byte) []Outcome {
	outcomes := make([]Outcome, 0, len(specs))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for source, raw := range specs {
		wg.Add(1)
		go func(source string, raw []byte) {
			defer wg.Done()
			result, err := p.Run(ctx, raw)
			mu.Lock()
			outcomes = append(outcomes, Outcome{Source: source, Result: result, Err: err})
			mu.Unlock()
		}(source, raw)
	}
	wg.Wait()
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Source < outcomes[j].Source })
	return outcomes
}

// ValidateStored re-checks the committed artifacts of a feature against its
// specification, for CI gating. Missing slot files fail before any parsing.
func (p *Pipeline) ValidateStored(ctx context.Context, rawSpec []byte) (*lint.Report, error) {
	fs, err := spec.Parse(rawSpec)
	if err != nil {
		return nil, err
	}

	unlock := p.locks.lock(fs.ID)
	defer unlock()

	if missing := p.store.MissingSlots(fs.ID); len(missing) > 0 {
		return nil, fmt.Errorf("feature %s has missing artifact files: %v", fs.ID, missing)
	}

	set, err := p.store.Read(fs.ID)
	if err != nil {
		return nil, err
	}
	return p.validate(ctx, fs, set)
}
