// Package orchestrator implements the Orchestrator (C8): the
// top-level run loop wiring every other component — probe, outage
// gate, timestamp match, per-timestamp reproject/composite, upload,
// summary — per SPEC_FULL.md §4.8.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/imeteo/radarfusion/internal/matcher"
	"github.com/imeteo/radarfusion/internal/objectstore"
	"github.com/imeteo/radarfusion/internal/outage"
	"github.com/imeteo/radarfusion/internal/pngio"
	"github.com/imeteo/radarfusion/internal/processedcache"
	"github.com/imeteo/radarfusion/internal/radar"
	"github.com/imeteo/radarfusion/internal/radarerr"
	"github.com/imeteo/radarfusion/internal/sources"
	"github.com/imeteo/radarfusion/internal/transformcache"
	"github.com/rs/zerolog"
)

// Options configures one run, layering the `composite` subcommand's
// flags (spec.md §6) over the degradation-ladder and outage-gate
// defaults.
type Options struct {
	TimestampToleranceMinutes int
	CoreQuorum                int
	MaxDataAge                time.Duration
	MinCoreSources            int
	ReprocessCount            int
	MaxWorkers                int
	DisableUpload             bool
	NoIndividual              bool
}

// Per-HTTP-op timeout budgets from spec.md §5, applied independently of
// any caller-supplied deadline so one stuck request cannot stall a
// whole run.
const (
	listingTimeout  = 15 * time.Second
	downloadTimeout = 30 * time.Second
)

// DefaultOptions mirrors the CLI defaults named in spec.md §6.
func DefaultOptions() Options {
	return Options{
		TimestampToleranceMinutes: 10,
		CoreQuorum:                outage.DefaultMinCoreSources,
		MaxDataAge:                outage.DefaultMaxDataAge,
		MinCoreSources:            outage.DefaultMinCoreSources,
		ReprocessCount:            1,
		MaxWorkers:                6,
	}
}

// Orchestrator wires the Source Adapters, both caches, the object
// store and the Reference Grid into the run loop from spec.md §4.8.
type Orchestrator struct {
	Adapters       map[string]sources.Adapter
	Products       map[string]string
	ProcessedCache *processedcache.Cache
	TransformCache *transformcache.Cache
	Remote         objectstore.Store
	RefGrid        radar.ReferenceGrid
	Encoder        pngio.Encoder
	ColorMap       pngio.ColorMap
	OutputRoot     string
	Options        Options
	Log            zerolog.Logger
}

// New builds an Orchestrator. remote may be nil for local-only mode
// (objectstore's documented nil-means-local-only convention).
func New(adapters map[string]sources.Adapter, processedCache *processedcache.Cache, transformCache *transformcache.Cache, remote objectstore.Store, refGrid radar.ReferenceGrid, outputRoot string, opts Options, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		Adapters:       adapters,
		Products:       map[string]string{},
		ProcessedCache: processedCache,
		TransformCache: transformCache,
		Remote:         remote,
		RefGrid:        refGrid,
		Encoder:        pngio.DefaultEncoder{},
		OutputRoot:     outputRoot,
		Options:        opts,
		Log:            log,
	}
}

func (o *Orchestrator) product(source string) (string, error) {
	if p, ok := o.Products[source]; ok && p != "" {
		return p, nil
	}
	return defaultProduct(source)
}

// Summary is the run report spec.md §4.8 names:
// "{processed, skipped_exists, skipped_insufficient, failed}".
type Summary struct {
	Processed           int
	SkippedExists        int
	SkippedInsufficient  int
	Failed               int
	Timestamps           []TimestampResult
}

// TimestampResult records one matched window's outcome.
type TimestampResult struct {
	Timestamp string
	Status    string // "processed", "skipped_exists", "skipped_insufficient", "failed"
	Sources   []string
	Err       error
}

func (s *Summary) record(r TimestampResult) {
	s.Timestamps = append(s.Timestamps, r)
	switch r.Status {
	case "processed":
		s.Processed++
	case "skipped_exists":
		s.SkippedExists++
	case "skipped_insufficient":
		s.SkippedInsufficient++
	case "failed":
		s.Failed++
	}
}

// RunLatest processes the ReprocessCount most recent matched
// timestamps across sourceNames.
func (o *Orchestrator) RunLatest(ctx context.Context, sourceNames []string) (Summary, error) {
	return o.run(ctx, sourceNames, nil, nil)
}

// RunBackload processes every matched timestamp in [start, end).
// ARSO has no public archive (spec.md §4.1), so it is silently
// excluded from a backload run rather than failing the whole run.
func (o *Orchestrator) RunBackload(ctx context.Context, sourceNames []string, start, end time.Time) (Summary, error) {
	if !end.After(start) {
		return Summary{}, fmt.Errorf("%w: backload end %s is not after start %s", radarerr.ErrConfig, end, start)
	}
	filtered := make([]string, 0, len(sourceNames))
	for _, s := range sourceNames {
		if s == matcher.ArsoSource {
			o.Log.Warn().Msg("orchestrator: arso has no archive, excluding from backload run")
			continue
		}
		filtered = append(filtered, s)
	}
	return o.run(ctx, filtered, &start, &end)
}

func (o *Orchestrator) run(ctx context.Context, sourceNames []string, start, end *time.Time) (Summary, error) {
	for _, name := range sourceNames {
		if _, ok := o.Adapters[name]; !ok {
			return Summary{}, fmt.Errorf("%w: no adapter registered for source %q", radarerr.ErrConfig, name)
		}
	}

	bySource, newest, err := o.probe(ctx, sourceNames, start, end)
	if err != nil {
		return Summary{}, err
	}

	reports := outage.Classify(sourceNames, newest, o.Options.MaxDataAge, time.Now().UTC())
	for _, r := range reports {
		if r.Status == outage.Outage {
			o.Log.Warn().Str("source", r.Source).Str("reason", r.Reason).Msg("orchestrator: source unavailable")
		}
	}
	if err := outage.Gate(reports, o.Options.MinCoreSources); err != nil {
		return Summary{}, err
	}

	reprocessCount := o.Options.ReprocessCount
	if start != nil && end != nil {
		// Backload mode: the window defines how many matches to keep,
		// not a fixed recent-N count. maxCount is generous; MatchWithLadder
		// still stops once it runs out of candidates in range.
		reprocessCount = 1 << 20
	}
	matches := matcher.MatchWithLadder(bySource, o.Options.TimestampToleranceMinutes, o.Options.CoreQuorum, reprocessCount)

	var summary Summary
	for _, m := range matches {
		if ctx.Err() != nil {
			break
		}
		result := o.processMatch(ctx, m)
		summary.record(result)
		if result.Status == "processed" {
			o.Log.Info().Str("timestamp", m.Timestamp).Strs("sources", result.Sources).Msg("orchestrator: composite written")
		}
	}

	for _, name := range sourceNames {
		if adapter, ok := o.Adapters[name]; ok {
			adapter.CleanupTempFiles()
		}
	}

	return summary, nil
}

// probe fans out ListAvailableTimestamps across sourceNames
// concurrently (errgroup, one goroutine per source — at most six,
// matching the provider count, so no separate pool sizing is needed
// here: the network-bound worker pool from spec.md §5 applies to the
// higher-volume per-timestamp download phase, not this one-shot
// per-source listing).
func (o *Orchestrator) probe(ctx context.Context, sourceNames []string, start, end *time.Time) (map[string][]matcher.Candidate, map[string]time.Time, error) {
	var mu sync.Mutex
	bySource := make(map[string][]matcher.Candidate, len(sourceNames))
	newest := make(map[string]time.Time, len(sourceNames))

	g, gctx := errgroup.WithContext(ctx)
	maxWorkers := o.Options.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 6
	}
	g.SetLimit(maxWorkers)
	for _, name := range sourceNames {
		name := name
		g.Go(func() error {
			adapter := o.Adapters[name]
			product, err := o.product(name)
			if err != nil {
				return err
			}
			count := o.Options.ReprocessCount * 3
			if count < 6 {
				count = 6
			}
			// Listing gets its own 15s budget independent of the
			// errgroup's overall ctx, per spec.md §5's per-HTTP-op
			// timeout table.
			listCtx, cancel := context.WithTimeout(gctx, listingTimeout)
			defer cancel()
			timestamps, err := adapter.ListAvailableTimestamps(listCtx, count, []string{product}, start, end)
			if err != nil {
				// Adapter-level failure: isolate the source rather than
				// aborting the whole run (spec.md §7's propagation
				// policy) — the outage gate below decides whether the
				// remaining sources still meet quorum.
				o.Log.Warn().Err(err).Str("source", name).Msg("orchestrator: probe failed, treating source as unavailable for this run")
				return nil
			}
			candidates := make([]matcher.Candidate, len(timestamps))
			for i, ts := range timestamps {
				candidates[i] = matcher.Candidate{Timestamp: ts}
			}
			t, ok := parseTimestamp(firstOrEmpty(timestamps))

			mu.Lock()
			bySource[name] = candidates
			if ok {
				newest[name] = t
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return bySource, newest, nil
}

func firstOrEmpty(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}
