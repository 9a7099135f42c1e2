package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alitto/pond"

	"github.com/imeteo/radarfusion/internal/compositor"
	"github.com/imeteo/radarfusion/internal/config"
	"github.com/imeteo/radarfusion/internal/matcher"
	"github.com/imeteo/radarfusion/internal/radar"
	"github.com/imeteo/radarfusion/internal/radarerr"
	"github.com/imeteo/radarfusion/internal/reproject"
)

// sourceLoad tracks one matched source's progress through the
// download → decode → reproject → compose pipeline for a single
// timestamp.
type sourceLoad struct {
	name      string
	candidate matcher.Candidate
	product   string

	frame          *radar.Frame // non-nil once decoded, nil again after release
	downloadedPath string       // non-empty if this run downloaded a temp file
	fromCache      bool
	err            error
}

// processMatch runs the per-timestamp two-pass pipeline from
// spec.md §4.8: concurrently download every matched source's file
// (network-bound, pooled per §5), then sequentially decode, reproject
// and compose one source at a time so at most one decoded frame is
// resident at once — the memory discipline §5 requires.
func (o *Orchestrator) processMatch(ctx context.Context, m matcher.Match) TimestampResult {
	names := orderedSources(m.Sources)
	if len(names) < o.Options.MinCoreSources {
		return TimestampResult{Timestamp: m.Timestamp, Status: "skipped_insufficient", Sources: names}
	}

	unixTS, err := unixSeconds(m.Timestamp)
	if err != nil {
		return TimestampResult{Timestamp: m.Timestamp, Status: "failed", Err: err}
	}
	compositePath := filepath.Join(o.OutputRoot, "composite", fmt.Sprintf("%d.png", unixTS))
	compositeKey := fmt.Sprintf("iradar/composite/%d.png", unixTS)
	if o.compositeAlreadyExists(ctx, compositePath, compositeKey) {
		return TimestampResult{Timestamp: m.Timestamp, Status: "skipped_exists", Sources: names}
	}

	loads := make([]*sourceLoad, len(names))
	for i, name := range names {
		product, err := o.product(name)
		if err != nil {
			product = ""
		}
		loads[i] = &sourceLoad{name: name, candidate: m.Sources[name], product: product}
	}

	o.fetchProcessedOrDownload(ctx, loads)

	comp := compositor.New(o.RefGrid)
	var processed []string
	var uploads []pendingUpload

	for _, load := range loads {
		if ctx.Err() != nil {
			break
		}
		upload, err := o.decodeReprojectCompose(ctx, load, comp, unixTS)
		if err != nil {
			o.Log.Warn().Err(err).Str("source", load.name).Str("timestamp", m.Timestamp).Msg("orchestrator: source failed for this timestamp, demoting to missing")
			continue
		}
		processed = append(processed, load.name)
		if upload != nil {
			uploads = append(uploads, *upload)
		}
	}

	if len(processed) < o.Options.MinCoreSources {
		comp.ClearCache()
		return TimestampResult{Timestamp: m.Timestamp, Status: "skipped_insufficient", Sources: processed}
	}

	composite := comp.GetComposite()
	comp.ClearCache()

	pngBytes, err := o.Encoder.Encode(composite.Data, composite.GridSize.Height, composite.GridSize.Width, o.ColorMap)
	if err != nil {
		return TimestampResult{Timestamp: m.Timestamp, Status: "failed", Sources: processed, Err: err}
	}
	if err := WriteFileAtomic(compositePath, pngBytes); err != nil {
		return TimestampResult{Timestamp: m.Timestamp, Status: "failed", Sources: processed, Err: err}
	}
	uploads = append(uploads, pendingUpload{localPath: compositePath, remoteKey: compositeKey})

	if !o.Options.DisableUpload && o.Remote != nil {
		for _, u := range uploads {
			if err := o.uploadFile(ctx, u); err != nil {
				o.Log.Warn().Err(err).Str("path", u.localPath).Msg("orchestrator: best-effort upload failed")
			}
		}
	}

	return TimestampResult{Timestamp: m.Timestamp, Status: "processed", Sources: processed}
}

// fetchProcessedOrDownload resolves every load's frame from the
// Processed-Data Cache where possible, then downloads the remaining
// misses concurrently through a bounded worker pool sized by
// MaxWorkers (spec.md §5: "network-bound pool ~6 concurrent ops/source
// sized by max_workers"). Decode itself is deferred to the later
// sequential pass.
func (o *Orchestrator) fetchProcessedOrDownload(ctx context.Context, loads []*sourceLoad) {
	maxWorkers := o.Options.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 6
	}
	pool := pond.New(maxWorkers, 0, pond.MinWorkers(1))

	for _, load := range loads {
		load := load
		if load.product == "" {
			load.err = fmt.Errorf("%w: no product resolved for source %q", radarerr.ErrConfig, load.name)
			continue
		}

		if o.ProcessedCache != nil {
			frame, ok, err := o.ProcessedCache.Get(ctx, load.name, load.candidate.Timestamp, load.product)
			if err != nil {
				o.Log.Debug().Err(err).Str("source", load.name).Msg("orchestrator: processed-cache read error, treating as miss")
			} else if ok {
				load.frame = frame
				load.fromCache = true
				continue
			}
		}

		adapter, ok := o.Adapters[load.name]
		if !ok {
			load.err = fmt.Errorf("%w: no adapter for %q", radarerr.ErrConfig, load.name)
			continue
		}
		pool.Submit(func() {
			dlCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
			defer cancel()
			results, err := adapter.Download(dlCtx, []string{load.candidate.Timestamp}, []string{load.product})
			if err != nil {
				load.err = fmt.Errorf("%s: download: %w", load.name, err)
				return
			}
			if len(results) == 0 {
				load.err = fmt.Errorf("%s: download returned no result", load.name)
				return
			}
			if results[0].Err != nil {
				load.err = fmt.Errorf("%s: download: %w", load.name, results[0].Err)
				return
			}
			load.downloadedPath = results[0].Path
		})
	}

	pool.StopAndWait()
}

// decodeReprojectCompose runs the sequential, memory-disciplined half
// of a source's pipeline: decode (if not already loaded from cache),
// export the per-source PNG while the frame is still resident,
// reproject onto the Reference Grid, fold into comp, then release the
// frame and its temp file before returning — no two decoded frames are
// ever resident together.
func (o *Orchestrator) decodeReprojectCompose(ctx context.Context, load *sourceLoad, comp *compositor.Compositor, unixTS int64) (*pendingUpload, error) {
	if load.err != nil {
		return nil, load.err
	}

	if load.frame == nil {
		if load.downloadedPath == "" {
			return nil, fmt.Errorf("%s: no data available", load.name)
		}
		adapter := o.Adapters[load.name]
		frame, err := adapter.Decode(ctx, load.downloadedPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", radarerr.ErrDecode, load.name, err)
		}
		if err := frame.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", radarerr.ErrDecode, load.name, err)
		}
		load.frame = frame
		if o.ProcessedCache != nil {
			if err := o.ProcessedCache.Put(ctx, load.name, load.product, frame, false); err != nil {
				o.Log.Warn().Err(err).Str("source", load.name).Msg("orchestrator: failed to write processed cache entry")
			}
		}
	}

	var upload *pendingUpload
	if !o.Options.NoIndividual {
		upload = o.writeIndividualPNG(load.name, unixTS, load.frame)
	}

	transformer, bounds, err := SourceGeometry(load.name, load.frame.Dims, load.frame.Bounds, load.frame.Projection)
	if err != nil {
		load.frame = nil
		return nil, err
	}
	reprojected, _, err := reproject.ReprojectCold(ctx, o.TransformCache, load.name, load.frame, transformer, bounds, o.RefGrid)
	if err != nil {
		load.frame = nil
		return nil, fmt.Errorf("%s: reproject: %w", load.name, err)
	}
	if err := comp.AddSource(load.name, reprojected); err != nil {
		load.frame = nil
		return nil, fmt.Errorf("%s: compose: %w", load.name, err)
	}

	// Memory discipline (spec.md §5): the reprojected gather has already
	// been folded into the accumulator, so the full source frame is
	// released here, before the next source's download/decode phase is
	// even considered.
	load.frame.Data = nil
	load.frame = nil
	if load.downloadedPath != "" {
		if err := os.Remove(load.downloadedPath); err != nil && !os.IsNotExist(err) {
			o.Log.Debug().Err(err).Str("path", load.downloadedPath).Msg("orchestrator: could not remove downloaded temp file")
		}
		load.downloadedPath = ""
	}

	return upload, nil
}

// writeIndividualPNG renders one source's own-projection frame (its
// native dBZ grid, not the reprojected gather folded into the
// composite) to "{root}/{country}/{unix_ts}.png", the per-source layout
// named in spec.md §6. Best-effort: a failure here only loses the
// side-car artifact, logged and otherwise ignored.
func (o *Orchestrator) writeIndividualPNG(name string, unixTS int64, frame *radar.Frame) *pendingUpload {
	country := config.Country[name]
	if country == "" {
		country = name
	}
	localPath := filepath.Join(o.OutputRoot, country, fmt.Sprintf("%d.png", unixTS))
	pngBytes, err := o.Encoder.Encode(frame.Data, frame.Dims.Height, frame.Dims.Width, o.ColorMap)
	if err != nil {
		o.Log.Warn().Err(err).Str("source", name).Msg("orchestrator: failed to encode per-source PNG")
		return nil
	}
	if err := WriteFileAtomic(localPath, pngBytes); err != nil {
		o.Log.Warn().Err(err).Str("source", name).Msg("orchestrator: failed to write per-source PNG")
		return nil
	}
	return &pendingUpload{localPath: localPath, remoteKey: fmt.Sprintf("iradar/%s/%d.png", country, unixTS)}
}

// compositeAlreadyExists implements spec.md §4.8's skip-early rule:
// "skip if the composite PNG already exists locally or in object
// store." The local stat is checked first since it's free; the remote
// Head call only runs on a local miss, so a run against a freshly
// wiped local output dir still finds an already-published composite
// instead of recomputing and re-uploading it.
func (o *Orchestrator) compositeAlreadyExists(ctx context.Context, localPath, remoteKey string) bool {
	if _, err := os.Stat(localPath); err == nil {
		return true
	}
	if o.Remote == nil {
		return false
	}
	exists, err := o.Remote.Head(ctx, remoteKey)
	if err != nil {
		o.Log.Debug().Err(err).Str("key", remoteKey).Msg("orchestrator: remote Head check failed, treating as miss")
		return false
	}
	return exists
}

func (o *Orchestrator) uploadFile(ctx context.Context, u pendingUpload) error {
	data, err := os.ReadFile(u.localPath)
	if err != nil {
		return err
	}
	return o.Remote.Put(ctx, u.remoteKey, data)
}
