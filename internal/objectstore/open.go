package objectstore

import (
	"context"

	"github.com/rs/zerolog"
)

// Open selects an object-store backend the same way cloud.OpenBucket
// does in the teacher: if cfg is fully configured, open the S3-compatible
// backend; otherwise fall back to a local directory and log a warning,
// matching spec.md §6's "upload is best-effort: if credentials are
// absent the core runs in local-only mode with a warning."
//
// Open never returns a nil Store with a nil error — callers that want
// the "nil means local-only" convention described in SPEC_FULL.md's
// Design Notes should use OpenUploader instead, which is what the
// Orchestrator actually wires for the optional remote-upload step.
func Open(ctx context.Context, cfg SpacesConfig, localDir string, log zerolog.Logger) (Store, error) {
	if cfg.Configured() {
		store, err := NewS3Store(ctx, cfg)
		if err == nil {
			return store, nil
		}
		log.Warn().Err(err).Msg("objectstore: failed to open Spaces backend, falling back to local-only mode")
	} else {
		log.Warn().Msg("objectstore: DIGITALOCEAN_SPACES_* not fully configured, running in local-only mode")
	}
	return NewLocalStore(localDir)
}

// OpenUploader returns a remote Store for best-effort uploads, or nil if
// Spaces is not configured or fails to open. A nil Store is the
// uniform "local-only mode" signal every uploader call site checks for
// before attempting a remote write (SPEC_FULL.md Design Notes: "the
// uploader is always interface-abstracted so nil means local-only mode
// uniformly").
func OpenUploader(ctx context.Context, cfg SpacesConfig, log zerolog.Logger) Store {
	if !cfg.Configured() {
		log.Warn().Msg("objectstore: DIGITALOCEAN_SPACES_* not fully configured, uploads disabled (local-only mode)")
		return nil
	}
	store, err := NewS3Store(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("objectstore: failed to open Spaces backend, uploads disabled (local-only mode)")
		return nil
	}
	return store
}
