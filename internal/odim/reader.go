// Package odim defines the contract this pipeline needs from an ODIM
// HDF5 reader for the DWD/SHMU/CHMI/IMGW source adapters. HDF5 parsing
// is an out-of-scope external collaborator (spec.md §1: "HDF5/netCDF
// parser libraries" are named as something the core consumes, not
// reimplements) — no HDF5 binding appears anywhere in this module's
// reference corpus, so rather than vendor or hand-roll a binary HDF5
// parser, this package only defines the attribute/dataset contract the
// decoders need. A concrete Reader is wired in by the caller.
package odim

import (
	"context"
	"fmt"

	"github.com/imeteo/radarfusion/internal/radarerr"
)

// Reader reads the subset of the ODIM_H5 layout the adapters need:
// `where`/`what` group attributes and the `dataset1/data1/data` array,
// per the wire format named in SPEC_FULL.md §6 ("Wire formats
// consumed").
type Reader interface {
	// Open prepares path for reading. Implementations may eagerly read
	// the file or lazily open a handle; Close releases any resources.
	Open(ctx context.Context, path string) (File, error)
}

// File is a single open ODIM_H5 file.
type File interface {
	// Attr reads a named attribute from the given group path (e.g.
	// "where", "dataset1/what", "dataset1/data1/what"), returning it
	// as a string — numeric attributes are returned in their decimal
	// string form so callers parse with strconv, matching how
	// where_attrs values arrive as either bytes or scalars upstream.
	Attr(group, name string) (string, bool, error)

	// DataShape returns the (height, width) of dataset1/data1/data
	// without reading the array itself — the basis for
	// DecodeExtentOnly's "no full data load" contract.
	DataShape() (height, width int, err error)

	// Data reads dataset1/data1/data in full, row-major, as raw
	// (unscaled) values. Callers apply gain/offset/nodata themselves.
	Data() ([]float64, error)

	Close() error
}

// Unimplemented is the default Reader wired by cmd/radarfusion when no
// HDF5 binding has been configured: it fails every Open with a clear,
// actionable radarerr.ErrConfig rather than leaving the DWD/SHMU/CHMI/
// IMGW adapters to panic on a nil Reader. Swap it for a real binding
// (there is none in this module's reference corpus to wire — see
// DESIGN.md) once one is available.
type Unimplemented struct{}

func (Unimplemented) Open(ctx context.Context, path string) (File, error) {
	return nil, fmt.Errorf("%w: no ODIM HDF5 reader configured (internal/odim.Reader is an injected collaborator with no bundled implementation)", radarerr.ErrConfig)
}
