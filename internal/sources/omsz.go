package sources

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/ctessum/cdf"
	"github.com/rs/zerolog"

	"github.com/imeteo/radarfusion/internal/httpfetch"
	"github.com/imeteo/radarfusion/internal/radar"
	"github.com/imeteo/radarfusion/internal/radarerr"
)

// omszVariableNames is the product-variable search order — the file
// name decides which one is present (spec.md §4.1).
var omszVariableNames = []string{"refl2D", "refl2D_pscappi", "refl3D"}

const (
	omszGain   = 0.5
	omszOffset = -32.0
)

// OMSZ is the Hungarian Meteorological Service adapter: netCDF-in-ZIP,
// read with the teacher's vendored netCDF reader rather than any HDF5
// binding. Its byte variable is netCDF NC_BYTE, which this library
// already surfaces as []uint8 — so the "int8 wraps negative above 127"
// trap that trips up numpy-based readers doesn't recur at this layer;
// the nodata classes (255, 0) below are still checked against the
// unsigned byte value per spec.md §4.1.
type OMSZ struct {
	base
	baseURL string
}

func NewOMSZ(client httpfetch.Client, log zerolog.Logger) *OMSZ {
	return &OMSZ{
		base:    newBase("omsz", client, DefaultRetryConfig, log),
		baseURL: "https://odp.met.hu/weather/radar/composite/nc",
	}
}

// omszProduct maps our public product name to OMSZ's netCDF variable.
var omszProduct = map[string]string{
	"cmax":    "refl2D",
	"pscappi": "refl2D_pscappi",
	"refl3d":  "refl3D",
}

func (o *OMSZ) productURL(product, timestamp string) (string, error) {
	ncVar, ok := omszProduct[product]
	if !ok {
		return "", fmt.Errorf("%w: omsz: unknown product %q", radarerr.ErrConfig, product)
	}
	if len(timestamp) != 14 {
		return "", fmt.Errorf("%w: omsz: timestamp %q is not 14 digits", radarerr.ErrConfig, timestamp)
	}
	dateStr, timeStr := timestamp[:8], timestamp[8:12]
	return fmt.Sprintf("%s/%s/radar_composite-%s-%s_%s.nc.zip", o.baseURL, ncVar, ncVar, dateStr, timeStr), nil
}

func (o *OMSZ) ListAvailableTimestamps(ctx context.Context, count int, products []string, start, end *time.Time) ([]string, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: omsz: no products requested", radarerr.ErrConfig)
	}
	candidates := generateTimestampCandidates(count, start, end)
	var found []string
	for _, ts := range candidates {
		url, err := o.productURL(products[0], ts)
		if err != nil {
			return nil, err
		}
		resp, err := o.http.Head(ctx, url)
		if err == nil && resp.StatusCode == 200 {
			found = append(found, ts)
		}
	}
	return found, nil
}

func (o *OMSZ) Download(ctx context.Context, timestamps, products []string) ([]DownloadResult, error) {
	var results []DownloadResult
	for _, product := range products {
		for _, ts := range timestamps {
			if path, ok := o.cachedPath(ts, product); ok {
				results = append(results, DownloadResult{Timestamp: ts, Product: product, Path: path, CachedInSession: true})
				continue
			}
			path, err := o.downloadOne(ctx, ts, product)
			results = append(results, DownloadResult{Timestamp: ts, Product: product, Path: path, Err: err})
			if err == nil {
				o.rememberPath(ts, product, path)
			}
		}
	}
	return results, nil
}

// downloadOne fetches the provider's ZIP and extracts the single .nc
// member to a temp file, grounded on sources/omsz.py's
// zipfile.ZipFile handling.
func (o *OMSZ) downloadOne(ctx context.Context, timestamp, product string) (string, error) {
	url, err := o.productURL(product, timestamp)
	if err != nil {
		return "", err
	}
	var ncPath string
	err = WithRetry(ctx, o.retry, o.log, "omsz: download "+product, func() error {
		resp, getErr := o.http.Get(ctx, url)
		if getErr != nil {
			return fmt.Errorf("%w: %v", radarerr.ErrTransient, getErr)
		}
		if resp.StatusCode == 404 {
			return fmt.Errorf("%w: omsz: %s not found", radarerr.ErrPermanent, url)
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: omsz: %d from %s", radarerr.ErrTransient, resp.StatusCode, url)
		}
		zr, zipErr := zip.NewReader(bytes.NewReader(resp.Body), int64(len(resp.Body)))
		if zipErr != nil {
			return fmt.Errorf("%w: omsz: %s is not a valid zip: %v", radarerr.ErrPermanent, url, zipErr)
		}
		var ncFile *zip.File
		for _, zf := range zr.File {
			if len(zf.Name) > 3 && zf.Name[len(zf.Name)-3:] == ".nc" {
				ncFile = zf
				break
			}
		}
		if ncFile == nil {
			return fmt.Errorf("%w: omsz: no .nc file found in zip from %s", radarerr.ErrPermanent, url)
		}
		rc, openErr := ncFile.Open()
		if openErr != nil {
			return fmt.Errorf("omsz: opening zip member: %w", openErr)
		}
		defer rc.Close()
		body, readErr := io.ReadAll(rc)
		if readErr != nil {
			return fmt.Errorf("omsz: reading zip member: %w", readErr)
		}
		p, writeErr := writeTempFile("omsz-"+product, body)
		if writeErr != nil {
			return fmt.Errorf("omsz: writing temp file: %w", writeErr)
		}
		ncPath = p
		return nil
	})
	return ncPath, err
}

// omszVariable picks the variable present in this file among
// refl2D/refl2D_pscappi/refl3D.
func omszVariable(f *cdf.File) (string, error) {
	for _, name := range omszVariableNames {
		if f.Header.Lengths(name) != nil {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: omsz: no known reflectivity variable in file", radarerr.ErrDecode)
}

func readFloat64Var(f *cdf.File, name string) (float64, error) {
	dims := f.Header.Lengths(name)
	n := 1
	for _, d := range dims {
		n *= d
	}
	if n == 0 {
		n = 1
	}
	r := f.Reader(name, nil, nil)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return 0, err
	}
	switch v := buf.(type) {
	case []float64:
		return v[0], nil
	case []float32:
		return float64(v[0]), nil
	default:
		return 0, fmt.Errorf("omsz: variable %s has unexpected type %T", name, buf)
	}
}

// openNetCDF opens path and parses its netCDF header. The caller must
// close the returned *os.File.
func openNetCDF(path string) (*os.File, *cdf.File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: omsz: opening %s: %v", radarerr.ErrDecode, path, err)
	}
	f, err := cdf.Open(fh)
	if err != nil {
		fh.Close()
		return nil, nil, fmt.Errorf("%w: omsz: parsing netCDF %s: %v", radarerr.ErrDecode, path, err)
	}
	return fh, f, nil
}

// omszHeader is the metadata-only read: variable name, grid shape and
// geographic bounds, every field coming from scalar or dimension-length
// attributes rather than the height*width pixel array (spec.md §4.1's
// "metadata only, no full data load" rule for the extent-only pass).
type omszHeader struct {
	varName string
	height  int
	width   int
	bounds  radar.Bounds
}

func readNetCDFHeader(f *cdf.File) (omszHeader, error) {
	varName, err := omszVariable(f)
	if err != nil {
		return omszHeader{}, err
	}
	dims := f.Header.Lengths(varName)
	if len(dims) != 2 {
		return omszHeader{}, fmt.Errorf("%w: omsz: variable %s has %d dims, want 2", radarerr.ErrDecode, varName, len(dims))
	}
	height, width := dims[0], dims[1]

	la1, err := readFloat64Var(f, "La1")
	if err != nil {
		return omszHeader{}, fmt.Errorf("%w: omsz: reading La1: %v", radarerr.ErrDecode, err)
	}
	lo1, err := readFloat64Var(f, "Lo1")
	if err != nil {
		return omszHeader{}, fmt.Errorf("%w: omsz: reading Lo1: %v", radarerr.ErrDecode, err)
	}
	dx, err := readFloat64Var(f, "Dx")
	if err != nil {
		return omszHeader{}, fmt.Errorf("%w: omsz: reading Dx: %v", radarerr.ErrDecode, err)
	}
	dy, err := readFloat64Var(f, "Dy")
	if err != nil {
		return omszHeader{}, fmt.Errorf("%w: omsz: reading Dy: %v", radarerr.ErrDecode, err)
	}

	// La1 is the NORTH boundary; the lat axis decreases southward
	// (spec.md §4.1) — so Bounds.North = la1, not la1 + (n-1)*dy.
	return omszHeader{
		varName: varName,
		height:  height,
		width:   width,
		bounds: radar.Bounds{
			West:  lo1,
			East:  lo1 + float64(width-1)*dx,
			South: la1 - float64(height-1)*dy,
			North: la1,
		},
	}, nil
}

func (o *OMSZ) decodeNetCDF(path string) (*radar.Frame, error) {
	fh, f, err := openNetCDF(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	hdr, err := readNetCDFHeader(f)
	if err != nil {
		return nil, err
	}
	height, width, varName := hdr.height, hdr.width, hdr.varName

	r := f.Reader(varName, nil, nil)
	buf := r.Zero(height * width)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("%w: omsz: reading %s: %v", radarerr.ErrDecode, varName, err)
	}
	raw, ok := buf.([]uint8)
	if !ok {
		return nil, fmt.Errorf("%w: omsz: variable %s is not a byte array (got %T)", radarerr.ErrDecode, varName, buf)
	}

	data := make([]float32, len(raw))
	for i, b := range raw {
		switch b {
		case 255: // outside coverage
			data[i] = float32(math.NaN())
		case 0: // static coverage-mask background
			data[i] = float32(math.NaN())
		default:
			data[i] = float32(float64(b)*omszGain + omszOffset)
		}
	}
	radar.ClipAndMask(data, 0, false)

	var ts radar.Timestamp
	if gmTime, gmErr := readStringVar(f, "GMTime"); gmErr == nil {
		ts = radar.Timestamp(gmTime)
	}

	return &radar.Frame{
		Data:   data,
		Dims:   radar.Dimensions{Height: height, Width: width},
		Bounds: hdr.bounds,
		Projection: radar.Projection{
			Kind: radar.ProjectionWGS84,
		},
		Metadata:  radar.Metadata{Source: "omsz", Product: varName, Quantity: "DBZH", Gain: omszGain, Offset: omszOffset},
		Timestamp: ts,
	}, nil
}

// readStringVar reads a netCDF CHAR variable (e.g. GMTime). Per the
// library's Reader contract, a CHAR variable must be read into a
// []byte regardless of what Zero returns.
func readStringVar(f *cdf.File, name string) (string, error) {
	dims := f.Header.Lengths(name)
	n := 1
	for _, d := range dims {
		n *= d
	}
	r := f.Reader(name, nil, nil)
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (o *OMSZ) Decode(ctx context.Context, path string) (*radar.Frame, error) {
	return o.decodeNetCDF(path)
}

// DecodeExtentOnly reads only the netCDF header — variable shape and
// the La1/Lo1/Dx/Dy geo-referencing scalars — never touching the
// height*width pixel array, per the metadata-only contract the extent
// pass requires.
func (o *OMSZ) DecodeExtentOnly(ctx context.Context, path string) (ExtentOnly, error) {
	fh, f, err := openNetCDF(path)
	if err != nil {
		return ExtentOnly{}, err
	}
	defer fh.Close()

	hdr, err := readNetCDFHeader(f)
	if err != nil {
		return ExtentOnly{}, err
	}
	return ExtentOnly{
		WGS84Bounds: hdr.bounds,
		Dimensions:  radar.Dimensions{Height: hdr.height, Width: hdr.width},
		Projection:  radar.Projection{Kind: radar.ProjectionWGS84},
	}, nil
}

func (o *OMSZ) NativeExtent() NativeExtent {
	return NativeExtent{
		WGS84Bounds: radar.Bounds{West: 14.0, East: 24.0, South: 45.4, North: 49.8},
		GridSize:    radar.Dimensions{Height: 813, Width: 961},
		ResolutionM: 500,
	}
}
