package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/imeteo/radarfusion/internal/httpfetch"
	"github.com/imeteo/radarfusion/internal/odim"
	"github.com/imeteo/radarfusion/internal/radar"
	"github.com/imeteo/radarfusion/internal/radarerr"
)

// shmuProductCodes maps our public product names to SHMU's wire codes
// (spec.md §4.1).
var shmuProductCodes = map[string]string{
	"zmax":      "PABV",
	"cappi2km":  "PANV",
	"etop":      "PADV",
	"pac01":     "PASV",
}

// SHMU is the Slovak Hydrometeorological Institute adapter. Its server
// ignores standard TLS certificate validation (provider policy), and
// its HDF5 xscale/yscale attributes are documented-wrong — pixel size
// must be derived from the LL/UR corner coordinates instead.
type SHMU struct {
	base
	baseURL string
	odim    odim.Reader
}

func NewSHMU(timeout time.Duration, odimReader odim.Reader, log zerolog.Logger) *SHMU {
	client := httpfetch.New(timeout, true) // insecureSkipVerify: provider policy
	return &SHMU{
		base:    newBase("shmu", client, DefaultRetryConfig, log),
		baseURL: "https://opendata.shmu.sk/meteorology/weather/radar/composite/skcomp",
		odim:    odimReader,
	}
}

func (s *SHMU) productURL(product, timestamp string) (string, error) {
	code, ok := shmuProductCodes[product]
	if !ok {
		return "", fmt.Errorf("%w: shmu: unknown product %q", radarerr.ErrConfig, product)
	}
	if len(timestamp) != 14 {
		return "", fmt.Errorf("%w: shmu: timestamp %q is not 14 digits", radarerr.ErrConfig, timestamp)
	}
	dateStr := timestamp[:8]
	return fmt.Sprintf("%s/%s/%s/T_%s22_C_LZIB_%s.hdf", s.baseURL, product, dateStr, code, timestamp), nil
}

func (s *SHMU) ListAvailableTimestamps(ctx context.Context, count int, products []string, start, end *time.Time) ([]string, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: shmu: no products requested", radarerr.ErrConfig)
	}
	candidates := generateTimestampCandidates(count, start, end)
	var found []string
	for _, ts := range candidates {
		url, err := s.productURL(products[0], ts)
		if err != nil {
			return nil, err
		}
		resp, err := s.http.Head(ctx, url)
		if err == nil && resp.StatusCode == 200 {
			found = append(found, ts)
		}
	}
	return found, nil
}

func (s *SHMU) Download(ctx context.Context, timestamps, products []string) ([]DownloadResult, error) {
	var results []DownloadResult
	for _, product := range products {
		for _, ts := range timestamps {
			if path, ok := s.cachedPath(ts, product); ok {
				results = append(results, DownloadResult{Timestamp: ts, Product: product, Path: path, CachedInSession: true})
				continue
			}
			url, err := s.productURL(product, ts)
			if err != nil {
				results = append(results, DownloadResult{Timestamp: ts, Product: product, Err: err})
				continue
			}
			path, err := s.downloadOne(ctx, url, product)
			results = append(results, DownloadResult{Timestamp: ts, Product: product, Path: path, Err: err})
			if err == nil {
				s.rememberPath(ts, product, path)
			}
		}
	}
	return results, nil
}

func (s *SHMU) downloadOne(ctx context.Context, url, product string) (string, error) {
	var path string
	err := WithRetry(ctx, s.retry, s.log, "shmu: download "+product, func() error {
		resp, getErr := s.http.Get(ctx, url)
		if getErr != nil {
			return fmt.Errorf("%w: %v", radarerr.ErrTransient, getErr)
		}
		if resp.StatusCode == 404 {
			return fmt.Errorf("%w: shmu: %s not found", radarerr.ErrPermanent, url)
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: shmu: %d from %s", radarerr.ErrTransient, resp.StatusCode, url)
		}
		p, writeErr := writeTempFile("shmu-"+product, resp.Body)
		if writeErr != nil {
			return fmt.Errorf("shmu: writing temp file: %w", writeErr)
		}
		path = p
		return nil
	})
	return path, err
}

func (s *SHMU) Decode(ctx context.Context, path string) (*radar.Frame, error) {
	f, err := s.odim.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: shmu: opening %s: %v", radarerr.ErrDecode, path, err)
	}
	defer f.Close()

	projDef, _, err := f.Attr("where", "projdef")
	if err != nil {
		return nil, fmt.Errorf("%w: shmu: missing projdef: %v", radarerr.ErrDecode, err)
	}
	bounds, err := cornerBoundsFromWhere(f)
	if err != nil {
		return nil, err
	}
	height, width, err := f.DataShape()
	if err != nil {
		return nil, fmt.Errorf("%w: shmu: reading data shape: %v", radarerr.ErrDecode, err)
	}
	raw, err := f.Data()
	if err != nil {
		return nil, fmt.Errorf("%w: shmu: reading data: %v", radarerr.ErrDecode, err)
	}

	gain, offset, nodata, hasNodata := odimScalingFrom(f, "dataset1/what")
	data := applyGainOffset(raw, gain, offset)
	radar.ClipAndMask(data, nodata*gain+offset, hasNodata)

	startdate, _, _ := f.Attr("dataset1/what", "startdate")
	starttime, _, _ := f.Attr("dataset1/what", "starttime")
	ts := radar.Timestamp(startdate + starttime)
	if len(ts) != 14 {
		ts = radar.Timestamp("")
	}

	return &radar.Frame{
		Data:   data,
		Dims:   radar.Dimensions{Height: height, Width: width},
		Bounds: bounds,
		Projection: radar.Projection{
			Kind:        radar.ProjectionProjected,
			Proj4:       projDef,
			CornerWGS84: &bounds,
		},
		Metadata:  radar.Metadata{Source: "shmu", Quantity: "DBZH"},
		Timestamp: ts,
	}, nil
}

func (s *SHMU) DecodeExtentOnly(ctx context.Context, path string) (ExtentOnly, error) {
	f, err := s.odim.Open(ctx, path)
	if err != nil {
		return ExtentOnly{}, fmt.Errorf("%w: shmu: opening %s: %v", radarerr.ErrDecode, path, err)
	}
	defer f.Close()
	projDef, _, err := f.Attr("where", "projdef")
	if err != nil {
		return ExtentOnly{}, fmt.Errorf("%w: shmu: missing projdef: %v", radarerr.ErrDecode, err)
	}
	bounds, err := cornerBoundsFromWhere(f)
	if err != nil {
		return ExtentOnly{}, err
	}
	height, width, err := f.DataShape()
	if err != nil {
		return ExtentOnly{}, fmt.Errorf("%w: shmu: reading data shape: %v", radarerr.ErrDecode, err)
	}
	return ExtentOnly{
		WGS84Bounds: bounds,
		Dimensions:  radar.Dimensions{Height: height, Width: width},
		Projection:  radar.Projection{Kind: radar.ProjectionProjected, Proj4: projDef, CornerWGS84: &bounds},
	}, nil
}

func (s *SHMU) NativeExtent() NativeExtent {
	return NativeExtent{
		WGS84Bounds: radar.Bounds{West: 14.5, East: 23.8, South: 46.0, North: 50.8},
		GridSize:    radar.Dimensions{Height: 1560, Width: 1560},
		ResolutionM: 500,
	}
}
