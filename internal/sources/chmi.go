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

// CHMI is the Czech Hydrometeorological Institute adapter. Its WGS84
// corners look deceptively regular, but the data actually lives on a
// native Mercator grid with nonzero false easting/northing
// (x_0=-1254222.15, y_0=-6702777.85) — the native projdef must be used
// for reprojection, never a corner-based linear fit (spec.md §4.1).
type CHMI struct {
	base
	baseURL string
	odim    odim.Reader
}

func NewCHMI(client httpfetch.Client, odimReader odim.Reader, log zerolog.Logger) *CHMI {
	return &CHMI{
		base:    newBase("chmi", client, DefaultRetryConfig, log),
		baseURL: "https://opendata.chmi.cz/meteorology/weather/radar/composite/maxz/hdf5",
		odim:    odimReader,
	}
}

func (c *CHMI) productURL(timestamp string) (string, error) {
	if len(timestamp) != 14 {
		return "", fmt.Errorf("%w: chmi: timestamp %q is not 14 digits", radarerr.ErrConfig, timestamp)
	}
	return fmt.Sprintf("%s/T_PABV23_C_OKPR_%s.hdf", c.baseURL, timestamp), nil
}

func (c *CHMI) ListAvailableTimestamps(ctx context.Context, count int, products []string, start, end *time.Time) ([]string, error) {
	candidates := generateTimestampCandidates(count, start, end)
	var found []string
	for _, ts := range candidates {
		url, err := c.productURL(ts)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Head(ctx, url)
		if err == nil && resp.StatusCode == 200 {
			found = append(found, ts)
		}
	}
	return found, nil
}

func (c *CHMI) Download(ctx context.Context, timestamps, products []string) ([]DownloadResult, error) {
	const product = "maxz"
	var results []DownloadResult
	for _, ts := range timestamps {
		if path, ok := c.cachedPath(ts, product); ok {
			results = append(results, DownloadResult{Timestamp: ts, Product: product, Path: path, CachedInSession: true})
			continue
		}
		url, err := c.productURL(ts)
		if err != nil {
			results = append(results, DownloadResult{Timestamp: ts, Product: product, Err: err})
			continue
		}
		path, err := c.downloadOne(ctx, url)
		results = append(results, DownloadResult{Timestamp: ts, Product: product, Path: path, Err: err})
		if err == nil {
			c.rememberPath(ts, product, path)
		}
	}
	return results, nil
}

func (c *CHMI) downloadOne(ctx context.Context, url string) (string, error) {
	var path string
	err := WithRetry(ctx, c.retry, c.log, "chmi: download maxz", func() error {
		resp, getErr := c.http.Get(ctx, url)
		if getErr != nil {
			return fmt.Errorf("%w: %v", radarerr.ErrTransient, getErr)
		}
		if resp.StatusCode == 404 {
			return fmt.Errorf("%w: chmi: %s not found", radarerr.ErrPermanent, url)
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: chmi: %d from %s", radarerr.ErrTransient, resp.StatusCode, url)
		}
		p, writeErr := writeTempFile("chmi-maxz", resp.Body)
		if writeErr != nil {
			return fmt.Errorf("chmi: writing temp file: %w", writeErr)
		}
		path = p
		return nil
	})
	return path, err
}

func (c *CHMI) Decode(ctx context.Context, path string) (*radar.Frame, error) {
	f, err := c.odim.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: chmi: opening %s: %v", radarerr.ErrDecode, path, err)
	}
	defer f.Close()

	projDef, _, err := f.Attr("where", "projdef")
	if err != nil {
		return nil, fmt.Errorf("%w: chmi: missing projdef: %v", radarerr.ErrDecode, err)
	}
	bounds, err := cornerBoundsFromWhere(f)
	if err != nil {
		return nil, err
	}
	height, width, err := f.DataShape()
	if err != nil {
		return nil, fmt.Errorf("%w: chmi: reading data shape: %v", radarerr.ErrDecode, err)
	}
	raw, err := f.Data()
	if err != nil {
		return nil, fmt.Errorf("%w: chmi: reading data: %v", radarerr.ErrDecode, err)
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
		Metadata:  radar.Metadata{Source: "chmi", Product: "maxz", Quantity: "DBZH"},
		Timestamp: ts,
	}, nil
}

func (c *CHMI) DecodeExtentOnly(ctx context.Context, path string) (ExtentOnly, error) {
	f, err := c.odim.Open(ctx, path)
	if err != nil {
		return ExtentOnly{}, fmt.Errorf("%w: chmi: opening %s: %v", radarerr.ErrDecode, path, err)
	}
	defer f.Close()
	projDef, _, err := f.Attr("where", "projdef")
	if err != nil {
		return ExtentOnly{}, fmt.Errorf("%w: chmi: missing projdef: %v", radarerr.ErrDecode, err)
	}
	bounds, err := cornerBoundsFromWhere(f)
	if err != nil {
		return ExtentOnly{}, err
	}
	height, width, err := f.DataShape()
	if err != nil {
		return ExtentOnly{}, fmt.Errorf("%w: chmi: reading data shape: %v", radarerr.ErrDecode, err)
	}
	return ExtentOnly{
		WGS84Bounds: bounds,
		Dimensions:  radar.Dimensions{Height: height, Width: width},
		Projection:  radar.Projection{Kind: radar.ProjectionProjected, Proj4: projDef, CornerWGS84: &bounds},
	}, nil
}

func (c *CHMI) NativeExtent() NativeExtent {
	return NativeExtent{
		WGS84Bounds: radar.Bounds{West: 11.8, East: 20.0, South: 47.8, North: 51.3},
		GridSize:    radar.Dimensions{Height: 1000, Width: 1100},
		ResolutionM: 500,
	}
}
