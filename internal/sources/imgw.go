package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/imeteo/radarfusion/internal/httpfetch"
	"github.com/imeteo/radarfusion/internal/odim"
	"github.com/imeteo/radarfusion/internal/radar"
	"github.com/imeteo/radarfusion/internal/radarerr"
)

// imgwFileEntry is one element of the IMGW listing API's JSON array.
type imgwFileEntry struct {
	File string `json:"file"`
}

// IMGW is the Polish Institute of Meteorology and Water Management
// adapter. Its directory listing is a JSON API, but the files it names
// live under a different host path — the API's own URLs return HTML,
// not data (spec.md §4.1). Scaling is stored in dataset1/what, not the
// ODIM-standard dataset1/data1/what.
type IMGW struct {
	base
	apiURL      string
	downloadURL string
	odim        odim.Reader
}

func NewIMGW(client httpfetch.Client, odimReader odim.Reader, log zerolog.Logger) *IMGW {
	return &IMGW{
		base:        newBase("imgw", client, DefaultRetryConfig, log),
		apiURL:      "https://danepubliczne.imgw.pl/api/data/product/id/COMPO_CMAX_250.comp.cmax",
		downloadURL: "https://danepubliczne.imgw.pl/pl/datastore/getfiledown/Oper/Polrad/Produkty/HVD/HVD_COMPO_CMAX_250.comp.cmax",
		odim:        odimReader,
	}
}

func (i *IMGW) productURL(timestamp string) string {
	return fmt.Sprintf("%s/%s00dBZ.cmax.h5", i.downloadURL, timestamp)
}

func (i *IMGW) ListAvailableTimestamps(ctx context.Context, count int, products []string, start, end *time.Time) ([]string, error) {
	var resp *httpfetch.Response
	err := WithRetry(ctx, i.retry, i.log, "imgw: list", func() error {
		r, getErr := i.http.Get(ctx, i.apiURL)
		if getErr != nil {
			return fmt.Errorf("%w: %v", radarerr.ErrTransient, getErr)
		}
		if r.StatusCode == 404 {
			return fmt.Errorf("%w: imgw: API endpoint not found", radarerr.ErrPermanent)
		}
		if r.StatusCode >= 500 {
			return fmt.Errorf("%w: imgw: %d from API", radarerr.ErrTransient, r.StatusCode)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	var entries []imgwFileEntry
	if jsonErr := json.Unmarshal(resp.Body, &entries); jsonErr != nil {
		return nil, fmt.Errorf("%w: imgw: unparseable listing: %v", radarerr.ErrPermanent, jsonErr)
	}

	var timestamps []string
	for _, e := range entries {
		if !strings.HasSuffix(e.File, ".h5") {
			continue
		}
		ts := imgwTimestampFromFilename(e.File)
		if ts != "" {
			timestamps = append(timestamps, ts)
		}
	}
	timestamps = filterTimestampRange(timestamps, start, end)
	if count > 0 && len(timestamps) > count {
		timestamps = timestamps[len(timestamps)-count:]
	}
	return timestamps, nil
}

// imgwTimestampFromFilename extracts the 14-digit prefix from filenames
// shaped like "20260127053000 00dBZ.cmax.h5".
func imgwTimestampFromFilename(filename string) string {
	parts := strings.SplitN(filename, "00dBZ", 2)
	if len(parts) != 2 {
		return ""
	}
	ts := strings.TrimSpace(parts[0])
	if len(ts) != 14 {
		return ""
	}
	for _, r := range ts {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return ts
}

func (i *IMGW) Download(ctx context.Context, timestamps, products []string) ([]DownloadResult, error) {
	const product = "cmax"
	var results []DownloadResult
	for _, ts := range timestamps {
		if path, ok := i.cachedPath(ts, product); ok {
			results = append(results, DownloadResult{Timestamp: ts, Product: product, Path: path, CachedInSession: true})
			continue
		}
		path, err := i.downloadOne(ctx, ts)
		results = append(results, DownloadResult{Timestamp: ts, Product: product, Path: path, Err: err})
		if err == nil {
			i.rememberPath(ts, product, path)
		}
	}
	return results, nil
}

func (i *IMGW) downloadOne(ctx context.Context, timestamp string) (string, error) {
	url := i.productURL(timestamp)
	var path string
	err := WithRetry(ctx, i.retry, i.log, "imgw: download", func() error {
		resp, getErr := i.http.Get(ctx, url)
		if getErr != nil {
			return fmt.Errorf("%w: %v", radarerr.ErrTransient, getErr)
		}
		if resp.StatusCode == 404 {
			return fmt.Errorf("%w: imgw: %s not found", radarerr.ErrPermanent, url)
		}
		if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
			return fmt.Errorf("%w: imgw: %s returned HTML, not data", radarerr.ErrPermanent, url)
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: imgw: %d from %s", radarerr.ErrTransient, resp.StatusCode, url)
		}
		p, writeErr := writeTempFile("imgw-cmax", resp.Body)
		if writeErr != nil {
			return fmt.Errorf("imgw: writing temp file: %w", writeErr)
		}
		path = p
		return nil
	})
	return path, err
}

func (i *IMGW) Decode(ctx context.Context, path string) (*radar.Frame, error) {
	f, err := i.odim.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: imgw: opening %s: %v", radarerr.ErrDecode, path, err)
	}
	defer f.Close()

	projDef, ok, err := f.Attr("where", "projdef")
	if err != nil || !ok {
		return nil, fmt.Errorf("%w: imgw: missing projdef: %v", radarerr.ErrDecode, err)
	}
	bounds, err := cornerBoundsFromWhere(f)
	if err != nil {
		return nil, err
	}
	height, width, err := f.DataShape()
	if err != nil {
		return nil, fmt.Errorf("%w: imgw: reading data shape: %v", radarerr.ErrDecode, err)
	}
	raw, err := f.Data()
	if err != nil {
		return nil, fmt.Errorf("%w: imgw: reading data: %v", radarerr.ErrDecode, err)
	}

	// IMGW stores scaling in dataset1/what, not the ODIM-standard
	// dataset1/data1/what (spec.md §4.1).
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
		Metadata:  radar.Metadata{Source: "imgw", Product: "cmax", Quantity: "DBZH"},
		Timestamp: ts,
	}, nil
}

func (i *IMGW) DecodeExtentOnly(ctx context.Context, path string) (ExtentOnly, error) {
	f, err := i.odim.Open(ctx, path)
	if err != nil {
		return ExtentOnly{}, fmt.Errorf("%w: imgw: opening %s: %v", radarerr.ErrDecode, path, err)
	}
	defer f.Close()
	projDef, _, err := f.Attr("where", "projdef")
	if err != nil {
		return ExtentOnly{}, fmt.Errorf("%w: imgw: missing projdef: %v", radarerr.ErrDecode, err)
	}
	bounds, err := cornerBoundsFromWhere(f)
	if err != nil {
		return ExtentOnly{}, err
	}
	height, width, err := f.DataShape()
	if err != nil {
		return ExtentOnly{}, fmt.Errorf("%w: imgw: reading data shape: %v", radarerr.ErrDecode, err)
	}
	return ExtentOnly{
		WGS84Bounds: bounds,
		Dimensions:  radar.Dimensions{Height: height, Width: width},
		Projection:  radar.Projection{Kind: radar.ProjectionProjected, Proj4: projDef, CornerWGS84: &bounds},
	}, nil
}

func (i *IMGW) NativeExtent() NativeExtent {
	return NativeExtent{
		WGS84Bounds: radar.Bounds{West: 13.8, East: 24.3, South: 48.9, North: 55.0},
		GridSize:    radar.Dimensions{Height: 1300, Width: 1300},
		ResolutionM: 500,
	}
}
