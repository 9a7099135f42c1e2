package sources

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/imeteo/radarfusion/internal/httpfetch"
	"github.com/imeteo/radarfusion/internal/odim"
	"github.com/imeteo/radarfusion/internal/radar"
	"github.com/imeteo/radarfusion/internal/radarerr"
)

// dwdTimestampPattern matches DWD's directory-listing filenames, e.g.
// "composite_dmax_20260731_1205-hd5". Grounded on
// original_source/.../sources/dwd.py's directory-listing regex.
var dwdTimestampPattern = regexp.MustCompile(`composite_%s_(\d{8}_\d{4})-hd5`)

// DWD is the German Weather Service adapter. Its source of truth for
// available timestamps is an HTML directory listing; a special LATEST
// sentinel fetches the provider's "latest" alias and the real timestamp
// is read back from the ODIM what group after download (spec.md §4.1).
type DWD struct {
	base
	baseURL string
	odim    odim.Reader
}

// NewDWD builds the DWD adapter. odimReader is injected since HDF5
// parsing is an out-of-scope external collaborator (internal/odim).
func NewDWD(client httpfetch.Client, odimReader odim.Reader, log zerolog.Logger) *DWD {
	return &DWD{
		base:    newBase("dwd", client, DefaultRetryConfig, log),
		baseURL: "https://opendata.dwd.de/weather/radar/composite",
		odim:    odimReader,
	}
}

func (d *DWD) productURL(product, timestamp string) string {
	if timestamp == "LATEST" {
		return fmt.Sprintf("%s/%s/composite_%s_LATEST-hd5", d.baseURL, product, product)
	}
	return fmt.Sprintf("%s/%s/composite_%s_%s-hd5", d.baseURL, product, product, timestamp)
}

func (d *DWD) ListAvailableTimestamps(ctx context.Context, count int, products []string, start, end *time.Time) ([]string, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: dwd: no products requested", radarerr.ErrConfig)
	}
	product := products[0]
	dirURL := fmt.Sprintf("%s/%s/", d.baseURL, product)

	var resp *httpfetch.Response
	err := WithRetry(ctx, d.retry, d.log, "dwd: list "+product, func() error {
		r, getErr := d.http.Get(ctx, dirURL)
		if getErr != nil {
			return fmt.Errorf("%w: %v", radarerr.ErrTransient, getErr)
		}
		if r.StatusCode == 404 {
			return fmt.Errorf("%w: dwd: directory %s not found", radarerr.ErrPermanent, dirURL)
		}
		if r.StatusCode >= 500 {
			return fmt.Errorf("%w: dwd: %d from %s", radarerr.ErrTransient, r.StatusCode, dirURL)
		}
		resp = r
		return nil
	})
	if err != nil {
		d.log.Warn().Err(err).Str("url", dirURL).Msg("dwd: directory listing failed, falling back to HEAD probes")
		return d.probeCandidates(ctx, product, count, start, end), nil
	}

	pattern := regexp.MustCompile(fmt.Sprintf(dwdTimestampPattern.String(), product))
	matches := pattern.FindAllStringSubmatch(string(resp.Body), -1)
	if len(matches) == 0 {
		d.log.Warn().Str("product", product).Msg("dwd: no timestamp patterns found in directory listing")
		return d.probeCandidates(ctx, product, count, start, end), nil
	}

	seen := make(map[string]bool, len(matches))
	var timestamps []string
	for _, m := range matches {
		ts := strings.Replace(m[1], "_", "", 1)
		if seen[ts] {
			continue
		}
		seen[ts] = true
		timestamps = append(timestamps, ts)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(timestamps)))
	timestamps = filterTimestampRange(timestamps, start, end)
	if count > 0 && len(timestamps) > count {
		timestamps = timestamps[:count]
	}
	return timestamps, nil
}

// probeCandidates falls back to speculative HEAD requests over a
// 5-minute-aligned window when the directory listing can't be parsed.
func (d *DWD) probeCandidates(ctx context.Context, product string, count int, start, end *time.Time) []string {
	candidates := generateTimestampCandidates(count, start, end)
	var found []string
	for _, ts := range candidates {
		resp, err := d.http.Head(ctx, d.productURL(product, ts))
		if err == nil && resp.StatusCode == 200 {
			found = append(found, ts)
		}
	}
	return found
}

func (d *DWD) Download(ctx context.Context, timestamps, products []string) ([]DownloadResult, error) {
	var results []DownloadResult
	for _, product := range products {
		for _, ts := range timestamps {
			if path, ok := d.cachedPath(ts, product); ok {
				results = append(results, DownloadResult{Timestamp: ts, Product: product, Path: path, CachedInSession: true})
				continue
			}
			path, err := d.downloadOne(ctx, ts, product)
			results = append(results, DownloadResult{Timestamp: ts, Product: product, Path: path, Err: err})
			if err == nil {
				d.rememberPath(ts, product, path)
			}
		}
	}
	return results, nil
}

func (d *DWD) downloadOne(ctx context.Context, timestamp, product string) (string, error) {
	url := d.productURL(product, timestamp)
	var path string
	err := WithRetry(ctx, d.retry, d.log, "dwd: download "+product, func() error {
		resp, getErr := d.http.Get(ctx, url)
		if getErr != nil {
			return fmt.Errorf("%w: %v", radarerr.ErrTransient, getErr)
		}
		if resp.StatusCode == 404 {
			return fmt.Errorf("%w: dwd: %s not found", radarerr.ErrPermanent, url)
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: dwd: %d from %s", radarerr.ErrTransient, resp.StatusCode, url)
		}
		p, writeErr := writeTempFile("dwd-"+product, resp.Body)
		if writeErr != nil {
			return fmt.Errorf("dwd: writing temp file: %w", writeErr)
		}
		path = p
		return nil
	})
	return path, err
}

func (d *DWD) Decode(ctx context.Context, path string) (*radar.Frame, error) {
	f, err := d.odim.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: dwd: opening %s: %v", radarerr.ErrDecode, path, err)
	}
	defer f.Close()

	// The real timestamp for a LATEST download is only known after the
	// file is on disk (spec.md §4.1).
	dateStr, _, err := f.Attr("what", "date")
	var timeStr string
	if err == nil {
		timeStr, _, _ = f.Attr("what", "time")
	}

	projDef, ok, err := f.Attr("where", "projdef")
	if err != nil || !ok {
		projDef, _, err = f.Attr("dataset1/where", "projdef")
		if err != nil {
			return nil, fmt.Errorf("%w: dwd: missing projdef: %v", radarerr.ErrDecode, err)
		}
	}

	bounds, err := cornerBoundsFromWhere(f)
	if err != nil {
		return nil, err
	}

	height, width, err := f.DataShape()
	if err != nil {
		return nil, fmt.Errorf("%w: dwd: reading data shape: %v", radarerr.ErrDecode, err)
	}

	raw, err := f.Data()
	if err != nil {
		return nil, fmt.Errorf("%w: dwd: reading data: %v", radarerr.ErrDecode, err)
	}

	gain, offset, nodata, hasNodata := odimScalingFrom(f, "dataset1/what")
	data := applyGainOffset(raw, gain, offset)
	radar.ClipAndMask(data, nodata*gain+offset, hasNodata)

	ts := radar.Timestamp(dateStr + timeStr)
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
		Metadata:  radar.Metadata{Source: "dwd", Product: "dmax", Quantity: "DBZH"},
		Timestamp: ts,
	}, nil
}

func (d *DWD) DecodeExtentOnly(ctx context.Context, path string) (ExtentOnly, error) {
	f, err := d.odim.Open(ctx, path)
	if err != nil {
		return ExtentOnly{}, fmt.Errorf("%w: dwd: opening %s: %v", radarerr.ErrDecode, path, err)
	}
	defer f.Close()

	projDef, _, err := f.Attr("where", "projdef")
	if err != nil {
		projDef, _, err = f.Attr("dataset1/where", "projdef")
		if err != nil {
			return ExtentOnly{}, fmt.Errorf("%w: dwd: missing projdef: %v", radarerr.ErrDecode, err)
		}
	}
	bounds, err := cornerBoundsFromWhere(f)
	if err != nil {
		return ExtentOnly{}, err
	}
	height, width, err := f.DataShape()
	if err != nil {
		return ExtentOnly{}, fmt.Errorf("%w: dwd: reading data shape: %v", radarerr.ErrDecode, err)
	}
	return ExtentOnly{
		WGS84Bounds: bounds,
		Dimensions:  radar.Dimensions{Height: height, Width: width},
		Projection:  radar.Projection{Kind: radar.ProjectionProjected, Proj4: projDef, CornerWGS84: &bounds},
	}, nil
}

func (d *DWD) NativeExtent() NativeExtent {
	// Reference footprint from opendata.dwd.de's composite documentation:
	// covers continental Europe at ~1km resolution, 1200x1100.
	return NativeExtent{
		WGS84Bounds: radar.Bounds{West: -3.5, East: 21.7, South: 43.2, North: 58.0},
		GridSize:    radar.Dimensions{Height: 1200, Width: 1100},
		ResolutionM: 1000,
	}
}

// cornerBoundsFromWhere reads LL_lon/LL_lat/UR_lon/UR_lat from the where
// group, used only as a fallback/side-car — never as the authoritative
// geometry source for a projected grid (spec.md §4.1).
func cornerBoundsFromWhere(f odim.File) (radar.Bounds, error) {
	get := func(name string) (float64, error) {
		s, ok, err := f.Attr("where", name)
		if err != nil || !ok {
			return 0, fmt.Errorf("%w: missing where/%s: %v", radarerr.ErrDecode, name, err)
		}
		v, parseErr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if parseErr != nil {
			return 0, fmt.Errorf("%w: parsing where/%s=%q: %v", radarerr.ErrDecode, name, s, parseErr)
		}
		return v, nil
	}
	llLon, err := get("LL_lon")
	if err != nil {
		return radar.Bounds{}, err
	}
	llLat, err := get("LL_lat")
	if err != nil {
		return radar.Bounds{}, err
	}
	urLon, err := get("UR_lon")
	if err != nil {
		return radar.Bounds{}, err
	}
	urLat, err := get("UR_lat")
	if err != nil {
		return radar.Bounds{}, err
	}
	return radar.Bounds{West: llLon, South: llLat, East: urLon, North: urLat}, nil
}

// odimScalingFrom reads gain/offset/nodata from an ODIM `what` group,
// returning hasNodata=false when the nodata attribute is absent.
func odimScalingFrom(f odim.File, group string) (gain, offset, nodata float64, hasNodata bool) {
	gain = 1
	if s, ok, _ := f.Attr(group, "gain"); ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			gain = v
		}
	}
	if s, ok, _ := f.Attr(group, "offset"); ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			offset = v
		}
	}
	if s, ok, _ := f.Attr(group, "nodata"); ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			nodata = v
			hasNodata = true
		}
	}
	return gain, offset, nodata, hasNodata
}

func applyGainOffset(raw []float64, gain, offset float64) []float32 {
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v*gain + offset)
	}
	return out
}
