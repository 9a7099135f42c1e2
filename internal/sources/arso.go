package sources

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/imeteo/radarfusion/internal/httpfetch"
	"github.com/imeteo/radarfusion/internal/proj"
	"github.com/imeteo/radarfusion/internal/radar"
	"github.com/imeteo/radarfusion/internal/radarerr"
)

// arsoSiradProj4 is the SIRAD Lambert Conformal Conic centered on the
// GEOSS reference point, from the SRD-3 specification (spec.md §4.1).
const arsoSiradProj4 = "+proj=lcc +lat_1=46.12 +lat_2=46.12 +lat_0=46.12 +lon_0=14.815 +x_0=0 +y_0=0 +R=6371000 +units=km +no_defs"

// arsoGridWidth/Height, arsoCellSize, arsoGeossCellI/J are the SRD-3
// grid constants: a 401x301 1km grid, GEOSS (14.815, 46.12) at cell
// (205, 145) (1-indexed).
const (
	arsoGridWidth   = 401
	arsoGridHeight  = 301
	arsoCellSizeKM  = 1.0
	arsoGeossCellI  = 205
	arsoGeossCellJ  = 145
	arsoDefaultOffset = 64
	arsoDefaultStart  = 12.0
	arsoDefaultSlope  = 3.0
)

// ARSO is the Slovenian Environment Agency adapter: an SRD-3
// ASCII-header-plus-byte-data format with no historical archive — only
// the current frame is ever retrievable (spec.md §4.1), which is why
// the Processed-Data Cache exists as a bridge for ARSO.
type ARSO struct {
	base
	baseURL string
}

// arsoProductFiles maps our public product names to SRD-3 filenames.
var arsoProductFiles = map[string]string{
	"zm":  "si0-zm.srd",
	"rrg": "si0-rrg.srd",
}

func NewARSO(client httpfetch.Client, log zerolog.Logger) *ARSO {
	return &ARSO{
		base:    newBase("arso", client, DefaultRetryConfig, log),
		baseURL: "https://meteo.arso.gov.si/uploads/probase/www/observ/radar",
	}
}

func (a *ARSO) productURL(product string) (string, error) {
	filename, ok := arsoProductFiles[product]
	if !ok {
		return "", fmt.Errorf("%w: arso: unknown product %q", radarerr.ErrConfig, product)
	}
	return fmt.Sprintf("%s/%s", a.baseURL, filename), nil
}

// ListAvailableTimestamps always returns at most one entry: "now",
// since ARSO has no archive and publishes only the current frame.
func (a *ARSO) ListAvailableTimestamps(ctx context.Context, count int, products []string, start, end *time.Time) ([]string, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: arso: no products requested", radarerr.ErrConfig)
	}
	url, err := a.productURL(products[0])
	if err != nil {
		return nil, err
	}
	resp, err := a.http.Head(ctx, url)
	if err != nil || resp.StatusCode != 200 {
		return nil, nil
	}
	now := time.Now().UTC().Truncate(time.Minute)
	ts := now.Format("20060102150405")
	if end != nil && now.After(*end) {
		return nil, nil
	}
	if start != nil && now.Before(*start) {
		return nil, nil
	}
	return []string{ts}, nil
}

func (a *ARSO) Download(ctx context.Context, timestamps, products []string) ([]DownloadResult, error) {
	var results []DownloadResult
	for _, product := range products {
		for _, ts := range timestamps {
			path, err := a.downloadOne(ctx, product)
			results = append(results, DownloadResult{Timestamp: ts, Product: product, Path: path, Err: err})
			if err == nil {
				a.rememberPath(ts, product, path)
			}
		}
	}
	return results, nil
}

func (a *ARSO) downloadOne(ctx context.Context, product string) (string, error) {
	url, err := a.productURL(product)
	if err != nil {
		return "", err
	}
	var path string
	err = WithRetry(ctx, a.retry, a.log, "arso: download "+product, func() error {
		resp, getErr := a.http.Get(ctx, url)
		if getErr != nil {
			return fmt.Errorf("%w: %v", radarerr.ErrTransient, getErr)
		}
		if resp.StatusCode == 404 {
			return fmt.Errorf("%w: arso: %s not found", radarerr.ErrPermanent, url)
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: arso: %d from %s", radarerr.ErrTransient, resp.StatusCode, url)
		}
		p, writeErr := writeTempFile("arso-"+product, resp.Body)
		if writeErr != nil {
			return fmt.Errorf("arso: writing temp file: %w", writeErr)
		}
		path = p
		return nil
	})
	return path, err
}

// srdHeader is the parsed "key value..." section preceding the DATA
// marker.
type srdHeader map[string][]string

// parseSRDHeader splits the ASCII header into key/value(s), stopping at
// a blank line or a line that is exactly "DATA" (spec.md §4.1).
func parseSRDHeader(content string) (srdHeader, int) {
	header := make(srdHeader)
	lines := strings.Split(content, "\n")
	consumed := 0
	for _, line := range lines {
		consumed += len(line) + 1
		trimmed := strings.TrimRight(line, "\r")
		if strings.TrimSpace(trimmed) == "DATA" {
			break
		}
		if idx := strings.Index(trimmed, "#"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
		if trimmed == "" {
			if len(header) > 0 {
				break
			}
			continue
		}
		parts := strings.Fields(trimmed)
		if len(parts) < 2 {
			continue
		}
		header[parts[0]] = parts[1:]
	}
	return header, consumed
}

func (h srdHeader) intOr(key string, def int) int {
	v, ok := h[key]
	if !ok || len(v) == 0 {
		return def
	}
	i, err := strconv.Atoi(v[0])
	if err != nil {
		return def
	}
	return i
}

func (h srdHeader) floatOr(key string, def float64) float64 {
	v, ok := h[key]
	if !ok || len(v) == 0 {
		return def
	}
	f, err := strconv.ParseFloat(v[0], 64)
	if err != nil {
		return def
	}
	return f
}

// parseSRDData extracts the byte-packed data section after the DATA
// marker and applies the quantization formula
// value = start + slope*(byte - offset) (spec.md §4.1).
func parseSRDData(content string, width, height, offset int, start, slope float64) ([]float32, error) {
	marker := "\nDATA\n"
	idx := strings.Index(content, marker)
	if idx == -1 {
		marker = "\nDATA\r\n"
		idx = strings.Index(content, marker)
	}
	if idx == -1 {
		return nil, fmt.Errorf("%w: arso: no DATA marker found", radarerr.ErrDecode)
	}
	section := content[idx+len(marker):]

	raw := make([]int, 0, width*height)
	for _, r := range section {
		if r < 32 {
			continue
		}
		raw = append(raw, int(r))
	}

	expected := width * height
	if len(raw) < expected {
		for len(raw) < expected {
			raw = append(raw, offset)
		}
	} else if len(raw) > expected {
		raw = raw[:expected]
	}

	data := make([]float32, expected)
	for i, b := range raw {
		if b == offset {
			data[i] = float32(radar.MinDBZ - 1) // sentinel, masked below
			continue
		}
		data[i] = float32(start + slope*float64(b-offset))
	}
	radar.ClipAndMask(data, float64(radar.MinDBZ-1), true)
	return data, nil
}

// arsoHeaderInfo is the metadata-only read: grid shape, bounds,
// projection and timestamp parsed from the SRD-3 ASCII header, without
// ever running parseSRDData over the byte-packed payload that follows
// the DATA marker.
type arsoHeaderInfo struct {
	width, height int
	header        srdHeader
	bounds        radar.Bounds
	gridParams    radar.GridParams
	timestamp     string
}

func parseSRDFileHeader(content string) arsoHeaderInfo {
	header, _ := parseSRDHeader(content)
	width := arsoGridWidth
	height := arsoGridHeight
	if ncell, ok := header["ncell"]; ok && len(ncell) >= 2 {
		if w, err := strconv.Atoi(ncell[0]); err == nil {
			width = w
		}
		if h, err := strconv.Atoi(ncell[1]); err == nil {
			height = h
		}
	}
	bounds, gp := arsoGridGeometry(width, height)
	return arsoHeaderInfo{
		width:      width,
		height:     height,
		header:     header,
		bounds:     bounds,
		gridParams: gp,
		timestamp:  arsoTimestampFromHeader(header),
	}
}

func (a *ARSO) decodeSRD(path string) (*radar.Frame, error) {
	body, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: arso: reading %s: %v", radarerr.ErrDecode, path, err)
	}
	content := string(body)

	hdr := parseSRDFileHeader(content)
	offset := hdr.header.intOr("offset", arsoDefaultOffset)
	start := hdr.header.floatOr("start", arsoDefaultStart)
	slope := hdr.header.floatOr("slope", arsoDefaultSlope)

	data, err := parseSRDData(content, hdr.width, hdr.height, offset, start, slope)
	if err != nil {
		return nil, err
	}

	return &radar.Frame{
		Data:   data,
		Dims:   radar.Dimensions{Height: hdr.height, Width: hdr.width},
		Bounds: hdr.bounds,
		Projection: radar.Projection{
			Kind:  radar.ProjectionLCC,
			Proj4: arsoSiradProj4,
			Grid:  hdr.gridParams,
		},
		Metadata:  radar.Metadata{Source: "arso", Product: "zm", Quantity: "DBZH"},
		Timestamp: radar.Timestamp(hdr.timestamp),
	}, nil
}

// arsoTimestampFromHeader reads the SRD-3 "time" header key, falling
// back to the current wall-clock minute (rounded down) when absent —
// ARSO never publishes historical timestamps anyway (spec.md §4.1).
func arsoTimestampFromHeader(header srdHeader) string {
	if v, ok := header["time"]; ok && len(v) > 0 {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, strings.Join(v, ""))
		if len(digits) == 14 {
			return digits
		}
	}
	return time.Now().UTC().Truncate(time.Minute).Format("20060102150405")
}

// arsoGridGeometry computes the LCC-projected affine origin/pixel size
// and an approximate WGS84 bounding box for the 401x301 1km grid
// centered 4km west/6km south of the GEOSS reference point.
func arsoGridGeometry(width, height int) (radar.Bounds, radar.GridParams) {
	// Pixel (0,0) is grid cell (i=1, j=1): x = (1-geossI)*cellsize,
	// y = (geossJ-1)*cellsize in projected km.
	originX := float64(1-arsoGeossCellI) * arsoCellSizeKM * 1000
	originY := float64(arsoGeossCellJ-1) * arsoCellSizeKM * 1000
	gp := radar.GridParams{
		OriginX:     originX,
		OriginY:     originY,
		PixelWidth:  arsoCellSizeKM * 1000,
		PixelHeight: -arsoCellSizeKM * 1000,
	}

	transformer, err := proj.ForProj4(arsoSiradProj4)
	if err != nil {
		return radar.Bounds{}, gp
	}
	// The proj4 string declares +units=km; the parsed transformer
	// expects coordinates in that native unit, so convert from the
	// meter-based GridParams before inverting.
	minX := originX / 1000
	maxX := (originX + float64(width)*gp.PixelWidth) / 1000
	maxY := originY / 1000
	minY := (originY + float64(height)*gp.PixelHeight) / 1000

	west, south, errSW := transformer.Inverse(minX, minY)
	east, north, errNE := transformer.Inverse(maxX, maxY)
	if errSW != nil || errNE != nil {
		return radar.Bounds{}, gp
	}
	return radar.Bounds{West: west, East: east, South: south, North: north}, gp
}

func (a *ARSO) Decode(ctx context.Context, path string) (*radar.Frame, error) {
	return a.decodeSRD(path)
}

// DecodeExtentOnly parses only the SRD-3 ASCII header — grid shape and
// geometry — and never runs parseSRDData over the byte-packed payload,
// per the metadata-only contract the extent pass requires.
func (a *ARSO) DecodeExtentOnly(ctx context.Context, path string) (ExtentOnly, error) {
	body, err := readFile(path)
	if err != nil {
		return ExtentOnly{}, fmt.Errorf("%w: arso: reading %s: %v", radarerr.ErrDecode, path, err)
	}
	hdr := parseSRDFileHeader(string(body))
	return ExtentOnly{
		WGS84Bounds: hdr.bounds,
		Dimensions:  radar.Dimensions{Height: hdr.height, Width: hdr.width},
		Projection: radar.Projection{
			Kind:  radar.ProjectionLCC,
			Proj4: arsoSiradProj4,
			Grid:  hdr.gridParams,
		},
	}, nil
}

func (a *ARSO) NativeExtent() NativeExtent {
	bounds, _ := arsoGridGeometry(arsoGridWidth, arsoGridHeight)
	return NativeExtent{
		WGS84Bounds: bounds,
		GridSize:    radar.Dimensions{Height: arsoGridHeight, Width: arsoGridWidth},
		ResolutionM: 1000,
	}
}
