// Package processedcache implements the Processed-Data Cache (C3): a
// TTL-bounded, three-tier cache of decoded canonical frames keyed by
// (source, product, timestamp), per SPEC_FULL.md §4.3. Its primary
// role is serving as an archive for sources with no provider archive
// of their own (ARSO).
package processedcache

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/imeteo/radarfusion/internal/radar"
	"github.com/imeteo/radarfusion/internal/transformcache"
)

// ValidateSourceName re-exports the ^[a-z]{2,10}$ source-name rule
// shared with the Transform-Grid Cache.
func ValidateSourceName(name string) error {
	return transformcache.ValidateSourceName(name)
}

var productPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,64}$`)

func validateProduct(product string) error {
	if !productPattern.MatchString(product) {
		return fmt.Errorf("processedcache: invalid product name %q", product)
	}
	return nil
}

// Entry is the Processed-Data Cache Entry described in SPEC_FULL.md §3:
// an NPZ-equivalent numeric payload (Frame.Data, optional Lons/Lats)
// plus the metadata carried in the JSON side-car.
type Entry struct {
	Frame    *radar.Frame
	Lons     []float64 // optional; nil if the source carries no lon/lat mesh
	Lats     []float64
	CachedAt time.Time
}

func (e *Entry) expired(ttl time.Duration, now time.Time) bool {
	return e.CachedAt.Add(ttl).Before(now)
}

// payloadMagic tags the NPZ-equivalent binary container. As with the
// transform grid, this is a fixed-layout format of plain float32/
// float64 arrays, never a reflective/self-describing one, so loading a
// cached payload cannot execute anything beyond reading numbers
// (spec.md §4.3: "restrict to plain numeric arrays plus JSON").
var payloadMagic = [8]byte{'R', 'F', 'D', 'A', 'T', 'A', '1', '\n'}

func encodePayload(e *Entry) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(payloadMagic[:])
	binary.Write(&buf, binary.LittleEndian, int32(e.Frame.Dims.Height))
	binary.Write(&buf, binary.LittleEndian, int32(e.Frame.Dims.Width))
	if err := binary.Write(&buf, binary.LittleEndian, int32(len(e.Frame.Data))); err != nil {
		return nil, err
	}
	binary.Write(&buf, binary.LittleEndian, e.Frame.Data)

	writeFloat64Slice(&buf, e.Lons)
	writeFloat64Slice(&buf, e.Lats)

	return buf.Bytes(), nil
}

func writeFloat64Slice(buf *bytes.Buffer, s []float64) {
	binary.Write(buf, binary.LittleEndian, int32(len(s)))
	if len(s) > 0 {
		binary.Write(buf, binary.LittleEndian, s)
	}
}

func readFloat64Slice(r *bytes.Reader) ([]float64, error) {
	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if n < 0 || n > 1<<28 {
		return nil, fmt.Errorf("processedcache: implausible array length %d", n)
	}
	s := make([]float64, n)
	if err := binary.Read(r, binary.LittleEndian, s); err != nil {
		return nil, err
	}
	return s, nil
}

// decodePayload parses the NPZ-equivalent binary container and combines
// it with a separately-decoded Sidecar to rebuild a usable Frame. The
// side-car does not carry the full Projection (only its Kind and the
// WGS84 extent), since every source's projection family is a fixed
// property of its adapter — callers that need the full Projection for
// a cache-sourced frame re-derive it from the source's adapter, not
// from the cache.
func decodePayload(data []byte, sc radar.Sidecar, cachedAt time.Time) (*Entry, error) {
	r := bytes.NewReader(data)
	var magic [8]byte
	if _, err := r.Read(magic[:]); err != nil {
		return nil, fmt.Errorf("processedcache: short read on magic: %w", err)
	}
	if magic != payloadMagic {
		return nil, fmt.Errorf("processedcache: bad magic %q", magic)
	}
	var h, w, n int32
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &w); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n < 0 || int64(n) != int64(h)*int64(w) {
		return nil, fmt.Errorf("processedcache: data length %d does not match shape %dx%d", n, h, w)
	}
	values := make([]float32, n)
	if err := binary.Read(r, binary.LittleEndian, values); err != nil {
		return nil, err
	}
	lons, err := readFloat64Slice(r)
	if err != nil {
		return nil, err
	}
	lats, err := readFloat64Slice(r)
	if err != nil {
		return nil, err
	}

	// The side-car stores the 12-digit normalized timestamp; Frame wants
	// the full 14-digit form, so seconds are reconstructed as "00" —
	// the original seconds value is not cache-significant (matching is
	// minute-granular throughout).
	frame := &radar.Frame{
		Data:      values,
		Dims:      radar.Dimensions{Height: int(h), Width: int(w)},
		Bounds:    sc.Extent,
		Timestamp: radar.Timestamp(sc.Timestamp + "00"),
		Metadata: radar.Metadata{
			Product: sc.Product,
			Source:  sc.Source,
			Quantity: sc.SourceMetadata["quantity"],
			Units:    sc.SourceMetadata["units"],
		},
	}
	return &Entry{Frame: frame, Lons: lons, Lats: lats, CachedAt: cachedAt}, nil
}

// jsonMarshalSidecar encodes the side-car. Go's json.Marshal already
// emits int64/float64 as native JSON numbers, so unlike the NumPy-backed
// original there is no separate "convert wide integers to native ints"
// step needed here.
func jsonMarshalSidecar(sc radar.Sidecar) ([]byte, error) {
	data, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("processedcache: encoding sidecar JSON: %w", err)
	}
	return data, nil
}

func decodeSidecar(data []byte) (radar.Sidecar, error) {
	var sc radar.Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return radar.Sidecar{}, fmt.Errorf("processedcache: decoding sidecar JSON: %w", err)
	}
	return sc, nil
}

// entryCodec bundles the NPZ-equivalent payload and the JSON side-car
// into a single length-prefixed blob, letting the Processed-Data Cache
// compose tiercache.Cache[*Entry] the same way the Transform-Grid Cache
// does (SPEC_FULL.md §9: "a single parameterised cache abstraction with
// a codec trait").
type entryCodec struct{}

func (entryCodec) Encode(e *Entry) ([]byte, error) {
	payload, err := encodePayload(e)
	if err != nil {
		return nil, err
	}
	ts12, err := NormalizeTimestamp(string(e.Frame.Timestamp))
	if err != nil {
		return nil, fmt.Errorf("processedcache: normalizing timestamp for encode: %w", err)
	}
	sc := e.Frame.SidecarJSON(ts12, e.CachedAt)
	scBytes, err := jsonMarshalSidecar(sc)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, int32(len(payload))); err != nil {
		return nil, err
	}
	buf.Write(payload)
	if err := binary.Write(&buf, binary.LittleEndian, int32(len(scBytes))); err != nil {
		return nil, err
	}
	buf.Write(scBytes)
	return buf.Bytes(), nil
}

func (entryCodec) Decode(data []byte) (*Entry, error) {
	r := bytes.NewReader(data)

	var payloadLen int32
	if err := binary.Read(r, binary.LittleEndian, &payloadLen); err != nil {
		return nil, err
	}
	if payloadLen < 0 || int64(payloadLen) > int64(len(data)) {
		return nil, fmt.Errorf("processedcache: implausible payload length %d", payloadLen)
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	var scLen int32
	if err := binary.Read(r, binary.LittleEndian, &scLen); err != nil {
		return nil, err
	}
	if scLen < 0 || int64(scLen) > int64(len(data)) {
		return nil, fmt.Errorf("processedcache: implausible sidecar length %d", scLen)
	}
	scBytes := make([]byte, scLen)
	if _, err := io.ReadFull(r, scBytes); err != nil {
		return nil, err
	}

	sc, err := decodeSidecar(scBytes)
	if err != nil {
		return nil, err
	}
	return decodePayload(payload, sc, time.Unix(sc.CachedAt, 0))
}
