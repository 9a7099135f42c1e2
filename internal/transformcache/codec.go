package transformcache

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/imeteo/radarfusion/internal/radar"
)

// gridMagic tags the on-disk/remote format. Grids are stored as a small
// fixed-layout header followed by two plain int16 arrays — deliberately
// not gob or any self-describing/reflective format, so loading a cached
// grid can never execute anything beyond reading fixed-width numbers
// (spec.md §7's "deserialization must not execute code from cache
// payloads").
var gridMagic = [8]byte{'R', 'F', 'G', 'R', 'I', 'D', '1', '\n'}

// gridCodec implements tiercache.Codec[*Grid].
type gridCodec struct{}

func (gridCodec) Encode(g *Grid) ([]byte, error) {
	if len(g.RowIdx) != len(g.ColIdx) {
		return nil, fmt.Errorf("transformcache: RowIdx/ColIdx length mismatch (%d vs %d)", len(g.RowIdx), len(g.ColIdx))
	}
	var buf bytes.Buffer
	buf.Write(gridMagic[:])
	writeString(&buf, g.SourceName)
	writeString(&buf, g.Version)
	binary.Write(&buf, binary.LittleEndian, int32(g.DstShape.Height))
	binary.Write(&buf, binary.LittleEndian, int32(g.DstShape.Width))
	binary.Write(&buf, binary.LittleEndian, int32(g.SrcShape.Height))
	binary.Write(&buf, binary.LittleEndian, int32(g.SrcShape.Width))
	for _, v := range []float64{g.DstWGS84Bounds.West, g.DstWGS84Bounds.East, g.DstWGS84Bounds.South, g.DstWGS84Bounds.North} {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	for _, v := range []float64{g.Mercator.MinX, g.Mercator.MinY, g.Mercator.MaxX, g.Mercator.MaxY} {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	binary.Write(&buf, binary.LittleEndian, int32(len(g.RowIdx)))
	binary.Write(&buf, binary.LittleEndian, g.RowIdx)
	binary.Write(&buf, binary.LittleEndian, g.ColIdx)
	return buf.Bytes(), nil
}

func (gridCodec) Decode(data []byte) (*Grid, error) {
	r := bytes.NewReader(data)
	var magic [8]byte
	if _, err := r.Read(magic[:]); err != nil {
		return nil, fmt.Errorf("transformcache: short read on magic: %w", err)
	}
	if magic != gridMagic {
		return nil, fmt.Errorf("transformcache: bad magic %q", magic)
	}
	sourceName, err := readString(r)
	if err != nil {
		return nil, err
	}
	version, err := readString(r)
	if err != nil {
		return nil, err
	}
	var dstH, dstW, srcH, srcW int32
	for _, p := range []*int32{&dstH, &dstW, &srcH, &srcW} {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return nil, fmt.Errorf("transformcache: reading shape: %w", err)
		}
	}
	var wgs84 [4]float64
	for i := range wgs84 {
		if err := binary.Read(r, binary.LittleEndian, &wgs84[i]); err != nil {
			return nil, fmt.Errorf("transformcache: reading wgs84 bounds: %w", err)
		}
	}
	var merc [4]float64
	for i := range merc {
		if err := binary.Read(r, binary.LittleEndian, &merc[i]); err != nil {
			return nil, fmt.Errorf("transformcache: reading mercator bounds: %w", err)
		}
	}
	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("transformcache: reading array length: %w", err)
	}
	if n < 0 || int64(n) != int64(dstH)*int64(dstW) {
		return nil, fmt.Errorf("transformcache: array length %d does not match shape %dx%d", n, dstH, dstW)
	}
	rowIdx := make([]int16, n)
	if err := binary.Read(r, binary.LittleEndian, rowIdx); err != nil {
		return nil, fmt.Errorf("transformcache: reading RowIdx: %w", err)
	}
	colIdx := make([]int16, n)
	if err := binary.Read(r, binary.LittleEndian, colIdx); err != nil {
		return nil, fmt.Errorf("transformcache: reading ColIdx: %w", err)
	}

	return &Grid{
		RowIdx:         rowIdx,
		ColIdx:         colIdx,
		DstShape:       radar.Dimensions{Height: int(dstH), Width: int(dstW)},
		SrcShape:       radar.Dimensions{Height: int(srcH), Width: int(srcW)},
		DstWGS84Bounds: radar.Bounds{West: wgs84[0], East: wgs84[1], South: wgs84[2], North: wgs84[3]},
		Mercator:       radar.MercatorBounds{MinX: merc[0], MinY: merc[1], MaxX: merc[2], MaxY: merc[3]},
		SourceName:     sourceName,
		Version:        version,
	}, nil
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, int32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", fmt.Errorf("transformcache: reading string length: %w", err)
	}
	if n < 0 || n > 256 {
		return "", fmt.Errorf("transformcache: implausible string length %d", n)
	}
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil {
		return "", fmt.Errorf("transformcache: reading string bytes: %w", err)
	}
	return string(buf), nil
}
