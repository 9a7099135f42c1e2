package sources

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/rs/zerolog"
)

// memRW is an in-memory ReaderWriterAt used to assemble a real netCDF
// classic file in a test, without touching the network or disk for the
// intermediate build steps.
type memRW struct{ buf []byte }

func (m *memRW) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, os.ErrInvalid
	}
	return n, nil
}

func (m *memRW) WriteAt(p []byte, off int64) (int, error) {
	end := off + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[off:end], p)
	return len(p), nil
}

// buildOMSZFixture writes a minimal but real netCDF classic file shaped
// like an OMSZ radar_composite file: a 2x3 refl2D byte grid plus the
// La1/Lo1/Dx/Dy scalar geometry variables and a GMTime string, then
// persists it to a temp file and returns its path.
func buildOMSZFixture(t *testing.T, raw []uint8, height, width int) string {
	t.Helper()
	h := cdf.NewHeader([]string{"y", "x", "scalar", "timelen"}, []int{height, width, 1, 14})
	h.AddVariable("refl2D", []string{"y", "x"}, []uint8{})
	h.AddVariable("La1", []string{"scalar"}, []float64{0})
	h.AddVariable("Lo1", []string{"scalar"}, []float64{0})
	h.AddVariable("Dx", []string{"scalar"}, []float64{0})
	h.AddVariable("Dy", []string{"scalar"}, []float64{0})
	h.AddVariable("GMTime", []string{"timelen"}, "")
	h.Define()

	rw := &memRW{}
	f, err := cdf.Create(rw, h)
	if err != nil {
		t.Fatalf("cdf.Create: %v", err)
	}

	if _, err := f.Writer("refl2D", nil, nil).Write(raw); err != nil {
		t.Fatalf("write refl2D: %v", err)
	}
	writeScalar := func(name string, v float64) {
		if _, err := f.Writer(name, nil, nil).Write([]float64{v}); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	writeScalar("La1", 49.8)
	writeScalar("Lo1", 14.0)
	writeScalar("Dx", 0.01)
	writeScalar("Dy", 0.01)
	if _, err := f.Writer("GMTime", nil, nil).Write("20260731120000"); err != nil {
		t.Fatalf("write GMTime: %v", err)
	}

	tmp, err := os.CreateTemp("", "omsz-fixture-*.nc")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := tmp.Write(rw.buf); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	tmp.Close()
	t.Cleanup(func() { os.Remove(tmp.Name()) })
	return tmp.Name()
}

// TestOMSZDecodeUnsignedByteNoWraparound is the S5 scenario: a raw byte
// value of 0xFF (255, "outside coverage") must decode to NaN, never to
// a spuriously negative dBZ value from treating the byte as signed.
func TestOMSZDecodeUnsignedByteNoWraparound(t *testing.T) {
	raw := []uint8{255, 0, 40, 80, 120, 200}
	path := buildOMSZFixture(t, raw, 2, 3)

	o := NewOMSZ(newFakeHTTPClient(), zerolog.Nop())
	frame, err := o.Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !math.IsNaN(float64(frame.Data[0])) {
		t.Fatalf("Data[0] (raw 255) = %v, want NaN", frame.Data[0])
	}
	if !math.IsNaN(float64(frame.Data[1])) {
		t.Fatalf("Data[1] (raw 0) = %v, want NaN", frame.Data[1])
	}
	want := float32(40*omszGain + omszOffset)
	if frame.Data[2] != want {
		t.Fatalf("Data[2] = %v, want %v", frame.Data[2], want)
	}
	if frame.Timestamp != "20260731120000" {
		t.Fatalf("Timestamp = %q, want 20260731120000", frame.Timestamp)
	}
	if frame.Bounds.North != 49.8 || frame.Bounds.West != 14.0 {
		t.Fatalf("Bounds = %+v, want North=49.8 West=14.0", frame.Bounds)
	}
	if frame.Dims.Height != 2 || frame.Dims.Width != 3 {
		t.Fatalf("Dims = %+v, want 2x3", frame.Dims)
	}
}

// TestOMSZDecodeExtentOnlyMatchesDecodeWithoutPixelData exercises the
// metadata-only contract: DecodeExtentOnly must report the same
// bounds/dimensions as Decode without ever populating Frame.Data.
func TestOMSZDecodeExtentOnlyMatchesDecodeWithoutPixelData(t *testing.T) {
	raw := []uint8{255, 0, 40, 80, 120, 200}
	path := buildOMSZFixture(t, raw, 2, 3)
	o := NewOMSZ(newFakeHTTPClient(), zerolog.Nop())

	extent, err := o.DecodeExtentOnly(context.Background(), path)
	if err != nil {
		t.Fatalf("DecodeExtentOnly: %v", err)
	}
	if extent.Dimensions.Height != 2 || extent.Dimensions.Width != 3 {
		t.Fatalf("Dimensions = %+v, want 2x3", extent.Dimensions)
	}
	if extent.WGS84Bounds.North != 49.8 || extent.WGS84Bounds.West != 14.0 {
		t.Fatalf("WGS84Bounds = %+v, want North=49.8 West=14.0", extent.WGS84Bounds)
	}
}
