package sources

import (
	"context"
	"net/http"

	"github.com/imeteo/radarfusion/internal/httpfetch"
	"github.com/imeteo/radarfusion/internal/odim"
)

// fakeHTTPClient serves canned responses keyed by exact URL, used so
// adapter tests never touch the network.
type fakeHTTPClient struct {
	responses map[string]*httpfetch.Response
	heads     map[string]*httpfetch.Response
}

func newFakeHTTPClient() *fakeHTTPClient {
	return &fakeHTTPClient{responses: map[string]*httpfetch.Response{}, heads: map[string]*httpfetch.Response{}}
}

func (f *fakeHTTPClient) Get(ctx context.Context, url string) (*httpfetch.Response, error) {
	if r, ok := f.responses[url]; ok {
		return r, nil
	}
	return &httpfetch.Response{StatusCode: 404, Header: http.Header{}}, nil
}

func (f *fakeHTTPClient) Head(ctx context.Context, url string) (*httpfetch.Response, error) {
	if r, ok := f.heads[url]; ok {
		return r, nil
	}
	return &httpfetch.Response{StatusCode: 404, Header: http.Header{}}, nil
}

// fakeODIMFile is an in-memory odim.File used to test the ODIM-based
// adapters (DWD/SHMU/CHMI/IMGW) without any real HDF5 data.
type fakeODIMFile struct {
	attrs  map[string]string // "group/name" -> value
	height int
	width  int
	data   []float64
}

func (f *fakeODIMFile) Attr(group, name string) (string, bool, error) {
	v, ok := f.attrs[group+"/"+name]
	return v, ok, nil
}

func (f *fakeODIMFile) DataShape() (int, int, error) { return f.height, f.width, nil }
func (f *fakeODIMFile) Data() ([]float64, error)     { return f.data, nil }
func (f *fakeODIMFile) Close() error                 { return nil }

// fakeODIMReader always returns the same pre-built file, regardless of
// path — adapter Decode/DecodeExtentOnly tests only care about the
// attribute/data contract, not file I/O.
type fakeODIMReader struct {
	file *fakeODIMFile
}

func (r *fakeODIMReader) Open(ctx context.Context, path string) (odim.File, error) {
	return r.file, nil
}
