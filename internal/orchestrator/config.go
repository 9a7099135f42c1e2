package orchestrator

import (
	"fmt"

	"github.com/imeteo/radarfusion/internal/radarerr"
)

// DefaultProduct is the per-source product this pipeline requests when
// the caller doesn't name one explicitly — one representative
// composite product per provider, matching the CLI default named in
// spec.md §6.
var DefaultProduct = map[string]string{
	"dwd":  "dmax",
	"shmu": "zmax",
	"chmi": "maxz",
	"arso": "zm",
	"omsz": "cmax",
	"imgw": "cmax",
}

func defaultProduct(source string) (string, error) {
	p, ok := DefaultProduct[source]
	if !ok {
		return "", fmt.Errorf("%w: no default product for source %q", radarerr.ErrConfig, source)
	}
	return p, nil
}
