// Package outage implements the Outage Detector (C7): per-source
// freshness classification and the core-source quorum gate, per
// spec.md §4.7.
package outage

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/imeteo/radarfusion/internal/matcher"
	"github.com/imeteo/radarfusion/internal/radarerr"
)

// Status is a source's availability classification.
type Status int

const (
	Available Status = iota
	Outage
)

func (s Status) String() string {
	if s == Available {
		return "available"
	}
	return "outage"
}

// DefaultMaxDataAge is the 30-minute default named in spec.md §4.7.
const DefaultMaxDataAge = 30 * time.Minute

// DefaultMinCoreSources is the default core-quorum floor named in
// spec.md §4.7.
const DefaultMinCoreSources = 3

// Report is one source's classification and the reason string attached
// to it, for the quorum-failure error message.
type Report struct {
	Source   string
	Status   Status
	Reason   string
	NewestTS time.Time
}

// Classify builds a Report for every entry of sources. newestTimestamp
// holds the newest available timestamp per source, from fresh probes ∪
// cached entries; a source absent from the map is reported as Outage
// with reason "no data available".
func Classify(sources []string, newestTimestamp map[string]time.Time, maxDataAge time.Duration, now time.Time) []Report {
	if maxDataAge <= 0 {
		maxDataAge = DefaultMaxDataAge
	}
	reports := make([]Report, 0, len(sources))
	for _, source := range sources {
		ts, ok := newestTimestamp[source]
		if !ok {
			reports = append(reports, Report{Source: source, Status: Outage, Reason: "no data available"})
			continue
		}
		age := now.Sub(ts)
		if age <= maxDataAge {
			reports = append(reports, Report{Source: source, Status: Available, Reason: "", NewestTS: ts})
		} else {
			reports = append(reports, Report{
				Source:   source,
				Status:   Outage,
				Reason:   fmt.Sprintf("stale data (age=%s)", age.Round(time.Minute)),
				NewestTS: ts,
			})
		}
	}
	return reports
}

// Gate enforces the minimum-core-sources rule: at least minCoreSources
// of matcher.CoreSources must be Available. It returns a
// radarerr.ErrOutageGate-wrapped error naming the missing core sources
// when the gate fails.
func Gate(reports []Report, minCoreSources int) error {
	if minCoreSources <= 0 {
		minCoreSources = DefaultMinCoreSources
	}
	bySource := lo.KeyBy(reports, func(r Report) string { return r.Source })

	available := 0
	var missing []string
	for _, core := range matcher.CoreSources {
		r, ok := bySource[core]
		if ok && r.Status == Available {
			available++
			continue
		}
		reason := "no data available"
		if ok {
			reason = r.Reason
		}
		missing = append(missing, fmt.Sprintf("%s (%s)", core, reason))
	}

	if available < minCoreSources {
		return fmt.Errorf("%w: only %d/%d core sources available (need %d): %v",
			radarerr.ErrOutageGate, available, len(matcher.CoreSources), minCoreSources, missing)
	}
	return nil
}
