// Package matcher implements the Timestamp Matcher (C6): given per-
// source candidate timestamps, finds the N most recent common time
// windows within a tolerance, degrading through spec.md §4.6's ladder
// when no full match exists.
package matcher

import (
	"sort"
	"time"

	"github.com/samber/lo"
)

// ArsoSource is the name of the one optional, archive-less source the
// degradation ladder treats specially.
const ArsoSource = "arso"

// CoreSources are the sources whose presence the Outage Detector's
// quorum gate (spec.md §4.7) counts against min_core_sources. ARSO is
// deliberately excluded: it is optional.
var CoreSources = []string{"dwd", "shmu", "chmi", "omsz", "imgw"}

// Candidate is one source's reported timestamp and handle, keyed by
// the 14-digit form.
type Candidate struct {
	Timestamp string // 14-digit YYYYMMDDHHMMSS
	Handle    any    // opaque download handle, passed through untouched
}

// Match is one accepted time window: the representative timestamp and
// the per-source candidate that was matched to it.
type Match struct {
	Timestamp string
	Sources   map[string]Candidate
	ArsoDropped    bool
	CoreQuorumUsed bool
}

// parseTS parses a 14-digit timestamp into a time.Time (UTC, minute
// precision is all that matters downstream).
func parseTS(ts string) (time.Time, bool) {
	t, err := time.Parse("20060102150405", ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Match finds, for each candidate timestamp, the closest-in-tolerance
// timestamp from every other source, accepting the window if at least
// minSources sources are represented. Candidates are tried newest
// first; accepted windows are enforced non-overlapping at 1-minute
// granularity (spec.md §4.6's tie-breaking: "keep only the
// earlier-encountered (newer) one").
func Match(bySource map[string][]Candidate, toleranceMinutes int, minSources int, maxCount int) []Match {
	allTimestamps := lo.Uniq(lo.FlatMap(lo.Values(bySource), func(cs []Candidate, _ int) []string {
		return lo.Map(cs, func(c Candidate, _ int) string { return c.Timestamp })
	}))
	sort.Sort(sort.Reverse(sort.StringSlice(allTimestamps)))

	tolerance := time.Duration(toleranceMinutes) * time.Minute
	var matches []Match
	var acceptedTimes []time.Time

	for _, ts := range allTimestamps {
		if len(matches) >= maxCount {
			break
		}
		candTime, ok := parseTS(ts)
		if !ok {
			continue
		}

		tooClose := false
		for _, at := range acceptedTimes {
			d := at.Sub(candTime)
			if d < 0 {
				d = -d
			}
			if d <= time.Minute {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}

		sources := make(map[string]Candidate)
		for source, candidates := range bySource {
			best, bestDiff, found := Candidate{}, time.Duration(1<<62), false
			for _, c := range candidates {
				t, ok := parseTS(c.Timestamp)
				if !ok {
					continue
				}
				diff := t.Sub(candTime)
				if diff < 0 {
					diff = -diff
				}
				if diff <= tolerance && diff < bestDiff {
					best, bestDiff, found = c, diff, true
				}
			}
			if found {
				sources[source] = best
			}
		}

		if len(sources) >= minSources {
			matches = append(matches, Match{Timestamp: ts, Sources: sources})
			acceptedTimes = append(acceptedTimes, candTime)
		}
	}

	return matches
}

// MatchWithLadder applies the full degradation ladder from spec.md
// §4.6: a full match across every source; failing that, ARSO dropped
// (if present); failing that, relaxed to
// max(coreQuorum, len(sources)-1). It returns the matches from the
// first rung of the ladder that yields at least one result.
func MatchWithLadder(bySource map[string][]Candidate, toleranceMinutes, coreQuorum, maxCount int) []Match {
	sourceNames := lo.Keys(bySource)
	full := len(sourceNames)

	if ms := Match(bySource, toleranceMinutes, full, maxCount); len(ms) > 0 {
		return ms
	}

	if _, hasArso := bySource[ArsoSource]; hasArso {
		withoutArso := lo.OmitByKeys(bySource, []string{ArsoSource})
		if ms := Match(withoutArso, toleranceMinutes, len(withoutArso), maxCount); len(ms) > 0 {
			for i := range ms {
				ms[i].ArsoDropped = true
			}
			return ms
		}
	}

	relaxed := coreQuorum
	if full-1 > relaxed {
		relaxed = full - 1
	}
	if relaxed < 1 {
		relaxed = 1
	}
	ms := Match(bySource, toleranceMinutes, relaxed, maxCount)
	for i := range ms {
		ms[i].CoreQuorumUsed = true
	}
	return ms
}
