package aggregator

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"meeting-insights-go/internal/types"
)

// Aggregate folds raw per-speaker segments into profiles sorted by total
// speaking time, longest first, labeled "Speaker 1".."Speaker N" in that order.
// Percentages are taken over the sum of all profiles and are 0 when it is 0.
func Aggregate(segments map[string][]types.SpeakerSegment) []types.SpeakerProfile {
	profiles := make([]types.SpeakerProfile, 0, len(segments))
	grand := 0.0
	for id, segs := range segments {
		p := types.SpeakerProfile{ID: id, Segments: make([]types.SpeakerSegment, 0, len(segs))}
		for _, s := range segs {
			if s.Duration < 0 {
				continue
			}
			p.Segments = append(p.Segments, s)
			p.TotalDuration += s.Duration
		}
		sort.SliceStable(p.Segments, func(i, j int) bool { return p.Segments[i].Start < p.Segments[j].Start })
		grand += p.TotalDuration
		profiles = append(profiles, p)
	}

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].TotalDuration != profiles[j].TotalDuration {
			return profiles[i].TotalDuration > profiles[j].TotalDuration
		}
		return profiles[i].ID < profiles[j].ID
	})

	for i := range profiles {
		profiles[i].Label = fmt.Sprintf("Speaker %d", i+1)
		if grand > 0 {
			profiles[i].PercentageOfTotal = round2(profiles[i].TotalDuration / grand * 100)
		}
		profiles[i].TotalDuration = round2(profiles[i].TotalDuration)
	}
	return profiles
}

// Breakdown renders speaking time per speaker for the summarizer prompt.
func Breakdown(profiles []types.SpeakerProfile) string {
	if len(profiles) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Speaker breakdown (%d speakers):\n", len(profiles))
	for _, p := range profiles {
		fmt.Fprintf(&b, "- %s: %.1fs of speech (%.1f%%) across %d segments\n",
			p.Label, p.TotalDuration, p.PercentageOfTotal, len(p.Segments))
	}
	return strings.TrimRight(b.String(), "\n")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
