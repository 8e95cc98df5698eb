// Package crossmatch associates sources between two catalogues by angular
// proximity on the sky.
//
// The match is one-to-one over the smaller catalogue: each of its sources
// claims its nearest neighbour in the other catalogue, and when several
// sources claim the same neighbour only the closest pairing survives. The
// result is deterministic for fixed inputs regardless of source ordering.
package crossmatch

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"radioval/internal/catalogue"
	"radioval/internal/logging"
	obsmetrics "radioval/internal/observability/metrics"
)

// tieTolerance is the separation difference, in degrees, below which two
// candidate neighbours count as equidistant.
const tieTolerance = 1e-9

// CrossMatch pairs a primary-catalogue source with its reference-catalogue
// counterpart.
type CrossMatch struct {
	Primary    *catalogue.Source // source from the primary catalogue
	Reference  *catalogue.Source // source from the reference catalogue
	Separation float64           // angular separation in arcsec
	Valid      bool
}

// Matcher performs cross-matching between catalogues.
type Matcher struct {
	log     *slog.Logger
	metrics *obsmetrics.CrossMatchMetrics
}

// NewMatcher creates a matcher. The metrics collector may be nil.
func NewMatcher(m *obsmetrics.CrossMatchMetrics) *Matcher {
	return &Matcher{
		log:     logging.ForService("crossmatch"),
		metrics: m,
	}
}

// DefaultMaxSeparation returns the match radius, in arcsec, derived from the
// coarser of the two catalogues' PSF sizes. Three beam widths keeps genuine
// counterparts with imperfect astrometry inside the radius.
func DefaultMaxSeparation(a, b *catalogue.Catalogue) float64 {
	return 3 * math.Max(a.Resolution, b.Resolution)
}

// Match cross-matches the primary catalogue against a reference catalogue.
// maxSeparation is in arcsec. An empty catalogue or disjoint sky coverage
// yields an empty result, not an error.
func (m *Matcher) Match(primary, reference *catalogue.Catalogue, maxSeparation float64) []CrossMatch {
	start := time.Now()

	var pairs []CrossMatch
	var dropped int
	if primary.Count() <= reference.Count() {
		pairs, dropped = m.matchDirected(primary.Sources(), reference.Sources(), maxSeparation, false)
	} else {
		pairs, dropped = m.matchDirected(reference.Sources(), primary.Sources(), maxSeparation, true)
	}

	if m.metrics != nil {
		m.metrics.RecordDuration(time.Since(start))
		for i := range pairs {
			m.metrics.RecordMatch(reference.Name, pairs[i].Separation)
		}
		if dropped > 0 {
			m.metrics.RecordDropped(reference.Name, dropped)
		}
	}
	m.log.Info("cross-matched catalogues",
		"primary", primary.Name,
		"reference", reference.Name,
		"max_separation_arcsec", maxSeparation,
		"matches", len(pairs))

	return pairs
}

// matchDirected matches each source of the smaller set to its nearest
// neighbour in the larger set. swapped reports that "smaller" holds
// reference-catalogue sources, so the output orientation must be flipped.
func (m *Matcher) matchDirected(smaller, larger []*catalogue.Source, maxSeparation float64, swapped bool) ([]CrossMatch, int) {
	if len(smaller) == 0 || len(larger) == 0 {
		return []CrossMatch{}, 0
	}

	// Declination-sorted view of the larger set bounds the neighbour scan
	// to a band of width 2*maxSeparation.
	byDec := make([]*catalogue.Source, len(larger))
	copy(byDec, larger)
	sort.Slice(byDec, func(i, j int) bool {
		if byDec[i].Dec.Value != byDec[j].Dec.Value {
			return byDec[i].Dec.Value < byDec[j].Dec.Value
		}
		return byDec[i].ID < byDec[j].ID
	})

	// Stable iteration order over the smaller set keeps collision
	// resolution independent of input ordering.
	claimants := make([]*catalogue.Source, len(smaller))
	copy(claimants, smaller)
	sort.Slice(claimants, func(i, j int) bool { return claimants[i].ID < claimants[j].ID })

	type claim struct {
		src    *catalogue.Source
		target *catalogue.Source
		sepDeg float64
	}

	maxSepDeg := maxSeparation / 3600.0
	best := make(map[*catalogue.Source]claim) // target -> winning claim
	dropped := 0

	for _, src := range claimants {
		target, sepDeg := nearest(src, byDec, maxSepDeg)
		if target == nil {
			continue
		}
		prev, contested := best[target]
		if !contested {
			best[target] = claim{src: src, target: target, sepDeg: sepDeg}
			continue
		}
		// Many-to-one collision: keep the closest claimant, drop the
		// other as unmatched. Equidistant claims resolve by source id.
		dropped++
		if sepDeg < prev.sepDeg-tieTolerance ||
			(math.Abs(sepDeg-prev.sepDeg) <= tieTolerance && src.ID < prev.src.ID) {
			best[target] = claim{src: src, target: target, sepDeg: sepDeg}
		}
	}

	if dropped > 0 {
		m.log.Debug("dropped colliding cross-match claims", "count", dropped)
	}

	pairs := make([]CrossMatch, 0, len(best))
	for _, c := range best {
		cm := CrossMatch{
			Primary:    c.src,
			Reference:  c.target,
			Separation: c.sepDeg * 3600.0,
			Valid:      true,
		}
		if swapped {
			cm.Primary, cm.Reference = cm.Reference, cm.Primary
		}
		pairs = append(pairs, cm)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Primary.ID < pairs[j].Primary.ID })
	return pairs, dropped
}

// nearest finds the closest neighbour of src in the declination-sorted set,
// within maxSepDeg. Ties within tolerance prefer the brighter neighbour.
func nearest(src *catalogue.Source, byDec []*catalogue.Source, maxSepDeg float64) (*catalogue.Source, float64) {
	lo := sort.Search(len(byDec), func(i int) bool {
		return byDec[i].Dec.Value >= src.Dec.Value-maxSepDeg
	})
	hi := sort.Search(len(byDec), func(i int) bool {
		return byDec[i].Dec.Value > src.Dec.Value+maxSepDeg
	})

	var bestTarget *catalogue.Source
	bestSep := math.Inf(1)
	for _, cand := range byDec[lo:hi] {
		sep := Separation(src.RA.Value, src.Dec.Value, cand.RA.Value, cand.Dec.Value)
		if sep > maxSepDeg {
			continue
		}
		switch {
		case sep < bestSep-tieTolerance:
			bestTarget, bestSep = cand, sep
		case math.Abs(sep-bestSep) <= tieTolerance && bestTarget != nil:
			// Equidistant within tolerance: prefer the brighter source,
			// which is less likely to be a noise peak.
			if cand.Flux.Value > bestTarget.Flux.Value {
				bestTarget, bestSep = cand, sep
			}
		}
	}
	return bestTarget, bestSep
}

// Separation returns the great-circle angular separation between two sky
// positions, all in degrees, using the haversine formula.
func Separation(ra1, dec1, ra2, dec2 float64) float64 {
	const degToRad = math.Pi / 180.0

	dRA := (ra2 - ra1) * degToRad
	dDec := (dec2 - dec1) * degToRad
	sinDRA := math.Sin(dRA / 2)
	sinDDec := math.Sin(dDec / 2)

	a := sinDDec*sinDDec + math.Cos(dec1*degToRad)*math.Cos(dec2*degToRad)*sinDRA*sinDRA
	return 2 * math.Asin(math.Min(1, math.Sqrt(a))) / degToRad
}
