// Package assessment scores malocclusion measurements taken at the chair.
package assessment

import (
	"math"
	"strings"

	"github.com/orthoflow/practice-service/internal/apperr"
)

// Angle classifications.
const (
	AngleClassI      = "I"
	AngleClassIIDiv1 = "II_DIV1"
	AngleClassIIDiv2 = "II_DIV2"
	AngleClassIII    = "III"
)

// Crossbite locations.
const (
	CrossbiteNone      = "NONE"
	CrossbiteAnterior  = "ANTERIOR"
	CrossbitePosterior = "POSTERIOR"
	CrossbiteBoth      = "BOTH"
)

// Severity bands.
const (
	SeverityMild     = "MILD"
	SeverityModerate = "MODERATE"
	SeveritySevere   = "SEVERE"

	mildMax     = 8
	moderateMax = 16
)

var anglePoints = map[string]int{
	AngleClassI:      0,
	AngleClassIIDiv1: 3,
	AngleClassIIDiv2: 3,
	AngleClassIII:    4,
}

var crossbitePoints = map[string]int{
	CrossbiteNone:      0,
	CrossbiteAnterior:  3,
	CrossbitePosterior: 2,
	CrossbiteBoth:      4,
}

// Measurements are the clinical findings in millimetres. Overjet may be
// negative for a reverse overjet.
type Measurements struct {
	AngleClass     string  `json:"angle_class"`
	OverjetMM      float64 `json:"overjet_mm"`
	OverbiteMM     float64 `json:"overbite_mm"`
	CrowdingMM     float64 `json:"crowding_mm"`
	SpacingMM      float64 `json:"spacing_mm"`
	Crossbite      string  `json:"crossbite"`
	OpenBiteMM     float64 `json:"open_bite_mm"`
	MidlineShiftMM float64 `json:"midline_shift_mm"`
}

// Component is one measurement's contribution to the score.
type Component struct {
	Name   string  `json:"name"`
	Value  string  `json:"value"`
	Points int     `json:"points"`
	MM     float64 `json:"mm,omitempty"`
}

type Result struct {
	Score      int         `json:"score"`
	Severity   string      `json:"severity"`
	Components []Component `json:"components"`
}

// threshold awards points when a value is strictly above min. Bands are
// checked from the highest down.
type threshold struct {
	min    float64
	points int
}

var (
	overjetBands  = []threshold{{9, 5}, {6, 3}, {3.5, 2}}
	overbiteBands = []threshold{{6, 3}, {4, 2}}
	crowdingBands = []threshold{{8, 4}, {4, 3}, {2, 1}}
	spacingBands  = []threshold{{6, 3}, {3, 2}, {1, 1}}
	openBiteBands = []threshold{{4, 4}, {2, 3}, {0, 1}}
	midlineBands  = []threshold{{4, 2}, {2, 1}}
)

const reverseOverjetPoints = 4

func banded(v float64, bands []threshold) int {
	for _, b := range bands {
		if v > b.min {
			return b.points
		}
	}
	return 0
}

// Normalize upper-cases the categorical fields and rounds lengths to the
// 0.1mm the chart records.
func (m *Measurements) Normalize() {
	m.AngleClass = strings.ToUpper(strings.TrimSpace(m.AngleClass))
	m.Crossbite = strings.ToUpper(strings.TrimSpace(m.Crossbite))
	if m.Crossbite == "" {
		m.Crossbite = CrossbiteNone
	}
	for _, v := range []*float64{&m.OverjetMM, &m.OverbiteMM, &m.CrowdingMM, &m.SpacingMM, &m.OpenBiteMM, &m.MidlineShiftMM} {
		*v = math.Round(*v*10) / 10
	}
}

// Validate checks categorical values and plausible ranges.
func (m Measurements) Validate() error {
	if _, ok := anglePoints[m.AngleClass]; !ok {
		return apperr.Invalid("angle_class", "must be one of I, II_DIV1, II_DIV2, III")
	}
	if _, ok := crossbitePoints[m.Crossbite]; !ok {
		return apperr.Invalid("crossbite", "must be one of NONE, ANTERIOR, POSTERIOR, BOTH")
	}
	ranges := []struct {
		field    string
		v        float64
		min, max float64
	}{
		{"overjet_mm", m.OverjetMM, -15, 20},
		{"overbite_mm", m.OverbiteMM, -10, 15},
		{"crowding_mm", m.CrowdingMM, 0, 30},
		{"spacing_mm", m.SpacingMM, 0, 30},
		{"open_bite_mm", m.OpenBiteMM, 0, 15},
		{"midline_shift_mm", m.MidlineShiftMM, -10, 10},
	}
	for _, r := range ranges {
		if math.IsNaN(r.v) || r.v < r.min || r.v > r.max {
			return apperr.Invalid(r.field, "must be between %.0f and %.0f", r.min, r.max)
		}
	}
	return nil
}

// Score sums weighted points for each finding and maps the total onto a
// severity band: MILD up to 8, MODERATE up to 16, SEVERE above.
func Score(m Measurements) Result {
	overjet := banded(m.OverjetMM, overjetBands)
	if m.OverjetMM < 0 {
		overjet = reverseOverjetPoints
	}

	components := []Component{
		{Name: "angle_class", Value: m.AngleClass, Points: anglePoints[m.AngleClass]},
		{Name: "overjet", MM: m.OverjetMM, Points: overjet},
		{Name: "overbite", MM: m.OverbiteMM, Points: banded(m.OverbiteMM, overbiteBands)},
		{Name: "crowding", MM: m.CrowdingMM, Points: banded(m.CrowdingMM, crowdingBands)},
		{Name: "spacing", MM: m.SpacingMM, Points: banded(m.SpacingMM, spacingBands)},
		{Name: "crossbite", Value: m.Crossbite, Points: crossbitePoints[m.Crossbite]},
		{Name: "open_bite", MM: m.OpenBiteMM, Points: banded(m.OpenBiteMM, openBiteBands)},
		{Name: "midline_shift", MM: m.MidlineShiftMM, Points: banded(math.Abs(m.MidlineShiftMM), midlineBands)},
	}

	total := 0
	for _, c := range components {
		total += c.Points
	}
	return Result{Score: total, Severity: severity(total), Components: components}
}

func severity(score int) string {
	switch {
	case score <= mildMax:
		return SeverityMild
	case score <= moderateMax:
		return SeverityModerate
	default:
		return SeveritySevere
	}
}
