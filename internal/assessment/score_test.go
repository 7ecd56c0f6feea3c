package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orthoflow/practice-service/internal/apperr"
)

func TestScore_Bands(t *testing.T) {
	tests := []struct {
		name     string
		m        Measurements
		score    int
		severity string
	}{
		{
			name:     "ideal occlusion",
			m:        Measurements{AngleClass: AngleClassI, OverjetMM: 2, OverbiteMM: 2, Crossbite: CrossbiteNone},
			score:    0,
			severity: SeverityMild,
		},
		{
			name:     "class II div 1 with large overjet",
			m:        Measurements{AngleClass: AngleClassIIDiv1, OverjetMM: 7, OverbiteMM: 5, CrowdingMM: 3, Crossbite: CrossbiteNone},
			score:    3 + 3 + 2 + 1,
			severity: SeverityModerate,
		},
		{
			name:     "upper boundary of mild",
			m:        Measurements{AngleClass: AngleClassIII, OverjetMM: 3.5, CrowdingMM: 4.5, SpacingMM: 1, Crossbite: CrossbiteNone, MidlineShiftMM: -2.5},
			score:    4 + 0 + 3 + 0 + 1,
			severity: SeverityMild,
		},
		{
			name: "class III with reverse overjet and open bite",
			m: Measurements{
				AngleClass: AngleClassIII, OverjetMM: -2, OverbiteMM: 0, CrowdingMM: 9,
				Crossbite: CrossbiteBoth, OpenBiteMM: 3, MidlineShiftMM: 4.5,
			},
			score:    4 + 4 + 4 + 4 + 3 + 2,
			severity: SeveritySevere,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Score(tt.m)
			assert.Equal(t, tt.score, res.Score)
			assert.Equal(t, tt.severity, res.Severity)
			assert.Len(t, res.Components, 8)
		})
	}
}

func TestSeverityBoundaries(t *testing.T) {
	assert.Equal(t, SeverityMild, severity(8))
	assert.Equal(t, SeverityModerate, severity(9))
	assert.Equal(t, SeverityModerate, severity(16))
	assert.Equal(t, SeveritySevere, severity(17))
}

func TestMeasurements_NormalizeAndValidate(t *testing.T) {
	m := Measurements{AngleClass: " ii_div2 ", OverjetMM: 4.26}
	m.Normalize()
	assert.Equal(t, AngleClassIIDiv2, m.AngleClass)
	assert.Equal(t, CrossbiteNone, m.Crossbite)
	assert.Equal(t, 4.3, m.OverjetMM)
	require.NoError(t, m.Validate())

	m.CrowdingMM = -1
	var ve *apperr.ValidationError
	require.ErrorAs(t, m.Validate(), &ve)
	assert.Equal(t, "crowding_mm", ve.Field)

	bad := Measurements{AngleClass: "IV", Crossbite: CrossbiteNone}
	require.ErrorAs(t, bad.Validate(), &ve)
	assert.Equal(t, "angle_class", ve.Field)
}
