package navmesh

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	good := DefaultSettings()
	require.NoError(t, good.Validate())

	cases := []struct {
		field  string
		mutate func(*NavmeshSettings)
	}{
		{"AgentHeight", func(s *NavmeshSettings) { s.AgentHeight = 0 }},
		{"AgentRadius", func(s *NavmeshSettings) { s.AgentRadius = -1 }},
		{"CellSizeFraction", func(s *NavmeshSettings) { s.CellSizeFraction = 0 }},
		{"CellHeightFraction", func(s *NavmeshSettings) { s.CellHeightFraction = 0 }},
		{"WalkableClimb", func(s *NavmeshSettings) { s.WalkableClimb = -0.1 }},
		{"MaxVerticesPerPolygon", func(s *NavmeshSettings) { s.MaxVerticesPerPolygon = 2 }},
		{"MinRegionSize", func(s *NavmeshSettings) { s.MinRegionSize = -1 }},
		{"MergeRegionSize", func(s *NavmeshSettings) { s.MergeRegionSize = -1 }},
	}
	for _, tc := range cases {
		s := DefaultSettings()
		tc.mutate(&s)
		err := s.Validate()
		var serr *SettingsError
		require.ErrorAs(t, err, &serr, tc.field)
		assert.Equal(t, tc.field, serr.Field)
	}
}

func TestConfigLowering(t *testing.T) {
	s := DefaultSettings()
	cfg := s.config(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{12, 0, 12})

	assert.InDelta(t, 0.3, cfg.cellSize, 1e-6)
	assert.InDelta(t, 0.2, cfg.cellHeight, 1e-6)
	assert.Equal(t, 10, cfg.walkableHeight)
	assert.Equal(t, 2, cfg.walkableClimb)
	assert.Equal(t, 2, cfg.walkableRadius)
	assert.Equal(t, 64, cfg.minRegionArea)
	assert.Equal(t, 400, cfg.mergeRegionArea)
	assert.InDelta(t, 1.8, cfg.detailSampleDist, 1e-6)
	assert.InDelta(t, 0.2, cfg.detailSampleMaxError, 1e-6)
	assert.Equal(t, 0, cfg.borderSize)
	assert.Equal(t, cfg.bmin, mgl32.Vec3{0, 0, 0})
}

func TestConfigSampleDistCutoff(t *testing.T) {
	s := DefaultSettings()
	s.DetailSampleDist = 0.5
	cfg := s.config(mgl32.Vec3{}, mgl32.Vec3{12, 0, 12})
	assert.Zero(t, cfg.detailSampleDist, "sample distances below 0.9 disable sampling")
}

func TestConfigTilingBorder(t *testing.T) {
	s := DefaultSettings()
	base := s.config(mgl32.Vec3{}, mgl32.Vec3{12, 0, 12})

	s.Tiling = true
	cfg := s.config(mgl32.Vec3{}, mgl32.Vec3{12, 0, 12})
	assert.Equal(t, cfg.walkableRadius+3, cfg.borderSize)
	assert.Equal(t, base.width+cfg.borderSize*2, cfg.width)
	assert.Equal(t, base.height+cfg.borderSize*2, cfg.height)
	assert.Less(t, cfg.bmin[0], base.bmin[0], "bounds are padded by the border")
}

func TestConfigSlopeClamp(t *testing.T) {
	s := DefaultSettings()
	s.WalkableSlopeAngle = -1
	cfg := s.config(mgl32.Vec3{}, mgl32.Vec3{12, 0, 12})
	assert.Zero(t, cfg.walkableSlopeAngle)

	s.WalkableSlopeAngle = math.Pi
	cfg = s.config(mgl32.Vec3{}, mgl32.Vec3{12, 0, 12})
	assert.Less(t, cfg.walkableSlopeAngle, float32(math.Pi/2))
}

func TestToYUp(t *testing.T) {
	v := mgl32.Vec3{1, 2, 3}
	assert.Equal(t, v, UpY.ToYUp(v))
	assert.Equal(t, mgl32.Vec3{1, 3, -2}, UpZ.ToYUp(v))
	assert.Equal(t, mgl32.Vec3{2, 1, -3}, UpX.ToYUp(v))
}
