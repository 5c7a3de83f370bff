package tessellate

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/h3-go/v4"
)

var unitSquare = orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}}

func TestCoverUnitSquare(t *testing.T) {
	cells, err := Cover(unitSquare, 7)
	require.NoError(t, err)
	require.NotEmpty(t, cells)
	for _, tok := range Tokens(cells) {
		res, err := ResolutionOf(tok)
		require.NoError(t, err)
		assert.Equal(t, 7, res)
	}
}

func TestCoverResolutions(t *testing.T) {
	poly := orb.Polygon{{{14.40, 50.05}, {14.40, 50.10}, {14.48, 50.10}, {14.48, 50.05}, {14.40, 50.05}}}
	for res := 5; res <= 10; res++ {
		cells, err := Cover(poly, res)
		require.NoError(t, err)
		for _, c := range cells {
			assert.True(t, c.IsValid())
			assert.Equal(t, res, c.Resolution())
		}
	}
}

func TestCoverHoleExcludesCells(t *testing.T) {
	outer := orb.Ring{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}
	hole := orb.Ring{{0.25, 0.25}, {0.75, 0.25}, {0.75, 0.75}, {0.25, 0.75}, {0.25, 0.25}}

	full, err := Cover(orb.Polygon{outer}, 6)
	require.NoError(t, err)
	holed, err := Cover(orb.Polygon{outer, hole}, 6)
	require.NoError(t, err)
	assert.Less(t, len(holed), len(full))

	center, err := h3.LatLngToCell(h3.NewLatLng(0.5, 0.5), 6)
	require.NoError(t, err)
	assert.Contains(t, full, center)
	assert.NotContains(t, holed, center)
}

func TestCoverMultiPolygonIsConcatenation(t *testing.T) {
	a := orb.Polygon{{{0, 0}, {0, 0.5}, {0.5, 0.5}, {0.5, 0}, {0, 0}}}
	b := orb.Polygon{{{2, 2}, {2, 2.5}, {2.5, 2.5}, {2.5, 2}, {2, 2}}}

	ca, err := Cover(a, 7)
	require.NoError(t, err)
	cb, err := Cover(b, 7)
	require.NoError(t, err)
	all, err := Cover(orb.MultiPolygon{a, b}, 7)
	require.NoError(t, err)
	assert.Equal(t, append(append([]h3.Cell{}, ca...), cb...), all)
}

func TestCoverDuplicatesAcrossParts(t *testing.T) {
	mp := orb.MultiPolygon{unitSquare, unitSquare}

	dup, err := Cover(mp, 6)
	require.NoError(t, err)
	single, err := Cover(unitSquare, 6)
	require.NoError(t, err)
	assert.Len(t, dup, 2*len(single))

	dedup, err := Tessellator{Dedupe: true}.Cover(mp, 6)
	require.NoError(t, err)
	assert.Equal(t, single, dedup)
}

func TestCoverInvalidResolution(t *testing.T) {
	for _, res := range []int{-1, 16, 99} {
		_, err := Cover(unitSquare, res)
		assert.ErrorIs(t, err, ErrInvalidResolution)
	}
}

func TestCoverRejectsNonArea(t *testing.T) {
	_, err := Cover(orb.LineString{{0, 0}, {1, 1}}, 7)
	assert.Error(t, err)
}

func TestCoverIsDeterministic(t *testing.T) {
	a, err := Cover(unitSquare, 7)
	require.NoError(t, err)
	b, err := Cover(unitSquare, 7)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestOutline(t *testing.T) {
	cells, err := Cover(unitSquare, 5)
	require.NoError(t, err)
	mp, err := Outline(append(cells, cells[0]))
	require.NoError(t, err)
	require.NotEmpty(t, mp)
	for _, p := range mp {
		for _, r := range p {
			require.GreaterOrEqual(t, len(r), 4)
			assert.Equal(t, r[0], r[len(r)-1])
		}
	}
	b := mp.Bound()
	assert.InDelta(t, 0.5, b.Center()[0], 0.2)
	assert.InDelta(t, 0.5, b.Center()[1], 0.2)

	empty, err := Outline(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestResolutionOfInvalid(t *testing.T) {
	_, err := ResolutionOf("not-a-cell")
	assert.Error(t, err)
}
