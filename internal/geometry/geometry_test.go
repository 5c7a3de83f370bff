package geometry

import (
	"strconv"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x0, y0, x1, y1 float64) orb.Ring {
	return orb.Ring{{x0, y0}, {x0, y1}, {x1, y1}, {x1, y0}, {x0, y0}}
}

func TestBoundsOf(t *testing.T) {
	tests := []struct {
		name string
		g    orb.Geometry
		want Bounds
	}{
		{"unit square", orb.Polygon{square(0, 0, 1, 1)}, Bounds{0, 0, 1, 1}},
		{"hole outside exterior is still visited", orb.Polygon{square(0, 0, 1, 1), square(2, -3, 2.5, -2)}, Bounds{0, -3, 2.5, 1}},
		{"multi polygon", orb.MultiPolygon{{square(10, 50, 11, 51)}, {square(-5, -5, -4, -4)}}, Bounds{-5, -5, 11, 51}},
		{"degenerate ring", orb.Polygon{{{3, 4}}}, Bounds{3, 4, 3, 4}},
		{"pointer polygon", &orb.Polygon{square(1, 2, 3, 4)}, Bounds{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := BoundsOf(tt.g)
			require.NoError(t, err)
			assert.Equal(t, tt.want, b)
			assert.LessOrEqual(t, b.MinLon, b.MaxLon)
			assert.LessOrEqual(t, b.MinLat, b.MaxLat)
			polys, err := Polygons(tt.g)
			require.NoError(t, err)
			for _, p := range polys {
				for _, r := range p {
					for _, pt := range r {
						assert.True(t, b.Contains(pt), "point %v outside %v", pt, b)
					}
				}
			}
		})
	}
}

func TestBoundsOfErrors(t *testing.T) {
	_, err := BoundsOf(orb.Point{1, 2})
	assert.ErrorIs(t, err, ErrUnsupportedGeometry)
	_, err = BoundsOf(orb.Polygon{})
	assert.ErrorIs(t, err, ErrEmptyGeometry)
}

func TestRound6(t *testing.T) {
	assert.Equal(t, "12.345679", formatCoord(12.3456789))
	assert.Equal(t, "-12.345679", formatCoord(-12.3456789))
	assert.Equal(t, "1", formatCoord(1.0))
	assert.Equal(t, "0.000002", formatCoord(0.0000015))
	assert.Equal(t, "2.5", formatCoord(2.4999999999))
	assert.Equal(t, "0", formatCoord(-0.0000001))
	assert.Equal(t, "14.42", formatCoord(14.42))
	// 第 6 位小数后恰为 5 时远离零
	assert.Equal(t, "1.000001", formatCoord(1.0000005))
	assert.Equal(t, "-0.000001", formatCoord(-0.0000005))
	assert.Equal(t, "0", formatCoord(-4e-07))
}

func TestSerializePolygon(t *testing.T) {
	g := orb.Polygon{{{12.3456789, 50}, {12.5, 50.0000001}, {12.5, 51}, {12.3456789, 50}}}
	s, err := Serialize(g)
	require.NoError(t, err)
	want := `{
  "type": "Polygon",
  "coordinates": [
    [
      [ 12.345679, 50 ],
      [ 12.5, 50 ],
      [ 12.5, 51 ],
      [ 12.345679, 50 ]
    ]
  ]
}`
	assert.Equal(t, want, s)
}

func TestSerializeMultiPolygon(t *testing.T) {
	g := orb.MultiPolygon{
		{{{0, 0}, {0, 1}, {1, 1}, {0, 0}}},
		{{{-1.5, -2.25}, {-1, -2}, {-1.5, -2.25}}},
	}
	s, err := Serialize(g)
	require.NoError(t, err)
	want := `{
  "type": "MultiPolygon",
  "coordinates": [
    [
      [
        [ 0, 0 ],
        [ 0, 1 ],
        [ 1, 1 ],
        [ 0, 0 ]
      ]
    ],
    [
      [
        [ -1.5, -2.25 ],
        [ -1, -2 ],
        [ -1.5, -2.25 ]
      ]
    ]
  ]
}`
	assert.Equal(t, want, s)

	_, err = Serialize(orb.LineString{{0, 0}, {1, 1}})
	assert.ErrorIs(t, err, ErrUnsupportedGeometry)
}

func TestSerializeCells(t *testing.T) {
	cells := []string{"871e35a2effffff", "871e35a2effffff", "8a1e35a2e2dffff"}

	s, err := SerializeCells(cells, FormatString)
	require.NoError(t, err)
	assert.Equal(t, "[\n  \"871e35a2effffff\",\n  \"871e35a2effffff\",\n  \"8a1e35a2e2dffff\"\n]", s)

	n, err := SerializeCells(cells, FormatNumber)
	require.NoError(t, err)
	assert.NotContains(t, n, `"`)

	// 逐行解析回十六进制应得到原序列
	var back []string
	for _, line := range strings.Split(n, "\n") {
		line = strings.Trim(strings.TrimSpace(line), ",")
		if line == "[" || line == "]" {
			continue
		}
		v, err := strconv.ParseUint(line, 10, 64)
		require.NoError(t, err)
		back = append(back, strconv.FormatUint(v, 16))
	}
	assert.Equal(t, cells, back)

	empty, err := SerializeCells(nil, FormatNumber)
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)

	_, err = SerializeCells([]string{"xyz"}, FormatNumber)
	assert.ErrorIs(t, err, ErrInvalidCell)
	_, err = SerializeCells(cells, Format("hex"))
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("number")
	require.NoError(t, err)
	assert.Equal(t, FormatNumber, f)
	_, err = ParseFormat("bigint")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestDecode(t *testing.T) {
	g, err := Decode([]byte(`{"type":"Polygon","coordinates":[[[0,0],[0,1],[1,1],[1,0],[0,0]]]}`))
	require.NoError(t, err)
	assert.Equal(t, orb.Polygon{square(0, 0, 1, 1)}, g)

	g, err = Decode([]byte(`{"type":"Feature","properties":{},"geometry":{"type":"MultiPolygon","coordinates":[[[[0,0],[0,1],[1,1],[1,0],[0,0]]]]}}`))
	require.NoError(t, err)
	assert.IsType(t, orb.MultiPolygon{}, g)

	_, err = Decode([]byte(`{"type":"Point","coordinates":[1,2]}`))
	assert.ErrorIs(t, err, ErrUnsupportedGeometry)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}
