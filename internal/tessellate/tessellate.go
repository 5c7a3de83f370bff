// 包 tessellate：将 Polygon / MultiPolygon 覆盖为指定分辨率的 H3 单元格集合
package tessellate

import (
	"errors"
	"fmt"
	"time"

	"geoman-h3/internal/geometry"
	"geoman-h3/internal/metrics"

	"github.com/paulmach/orb"
	"github.com/uber/h3-go/v4"
)

var ErrInvalidResolution = errors.New("tessellate: invalid resolution")

// H3 支持的分辨率上限
const maxResolution = 15

// Tessellator：覆盖算法配置
// 约束：Dedupe=false 时多面体各部分的结果直接拼接，跨部分重复单元格保留
type Tessellator struct {
	Dedupe bool
}

// Cover：零值 Tessellator 的快捷方式
func Cover(g orb.Geometry, res int) ([]h3.Cell, error) { return Tessellator{}.Cover(g, res) }

// 文档注释：计算覆盖单元格
// 多边形第一环为外环，其余为洞；单元格中心落在外环内且不在洞内即计入
// 输出顺序：按多面体中各多边形顺序拼接，每个多边形内部顺序由 H3 决定
func (t Tessellator) Cover(g orb.Geometry, res int) ([]h3.Cell, error) {
	if res < 0 || res > maxResolution {
		return nil, fmt.Errorf("%w: %d", ErrInvalidResolution, res)
	}
	polys, err := geometry.Polygons(g)
	if err != nil {
		return nil, err
	}
	t0 := time.Now()
	var out []h3.Cell
	for _, p := range polys {
		if len(p) == 0 || len(p[0]) == 0 {
			continue
		}
		cells, err := h3.PolygonToCells(toGeoPolygon(p), res)
		if err != nil {
			return nil, fmt.Errorf("tessellate: polygon to cells: %w", err)
		}
		out = append(out, cells...)
	}
	if t.Dedupe {
		out = unique(out)
	}
	metrics.TessellateDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	metrics.TessellateCells.Observe(float64(len(out)))
	return out, nil
}

func toGeoPolygon(p orb.Polygon) h3.GeoPolygon {
	gp := h3.GeoPolygon{GeoLoop: toLoop(p[0])}
	for _, hole := range p[1:] {
		gp.Holes = append(gp.Holes, toLoop(hole))
	}
	return gp
}

// toLoop：GeoJSON 闭合环的末点与首点重复，H3 的环为隐式闭合，去掉末点
func toLoop(r orb.Ring) h3.GeoLoop {
	n := len(r)
	if n > 1 && r[0] == r[n-1] {
		n--
	}
	loop := make(h3.GeoLoop, 0, n)
	for _, pt := range r[:n] {
		loop = append(loop, h3.NewLatLng(pt[1], pt[0]))
	}
	return loop
}

func unique(cells []h3.Cell) []h3.Cell {
	seen := make(map[h3.Cell]struct{}, len(cells))
	out := cells[:0]
	for _, c := range cells {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Tokens：单元格的 15 位十六进制文本
func Tokens(cells []h3.Cell) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = c.String()
	}
	return out
}

// ResolutionOf：解析 token 并返回其分辨率；非法 token 返回错误
func ResolutionOf(token string) (int, error) {
	c := h3.Cell(h3.IndexFromString(token))
	if !c.IsValid() {
		return 0, fmt.Errorf("tessellate: invalid cell %q", token)
	}
	return c.Resolution(), nil
}

// 文档注释：单元格集合的外轮廓（用于六边形图层）
// 约束：重复单元格先去重；环按 GeoJSON 约定闭合，坐标为 [lon, lat]
func Outline(cells []h3.Cell) (orb.MultiPolygon, error) {
	if len(cells) == 0 {
		return orb.MultiPolygon{}, nil
	}
	uniq := unique(append([]h3.Cell(nil), cells...))
	polys, err := h3.CellsToMultiPolygon(uniq)
	if err != nil {
		return nil, fmt.Errorf("tessellate: cells to multipolygon: %w", err)
	}
	out := make(orb.MultiPolygon, 0, len(polys))
	for _, gp := range polys {
		p := orb.Polygon{fromLoop(gp.GeoLoop)}
		for _, hole := range gp.Holes {
			p = append(p, fromLoop(hole))
		}
		out = append(out, p)
	}
	return out, nil
}

func fromLoop(loop h3.GeoLoop) orb.Ring {
	r := make(orb.Ring, 0, len(loop)+1)
	for _, ll := range loop {
		r = append(r, orb.Point{ll.Lng, ll.Lat})
	}
	if len(r) > 0 && r[0] != r[len(r)-1] {
		r = append(r, r[0])
	}
	return r
}
