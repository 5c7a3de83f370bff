package store

import (
	"fmt"

	"geoman-h3/internal/geometry"
	"geoman-h3/internal/logger"
	"geoman-h3/internal/metrics"
	"geoman-h3/internal/tessellate"

	"github.com/paulmach/orb"
)

// SourceFeature：推送给渲染端数据源的一项 {id, geometry}
type SourceFeature struct {
	ID       string
	Geometry orb.Geometry
}

// Details：侧栏展示的要素文本（几何文本与当前格式下的单元格文本）
type Details struct {
	ID         string
	GeoJSON    string
	Cells      string
	CellCount  int
	Resolution int
	Format     geometry.Format
	IsEditing  bool
}

// 文档注释：六边形图层数据源
// 按创建顺序遍历稳定要素（IsEditing=true 的一律跳过），以当前分辨率覆盖并取外轮廓
// 约束：单个要素覆盖失败只跳过该要素并记录日志，不影响其它要素；相同输入产出相同结果
func (s *Store) HexagonSource(t tessellate.Tessellator) []SourceFeature {
	out := make([]SourceFeature, 0, len(s.features))
	for _, f := range s.features {
		if f.IsEditing {
			continue
		}
		outline, err := s.outline(t, f.Geometry)
		if err != nil {
			metrics.TessellateFailTotal.Inc()
			logger.L().Warn("hexagon_source_skip", "id", f.ID, "resolution", s.ctx.resolution, "error", err)
			continue
		}
		out = append(out, SourceFeature{ID: f.ID, Geometry: outline})
	}
	return out
}

func (s *Store) outline(t tessellate.Tessellator, g orb.Geometry) (orb.MultiPolygon, error) {
	cells, err := t.Cover(g, s.ctx.resolution)
	if err != nil {
		return nil, err
	}
	return tessellate.Outline(cells)
}

// TemporarySource：临时要素数据源，原始几何，存储顺序
func (s *Store) TemporarySource() []SourceFeature {
	out := make([]SourceFeature, 0, len(s.temps))
	for _, tf := range s.temps {
		out = append(out, SourceFeature{ID: tf.ID, Geometry: tf.Geometry})
	}
	return out
}

// Details：要素的几何文本与单元格文本；编辑中的要素也可查看
func (s *Store) Details(id string, t tessellate.Tessellator) (Details, error) {
	f, ok := s.Feature(id)
	if !ok {
		return Details{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	text, err := geometry.Serialize(f.Geometry)
	if err != nil {
		return Details{}, err
	}
	cells, err := t.Cover(f.Geometry, s.ctx.resolution)
	if err != nil {
		return Details{}, err
	}
	cellText, err := geometry.SerializeCells(tessellate.Tokens(cells), s.ctx.format)
	if err != nil {
		return Details{}, err
	}
	return Details{
		ID:         id,
		GeoJSON:    text,
		Cells:      cellText,
		CellCount:  len(cells),
		Resolution: s.ctx.resolution,
		Format:     s.ctx.format,
		IsEditing:  f.IsEditing,
	}, nil
}
