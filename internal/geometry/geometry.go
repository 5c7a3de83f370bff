// 包 geometry：面要素的包围盒、稳定精度的文本序列化与 H3 单元格列表序列化
package geometry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	ErrUnsupportedGeometry = errors.New("geometry: only Polygon and MultiPolygon are supported")
	ErrEmptyGeometry       = errors.New("geometry: no coordinates")
)

// Bounds：轴对齐包围盒（经度/纬度）
type Bounds struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// Array：minLon, minLat, maxLon, maxLat 顺序，与 GeoJSON bbox 一致
func (b Bounds) Array() [4]float64 { return [4]float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat} }

func (b Bounds) Contains(p orb.Point) bool {
	return p[0] >= b.MinLon && p[0] <= b.MaxLon && p[1] >= b.MinLat && p[1] <= b.MaxLat
}

// IsArea：是否为 Polygon 或 MultiPolygon
func IsArea(g orb.Geometry) bool {
	_, err := Normalize(g)
	return err == nil
}

// Normalize：统一为值类型的 orb.Polygon / orb.MultiPolygon，其余类型拒绝
func Normalize(g orb.Geometry) (orb.Geometry, error) {
	switch v := g.(type) {
	case orb.Polygon:
		return v, nil
	case orb.MultiPolygon:
		return v, nil
	case *orb.Polygon:
		if v != nil {
			return *v, nil
		}
	case *orb.MultiPolygon:
		if v != nil {
			return *v, nil
		}
	}
	return nil, ErrUnsupportedGeometry
}

// Polygons：将面要素展开为多边形列表（Polygon 视为单元素）
func Polygons(g orb.Geometry) ([]orb.Polygon, error) {
	n, err := Normalize(g)
	if err != nil {
		return nil, err
	}
	if p, ok := n.(orb.Polygon); ok {
		return []orb.Polygon{p}, nil
	}
	return n.(orb.MultiPolygon), nil
}

// BoundsOf：遍历所有多边形的所有环（含洞）求最小外包矩形
// 约束：单点退化环允许，返回零面积盒；无任何坐标时返回 ErrEmptyGeometry
func BoundsOf(g orb.Geometry) (Bounds, error) {
	polys, err := Polygons(g)
	if err != nil {
		return Bounds{}, err
	}
	var b Bounds
	seen := false
	for _, poly := range polys {
		for _, ring := range poly {
			for _, pt := range ring {
				if !seen {
					b = Bounds{MinLon: pt[0], MinLat: pt[1], MaxLon: pt[0], MaxLat: pt[1]}
					seen = true
					continue
				}
				if pt[0] < b.MinLon {
					b.MinLon = pt[0]
				}
				if pt[1] < b.MinLat {
					b.MinLat = pt[1]
				}
				if pt[0] > b.MaxLon {
					b.MaxLon = pt[0]
				}
				if pt[1] > b.MaxLat {
					b.MaxLat = pt[1]
				}
			}
		}
	}
	if !seen {
		return Bounds{}, ErrEmptyGeometry
	}
	return b, nil
}

// Decode：解析 GeoJSON 几何（也接受 Feature，取其 geometry），只接受面
func Decode(data []byte) (orb.Geometry, error) {
	g, err := DecodeAny(data)
	if err != nil {
		return nil, err
	}
	return Normalize(g)
}

// DecodeAny：解析任意类型的 GeoJSON 几何，不做面校验；null 几何返回 nil
func DecodeAny(data []byte) (orb.Geometry, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("geometry: decode: %w", err)
	}
	if probe.Type == "" {
		return nil, nil
	}
	if probe.Type == "Feature" {
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("geometry: decode feature: %w", err)
		}
		return f.Geometry, nil
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("geometry: decode: %w", err)
	}
	return g.Geometry(), nil
}
