// 包 geocode：正向地理编码（地址搜索 -> 带几何的候选结果），含 Nominatim 与 FlatZone 两个数据源
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"geoman-h3/internal/geometry"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrGeocodingFailure = errors.New("geocode: geocoding failure")

// 文档注释：地理编码候选
// Geometry 总是非空，但不一定是面（Nominatim 的兴趣点为 Point）；只有面几何能成为临时要素
type Result struct {
	ID        string
	PlaceName string
	PlaceType []string
	Text      string
	Geometry  orb.Geometry
	BBox      *geometry.Bounds
}

// Provider：单个地理编码数据源；错误由 Service 统一降级
type Provider interface {
	Name() string
	Forward(ctx context.Context, query string) ([]Result, error)
}

// 文档注释：候选结果编码为 GeoJSON FeatureCollection
// 约束：属性沿用地理编码控件的字段名 place_name / place_type / text；空结果编码为空数组
func FeatureCollection(results []Result) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range results {
		f := geojson.NewFeature(r.Geometry)
		f.ID = r.ID
		if r.BBox != nil {
			a := r.BBox.Array()
			f.BBox = geojson.BBox(a[:])
		}
		f.Properties["place_name"] = r.PlaceName
		f.Properties["place_type"] = r.PlaceType
		f.Properties["text"] = r.Text
		fc.Append(f)
	}
	return fc
}

// 文档注释：FeatureCollection 解码回候选结果（缓存读取）
// 约束：无几何的要素跳过
func FromFeatureCollection(fc *geojson.FeatureCollection) []Result {
	out := make([]Result, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		r := Result{
			ID:        idString(f.ID),
			PlaceName: f.Properties.MustString("place_name", ""),
			Text:      f.Properties.MustString("text", ""),
			PlaceType: stringList(f.Properties["place_type"]),
			Geometry:  f.Geometry,
			BBox:      bboxOf(f.BBox),
		}
		out = append(out, r)
	}
	return out
}

func bboxOf(b geojson.BBox) *geometry.Bounds {
	if len(b) != 4 {
		return nil
	}
	return &geometry.Bounds{MinLon: b[0], MinLat: b[1], MaxLon: b[2], MaxLat: b[3]}
}

func fromBound(b orb.Bound) *geometry.Bounds {
	return &geometry.Bounds{MinLon: b.Min[0], MinLat: b.Min[1], MaxLon: b.Max[0], MaxLat: b.Max[1]}
}

// idString：JSON 数字解码为 float64，按整数文本输出
func idString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	}
	return fmt.Sprint(v)
}

func stringList(v interface{}) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []interface{}:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{x}
	}
	return nil
}
