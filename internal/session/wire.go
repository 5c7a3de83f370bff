package session

import (
	"bytes"
	"encoding/json"
	"fmt"

	"geoman-h3/internal/geocode"
	"geoman-h3/internal/geometry"
	"geoman-h3/internal/router"
	"geoman-h3/internal/store"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// flexID：绘图工具的要素 ID 可能是字符串或数字，统一为文本
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type wireFeature struct {
	ID       flexID          `json:"id"`
	Geometry json.RawMessage `json:"geometry"`
}

type wireResult struct {
	Geometry json.RawMessage `json:"geometry"`
}

// inbound：浏览器发来的一帧
type inbound struct {
	Type       string       `json:"type"`
	Feature    *wireFeature `json:"feature"`
	Result     *wireResult  `json:"result"`
	Query      string       `json:"query"`
	Visible    *bool        `json:"visible"`
	Resolution *int         `json:"resolution"`
	Format     string       `json:"format"`
	ID         flexID       `json:"id"`
}

// 文档注释：解码入站帧为路由事件
// 约束：只做结构解析；几何类型与 ID 是否存在等语义校验交给路由与存储；缺少类型必需字段时返回 ErrMalformedEvent
func DecodeEvent(data []byte) (router.Event, error) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return router.Event{}, fmt.Errorf("%w: %v", router.ErrMalformedEvent, err)
	}
	kind, err := router.ParseKind(in.Type)
	if err != nil {
		return router.Event{}, err
	}
	ev := router.Event{Kind: kind}
	switch kind {
	case router.KindCreate, router.KindRemove, router.KindCut,
		router.KindDragStart, router.KindEditStart, router.KindRotateStart,
		router.KindDragEnd, router.KindEditEnd, router.KindRotateEnd:
		if in.Feature == nil {
			return ev, fmt.Errorf("%w: %s without feature", router.ErrMalformedEvent, kind)
		}
		ev.FeatureID = string(in.Feature.ID)
		if ev.Geometry, err = decodeGeometry(in.Feature.Geometry); err != nil {
			return ev, err
		}
	case router.KindGeocodeResult:
		if in.Result == nil {
			return ev, fmt.Errorf("%w: %s without result", router.ErrMalformedEvent, kind)
		}
		if ev.Geometry, err = decodeGeometry(in.Result.Geometry); err != nil {
			return ev, err
		}
	case router.KindGeocodeQuery:
		ev.Query = in.Query
	case router.KindGeocodeResults:
		return ev, fmt.Errorf("%w: %s is server-originated", router.ErrMalformedEvent, kind)
	case router.KindLayerToggle:
		if in.Visible == nil {
			return ev, fmt.Errorf("%w: %s without visible", router.ErrMalformedEvent, kind)
		}
		ev.Visible = *in.Visible
	case router.KindResolution:
		if in.Resolution == nil {
			return ev, fmt.Errorf("%w: %s without resolution", router.ErrMalformedEvent, kind)
		}
		ev.Resolution = *in.Resolution
	case router.KindFormat:
		ev.Format = geometry.Format(in.Format)
	default:
		ev.FeatureID = string(in.ID)
	}
	return ev, nil
}

func decodeGeometry(raw json.RawMessage) (orb.Geometry, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	g, err := geometry.DecodeAny(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", router.ErrMalformedEvent, err)
	}
	return g, nil
}

// 出站消息
type sourceMsg struct {
	Type   string                     `json:"type"`
	Source string                     `json:"source"`
	Data   *geojson.FeatureCollection `json:"data"`
}

type visibilityMsg struct {
	Type    string `json:"type"`
	Layer   string `json:"layer"`
	Visible bool   `json:"visible"`
}

type cameraMsg struct {
	Type    string     `json:"type"`
	Bounds  [4]float64 `json:"bounds"`
	MaxZoom float64    `json:"maxZoom,omitempty"`
	Padding int        `json:"padding,omitempty"`
}

type flyMsg struct {
	Type   string     `json:"type"`
	Center [2]float64 `json:"center"`
	Zoom   float64    `json:"zoom"`
}

type createMsg struct {
	Type     string            `json:"type"`
	Geometry *geojson.Geometry `json:"geometry"`
	Shape    string            `json:"shape"`
	Source   string            `json:"source"`
}

type panelMsg struct {
	Type string `json:"type"`
	router.Panel
}

type detailsMsg struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	GeoJSON    string          `json:"geojson,omitempty"`
	Cells      string          `json:"cells,omitempty"`
	CellCount  int             `json:"cellCount"`
	Resolution int             `json:"resolution,omitempty"`
	Format     geometry.Format `json:"format,omitempty"`
	IsEditing  bool            `json:"isEditing,omitempty"`
}

type geocoderMsg struct {
	Type  string                     `json:"type"`
	Query string                     `json:"query"`
	Data  *geojson.FeatureCollection `json:"data"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// sourceCollection：数据源整体替换用的 FeatureCollection，要素 ID 即存储 ID
func sourceCollection(features []store.SourceFeature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, sf := range features {
		f := geojson.NewFeature(sf.Geometry)
		f.ID = sf.ID
		fc.Append(f)
	}
	return fc
}

func encodeSource(source string, features []store.SourceFeature) ([]byte, error) {
	return json.Marshal(sourceMsg{Type: "source", Source: source, Data: sourceCollection(features)})
}

func encodeDetails(d store.Details) ([]byte, error) {
	return json.Marshal(detailsMsg{
		Type:       "details",
		ID:         d.ID,
		GeoJSON:    d.GeoJSON,
		Cells:      d.Cells,
		CellCount:  d.CellCount,
		Resolution: d.Resolution,
		Format:     d.Format,
		IsEditing:  d.IsEditing,
	})
}

func encodeGeocoder(query string, results []geocode.Result) ([]byte, error) {
	return json.Marshal(geocoderMsg{Type: "geocoder", Query: query, Data: geocode.FeatureCollection(results)})
}

func encodeError(err error) []byte {
	b, _ := json.Marshal(errorMsg{Type: "error", Message: err.Error()})
	return b
}
