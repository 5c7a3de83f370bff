package geocode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"geoman-h3/internal/geometry"
	"geoman-h3/internal/logger"

	"github.com/paulmach/orb"
)

const DefaultFlatZoneURL = "https://api.flatzone.cz/graphql"

// 候选的行政层级；cadastral_area 重复出现与服务端约定一致
var flatZoneLevels = []string{"region", "district", "city", "borough", "cadastral_area", "neighborhood", "cadastral_area"}

const flatZoneSuggestionsQuery = `query AddressSuggestions {
  addressSuggestions(country: "CZ", term: %s, size: 5, levels: %s) {
    level
    name
    extraInfo
    address {
      country
      region
      district
      city
      borough
      neighborhood
      cadastralArea
    }
  }
}`

const flatZoneGeometryQuery = `query AddressGeometry($address: StructuredAddressInput!) {
  addressGeometry(address: $address) {
    polygons {
      exteriorRing { lat lon }
      interiorRings { lat lon }
    }
  }
}`

// 文档注释：FlatZone（捷克地址服务）GraphQL 数据源
// 背景：两步查询：先取候选地址，再逐个候选取边界多边形；顺序执行，任一步失败整体失败
// 约束：只返回有边界的候选；ID 为候选序号
type FlatZone struct {
	URL    string
	Client *http.Client
}

func NewFlatZone(endpoint string, timeout time.Duration) *FlatZone {
	if endpoint == "" {
		endpoint = DefaultFlatZoneURL
	}
	return &FlatZone{URL: endpoint, Client: &http.Client{Timeout: timeout}}
}

func (f *FlatZone) Name() string { return "flatzone" }

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type suggestion struct {
	Level     string                 `json:"level"`
	Name      string                 `json:"name"`
	ExtraInfo string                 `json:"extraInfo"`
	Address   map[string]interface{} `json:"address"`
}

type latLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type fzPolygon struct {
	ExteriorRing  []latLon   `json:"exteriorRing"`
	InteriorRings [][]latLon `json:"interiorRings"`
}

func (f *FlatZone) Forward(ctx context.Context, query string) ([]Result, error) {
	term, _ := json.Marshal(query)
	levels, _ := json.Marshal(flatZoneLevels)
	var sugg struct {
		AddressSuggestions []suggestion `json:"addressSuggestions"`
	}
	if err := f.post(ctx, gqlRequest{Query: fmt.Sprintf(flatZoneSuggestionsQuery, term, levels)}, &sugg); err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(sugg.AddressSuggestions))
	for i, s := range sugg.AddressSuggestions {
		var geom struct {
			AddressGeometry *struct {
				Polygons []fzPolygon `json:"polygons"`
			} `json:"addressGeometry"`
		}
		req := gqlRequest{Query: flatZoneGeometryQuery, Variables: map[string]interface{}{"address": compactAddress(s.Address)}}
		if err := f.post(ctx, req, &geom); err != nil {
			return nil, err
		}
		if geom.AddressGeometry == nil {
			return nil, fmt.Errorf("%w: flatzone: missing addressGeometry for %q", ErrGeocodingFailure, s.Name)
		}
		g := assemble(geom.AddressGeometry.Polygons)
		if g == nil {
			logger.L().Debug("flatzone_no_polygons", "name", s.Name, "level", s.Level)
			continue
		}
		r := Result{
			ID:        strconv.Itoa(i),
			PlaceName: s.Name,
			PlaceType: []string{s.Level},
			Text:      s.Name,
			Geometry:  g,
		}
		if s.ExtraInfo != "" {
			r.PlaceName = s.Name + ", " + s.ExtraInfo
		}
		if b, err := geometry.BoundsOf(g); err == nil {
			r.BBox = &b
		}
		out = append(out, r)
	}
	logger.L().Debug("flatzone_resp", "query", query, "suggestions", len(sugg.AddressSuggestions), "results", len(out))
	return out, nil
}

// post：执行一次 GraphQL 请求；HTTP 错误、errors 字段或 data 缺失均视为失败
func (f *FlatZone) post(ctx context.Context, body gqlRequest, data interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.URL, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.Client.Do(req)
	if err != nil {
		logger.L().Error("flatzone_http_error", "err", err)
		return fmt.Errorf("%w: flatzone: %v", ErrGeocodingFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: flatzone: status %d", ErrGeocodingFailure, resp.StatusCode)
	}
	var env struct {
		Data   json.RawMessage `json:"data"`
		Errors []gqlError      `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		logger.L().Error("flatzone_decode_error", "err", err)
		return fmt.Errorf("%w: flatzone decode: %v", ErrGeocodingFailure, err)
	}
	if len(env.Errors) > 0 {
		return fmt.Errorf("%w: flatzone: %s", ErrGeocodingFailure, env.Errors[0].Message)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: flatzone: empty data", ErrGeocodingFailure)
	}
	if err := json.Unmarshal(env.Data, data); err != nil {
		return fmt.Errorf("%w: flatzone data: %v", ErrGeocodingFailure, err)
	}
	return nil
}

// compactAddress：只保留非空字段作为结构化地址输入
func compactAddress(a map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(a))
	for k, v := range a {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// assemble：{lat, lon} 环转换为 [lon, lat]；外环在前、洞在后；一个多边形输出 Polygon，多个输出 MultiPolygon
func assemble(polys []fzPolygon) orb.Geometry {
	mp := make(orb.MultiPolygon, 0, len(polys))
	for _, p := range polys {
		if len(p.ExteriorRing) == 0 {
			continue
		}
		poly := orb.Polygon{ring(p.ExteriorRing)}
		for _, hole := range p.InteriorRings {
			poly = append(poly, ring(hole))
		}
		mp = append(mp, poly)
	}
	switch len(mp) {
	case 0:
		return nil
	case 1:
		return mp[0]
	}
	return mp
}

func ring(pts []latLon) orb.Ring {
	r := make(orb.Ring, len(pts))
	for i, p := range pts {
		r[i] = orb.Point{p.Lon, p.Lat}
	}
	return r
}
