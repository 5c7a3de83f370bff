package geocode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"geoman-h3/internal/logger"

	"github.com/paulmach/orb/geojson"
)

const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// 文档注释：OpenStreetMap Nominatim 数据源
// 背景：search 接口以 GeoJSON 返回候选及其行政边界多边形（polygon_geojson=1）
// 约束：Nominatim 使用策略要求标识性 User-Agent；单次请求，无分页
type Nominatim struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

func NewNominatim(baseURL, userAgent string, timeout time.Duration) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	return &Nominatim{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserAgent: userAgent,
		Client:    &http.Client{Timeout: timeout},
	}
}

func (n *Nominatim) Name() string { return "nominatim" }

// Forward：id=place_id，place_name=display_name，place_type=[type]，text=name
func (n *Nominatim) Forward(ctx context.Context, query string) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "geojson")
	q.Set("polygon_geojson", "1")
	q.Set("addressdetails", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.BaseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if n.UserAgent != "" {
		req.Header.Set("User-Agent", n.UserAgent)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")
	logger.L().Debug("nominatim_req", "query", query)
	resp, err := n.Client.Do(req)
	if err != nil {
		logger.L().Error("nominatim_http_error", "err", err)
		return nil, fmt.Errorf("%w: nominatim: %v", ErrGeocodingFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: nominatim: status %d", ErrGeocodingFailure, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: nominatim: %v", ErrGeocodingFailure, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		logger.L().Error("nominatim_decode_error", "err", err)
		return nil, fmt.Errorf("%w: nominatim decode: %v", ErrGeocodingFailure, err)
	}
	out := make([]Result, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		r := Result{
			ID:        idString(f.Properties["place_id"]),
			PlaceName: f.Properties.MustString("display_name", ""),
			Text:      f.Properties.MustString("name", ""),
			Geometry:  f.Geometry,
			BBox:      bboxOf(f.BBox),
		}
		if t := f.Properties.MustString("type", ""); t != "" {
			r.PlaceType = []string{t}
		}
		if r.BBox == nil {
			r.BBox = fromBound(f.Geometry.Bound())
		}
		out = append(out, r)
	}
	logger.L().Debug("nominatim_resp", "query", query, "results", len(out))
	return out, nil
}
