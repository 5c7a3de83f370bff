package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"geoman-h3/internal/geometry"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nominatimBody = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"place_id": 123456789, "display_name": "Praha, Česko", "type": "administrative", "name": "Praha"},
      "bbox": [14.22, 49.94, 14.71, 50.18],
      "geometry": {"type": "Polygon", "coordinates": [[[14.22, 49.94], [14.71, 49.94], [14.71, 50.18], [14.22, 49.94]]]}
    },
    {
      "type": "Feature",
      "properties": {"place_id": 42, "display_name": "Praha hlavní nádraží", "type": "station", "name": "Hlavní nádraží"},
      "geometry": {"type": "Point", "coordinates": [14.435, 50.083]}
    }
  ]
}`

func TestNominatimForward(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(nominatimBody))
	}))
	defer srv.Close()

	n := NewNominatim(srv.URL+"/", "geoman-h3-test", time.Second)
	res, err := n.Forward(context.Background(), "praha 1")
	require.NoError(t, err)
	assert.Equal(t, "geoman-h3-test", gotUA)
	assert.Contains(t, gotQuery, "q=praha+1")
	assert.Contains(t, gotQuery, "format=geojson")
	assert.Contains(t, gotQuery, "polygon_geojson=1")
	assert.Contains(t, gotQuery, "addressdetails=1")

	require.Len(t, res, 2)
	assert.Equal(t, "123456789", res[0].ID)
	assert.Equal(t, "Praha, Česko", res[0].PlaceName)
	assert.Equal(t, []string{"administrative"}, res[0].PlaceType)
	assert.Equal(t, "Praha", res[0].Text)
	assert.Equal(t, &geometry.Bounds{MinLon: 14.22, MinLat: 49.94, MaxLon: 14.71, MaxLat: 50.18}, res[0].BBox)
	assert.True(t, geometry.IsArea(res[0].Geometry))

	assert.Equal(t, "42", res[1].ID)
	assert.False(t, geometry.IsArea(res[1].Geometry))
	assert.Equal(t, &geometry.Bounds{MinLon: 14.435, MinLat: 50.083, MaxLon: 14.435, MaxLat: 50.083}, res[1].BBox)
}

func TestNominatimFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	_, err := NewNominatim(srv.URL, "", time.Second).Forward(context.Background(), "x")
	assert.ErrorIs(t, err, ErrGeocodingFailure)
}

// flatZoneServer：第一次请求返回候选，之后按 address.city 返回边界；failGeometry 时第二步返回 500
func flatZoneServer(t *testing.T, failGeometry bool, addresses *[]map[string]interface{}) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req gqlRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Variables == nil {
			assert.Contains(t, req.Query, `term: "Brno \"střed\""`)
			assert.Contains(t, req.Query, `country: "CZ"`)
			_, _ = w.Write([]byte(`{"data":{"addressSuggestions":[
				{"level":"city","name":"Brno","extraInfo":"Jihomoravský kraj","address":{"country":"CZ","region":"Jihomoravský kraj","district":null,"city":"Brno","borough":null,"neighborhood":null,"cadastralArea":null}},
				{"level":"borough","name":"Brno-střed","extraInfo":"","address":{"country":"CZ","city":"Brno","borough":"Brno-střed"}},
				{"level":"cadastral_area","name":"Nowhere","extraInfo":null,"address":{"country":"CZ","cadastralArea":"Nowhere"}}
			]}}`))
			return
		}
		if failGeometry {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		addr := req.Variables["address"].(map[string]interface{})
		*addresses = append(*addresses, addr)
		switch {
		case addr["borough"] != nil:
			_, _ = w.Write([]byte(`{"data":{"addressGeometry":{"polygons":[
				{"exteriorRing":[{"lat":49.1,"lon":16.5},{"lat":49.1,"lon":16.7},{"lat":49.3,"lon":16.7},{"lat":49.1,"lon":16.5}],"interiorRings":null},
				{"exteriorRing":[{"lat":49.5,"lon":17.0},{"lat":49.5,"lon":17.1},{"lat":49.6,"lon":17.1},{"lat":49.5,"lon":17.0}],"interiorRings":[]}
			]}}}`))
		case addr["cadastralArea"] != nil:
			_, _ = w.Write([]byte(`{"data":{"addressGeometry":{"polygons":[]}}}`))
		default:
			_, _ = w.Write([]byte(`{"data":{"addressGeometry":{"polygons":[
				{"exteriorRing":[{"lat":49.0,"lon":16.0},{"lat":49.0,"lon":17.0},{"lat":50.0,"lon":17.0},{"lat":49.0,"lon":16.0}],
				 "interiorRings":[[{"lat":49.2,"lon":16.6},{"lat":49.2,"lon":16.7},{"lat":49.3,"lon":16.7},{"lat":49.2,"lon":16.6}]]}
			]}}}`))
		}
	}))
}

func TestFlatZoneForward(t *testing.T) {
	var addresses []map[string]interface{}
	srv := flatZoneServer(t, false, &addresses)
	defer srv.Close()

	res, err := NewFlatZone(srv.URL, time.Second).Forward(context.Background(), `Brno "střed"`)
	require.NoError(t, err)
	require.Len(t, res, 2)

	city := res[0]
	assert.Equal(t, "0", city.ID)
	assert.Equal(t, "Brno, Jihomoravský kraj", city.PlaceName)
	assert.Equal(t, []string{"city"}, city.PlaceType)
	assert.Equal(t, "Brno", city.Text)
	poly, ok := city.Geometry.(orb.Polygon)
	require.True(t, ok)
	require.Len(t, poly, 2)
	assert.Equal(t, orb.Point{16.0, 49.0}, poly[0][0])
	assert.Equal(t, orb.Point{16.6, 49.2}, poly[1][0])
	assert.Equal(t, &geometry.Bounds{MinLon: 16, MinLat: 49, MaxLon: 17, MaxLat: 50}, city.BBox)

	borough := res[1]
	assert.Equal(t, "1", borough.ID)
	assert.Equal(t, "Brno-střed", borough.PlaceName)
	mp, ok := borough.Geometry.(orb.MultiPolygon)
	require.True(t, ok)
	assert.Len(t, mp, 2)
	assert.Equal(t, &geometry.Bounds{MinLon: 16.5, MinLat: 49.1, MaxLon: 17.1, MaxLat: 49.6}, borough.BBox)

	require.Len(t, addresses, 3)
	assert.NotContains(t, addresses[0], "district")
	assert.NotContains(t, addresses[0], "borough")
	assert.Equal(t, "Brno", addresses[0]["city"])
}

func TestServiceDegradesToEmpty(t *testing.T) {
	var addresses []map[string]interface{}
	srv := flatZoneServer(t, true, &addresses)
	defer srv.Close()

	s := NewService(NewFlatZone(srv.URL, time.Second))
	res := s.Forward(context.Background(), `Brno "střed"`)
	assert.NotNil(t, res)
	assert.Empty(t, res)

	down := NewService(NewFlatZone("http://127.0.0.1:1/graphql", 200*time.Millisecond))
	assert.Empty(t, down.Forward(context.Background(), "Brno"))
	assert.Empty(t, down.Forward(context.Background(), "   "))
}

type countingProvider struct {
	calls atomic.Int32
	err   error
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) Forward(_ context.Context, q string) ([]Result, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	g := orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {0, 0}}}
	b, _ := geometry.BoundsOf(g)
	return []Result{{ID: "7", PlaceName: q, PlaceType: []string{"city"}, Text: q, Geometry: g, BBox: &b}}, nil
}

func TestCachedHitPath(t *testing.T) {
	p := &countingProvider{}
	c := NewCached(p, NewLRU(8, time.Minute))
	ctx := context.Background()

	first, err := c.Forward(ctx, "Praha")
	require.NoError(t, err)
	second, err := c.Forward(ctx, " praha ")
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.calls.Load())
	assert.Equal(t, first, second)
	assert.Equal(t, "geocode:counting:praha", CacheKey("counting", "  Praha"))
}

func TestCachedSkipsFailures(t *testing.T) {
	p := &countingProvider{err: errors.New("boom")}
	lru := NewLRU(8, time.Minute)
	c := NewCached(p, lru)

	_, err := c.Forward(context.Background(), "x")
	assert.Error(t, err)
	_, err = c.Forward(context.Background(), "x")
	assert.Error(t, err)
	assert.Equal(t, int32(2), p.calls.Load())
	assert.Equal(t, 0, lru.Len())
}

func TestLRUEvictsAndExpires(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(2, time.Minute)
	c.Set(ctx, "a", []Result{{ID: "a"}})
	c.Set(ctx, "b", []Result{{ID: "b"}})
	_, _ = c.Get(ctx, "a")
	c.Set(ctx, "c", []Result{{ID: "c"}})

	_, ok := c.Get(ctx, "b")
	assert.False(t, ok)
	v, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "a", v[0].ID)

	short := NewLRU(2, time.Millisecond)
	short.Set(ctx, "a", nil)
	time.Sleep(5 * time.Millisecond)
	_, ok = short.Get(ctx, "a")
	assert.False(t, ok)
}

func TestFeatureCollectionEncoding(t *testing.T) {
	p := &countingProvider{}
	res, err := p.Forward(context.Background(), "Praha")
	require.NoError(t, err)

	b, err := json.Marshal(FeatureCollection(res))
	require.NoError(t, err)
	s := string(b)
	assert.True(t, strings.Contains(s, `"place_name":"Praha"`))
	assert.True(t, strings.Contains(s, `"bbox":[0,0,1,1]`))

	empty, err := json.Marshal(FeatureCollection(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(empty))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewNominatim("", "", time.Second))
	r.Register(NewFlatZone("", time.Second))
	assert.Equal(t, []string{"flatzone", "nominatim"}, r.Names())
	p, ok := r.Get("nominatim")
	require.True(t, ok)
	assert.Equal(t, "nominatim", p.Name())
	_, ok = r.Get("mapbox")
	assert.False(t, ok)
}
