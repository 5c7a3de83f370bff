// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"geoman-h3/internal/geocode"
	"geoman-h3/internal/geometry"
	"geoman-h3/internal/locate"
	"geoman-h3/internal/logger"
	"geoman-h3/internal/middleware"
	"geoman-h3/internal/router"
	"geoman-h3/internal/session"
	"geoman-h3/internal/tessellate"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
)

// 请求体上限，与 websocket 单帧上限一致
const maxBodySize = 8 << 20

// Deps：路由依赖
type Deps struct {
	Resolution  int
	Format      geometry.Format
	Tessellator tessellate.Tessellator
	Camera      router.CameraOptions
	// Geocoder 为空时 /geocode 恒返回空集合，会话内的地理编码查询被忽略
	Geocoder     *geocode.Service
	Locator      *locate.Locator
	RateLimitQPS int
	// BaseCtx：所有会话的父上下文，进程退出时取消
	BaseCtx context.Context
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 /api 前缀
func BuildRoutes(d Deps) *http.ServeMux {
	if d.BaseCtx == nil {
		d.BaseCtx = context.Background()
	}
	apiMux := http.NewServeMux()

	apiMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.L().Warn("ws_upgrade_error", "err", err)
			return
		}
		opts := session.Options{
			Resolution:  d.Resolution,
			Format:      d.Format,
			Tessellator: d.Tessellator,
			Camera:      d.Camera,
		}
		if d.Geocoder != nil {
			opts.Geocoder = d.Geocoder
		}
		if p, ok := d.Locator.Lookup(visitorIP(r)); ok {
			opts.Origin = &p
		}
		s := session.New(conn, opts)
		if err := s.Run(d.BaseCtx); err != nil {
			logger.L().Warn("session_error", "session", s.ID(), "err", err)
		}
	})

	geocodeH := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var res []geocode.Result
		if d.Geocoder != nil {
			res = d.Geocoder.Forward(r.Context(), r.URL.Query().Get("q"))
		}
		writeJSON(w, http.StatusOK, geocode.FeatureCollection(res))
	})
	apiMux.Handle("/geocode", middleware.RateLimit(d.RateLimitQPS)(geocodeH))

	apiMux.HandleFunc("/cells", func(w http.ResponseWriter, r *http.Request) {
		g, ok := readGeometry(w, r)
		if !ok {
			return
		}
		q := r.URL.Query()
		res := d.Resolution
		if s := q.Get("resolution"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "resolution must be an integer")
				return
			}
			res = n
		}
		format := d.Format
		if s := q.Get("format"); s != "" {
			f, err := geometry.ParseFormat(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			format = f
		}
		cells, err := d.Tessellator.Cover(g, res)
		if err != nil {
			status := http.StatusUnprocessableEntity
			if errors.Is(err, tessellate.ErrInvalidResolution) {
				status = http.StatusBadRequest
			}
			writeError(w, status, err.Error())
			return
		}
		text, err := geometry.SerializeCells(tessellate.Tokens(cells), format)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("x-cell-count", strconv.Itoa(len(cells)))
		writeText(w, text)
	})

	apiMux.HandleFunc("/geometry", func(w http.ResponseWriter, r *http.Request) {
		g, ok := readGeometry(w, r)
		if !ok {
			return
		}
		text, err := geometry.Serialize(g)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeText(w, text)
	})

	apiMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		m := map[string]any{"status": "ok", "geoip": d.Locator.Enabled()}
		if d.Geocoder != nil {
			m["geocoder"] = d.Geocoder.Name()
		}
		writeJSON(w, http.StatusOK, m)
	})

	return apiMux
}

// readGeometry：仅接受 POST，请求体为 GeoJSON 几何或要素；失败时已写出响应
func readGeometry(w http.ResponseWriter, r *http.Request) (g orb.Geometry, ok bool) {
	if r.Method != http.MethodPost {
		w.Header().Set("allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return nil, false
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return nil, false
	}
	g, err = geometry.Decode(body)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, geometry.ErrUnsupportedGeometry) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return nil, false
	}
	return g, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeText：序列化结果本身即 JSON 文本，原样写出
func writeText(w http.ResponseWriter, text string) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	_, _ = io.WriteString(w, text)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
