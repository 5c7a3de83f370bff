// 包 session：一个浏览器地图对应一个 websocket 会话；会话独占一份要素存储与事件循环
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"geoman-h3/internal/geocode"
	"geoman-h3/internal/geometry"
	"geoman-h3/internal/locate"
	"geoman-h3/internal/logger"
	"geoman-h3/internal/metrics"
	"geoman-h3/internal/router"
	"geoman-h3/internal/store"
	"geoman-h3/internal/tessellate"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxMessageSize = 8 << 20
	queueSize      = 64
)

// 绘图工具接收创建命令的数据源与形状
const (
	toolkitSource = "gm_main"
	toolkitShape  = "polygon"
)

// InitialBounds：无定位信息时的初始视野（捷克）
var InitialBounds = geometry.Bounds{MinLon: 11.75, MinLat: 48.45, MaxLon: 19.22, MaxLat: 51.21}

var errClosed = errors.New("session: connection closed")

// Options：建会话所需的配置与协作方
type Options struct {
	Resolution  int
	Format      geometry.Format
	Tessellator tessellate.Tessellator
	Geocoder    router.Geocoder
	// Camera：聚焦要素时的相机约束，零值使用 router.DefaultCamera
	Camera router.CameraOptions
	// Origin：访客的估算位置，非空时建会话后飞到该处
	Origin *orb.Point
}

// 文档注释：websocket 会话
// 背景：读协程解码入站帧，写协程串行写出，事件循环按到达顺序逐个处理事件至完成
// 约束：存储与路由只在事件循环协程内访问；地理编码在独立协程中执行，结果经 Post 回到事件队列
type Session struct {
	id     string
	conn   *websocket.Conn
	opts   Options
	log    *slog.Logger
	events chan router.Event
	out    chan []byte
	ctx    context.Context
}

func New(conn *websocket.Conn, opts Options) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		conn:   conn,
		opts:   opts,
		log:    logger.Session(id),
		events: make(chan router.Event, queueSize),
		out:    make(chan []byte, queueSize),
		ctx:    context.Background(),
	}
}

func (s *Session) ID() string { return s.id }

// Run：阻塞直到连接关闭或 ctx 取消；正常关闭返回 nil
func (s *Session) Run(ctx context.Context) error {
	sctx, err := store.NewContext(s.opts.Resolution, s.opts.Format)
	if err != nil {
		_ = s.conn.Close()
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	s.ctx = gctx
	ropts := []router.Option{
		router.WithGeocoder(s.opts.Geocoder),
		router.WithPoster(s),
		router.WithTessellator(s.opts.Tessellator),
		router.WithLogger(s.log),
	}
	if s.opts.Camera != (router.CameraOptions{}) {
		ropts = append(ropts, router.WithCamera(s.opts.Camera))
	}
	rt := router.New(store.New(sctx), s, s, ropts...)

	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()
	s.log.Info("session_open", "resolution", s.opts.Resolution, "format", s.opts.Format)
	t0 := time.Now()

	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error { return s.writeLoop(gctx) })
	g.Go(func() error { return s.eventLoop(gctx, rt) })
	err = g.Wait()
	_ = s.conn.Close()
	s.log.Info("session_close", "duration_ms", time.Since(t0).Milliseconds(), "err", err)
	if errors.Is(err, errClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Session) readLoop(ctx context.Context) error {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("ws_read_error", "err", err)
			}
			return errClosed
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		ev, err := DecodeEvent(data)
		if err != nil {
			s.log.Warn("frame_rejected", "err", err)
			s.send(encodeError(err))
			continue
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// writeLoop：唯一的写者；ctx 结束时发送关闭帧并关闭连接，使读协程退出
func (s *Session) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(writeWait)
			_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = s.conn.Close()
			return nil
		case msg := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.log.Debug("ws_write_error", "err", err)
				return errClosed
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.log.Debug("ws_ping_error", "err", err)
				return errClosed
			}
		}
	}
}

func (s *Session) eventLoop(ctx context.Context, rt *router.Router) error {
	s.start(rt)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			if err := rt.Handle(ctx, ev); err != nil {
				s.log.Warn("event_rejected", "kind", ev.Kind.String(), "err", err)
				s.send(encodeError(err))
			}
		}
	}
}

// start：初始视野、图层默认隐藏、全量同步
func (s *Session) start(rt *router.Router) {
	s.FitBounds(InitialBounds, router.CameraOptions{})
	if s.opts.Origin != nil {
		p := *s.opts.Origin
		s.emit(flyMsg{Type: "fly", Center: [2]float64{p[0], p[1]}, Zoom: locate.FlyZoom})
	}
	s.SetLayerVisibility(router.LayerHexagons, false)
	rt.Sync()
}

// Post：把事件放回事件队列；会话结束后丢弃
func (s *Session) Post(ev router.Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *Session) send(b []byte) {
	select {
	case s.out <- b:
	case <-s.ctx.Done():
	}
}

func (s *Session) emit(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Error("encode_error", "err", err)
		return
	}
	s.send(b)
}

func (s *Session) sendEncoded(b []byte, err error) {
	if err != nil {
		s.log.Error("encode_error", "err", err)
		return
	}
	s.send(b)
}

// 渲染端命令

func (s *Session) SetSourceData(source string, features []store.SourceFeature) {
	s.sendEncoded(encodeSource(source, features))
}

func (s *Session) SetLayerVisibility(layer string, visible bool) {
	s.emit(visibilityMsg{Type: "visibility", Layer: layer, Visible: visible})
}

func (s *Session) FitBounds(b geometry.Bounds, cam router.CameraOptions) {
	s.emit(cameraMsg{Type: "camera", Bounds: b.Array(), MaxZoom: cam.MaxZoom, Padding: cam.Padding})
}

func (s *Session) ShowPanel(p router.Panel) {
	s.emit(panelMsg{Type: "panel", Panel: p})
}

func (s *Session) ShowDetails(d store.Details) {
	s.sendEncoded(encodeDetails(d))
}

func (s *Session) ShowGeocoderResults(query string, results []geocode.Result) {
	s.sendEncoded(encodeGeocoder(query, results))
}

// CreateFeature：命令绘图工具创建要素，工具随后回送 gm:create
func (s *Session) CreateFeature(g orb.Geometry) {
	s.emit(createMsg{Type: "create", Geometry: geojson.NewGeometry(g), Shape: toolkitShape, Source: toolkitSource})
}
