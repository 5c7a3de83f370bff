// 包 router：把绘图工具、地理编码与侧栏的入站事件分派到要素存储，并推导推送给地图的渲染数据
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"geoman-h3/internal/geocode"
	"geoman-h3/internal/geometry"
	"geoman-h3/internal/logger"
	"geoman-h3/internal/metrics"
	"geoman-h3/internal/store"
	"geoman-h3/internal/tessellate"

	"github.com/paulmach/orb"
)

var ErrMalformedEvent = errors.New("router: malformed event")

// 渲染端数据源与图层名称
const (
	SourceHexagons    = "h3-cells"
	SourceTemporaries = "temp-features"
	LayerHexagons     = "h3-cells"
)

// Event：一条入站事件；按 Kind 使用对应字段
type Event struct {
	Kind       Kind
	FeatureID  string
	Geometry   orb.Geometry
	Visible    bool
	Resolution int
	Format     geometry.Format
	Query      string
	Results    []geocode.Result
}

// CameraOptions：聚焦要素时的相机约束
type CameraOptions struct {
	MaxZoom float64
	Padding int
}

var DefaultCamera = CameraOptions{MaxZoom: 14, Padding: 50}

// Renderer：地图渲染端，所有推送均为整体替换
type Renderer interface {
	SetSourceData(source string, features []store.SourceFeature)
	SetLayerVisibility(layer string, visible bool)
	FitBounds(b geometry.Bounds, cam CameraOptions)
	ShowPanel(p Panel)
	ShowDetails(d store.Details)
	ShowGeocoderResults(query string, results []geocode.Result)
}

// Toolkit：绘图工具；创建的要素会以 gm:create 事件回到路由
type Toolkit interface {
	CreateFeature(g orb.Geometry)
}

// Geocoder：正向地理编码，失败时返回空结果而不是错误
type Geocoder interface {
	Forward(ctx context.Context, query string) []geocode.Result
}

// Poster：把事件重新投递到会话事件队列
type Poster interface {
	Post(Event)
}

type Option func(*Router)

func WithGeocoder(g Geocoder) Option                  { return func(r *Router) { r.geocoder = g } }
func WithPoster(p Poster) Option                      { return func(r *Router) { r.poster = p } }
func WithTessellator(t tessellate.Tessellator) Option { return func(r *Router) { r.tess = t } }
func WithCamera(c CameraOptions) Option               { return func(r *Router) { r.camera = c } }
func WithLogger(l *slog.Logger) Option                { return func(r *Router) { r.log = l } }

// 文档注释：事件路由
// 背景：每个事件在会话事件循环内处理至完成，处理器只通过存储的公开操作改变状态
// 约束：存储每次变更后同步推送受影响的数据源与面板；推送内容只由存储状态决定
type Router struct {
	st       *store.Store
	render   Renderer
	toolkit  Toolkit
	geocoder Geocoder
	poster   Poster
	tess     tessellate.Tessellator
	camera   CameraOptions
	log      *slog.Logger

	inspecting string
}

func New(st *store.Store, render Renderer, toolkit Toolkit, opts ...Option) *Router {
	r := &Router{
		st:      st,
		render:  render,
		toolkit: toolkit,
		camera:  DefaultCamera,
	}
	for _, o := range opts {
		o(r)
	}
	if r.log == nil {
		r.log = logger.L()
	}
	st.Subscribe(r.onChange)
	return r
}

type handlerFunc func(r *Router, ctx context.Context, ev Event) error

var handlers map[Kind]handlerFunc

func init() {
	handlers = map[Kind]handlerFunc{
		KindCreate:         (*Router).create,
		KindRemove:         (*Router).remove,
		KindCut:            (*Router).endEdit,
		KindDragStart:      (*Router).beginEdit,
		KindEditStart:      (*Router).beginEdit,
		KindRotateStart:    (*Router).beginEdit,
		KindDragEnd:        (*Router).endEdit,
		KindEditEnd:        (*Router).endEdit,
		KindRotateEnd:      (*Router).endEdit,
		KindGeocodeResult:  (*Router).geocodeResult,
		KindGeocodeQuery:   (*Router).geocodeQuery,
		KindGeocodeResults: (*Router).geocodeResults,
		KindLayerToggle:    (*Router).layerToggle,
		KindResolution:     (*Router).resolution,
		KindFormat:         (*Router).format,
		KindFocus:          (*Router).focus,
		KindTempAdd:        (*Router).tempAdd,
		KindTempDrop:       (*Router).tempDrop,
		KindInspect:        (*Router).inspect,
		KindReset:          (*Router).reset,
	}
}

// 文档注释：处理单个事件
// 重复 ID、找不到要素、分辨率越界、非面几何属于良性竞争：记录并计数后返回 nil，存储保持不变
// 缺少必需字段或未知类型返回 ErrMalformedEvent
func (r *Router) Handle(ctx context.Context, ev Event) error {
	h, ok := handlers[ev.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown kind %d", ErrMalformedEvent, int(ev.Kind))
	}
	metrics.EventsTotal.WithLabelValues(ev.Kind.String()).Inc()
	err := h(r, ctx, ev)
	if err == nil || !benign(err) {
		return err
	}
	metrics.BenignErrorsTotal.WithLabelValues(ev.Kind.String()).Inc()
	r.log.Info("store_benign_error", "kind", ev.Kind.String(), "id", ev.FeatureID, "error", err)
	return nil
}

func benign(err error) bool {
	return errors.Is(err, store.ErrDuplicateID) ||
		errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrInvalidResolution) ||
		errors.Is(err, geometry.ErrUnsupportedGeometry) ||
		errors.Is(err, geometry.ErrEmptyGeometry) ||
		errors.Is(err, geometry.ErrInvalidFormat)
}

func needID(ev Event) error {
	if ev.FeatureID == "" {
		return fmt.Errorf("%w: %s without id", ErrMalformedEvent, ev.Kind)
	}
	return nil
}

func needFeature(ev Event) error {
	if err := needID(ev); err != nil {
		return err
	}
	if ev.Geometry == nil {
		return fmt.Errorf("%w: %s without geometry", ErrMalformedEvent, ev.Kind)
	}
	return nil
}

func (r *Router) create(_ context.Context, ev Event) error {
	if err := needFeature(ev); err != nil {
		return err
	}
	return r.st.CreateFeature(ev.FeatureID, ev.Geometry)
}

func (r *Router) remove(_ context.Context, ev Event) error {
	if err := needID(ev); err != nil {
		return err
	}
	return r.st.RemoveFeature(ev.FeatureID)
}

func (r *Router) beginEdit(_ context.Context, ev Event) error {
	if err := needFeature(ev); err != nil {
		return err
	}
	return r.st.BeginEdit(ev.FeatureID, ev.Geometry)
}

func (r *Router) endEdit(_ context.Context, ev Event) error {
	if err := needFeature(ev); err != nil {
		return err
	}
	return r.st.EndEdit(ev.FeatureID, ev.Geometry)
}

// geocodeResult：只有面几何成为临时要素，其它结果忽略
func (r *Router) geocodeResult(_ context.Context, ev Event) error {
	if !geometry.IsArea(ev.Geometry) {
		r.log.Debug("geocode_result_ignored", "type", geoType(ev.Geometry))
		return nil
	}
	_, err := r.st.CreateTemporary(ev.Geometry)
	return err
}

// geocodeQuery：异步查询，结果以 gc:results 重新入队；旧查询不取消，晚到结果照常应用
func (r *Router) geocodeQuery(ctx context.Context, ev Event) error {
	if ev.Query == "" {
		return fmt.Errorf("%w: %s without query", ErrMalformedEvent, ev.Kind)
	}
	if r.geocoder == nil {
		r.log.Warn("geocode_disabled", "query", ev.Query)
		return nil
	}
	if r.poster == nil {
		return r.geocodeResults(ctx, Event{Kind: KindGeocodeResults, Query: ev.Query, Results: r.geocoder.Forward(ctx, ev.Query)})
	}
	go func(q string) {
		r.poster.Post(Event{Kind: KindGeocodeResults, Query: q, Results: r.geocoder.Forward(ctx, q)})
	}(ev.Query)
	return nil
}

func (r *Router) geocodeResults(_ context.Context, ev Event) error {
	r.render.ShowGeocoderResults(ev.Query, ev.Results)
	return nil
}

func (r *Router) layerToggle(_ context.Context, ev Event) error {
	r.render.SetLayerVisibility(LayerHexagons, ev.Visible)
	return nil
}

func (r *Router) resolution(_ context.Context, ev Event) error {
	return r.st.SetResolution(ev.Resolution)
}

func (r *Router) format(_ context.Context, ev Event) error {
	return r.st.SetFormat(ev.Format)
}

// focus：只读操作，计算包围盒后移动相机
func (r *Router) focus(_ context.Context, ev Event) error {
	if err := needID(ev); err != nil {
		return err
	}
	g, ok := r.st.Lookup(ev.FeatureID)
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrNotFound, ev.FeatureID)
	}
	b, err := geometry.BoundsOf(g)
	if err != nil {
		return err
	}
	r.render.FitBounds(b, r.camera)
	return nil
}

func (r *Router) tempAdd(_ context.Context, ev Event) error {
	if err := needID(ev); err != nil {
		return err
	}
	tf, err := r.st.PromoteTemporary(ev.FeatureID)
	if err != nil {
		return err
	}
	r.toolkit.CreateFeature(tf.Geometry)
	return nil
}

func (r *Router) tempDrop(_ context.Context, ev Event) error {
	if err := needID(ev); err != nil {
		return err
	}
	_, err := r.st.DropTemporary(ev.FeatureID)
	return err
}

func (r *Router) inspect(_ context.Context, ev Event) error {
	if err := needID(ev); err != nil {
		return err
	}
	d, err := r.st.Details(ev.FeatureID, r.tess)
	if err != nil {
		return err
	}
	r.inspecting = ev.FeatureID
	r.render.ShowDetails(d)
	return nil
}

// reset：清空全部要素并换用新上下文；沿用当前分辨率与格式，临时 ID 从 1 重新计数
func (r *Router) reset(_ context.Context, _ Event) error {
	sctx, err := store.NewContext(r.st.Resolution(), r.st.Format())
	if err != nil {
		return err
	}
	r.st.Reset(sctx)
	return nil
}

func geoType(g orb.Geometry) string {
	if g == nil {
		return "null"
	}
	return g.GeoJSONType()
}
