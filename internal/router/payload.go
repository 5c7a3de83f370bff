package router

import (
	"geoman-h3/internal/geometry"
	"geoman-h3/internal/store"
)

// PanelItem：侧栏列表中的一行
type PanelItem struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	IsEditing bool   `json:"isEditing,omitempty"`
}

// Panel：侧栏状态；临时要素最新在前，正式要素按创建顺序
type Panel struct {
	Temporaries []PanelItem     `json:"temporaries"`
	Features    []PanelItem     `json:"features"`
	Resolution  int             `json:"resolution"`
	Format      geometry.Format `json:"format"`
	MinRes      int             `json:"minResolution"`
	MaxRes      int             `json:"maxResolution"`
}

// BuildPanel：只由存储状态推导
func BuildPanel(st *store.Store) Panel {
	p := Panel{
		Temporaries: []PanelItem{},
		Features:    []PanelItem{},
		Resolution:  st.Resolution(),
		Format:      st.Format(),
		MinRes:      store.MinResolution,
		MaxRes:      store.MaxResolution,
	}
	for _, tf := range st.TemporariesNewestFirst() {
		p.Temporaries = append(p.Temporaries, PanelItem{ID: tf.ID, Type: tf.Geometry.GeoJSONType()})
	}
	for _, f := range st.Features() {
		p.Features = append(p.Features, PanelItem{ID: f.ID, Type: f.Geometry.GeoJSONType(), IsEditing: f.IsEditing})
	}
	return p
}

// Sync：推送全部数据源与面板（会话建立或重连时）
func (r *Router) Sync() {
	r.pushHexagons()
	r.pushTemporaries()
	r.render.ShowPanel(BuildPanel(r.st))
}

func (r *Router) pushHexagons() {
	r.render.SetSourceData(SourceHexagons, r.st.HexagonSource(r.tess))
}

func (r *Router) pushTemporaries() {
	r.render.SetSourceData(SourceTemporaries, r.st.TemporarySource())
}

// onChange：存储变更后的重算与推送
func (r *Router) onChange(c store.Change) {
	switch c.Kind {
	case store.FeaturesChanged, store.ResolutionChanged:
		r.pushHexagons()
	case store.TemporariesChanged:
		r.pushTemporaries()
	}
	r.render.ShowPanel(BuildPanel(r.st))
	r.refreshDetails(c)
}

// refreshDetails：正在查看的要素被修改、删除或分辨率/格式变化时更新详情
func (r *Router) refreshDetails(c store.Change) {
	if r.inspecting == "" || c.Kind == store.TemporariesChanged {
		return
	}
	if c.Kind == store.FeaturesChanged && c.ID != "" && c.ID != r.inspecting {
		return
	}
	d, err := r.st.Details(r.inspecting, r.tess)
	if err != nil {
		r.log.Debug("details_closed", "id", r.inspecting, "error", err)
		r.inspecting = ""
		r.render.ShowDetails(store.Details{})
		return
	}
	r.render.ShowDetails(d)
}
