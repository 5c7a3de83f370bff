// 包 store：会话内要素状态的唯一权威来源，维护已绘制要素与地理编码产生的临时要素
package store

import (
	"errors"
	"fmt"

	"geoman-h3/internal/geometry"
	"geoman-h3/internal/logger"

	"github.com/paulmach/orb"
)

var (
	ErrDuplicateID       = errors.New("store: duplicate feature id")
	ErrNotFound          = errors.New("store: feature not found")
	ErrInvalidResolution = errors.New("store: resolution out of range")

	ErrUnsupportedGeometry = geometry.ErrUnsupportedGeometry
)

// Feature：已绘制要素；IsEditing=true 期间几何处于过渡状态，不参与镶嵌
type Feature struct {
	ID        string
	Geometry  orb.Geometry
	IsEditing bool
}

// TempFeature：地理编码结果产生、等待用户添加或丢弃的临时要素
type TempFeature struct {
	ID       string
	Geometry orb.Geometry
}

// ChangeKind：变更通知类型
type ChangeKind int

const (
	FeaturesChanged ChangeKind = iota + 1
	TemporariesChanged
	ResolutionChanged
	FormatChanged
)

func (k ChangeKind) String() string {
	switch k {
	case FeaturesChanged:
		return "features"
	case TemporariesChanged:
		return "temporaries"
	case ResolutionChanged:
		return "resolution"
	case FormatChanged:
		return "format"
	}
	return "unknown"
}

// Change：一次成功变更的通知，ID 为受影响要素（分辨率/格式变更时为空）
type Change struct {
	Kind ChangeKind
	ID   string
}

// 文档注释：要素存储
// 约束：非并发安全，由单个会话事件循环独占；每个公开写操作要么完整生效并发出一次通知，要么不改变任何状态
type Store struct {
	ctx      *Context
	features []Feature
	temps    []TempFeature
	subs     []func(Change)
}

func New(ctx *Context) *Store {
	return &Store{ctx: ctx}
}

// Subscribe：注册变更监听，按注册顺序同步调用
func (s *Store) Subscribe(fn func(Change)) { s.subs = append(s.subs, fn) }

func (s *Store) emit(c Change) {
	for _, fn := range s.subs {
		fn(c)
	}
}

// Reset：丢弃全部要素并换用新的上下文，监听保留
func (s *Store) Reset(ctx *Context) {
	s.ctx = ctx
	s.features = nil
	s.temps = nil
	s.emit(Change{Kind: FeaturesChanged})
	s.emit(Change{Kind: TemporariesChanged})
	s.emit(Change{Kind: ResolutionChanged})
}

func (s *Store) Context() *Context       { return s.ctx }
func (s *Store) Resolution() int         { return s.ctx.resolution }
func (s *Store) Format() geometry.Format { return s.ctx.format }
func (s *Store) Len() int                { return len(s.features) }
func (s *Store) TemporaryLen() int       { return len(s.temps) }

func (s *Store) indexOf(id string) int {
	for i := range s.features {
		if s.features[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) tempIndexOf(id string) int {
	for i := range s.temps {
		if s.temps[i].ID == id {
			return i
		}
	}
	return -1
}

// attach：校验并深拷贝几何，存入后视为不可变值
func attach(g orb.Geometry) (orb.Geometry, error) {
	n, err := geometry.Normalize(g)
	if err != nil {
		return nil, err
	}
	return orb.Clone(n), nil
}

// CreateFeature：追加新要素（IsEditing=false）
func (s *Store) CreateFeature(id string, g orb.Geometry) error {
	if s.indexOf(id) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	geom, err := attach(g)
	if err != nil {
		return err
	}
	s.features = append(s.features, Feature{ID: id, Geometry: geom})
	logger.L().Debug("feature_create", "id", id, "type", geom.GeoJSONType())
	s.emit(Change{Kind: FeaturesChanged, ID: id})
	return nil
}

// RemoveFeature：删除要素，不存在时返回 ErrNotFound 且状态不变
func (s *Store) RemoveFeature(id string) error {
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.features = append(s.features[:i:i], s.features[i+1:]...)
	logger.L().Debug("feature_remove", "id", id)
	s.emit(Change{Kind: FeaturesChanged, ID: id})
	return nil
}

// BeginEdit：替换几何并进入编辑态（拖动/编辑/旋转开始）
func (s *Store) BeginEdit(id string, g orb.Geometry) error { return s.setEditing(id, g, true) }

// EndEdit：替换几何并回到稳定态（拖动/编辑/旋转结束、切割）
func (s *Store) EndEdit(id string, g orb.Geometry) error { return s.setEditing(id, g, false) }

func (s *Store) setEditing(id string, g orb.Geometry, editing bool) error {
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	geom, err := attach(g)
	if err != nil {
		return err
	}
	s.features[i] = Feature{ID: id, Geometry: geom, IsEditing: editing}
	logger.L().Debug("feature_edit_state", "id", id, "editing", editing)
	s.emit(Change{Kind: FeaturesChanged, ID: id})
	return nil
}

// CreateTemporary：分配下一个临时 ID（temp-N）并追加
func (s *Store) CreateTemporary(g orb.Geometry) (string, error) {
	geom, err := attach(g)
	if err != nil {
		return "", err
	}
	id := s.ctx.nextTempID()
	s.temps = append(s.temps, TempFeature{ID: id, Geometry: geom})
	logger.L().Debug("temp_create", "id", id, "type", geom.GeoJSONType())
	s.emit(Change{Kind: TemporariesChanged, ID: id})
	return id, nil
}

// DropTemporary：丢弃临时要素
func (s *Store) DropTemporary(id string) (TempFeature, error) {
	return s.removeTemporary(id, "temp_drop")
}

// PromoteTemporary：移除临时要素并返回其几何，由调用方命令绘图工具创建正式要素
// 约束：正式要素随后由工具的创建事件经 CreateFeature 进入存储，此处不直接写入
func (s *Store) PromoteTemporary(id string) (TempFeature, error) {
	return s.removeTemporary(id, "temp_promote")
}

func (s *Store) removeTemporary(id, event string) (TempFeature, error) {
	i := s.tempIndexOf(id)
	if i < 0 {
		return TempFeature{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	tf := s.temps[i]
	s.temps = append(s.temps[:i:i], s.temps[i+1:]...)
	logger.L().Debug(event, "id", id)
	s.emit(Change{Kind: TemporariesChanged, ID: id})
	return tf, nil
}

// SetResolution：修改会话分辨率；越界返回 ErrInvalidResolution，相同值不发通知
func (s *Store) SetResolution(r int) error {
	if err := checkResolution(r); err != nil {
		return err
	}
	if r == s.ctx.resolution {
		return nil
	}
	s.ctx.resolution = r
	logger.L().Debug("resolution_set", "resolution", r)
	s.emit(Change{Kind: ResolutionChanged})
	return nil
}

// SetFormat：仅影响单元格文本输出，不影响计算结果
func (s *Store) SetFormat(f geometry.Format) error {
	f, err := geometry.ParseFormat(string(f))
	if err != nil {
		return err
	}
	if f == s.ctx.format {
		return nil
	}
	s.ctx.format = f
	s.emit(Change{Kind: FormatChanged})
	return nil
}

// Features：按创建顺序返回副本
func (s *Store) Features() []Feature {
	return append([]Feature(nil), s.features...)
}

func (s *Store) Feature(id string) (Feature, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.features[i], true
	}
	return Feature{}, false
}

// Temporaries：存储顺序（最早在前）
func (s *Store) Temporaries() []TempFeature {
	return append([]TempFeature(nil), s.temps...)
}

// TemporariesNewestFirst：展示顺序，最新创建的在前
func (s *Store) TemporariesNewestFirst() []TempFeature {
	out := make([]TempFeature, len(s.temps))
	for i, tf := range s.temps {
		out[len(s.temps)-1-i] = tf
	}
	return out
}

func (s *Store) Temporary(id string) (TempFeature, bool) {
	if i := s.tempIndexOf(id); i >= 0 {
		return s.temps[i], true
	}
	return TempFeature{}, false
}

// Lookup：按 ID 查找正式或临时要素的几何
func (s *Store) Lookup(id string) (orb.Geometry, bool) {
	if f, ok := s.Feature(id); ok {
		return f.Geometry, true
	}
	if tf, ok := s.Temporary(id); ok {
		return tf.Geometry, true
	}
	return nil, false
}
