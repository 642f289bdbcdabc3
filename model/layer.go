package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/huifen-rgb/vibe-coding-remover/utils"
)

// ErrInvalidLayer 图层类型未知或数据与类型不匹配
var ErrInvalidLayer = errors.New("invalid layer")

// LayerKind 图层类型，应用顺序固定为 Exclude → Include → Refine
type LayerKind int

const (
	LayerExclude LayerKind = iota
	LayerInclude
	LayerRefine
)

// LayerKinds 按合成顺序排列
var LayerKinds = []LayerKind{LayerExclude, LayerInclude, LayerRefine}

func (k LayerKind) String() string {
	switch k {
	case LayerExclude:
		return "exclude"
	case LayerInclude:
		return "include"
	case LayerRefine:
		return "refine"
	default:
		return fmt.Sprintf("LayerKind(%d)", int(k))
	}
}

func (k LayerKind) valid() bool {
	return k >= LayerExclude && k <= LayerRefine
}

// ParseLayerKind 解析图层名称
func ParseLayerKind(s string) (LayerKind, error) {
	for _, k := range LayerKinds {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidLayer, s)
}

// Rect 显示坐标系下的矩形，实际尺寸 = Width*ScaleX × Height*ScaleY
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	ScaleX float64 `json:"scaleX"`
	ScaleY float64 `json:"scaleY"`
}

// UnmarshalJSON 缺省的缩放倍率按 1 处理
func (r *Rect) UnmarshalJSON(data []byte) error {
	type plain Rect
	p := plain{ScaleX: 1, ScaleY: 1}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Rect(p)
	return nil
}

// EffectiveWidth 返回应用对象缩放后的宽度
func (r Rect) EffectiveWidth() float64 {
	return r.Width * r.ScaleX
}

// EffectiveHeight 返回应用对象缩放后的高度
func (r Rect) EffectiveHeight() float64 {
	return r.Height * r.ScaleY
}

// Layer 单个标注图层，Rects 用于 Exclude/Include，Stroke 用于 Refine
type Layer struct {
	Kind   LayerKind
	Rects  []Rect
	Stroke *StrokeMask
}

func (l Layer) validate() error {
	if !l.Kind.valid() {
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidLayer, int(l.Kind))
	}
	if l.Kind == LayerRefine {
		if len(l.Rects) > 0 {
			return fmt.Errorf("%w: refine layer takes a stroke mask, not rectangles", ErrInvalidLayer)
		}
		return nil
	}
	if l.Stroke != nil {
		return fmt.Errorf("%w: %s layer takes rectangles, not a stroke mask", ErrInvalidLayer, l.Kind)
	}
	return nil
}

func (l Layer) clone() Layer {
	c := Layer{Kind: l.Kind}
	if l.Rects != nil {
		c.Rects = append([]Rect(nil), l.Rects...)
	}
	if l.Stroke != nil {
		c.Stroke = l.Stroke.Clone()
	}
	return c
}

// LayerSet 三个相互独立的图层，每次写入整体覆盖对应图层
type LayerSet struct {
	mu     sync.RWMutex
	layers [3]*Layer
}

func NewLayerSet() *LayerSet {
	return &LayerSet{}
}

// Set 整体替换 layer.Kind 对应图层，不做边界校验
func (s *LayerSet) Set(layer Layer) error {
	if err := layer.validate(); err != nil {
		return err
	}
	c := layer.clone()

	s.mu.Lock()
	s.layers[layer.Kind] = &c
	s.mu.Unlock()
	return nil
}

// Get 返回图层副本，从未设置时 ok 为 false
func (s *LayerSet) Get(kind LayerKind) (Layer, bool) {
	if !kind.valid() {
		return Layer{Kind: kind}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	l := s.layers[kind]
	if l == nil {
		return Layer{Kind: kind}, false
	}
	return l.clone(), true
}

// Has 判断图层是否已设置
func (s *LayerSet) Has(kind LayerKind) bool {
	if !kind.valid() {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layers[kind] != nil
}

// Reset 清空全部图层
func (s *LayerSet) Reset() {
	s.mu.Lock()
	s.layers = [3]*Layer{}
	s.mu.Unlock()
}

// Snapshot 是一次合成运行使用的只读快照
type Snapshot struct {
	Exclude []Rect
	Include []Rect
	Refine  *StrokeMask
}

// Snapshot 深拷贝当前图层，后续写入不影响快照
func (s *LayerSet) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap Snapshot
	if l := s.layers[LayerExclude]; l != nil {
		snap.Exclude = append([]Rect(nil), l.Rects...)
	}
	if l := s.layers[LayerInclude]; l != nil {
		snap.Include = append([]Rect(nil), l.Rects...)
	}
	if l := s.layers[LayerRefine]; l != nil && l.Stroke != nil {
		snap.Refine = l.Stroke.Clone()
	}
	return snap
}

// Digest 返回快照内容的稳定哈希，用于缓存键
func (snap Snapshot) Digest() string {
	rects, _ := json.Marshal(struct {
		Exclude []Rect `json:"e"`
		Include []Rect `json:"i"`
	}{snap.Exclude, snap.Include})

	buf := append([]byte(nil), rects...)
	if snap.Refine != nil {
		buf = append(buf, fmt.Sprintf("|%dx%d|", snap.Refine.Width(), snap.Refine.Height())...)
		buf = append(buf, snap.Refine.Bytes()...)
	}
	return utils.BytesMD5(buf)
}
