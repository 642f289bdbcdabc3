package service

import (
	"image"
	"math"

	"github.com/huifen-rgb/vibe-coding-remover/model"
)

// DefaultDisplayWidth 预览画布的目标宽度
const DefaultDisplayWidth = 800

// 相对容差，只吸收 width*scale 的舍入误差，保证整幅画布映射回完整原图
const scaleEpsilon = 1e-9

// Geometry 原图与预览画布之间的尺寸关系
type Geometry struct {
	OrigWidth     int
	OrigHeight    int
	DisplayWidth  int
	DisplayHeight int
	ScaleX        float64
	ScaleY        float64
}

// DisplayGeometry 计算预览尺寸与缩放系数，宽度不超过 targetWidth 时不缩放，也从不放大
func DisplayGeometry(origW, origH, targetWidth int) Geometry {
	if targetWidth <= 0 {
		targetWidth = DefaultDisplayWidth
	}
	g := Geometry{
		OrigWidth:     origW,
		OrigHeight:    origH,
		DisplayWidth:  origW,
		DisplayHeight: origH,
		ScaleX:        1.0,
		ScaleY:        1.0,
	}
	if origW <= targetWidth {
		return g
	}

	factor := float64(origW) / float64(targetWidth)
	g.DisplayWidth = targetWidth
	g.DisplayHeight = max(1, int(float64(origH)/factor))
	g.ScaleX = float64(origW) / float64(g.DisplayWidth)
	g.ScaleY = float64(origH) / float64(g.DisplayHeight)
	return g
}

// OrigBounds 原图像素范围
func (g Geometry) OrigBounds() image.Rectangle {
	return image.Rect(0, 0, g.OrigWidth, g.OrigHeight)
}

// DisplayBounds 预览画布像素范围
func (g Geometry) DisplayBounds() image.Rectangle {
	return image.Rect(0, 0, g.DisplayWidth, g.DisplayHeight)
}

// ToOriginal 将显示坐标矩形映射到原图坐标，结果未裁剪
func ToOriginal(r model.Rect, scaleX, scaleY float64) image.Rectangle {
	x0 := scaleFloor(r.Left, scaleX)
	y0 := scaleFloor(r.Top, scaleY)
	w0 := scaleFloor(r.EffectiveWidth(), scaleX)
	h0 := scaleFloor(r.EffectiveHeight(), scaleY)
	if w0 < 0 {
		w0 = 0
	}
	if h0 < 0 {
		h0 = 0
	}
	return image.Rect(x0, y0, x0+w0, y0+h0)
}

// ClampTo 将矩形裁剪到 bounds 内，越界部分静默丢弃
func ClampTo(r, bounds image.Rectangle) image.Rectangle {
	return r.Intersect(bounds)
}

func scaleFloor(v, scale float64) int {
	f := v * scale
	if math.IsNaN(f) {
		return 0
	}
	if math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		if f > 0 {
			return math.MaxInt32
		}
		return math.MinInt32
	}
	// 仅当与整数的差距在舍入误差范围内时取该整数，其余情况为普通 floor
	if r := math.Round(f); math.Abs(f-r) <= scaleEpsilon*math.Max(1, math.Abs(f)) {
		return int(r)
	}
	return int(math.Floor(f))
}
