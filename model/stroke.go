package model

import (
	"image"
	"image/color"
)

const (
	strokeOff uint8 = 0
	strokeOn  uint8 = 0xff
)

// StrokeMask 二值笔刷掩码，每个像素只有“已标记/未标记”两种状态
type StrokeMask struct {
	img *image.Alpha
}

// NewStrokeMask 创建全部未标记的掩码
func NewStrokeMask(width, height int) *StrokeMask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &StrokeMask{img: image.NewAlpha(image.Rect(0, 0, width, height))}
}

// StrokeMaskFromCanvas 将画布栅格转换为掩码：未预乘的绿色通道非零即视为笔刷经过
func StrokeMaskFromCanvas(src image.Image) *StrokeMask {
	b := src.Bounds()
	m := NewStrokeMask(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			if c.G > 0 {
				m.Set(x-b.Min.X, y-b.Min.Y, true)
			}
		}
	}
	return m
}

func (m *StrokeMask) Width() int {
	return m.img.Rect.Dx()
}

func (m *StrokeMask) Height() int {
	return m.img.Rect.Dy()
}

func (m *StrokeMask) Bounds() image.Rectangle {
	return m.img.Rect
}

// Set 标记或清除 (x, y)，越界坐标被忽略
func (m *StrokeMask) Set(x, y int, marked bool) {
	if !(image.Point{X: x, Y: y}.In(m.img.Rect)) {
		return
	}
	v := strokeOff
	if marked {
		v = strokeOn
	}
	m.img.Pix[m.img.PixOffset(x, y)] = v
}

// Marked 判断 (x, y) 是否被标记
func (m *StrokeMask) Marked(x, y int) bool {
	if !(image.Point{X: x, Y: y}.In(m.img.Rect)) {
		return false
	}
	return m.img.Pix[m.img.PixOffset(x, y)] != strokeOff
}

// FillRect 标记矩形区域内的全部像素
func (m *StrokeMask) FillRect(r image.Rectangle) {
	r = r.Intersect(m.img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.img.Pix[m.img.PixOffset(x, y)] = strokeOn
		}
	}
}

// Count 返回已标记像素数
func (m *StrokeMask) Count() int {
	n := 0
	for _, v := range m.img.Pix {
		if v != strokeOff {
			n++
		}
	}
	return n
}

// Alpha 返回底层 Alpha 图像（0 或 255），调用方不得修改
func (m *StrokeMask) Alpha() *image.Alpha {
	return m.img
}

// Bytes 返回逐行排列的像素数据副本
func (m *StrokeMask) Bytes() []byte {
	return append([]byte(nil), m.img.Pix...)
}

func (m *StrokeMask) Clone() *StrokeMask {
	img := image.NewAlpha(m.img.Rect)
	copy(img.Pix, m.img.Pix)
	return &StrokeMask{img: img}
}

// StrokeMaskFromAlpha 以 alpha>0 为标记条件构造掩码
func StrokeMaskFromAlpha(a *image.Alpha) *StrokeMask {
	b := a.Bounds()
	m := NewStrokeMask(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if a.AlphaAt(x, y).A > 0 {
				m.img.Pix[m.img.PixOffset(x-b.Min.X, y-b.Min.Y)] = strokeOn
			}
		}
	}
	return m
}
