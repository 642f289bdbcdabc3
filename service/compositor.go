package service

import (
	"errors"
	"fmt"
	"image"

	"github.com/huifen-rgb/vibe-coding-remover/model"
)

const (
	alphaTransparent uint8 = 0
	alphaOpaque      uint8 = 255
)

// WarnLayerDimensionMismatch 笔刷掩码尺寸与预览画布不一致
const WarnLayerDimensionMismatch = "LayerDimensionMismatch"

var ErrNoImage = errors.New("no source image loaded")

// CompositeInput 一次合成所需的全部输入
type CompositeInput struct {
	// Original 原始像素，只读；每次合成都从它的副本开始
	Original *image.NRGBA
	Geometry Geometry
	Exclude  []model.Rect
	Include  []model.Rect
	Refine   *model.StrokeMask
}

// Composite 按 Exclude → Include → Refine 顺序把图层写入 alpha 通道
func Composite(in CompositeInput) (*image.NRGBA, []model.Warning, error) {
	if in.Original == nil {
		return nil, nil, ErrNoImage
	}
	out := cloneNRGBA(in.Original)
	bounds := image.Rect(0, 0, out.Rect.Dx(), out.Rect.Dy())

	applyRects(out, in.Exclude, in.Geometry, bounds, alphaTransparent)
	applyRects(out, in.Include, in.Geometry, bounds, alphaOpaque)

	var warnings []model.Warning
	if in.Refine != nil {
		if in.Refine.Width() != in.Geometry.DisplayWidth || in.Refine.Height() != in.Geometry.DisplayHeight {
			warnings = append(warnings, model.Warning{
				Code: WarnLayerDimensionMismatch,
				Message: fmt.Sprintf("refine mask is %dx%d, display canvas is %dx%d; resized to %dx%d anyway",
					in.Refine.Width(), in.Refine.Height(),
					in.Geometry.DisplayWidth, in.Geometry.DisplayHeight,
					bounds.Dx(), bounds.Dy()),
			})
		}
		applyStroke(out, ResizeStroke(in.Refine, bounds.Dx(), bounds.Dy()))
	}

	return out, warnings, nil
}

func applyRects(img *image.NRGBA, rects []model.Rect, g Geometry, bounds image.Rectangle, alpha uint8) {
	for _, r := range rects {
		box := ClampTo(ToOriginal(r, g.ScaleX, g.ScaleY), bounds)
		if box.Empty() {
			continue
		}
		setAlpha(img, box, alpha)
	}
}

// setAlpha box 使用从 0 开始的坐标
func setAlpha(img *image.NRGBA, box image.Rectangle, alpha uint8) {
	for y := box.Min.Y; y < box.Max.Y; y++ {
		row := img.Pix[y*img.Stride:]
		for x := box.Min.X; x < box.Max.X; x++ {
			row[x*4+3] = alpha
		}
	}
}

func applyStroke(img *image.NRGBA, mask *model.StrokeMask) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			if mask.Marked(x, y) {
				row[x*4+3] = alphaOpaque
			}
		}
	}
}

// cloneNRGBA 复制像素并把坐标原点移到 (0, 0)
func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	b := src.Rect
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		s := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
		copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], s[:b.Dx()*4])
	}
	return dst
}

// AlphaChannel 提取 alpha 通道
func AlphaChannel(img *image.NRGBA) *image.Alpha {
	b := img.Rect
	a := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < b.Dx(); x++ {
			a.Pix[y*a.Stride+x] = row[x*4+3]
		}
	}
	return a
}
