package service

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/huifen-rgb/vibe-coding-remover/model"
)

// overlayOutline 标注框描边宽度（像素）
const overlayOutline = 2

var (
	excludeFill    = color.NRGBA{R: 255, B: 255, A: 80}
	excludeOutline = color.NRGBA{R: 255, B: 255, A: 255}
	includeFill    = color.NRGBA{G: 80, B: 255, A: 80}
	includeOutline = color.NRGBA{G: 80, B: 255, A: 255}
)

// AnnotatePreview 在预览图副本上依次绘制挖除框（洋红）与保留框（蓝色），display 不被修改
func AnnotatePreview(display *image.NRGBA, exclude, include []model.Rect) *image.NRGBA {
	out := cloneNRGBA(display)
	drawBoxes(out, exclude, excludeFill, excludeOutline)
	drawBoxes(out, include, includeFill, includeOutline)
	return out
}

// drawBoxes 矩形为预览坐标，半透明填充后叠加实色描边，越界部分由 draw 裁剪
func drawBoxes(dst *image.NRGBA, rects []model.Rect, fill, outline color.NRGBA) {
	fillSrc := image.NewUniform(fill)
	outlineSrc := image.NewUniform(outline)
	for _, r := range rects {
		box := ToOriginal(r, 1, 1)
		if box.Empty() {
			continue
		}
		draw.Draw(dst, box, fillSrc, image.Point{}, draw.Over)
		for _, edge := range outlineEdges(box, overlayOutline) {
			draw.Draw(dst, edge, outlineSrc, image.Point{}, draw.Src)
		}
	}
}

func outlineEdges(b image.Rectangle, width int) [4]image.Rectangle {
	return [4]image.Rectangle{
		image.Rect(b.Min.X, b.Min.Y, b.Max.X, min(b.Min.Y+width, b.Max.Y)),
		image.Rect(b.Min.X, max(b.Max.Y-width, b.Min.Y), b.Max.X, b.Max.Y),
		image.Rect(b.Min.X, b.Min.Y, min(b.Min.X+width, b.Max.X), b.Max.Y),
		image.Rect(max(b.Max.X-width, b.Min.X), b.Min.Y, b.Max.X, b.Max.Y),
	}
}
