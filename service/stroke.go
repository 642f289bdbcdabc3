package service

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/huifen-rgb/vibe-coding-remover/model"
)

// ResizeStroke 最近邻缩放笔刷掩码，不会在笔触边缘产生中间值
func ResizeStroke(mask *model.StrokeMask, width, height int) *model.StrokeMask {
	if mask.Width() == width && mask.Height() == height {
		return mask.Clone()
	}

	dst := image.NewAlpha(image.Rect(0, 0, width, height))
	if mask.Width() > 0 && mask.Height() > 0 {
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), mask.Alpha(), mask.Bounds(), draw.Src, nil)
	}
	return model.StrokeMaskFromAlpha(dst)
}
