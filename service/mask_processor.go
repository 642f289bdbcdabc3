package service

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/huifen-rgb/vibe-coding-remover/model"
)

// MaskProcessor 统计合成结果 alpha 掩码的前景信息
type MaskProcessor struct{}

func NewMaskProcessor() *MaskProcessor {
	return &MaskProcessor{}
}

// MaskStats 前景边界框与覆盖率
type MaskStats struct {
	Foreground model.BBox
	Coverage   float64
}

// Analyze alpha>0 视为前景
func (mp *MaskProcessor) Analyze(alpha *image.Alpha) (MaskStats, error) {
	w, h := alpha.Rect.Dx(), alpha.Rect.Dy()
	if w == 0 || h == 0 {
		return MaskStats{}, nil
	}

	raw, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, packAlpha(alpha))
	if err != nil {
		return MaskStats{}, err
	}
	defer raw.Close()

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(raw, &binary, 0, 255, gocv.ThresholdBinary)

	return MaskStats{
		Foreground: mp.boundingBox(&binary),
		Coverage:   float64(gocv.CountNonZero(binary)) / float64(w*h),
	}, nil
}

// boundingBox 所有外轮廓边界框的并集
func (mp *MaskProcessor) boundingBox(mask *gocv.Mat) model.BBox {
	contours := gocv.FindContours(*mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return model.BBox{}
	}

	var union image.Rectangle
	for i := 0; i < contours.Size(); i++ {
		r := gocv.BoundingRect(contours.At(i))
		if i == 0 {
			union = r
		} else {
			union = union.Union(r)
		}
	}

	return model.BBox{
		X:      union.Min.X,
		Y:      union.Min.Y,
		Width:  union.Dx(),
		Height: union.Dy(),
	}
}

// packAlpha 去掉行尾填充，得到连续的 h*w 字节
func packAlpha(a *image.Alpha) []byte {
	w, h := a.Rect.Dx(), a.Rect.Dy()
	if a.Stride == w && a.Rect.Min == (image.Point{}) {
		return a.Pix[:w*h]
	}
	buf := make([]byte, 0, w*h)
	for y := 0; y < h; y++ {
		off := a.PixOffset(a.Rect.Min.X, a.Rect.Min.Y+y)
		buf = append(buf, a.Pix[off:off+w]...)
	}
	return buf
}
