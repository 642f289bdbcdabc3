package service

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/anthonynsimon/bild/transform"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/huifen-rgb/vibe-coding-remover/utils"
)

// ErrDecode 上传内容无法解码为图片
var ErrDecode = errors.New("decode error")

// Source 一次上传解码后的图片
type Source struct {
	// Original 原始分辨率的 RGBA 像素，加载后不再修改
	Original    *image.NRGBA
	Display     *image.NRGBA
	Geometry    Geometry
	Fingerprint string
	Format      string
	MIME        string
}

// SniffMIME 根据文件头判断类型，无法识别时返回空串
func SniffMIME(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}

// DecodeLimit 解码前按文件头检查的尺寸上限，字段为零表示不限制
type DecodeLimit struct {
	MaxPixels int64
	MaxWidth  int
	MaxHeight int
}

// check 只读取文件头，像素缓冲区分配之前拒绝超限图片
func (l DecodeLimit) check(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: image has no pixels", ErrDecode)
	}
	if l.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > l.MaxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, l.MaxPixels)
	}
	if (l.MaxWidth > 0 && cfg.Width > l.MaxWidth) || (l.MaxHeight > 0 && cfg.Height > l.MaxHeight) {
		return fmt.Errorf("%w: %dx%d exceeds %dx%d", ErrDecode, cfg.Width, cfg.Height, l.MaxWidth, l.MaxHeight)
	}
	return nil
}

// LoadImage 解码图片并生成预览
func LoadImage(data []byte, displayWidth int, limit DecodeLimit) (*Source, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrDecode)
	}
	if !filetype.IsImage(data) {
		return nil, fmt.Errorf("%w: content is not an image", ErrDecode)
	}
	if err := limit.check(data); err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", ErrDecode)
	}

	original := toNRGBA(img)
	geometry := DisplayGeometry(b.Dx(), b.Dy(), displayWidth)

	return &Source{
		Original:    original,
		Display:     buildDisplay(original, geometry),
		Geometry:    geometry,
		Fingerprint: utils.Fingerprint(data),
		Format:      format,
		MIME:        SniffMIME(data),
	}, nil
}

// toNRGBA 转为非预乘 RGBA8，坐标原点为 (0, 0)
func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return cloneNRGBA(n)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// buildDisplay 生成不透明的预览图，只用于展示
func buildDisplay(original *image.NRGBA, g Geometry) *image.NRGBA {
	var scaled image.Image = original
	if g.DisplayWidth != g.OrigWidth || g.DisplayHeight != g.OrigHeight {
		scaled = transform.Resize(original, g.DisplayWidth, g.DisplayHeight, transform.Linear)
	}

	b := scaled.Bounds()
	display := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(scaled.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			c.A = 0xff
			display.SetNRGBA(x, y, c)
		}
	}
	return display
}

// ExportPNG 编码为 PNG
func ExportPNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRaster 解码画布栅格（笔刷图层上传）
func DecodeRaster(data []byte, limit DecodeLimit) (image.Image, error) {
	if err := limit.check(data); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}
