package service

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/huifen-rgb/vibe-coding-remover/model"
)

func TestResizeStrokeExpandsPixelToBlock(t *testing.T) {
	mask := model.NewStrokeMask(4, 3)
	mask.Set(1, 2, true)

	out := ResizeStroke(mask, 12, 9)
	assert.Equal(t, 12, out.Width())
	assert.Equal(t, 9, out.Height())
	assert.Equal(t, 9, out.Count())
	for y := 0; y < 9; y++ {
		for x := 0; x < 12; x++ {
			want := x >= 3 && x < 6 && y >= 6 && y < 9
			assert.Equal(t, want, out.Marked(x, y), "(%d,%d)", x, y)
		}
	}
}

func TestResizeStrokeStaysBinary(t *testing.T) {
	mask := model.NewStrokeMask(7, 5)
	mask.FillRect(image.Rect(2, 1, 5, 4))

	out := ResizeStroke(mask, 23, 11)
	for _, v := range out.Alpha().Pix {
		assert.True(t, v == 0 || v == 255, "value %d", v)
	}
	assert.Greater(t, out.Count(), 0)
}

func TestResizeStrokeSameSizeCopies(t *testing.T) {
	mask := model.NewStrokeMask(3, 3)
	mask.Set(0, 0, true)

	out := ResizeStroke(mask, 3, 3)
	assert.True(t, out.Marked(0, 0))
	out.Set(1, 1, true)
	assert.False(t, mask.Marked(1, 1))
}

func TestResizeStrokeEmptySource(t *testing.T) {
	out := ResizeStroke(model.NewStrokeMask(0, 0), 5, 5)
	assert.Equal(t, 0, out.Count())
	assert.Equal(t, 5, out.Width())
}
