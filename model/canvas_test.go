package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const canvasJSON = `{
  "version": "4.4.0",
  "objects": [
    {"type": "rect", "left": 100, "top": 100, "width": 200, "height": 200, "scaleX": 1, "scaleY": 1, "fill": "rgba(255, 0, 255, 0.3)"},
    {"type": "path", "left": 3, "top": 4, "path": [["M", 1, 2]]},
    {"type": "rect", "left": 10, "top": 20, "width": 30, "height": 40, "scaleX": 2, "scaleY": 0.5}
  ],
  "background": ""
}`

func TestParseCanvasDrawingKeepsOnlyRects(t *testing.T) {
	d, err := ParseCanvasDrawing([]byte(canvasJSON))
	require.NoError(t, err)
	require.Len(t, d.Objects, 3)

	rects := d.Rects()
	require.Len(t, rects, 2)
	assert.Equal(t, Rect{Left: 100, Top: 100, Width: 200, Height: 200, ScaleX: 1, ScaleY: 1}, rects[0])
	assert.Equal(t, 60.0, rects[1].EffectiveWidth())
	assert.Equal(t, 20.0, rects[1].EffectiveHeight())
}

func TestParseCanvasDrawingMalformed(t *testing.T) {
	_, err := ParseCanvasDrawing([]byte(`{"objects": [`))
	assert.ErrorIs(t, err, ErrInvalidLayer)
}

func TestParseCanvasDrawingEmpty(t *testing.T) {
	d, err := ParseCanvasDrawing([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, d.Rects())
	assert.NotNil(t, d.Rects())
}

func TestCanvasDrawingFromRectsRoundTrip(t *testing.T) {
	rects := []Rect{{Left: 1, Top: 2, Width: 3, Height: 4, ScaleX: 1, ScaleY: 2}}
	data, err := json.Marshal(CanvasDrawingFromRects(rects))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"rect"`)

	d, err := ParseCanvasDrawing(data)
	require.NoError(t, err)
	assert.Equal(t, rects, d.Rects())
}
