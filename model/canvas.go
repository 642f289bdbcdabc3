package model

import (
	"encoding/json"
	"fmt"
)

// CanvasObject 画布导出的单个对象
type CanvasObject struct {
	Type string `json:"type"`
	Rect
}

// UnmarshalJSON 嵌入的 Rect 自带 UnmarshalJSON，这里分两次解码以保留 Type
func (o *CanvasObject) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	var r Rect
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	o.Type = head.Type
	o.Rect = r
	return nil
}

// CanvasDrawing 画布 JSON 数据
type CanvasDrawing struct {
	Objects []CanvasObject `json:"objects"`
}

// ParseCanvasDrawing 解析画布 JSON
func ParseCanvasDrawing(data []byte) (*CanvasDrawing, error) {
	var d CanvasDrawing
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: malformed canvas drawing: %v", ErrInvalidLayer, err)
	}
	return &d, nil
}

// Rects 只保留矩形对象，其余类型忽略
func (d *CanvasDrawing) Rects() []Rect {
	rects := make([]Rect, 0, len(d.Objects))
	for _, obj := range d.Objects {
		if obj.Type == "rect" {
			rects = append(rects, obj.Rect)
		}
	}
	return rects
}

// CanvasDrawingFromRects 将矩形列表转换回画布 JSON，用于重新加载初始绘制
func CanvasDrawingFromRects(rects []Rect) *CanvasDrawing {
	d := &CanvasDrawing{Objects: make([]CanvasObject, 0, len(rects))}
	for _, r := range rects {
		d.Objects = append(d.Objects, CanvasObject{Type: "rect", Rect: r})
	}
	return d
}
