package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/huifen-rgb/vibe-coding-remover/model"
	"github.com/huifen-rgb/vibe-coding-remover/service"
	"github.com/huifen-rgb/vibe-coding-remover/utils"
)

const (
	// maxCanvasJSON 画布 JSON 请求体上限
	maxCanvasJSON = 4 << 20
	// maxRasterFactor 笔刷栅格边长最多为预览画布的倍数
	maxRasterFactor = 4
)

// SetLayer 整体覆盖一个图层：exclude/include 接收画布 JSON，refine 接收 multipart 字段 mask
func (h *SessionHandler) SetLayer(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	kind, ok := h.layerKind(c)
	if !ok {
		return
	}

	layer := model.Layer{Kind: kind}
	if kind == model.LayerRefine {
		data, ok := h.readUpload(c, "mask")
		if !ok {
			return
		}
		raster, err := service.DecodeRaster(data, h.rasterLimit(session))
		if err != nil {
			h.badLayer(c, err)
			return
		}
		layer.Stroke = model.StrokeMaskFromCanvas(raster)
	} else {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCanvasJSON))
		if err != nil {
			h.badLayer(c, err)
			return
		}
		drawing, err := model.ParseCanvasDrawing(body)
		if err != nil {
			h.badLayer(c, err)
			return
		}
		layer.Rects = drawing.Rects()
	}

	if err := session.Layers.Set(layer); err != nil {
		h.badLayer(c, err)
		return
	}

	fields := []zap.Field{zap.String("session", session.ID), zap.String("layer", kind.String())}
	if layer.Stroke != nil {
		fields = append(fields, zap.Int("marked", layer.Stroke.Count()))
	} else {
		fields = append(fields, zap.Int("rects", len(layer.Rects)))
	}
	utils.Logger.Debug("layer replaced", fields...)

	c.JSON(http.StatusOK, model.UploadResponse{
		Success: true,
		Message: "图层已更新",
		Data:    session.Info(),
	})
}

// GetLayer 返回图层内容，矩形图层以画布 JSON 返回，笔刷图层以 PNG 返回
func (h *SessionHandler) GetLayer(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	kind, ok := h.layerKind(c)
	if !ok {
		return
	}

	layer, ok := session.Layers.Get(kind)
	if !ok || (kind == model.LayerRefine && layer.Stroke == nil) {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "图层尚未设置",
		})
		return
	}

	if kind == model.LayerRefine {
		h.writePNG(c, layer.Stroke.Alpha(), "")
		return
	}
	c.JSON(http.StatusOK, model.UploadResponse{
		Success: true,
		Message: "查询成功",
		Data:    model.CanvasDrawingFromRects(layer.Rects),
	})
}

// ClearLayers 清空全部图层和合成结果，保留源图
func (h *SessionHandler) ClearLayers(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	session.ResetAll()
	c.JSON(http.StatusOK, model.UploadResponse{
		Success: true,
		Message: "图层已清空",
		Data:    session.Info(),
	})
}

// rasterLimit 已载入源图时按预览尺寸限制笔刷栅格
func (h *SessionHandler) rasterLimit(session *service.Session) service.DecodeLimit {
	limit := service.DecodeLimit{MaxPixels: h.cfg.Upload.MaxPixels}
	if src := session.Source(); src != nil {
		limit.MaxWidth = src.Geometry.DisplayWidth * maxRasterFactor
		limit.MaxHeight = src.Geometry.DisplayHeight * maxRasterFactor
	}
	return limit
}

func (h *SessionHandler) layerKind(c *gin.Context) (model.LayerKind, bool) {
	kind, err := model.ParseLayerKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "未知图层",
			Error:   err.Error(),
		})
		return 0, false
	}
	return kind, true
}

func (h *SessionHandler) badLayer(c *gin.Context, err error) {
	message := "图层数据无效"
	if errors.Is(err, service.ErrDecode) {
		message = "笔刷栅格解码失败"
	}
	c.JSON(http.StatusBadRequest, model.ErrorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
	})
}
