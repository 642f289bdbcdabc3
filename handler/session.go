package handler

import (
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/huifen-rgb/vibe-coding-remover/config"
	"github.com/huifen-rgb/vibe-coding-remover/model"
	"github.com/huifen-rgb/vibe-coding-remover/service"
	"github.com/huifen-rgb/vibe-coding-remover/utils"
)

type SessionHandler struct {
	cfg   *config.Config
	store *service.SessionStore
	matte *service.MatteService
}

func NewSessionHandler(cfg *config.Config, store *service.SessionStore, matte *service.MatteService) *SessionHandler {
	return &SessionHandler{
		cfg:   cfg,
		store: store,
		matte: matte,
	}
}

// Create 上传图片并创建会话
func (h *SessionHandler) Create(c *gin.Context) {
	src, ok := h.readImage(c)
	if !ok {
		return
	}

	session, err := h.store.Create()
	if err != nil {
		utils.Logger.Warn("failed to create session", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{
			Success: false,
			Message: "会话数量已达上限",
			Error:   err.Error(),
		})
		return
	}
	session.Load(src)

	utils.Logger.Info("session created",
		zap.String("session", session.ID),
		zap.String("fingerprint", src.Fingerprint),
		zap.Int("width", src.Geometry.OrigWidth),
		zap.Int("height", src.Geometry.OrigHeight))

	c.JSON(http.StatusCreated, model.UploadResponse{
		Success: true,
		Message: "上传成功",
		Data:    session.Info(),
	})
}

// LoadImage 向已有会话载入图片，内容变化时清空全部图层
func (h *SessionHandler) LoadImage(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	src, ok := h.readImage(c)
	if !ok {
		return
	}

	message := "图片未变化"
	if session.Load(src) {
		message = "检测到新图片，图层已重置"
	}

	c.JSON(http.StatusOK, model.UploadResponse{
		Success: true,
		Message: message,
		Data:    session.Info(),
	})
}

// Get 查询会话状态
func (h *SessionHandler) Get(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, model.UploadResponse{
		Success: true,
		Message: "查询成功",
		Data:    session.Info(),
	})
}

// Delete 删除会话
func (h *SessionHandler) Delete(c *gin.Context) {
	if !h.store.Delete(c.Param("id")) {
		h.notFound(c, service.ErrSessionNotFound)
		return
	}
	c.JSON(http.StatusOK, model.UploadResponse{Success: true, Message: "会话已删除"})
}

// Preview 返回缩放后的预览图，overlay=true 时叠加已设置的挖除框与保留框
func (h *SessionHandler) Preview(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	src := session.Source()
	if src == nil {
		h.notFound(c, service.ErrNoImage)
		return
	}

	overlay, err := strconv.ParseBool(c.DefaultQuery("overlay", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "overlay 参数无效",
			Error:   err.Error(),
		})
		return
	}
	if !overlay {
		h.writePNG(c, src.Display, "")
		return
	}

	snap := session.Layers.Snapshot()
	h.writePNG(c, service.AnnotatePreview(src.Display, snap.Exclude, snap.Include), "")
}

// Composite 执行合成
func (h *SessionHandler) Composite(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	p, err := h.matte.Composite(c.Request.Context(), session)
	if err != nil {
		status := http.StatusInternalServerError
		message := "合成失败"
		switch {
		case errors.Is(err, service.ErrNoImage):
			status, message = http.StatusConflict, "请先上传图片"
		case errors.Is(err, service.ErrQueueFull):
			status, message = http.StatusServiceUnavailable, "处理队列已满，请稍后重试"
		}
		c.JSON(status, model.ErrorResponse{
			Success: false,
			Message: message,
			Error:   err.Error(),
		})
		return
	}

	result := p.Result
	result.DownloadURL = fmt.Sprintf("/api/v1/sessions/%s/result", session.ID)

	message := "合成完成"
	if len(result.Warnings) > 0 {
		message = "合成完成（有警告）"
	}
	c.JSON(http.StatusOK, model.UploadResponse{
		Success: true,
		Message: message,
		Data:    result,
	})
}

// Result 下载最近一次合成结果
func (h *SessionHandler) Result(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	p := session.Processed()
	if p == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "尚未生成合成结果",
		})
		return
	}
	h.writePNG(c, p.Image, "result.png")
}

func (h *SessionHandler) session(c *gin.Context) (*service.Session, bool) {
	session, err := h.store.Get(c.Param("id"))
	if err != nil {
		h.notFound(c, err)
		return nil, false
	}
	return session, true
}

func (h *SessionHandler) notFound(c *gin.Context, err error) {
	message := "会话不存在或已过期"
	if errors.Is(err, service.ErrNoImage) {
		message = "请先上传图片"
	}
	c.JSON(http.StatusNotFound, model.ErrorResponse{
		Success: false,
		Message: message,
		Error:   err.Error(),
	})
}

// readImage 读取并解码 multipart 字段 image，失败时已写出响应
func (h *SessionHandler) readImage(c *gin.Context) (*service.Source, bool) {
	data, ok := h.readUpload(c, "image")
	if !ok {
		return nil, false
	}

	contentType := service.SniffMIME(data)
	if !h.isAllowedType(contentType) {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "不支持的文件类型",
			Error:   contentType,
		})
		return nil, false
	}

	src, err := service.LoadImage(data, h.cfg.Matte.DisplayWidth, service.DecodeLimit{MaxPixels: h.cfg.Upload.MaxPixels})
	if err != nil {
		utils.Logger.Warn("failed to decode upload", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "图片解码失败",
			Error:   err.Error(),
		})
		return nil, false
	}
	return src, true
}

func (h *SessionHandler) readUpload(c *gin.Context, field string) ([]byte, bool) {
	file, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("请上传文件字段 %s", field),
			Error:   err.Error(),
		})
		return nil, false
	}

	if file.Size > h.cfg.Upload.MaxSize {
		c.JSON(http.StatusRequestEntityTooLarge, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("文件大小超过限制 (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)),
		})
		return nil, false
	}

	f, err := file.Open()
	if err != nil {
		utils.Logger.Error("failed to open uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "读取文件失败",
			Error:   err.Error(),
		})
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.cfg.Upload.MaxSize+1))
	if err != nil {
		utils.Logger.Error("failed to read uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "读取文件失败",
			Error:   err.Error(),
		})
		return nil, false
	}
	return data, true
}

// writePNG filename 非空时作为附件下载
func (h *SessionHandler) writePNG(c *gin.Context, img image.Image, filename string) {
	data, err := service.ExportPNG(img)
	if err != nil {
		utils.Logger.Error("failed to encode png", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "图片编码失败",
			Error:   err.Error(),
		})
		return
	}
	if filename != "" {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	c.Data(http.StatusOK, "image/png", data)
}

func (h *SessionHandler) isAllowedType(contentType string) bool {
	if contentType == "" {
		return false
	}
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}
