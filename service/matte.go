package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	"go.uber.org/zap"

	"github.com/huifen-rgb/vibe-coding-remover/config"
	"github.com/huifen-rgb/vibe-coding-remover/model"
	"github.com/huifen-rgb/vibe-coding-remover/utils"
)

var (
	ErrQueueFull       = errors.New("processing queue is full, try again later")
	ErrCompositeFailed = errors.New("composite failed")
)

// MatteService 负责执行合成并维护会话的结果缓存
type MatteService struct {
	semaphore     chan struct{}
	queueTimeout  time.Duration
	cache         ResultCache
	maskProcessor *MaskProcessor

	// composite 可在测试中替换
	composite func(CompositeInput) (*image.NRGBA, []model.Warning, error)
}

// NewMatteService cache 可为 nil，表示不使用缓存
func NewMatteService(cfg *config.MatteConfig, cache ResultCache) *MatteService {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &MatteService{
		semaphore:     make(chan struct{}, maxConcurrent),
		queueTimeout:  time.Duration(cfg.QueueTimeout) * time.Second,
		cache:         cache,
		maskProcessor: NewMaskProcessor(),
		composite:     Composite,
	}
}

// Composite 对会话执行一次合成；失败时会话的图层与上一次结果保持不变
func (s *MatteService) Composite(ctx context.Context, session *Session) (*Processed, error) {
	src := session.Source()
	if src == nil {
		return nil, ErrNoImage
	}

	if s.queueTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.queueTimeout)
		defer cancel()
	}

	select {
	case s.semaphore <- struct{}{}:
		defer func() { <-s.semaphore }()
	case <-ctx.Done():
		return nil, ErrQueueFull
	}

	startTime := time.Now()
	snap := session.Layers.Snapshot()
	digest := snap.Digest()

	utils.Logger.Info("compositing",
		zap.String("session", session.ID),
		zap.String("fingerprint", src.Fingerprint),
		zap.String("digest", digest),
		zap.Int("exclude", len(snap.Exclude)),
		zap.Int("include", len(snap.Include)),
		zap.Bool("refine", snap.Refine != nil))

	cacheKey := ResultKey(src.Fingerprint, src.Geometry, digest)
	if p := s.fromCache(ctx, cacheKey); p != nil {
		if !session.storeProcessed(src.Fingerprint, p) {
			return nil, s.sourceChanged(session)
		}
		utils.Logger.Info("cache hit", zap.String("session", session.ID), zap.String("digest", digest))
		return p, nil
	}

	out, warnings, err := s.run(CompositeInput{
		Original: src.Original,
		Geometry: src.Geometry,
		Exclude:  snap.Exclude,
		Include:  snap.Include,
		Refine:   snap.Refine,
	})
	if err != nil {
		utils.Logger.Error("composite failed",
			zap.String("session", session.ID), zap.Error(err))
		return nil, err
	}

	for _, w := range warnings {
		utils.Logger.Warn("composite warning",
			zap.String("session", session.ID),
			zap.String("code", w.Code),
			zap.String("message", w.Message))
	}

	stats, err := s.maskProcessor.Analyze(AlphaChannel(out))
	if err != nil {
		utils.Logger.Warn("failed to analyze mask", zap.Error(err))
	}

	p := &Processed{
		Image: out,
		Result: model.CompositeResult{
			Width:      out.Rect.Dx(),
			Height:     out.Rect.Dy(),
			Foreground: stats.Foreground,
			Coverage:   stats.Coverage,
			Warnings:   warnings,
			Digest:     digest,
			Timestamp:  time.Now().Unix(),
		},
	}

	if !session.storeProcessed(src.Fingerprint, p) {
		return nil, s.sourceChanged(session)
	}

	s.toCache(ctx, cacheKey, p)

	utils.Logger.Info("composite finished",
		zap.String("session", session.ID),
		zap.Duration("duration", time.Since(startTime)),
		zap.Float64("coverage", stats.Coverage))

	return p, nil
}

// run 捕获合成中的 panic，转换为错误
func (s *MatteService) run(in CompositeInput) (out *image.NRGBA, warnings []model.Warning, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, warnings = nil, nil
			err = fmt.Errorf("%w: %v", ErrCompositeFailed, r)
		}
	}()
	return s.composite(in)
}

// sourceChanged 合成期间会话载入了新图片，结果作废
func (s *MatteService) sourceChanged(session *Session) error {
	utils.Logger.Warn("source image changed during composite, result discarded",
		zap.String("session", session.ID))
	return fmt.Errorf("%w: source image changed during run", ErrCompositeFailed)
}

func (s *MatteService) fromCache(ctx context.Context, key string) *Processed {
	if s.cache == nil {
		return nil
	}
	cached, err := s.cache.GetResult(ctx, key)
	if err != nil {
		utils.Logger.Warn("failed to get cache", zap.Error(err))
		return nil
	}
	if cached == nil {
		return nil
	}

	img, err := png.Decode(bytes.NewReader(cached.PNG))
	if err != nil {
		utils.Logger.Warn("cached result is not a valid png", zap.Error(err))
		return nil
	}
	result := cached.Result
	result.Cached = true
	return &Processed{Image: toNRGBA(img), Result: result}
}

func (s *MatteService) toCache(ctx context.Context, key string, p *Processed) {
	if s.cache == nil {
		return
	}
	data, err := ExportPNG(p.Image)
	if err != nil {
		utils.Logger.Warn("failed to encode result for cache", zap.Error(err))
		return
	}
	if err := s.cache.SetResult(ctx, key, &CachedResult{Result: p.Result, PNG: data}); err != nil {
		utils.Logger.Warn("failed to set cache", zap.Error(err))
	}
}
