package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/huifen-rgb/vibe-coding-remover/config"
	"github.com/huifen-rgb/vibe-coding-remover/model"
	"github.com/huifen-rgb/vibe-coding-remover/utils"
)

// CachedResult 缓存中的合成结果
type CachedResult struct {
	Result model.CompositeResult `json:"result"`
	PNG    []byte                `json:"png"`
}

// ResultCache 合成结果缓存，未命中时返回 (nil, nil)
type ResultCache interface {
	GetResult(ctx context.Context, key string) (*CachedResult, error)
	SetResult(ctx context.Context, key string, result *CachedResult) error
}

var _ ResultCache = (*RedisService)(nil)

type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisService(cfg *config.RedisConfig) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisService{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// ResultKey 缓存键：源图指纹、预览尺寸与图层摘要，预览尺寸决定矩形的缩放系数
func ResultKey(fingerprint string, g Geometry, digest string) string {
	return fmt.Sprintf("matte:%s:%dx%d:%s", fingerprint, g.DisplayWidth, g.DisplayHeight, digest)
}

// GetResult 从缓存获取合成结果
func (s *RedisService) GetResult(ctx context.Context, key string) (*CachedResult, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // 缓存未命中
		}
		return nil, err
	}

	var result CachedResult
	if err := json.Unmarshal(data, &result); err != nil {
		utils.Logger.Error("failed to unmarshal cached result",
			zap.String("key", key), zap.Error(err))
		return nil, err
	}

	return &result, nil
}

// SetResult 写入合成结果
func (s *RedisService) SetResult(ctx context.Context, key string, result *CachedResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, key, data, s.ttl).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
