package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 全局日志，InitLogger 之前丢弃所有输出，测试无需初始化
var Logger = zap.NewNop()

// InitLogger 按运行模式构建日志：release 输出 JSON，其余模式输出带颜色的控制台格式
func InitLogger(mode string) error {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if mode == "release" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build(zap.Fields(zap.String("app", "matte")))
	if err != nil {
		return err
	}
	Logger = logger.Named(mode)
	return nil
}

// Sync 刷新缓冲的日志，退出前调用
func Sync() {
	_ = Logger.Sync()
}
