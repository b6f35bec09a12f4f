package sentry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/d60-Lab/free99/config"
	"github.com/d60-Lab/free99/pkg/logger"
)

// Init 初始化 sentry；DSN 为空时不启用并返回 false
func Init(cfg config.SentryConfig) (bool, error) {
	if cfg.DSN == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		SampleRate:       cfg.SampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return false, fmt.Errorf("sentry init: %w", err)
	}
	logger.Info("sentry enabled", zap.String("environment", cfg.Environment))
	return true, nil
}

// Flush 退出前等待事件发送完成
func Flush() {
	if !sentry.Flush(2 * time.Second) {
		logger.Warn("sentry flush timed out")
	}
}
