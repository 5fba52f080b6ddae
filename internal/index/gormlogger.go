package index

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm/logger"
)

// hclogAdapter adapts hclog.Logger to gorm's logger.Interface so metadata
// database queries flow through the same structured logger as everything
// else in the pipeline.
type hclogAdapter struct {
	logger hclog.Logger
	level  logger.LogLevel
}

func newGormLogger(log hclog.Logger) logger.Interface {
	return &hclogAdapter{logger: log, level: logger.Warn}
}

func (g *hclogAdapter) LogMode(level logger.LogLevel) logger.Interface {
	return &hclogAdapter{logger: g.logger, level: level}
}

func (g *hclogAdapter) Info(ctx context.Context, msg string, data ...interface{}) {
	if g.level >= logger.Info {
		g.logger.Info(msg, data...)
	}
}

func (g *hclogAdapter) Warn(ctx context.Context, msg string, data ...interface{}) {
	if g.level >= logger.Warn {
		g.logger.Warn(msg, data...)
	}
}

func (g *hclogAdapter) Error(ctx context.Context, msg string, data ...interface{}) {
	if g.level >= logger.Error {
		g.logger.Error(msg, data...)
	}
}

func (g *hclogAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	if err != nil && g.level >= logger.Error {
		g.logger.Error("metadata db query failed", "error", err, "elapsed", elapsed, "rows", rows, "sql", sql)
		return
	}
	if g.level >= logger.Info {
		g.logger.Debug("metadata db query", "elapsed", elapsed, "rows", rows, "sql", sql)
	}
}
