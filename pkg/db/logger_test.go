package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm/logger"
)

func TestZapGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewZapGormLogger(zap.New(core), logger.Info, true)

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 2", 0 }, errors.New("boom"))
	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 3", 0 }, logger.ErrRecordNotFound)
	l.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 4", 0 }, nil)

	entries := logs.All()
	require.Len(t, entries, 4)
	require.Equal(t, "gorm.query", entries[0].Message)
	require.Equal(t, zap.ErrorLevel, entries[1].Level)
	require.Equal(t, "gorm.query", entries[2].Message)
	require.Equal(t, "gorm.slow_query", entries[3].Message)
}

func TestZapGormLoggerSilent(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewZapGormLogger(zap.New(core), logger.Info, true).LogMode(logger.Silent)

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, errors.New("boom"))
	l.Error(context.Background(), "ignored %s", "message")

	require.Zero(t, logs.Len())
}
