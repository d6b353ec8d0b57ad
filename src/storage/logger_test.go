package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 4, 15, 8, 30, 0, 0, time.UTC)
}

func TestLogFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf)
	logger.now = fixedClock

	logger.Info("数据集加载完成")
	logger.Error("boom")

	assert.Equal(t,
		"[2024-04-15 08:30:00] INFO: 数据集加载完成\n[2024-04-15 08:30:00] ERROR: boom\n",
		buf.String())
}

func TestSubscribeReceivesEntries(t *testing.T) {
	logger := NewWriterLogger(&bytes.Buffer{})
	sub := logger.Subscribe()

	logger.Warning("slow request")

	select {
	case entry := <-sub:
		assert.Contains(t, entry, "WARNING: slow request")
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive log entry")
	}

	logger.Unsubscribe(sub)
	_, ok := <-sub
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// 取消订阅后继续写日志不应阻塞或 panic
	logger.Info("after unsubscribe")
}

func TestFullSubscriberDoesNotBlock(t *testing.T) {
	logger := NewWriterLogger(&bytes.Buffer{})
	_ = logger.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			logger.Debug("flood")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("logging blocked on a full subscriber")
	}
}

func TestCheckRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	logger, err := NewLogger(path)
	require.NoError(t, err)
	defer logger.Close()
	logger.now = fixedClock

	logger.Info(strings.Repeat("x", 64))

	rotated, err := logger.CheckRotate("1024")
	require.NoError(t, err)
	assert.False(t, rotated)

	rotated, err = logger.CheckRotate("2 * 16")
	require.NoError(t, err)
	assert.True(t, rotated)

	_, err = os.Stat(filepath.Join(dir, "app.20240415083000.log"))
	assert.NoError(t, err)

	logger.Info("fresh")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[2024-04-15 08:30:00] INFO: fresh\n", string(data))
}

func TestEval(t *testing.T) {
	assert.Equal(t, int64(10*1024*1024), eval("10 * 1024 * 1024"))
	assert.Equal(t, int64(512), eval("512"))
	assert.Equal(t, int64(0), eval("ten"))
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "FATAL", FATAL.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}
