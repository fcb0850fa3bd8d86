package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wfunc/guess-game/internal/config"
	"go.uber.org/zap/zapcore"
)

// 测试日志级别解析
func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("unknown"))
}

// 测试动态调整级别
func TestSetLevel(t *testing.T) {
	SetLevel("debug")
	assert.Equal(t, zapcore.DebugLevel, Level())

	SetLevel("error")
	assert.Equal(t, zapcore.ErrorLevel, Level())

	SetLevel("info")
}

// 测试文件输出与模块日志器
func TestBuildWithFileOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := testLogConfig(dir)

	built, modules, err := build(cfg)
	assert.NoError(t, err)
	assert.NotNil(t, built)
	assert.Contains(t, modules, ModuleGame)

	built.Info("hello")
	assert.FileExists(t, dir+"/test.log")
}

// 测试未初始化时的模块日志器回退
func TestGetModuleLoggerFallback(t *testing.T) {
	assert.NotNil(t, GetModuleLogger("missing"))
}

func testLogConfig(dir string) *config.LogConfig {
	return &config.LogConfig{
		Level:  "info",
		Format: "json",
		Output: "file",
		File: config.LogFileConfig{
			Path:       dir,
			Filename:   "test.log",
			MaxSize:    1,
			MaxAge:     1,
			MaxBackups: 1,
		},
		Modules: map[string]string{ModuleGame: "debug"},
	}
}
