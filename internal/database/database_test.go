package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/guess-game/internal/config"
	"github.com/wfunc/guess-game/internal/models"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func sqliteConfig(dsn string) *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Enabled:         true,
		Driver:          "sqlite",
		DSN:             dsn,
		MaxIdleConns:    1,
		MaxOpenConns:    1,
		ConnMaxLifetime: time.Hour,
		LogLevel:        "silent",
	}
}

func TestOpen_SQLiteFile(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "rounds.db")

	db, err := Open(sqliteConfig(dsn))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	assert.FileExists(t, dsn)
	assert.NotEmpty(t, sqlitePath(db))

	require.NoError(t, AutoMigrate(db))
	assert.True(t, db.Migrator().HasTable(&models.RoundRecord{}))
	// 迁移锁已释放
	assert.NoFileExists(t, dsn+".migration.lock")

	record := &models.RoundRecord{RoundID: "r1", SessionID: "s1", Round: 1, Outcome: models.RoundOutcomeTimeout}
	require.NoError(t, db.WithContext(context.Background()).Create(record).Error)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	cfg := sqliteConfig("")
	cfg.Driver = "oracle"
	_, err := Open(cfg)
	assert.Error(t, err)
}

func TestAutoMigrate_NilDB(t *testing.T) {
	assert.Error(t, AutoMigrate(nil))
}

func TestMigrationLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.db")

	lock, err := acquireMigrationLock(path)
	require.NoError(t, err)
	assert.FileExists(t, path+".migration.lock")

	releaseMigrationLock(lock)
	assert.NoFileExists(t, path+".migration.lock")
	releaseMigrationLock(nil)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, parseLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, parseLogLevel("error"))
	assert.Equal(t, gormlogger.Info, parseLogLevel("info"))
	assert.Equal(t, gormlogger.Warn, parseLogLevel(""))
}

func TestGormLogger_LogModeCopies(t *testing.T) {
	l := NewGormLogger(zap.NewNop(), gormlogger.Warn)
	silent := l.LogMode(gormlogger.Silent)

	assert.Equal(t, gormlogger.Warn, l.logLevel)
	assert.Equal(t, gormlogger.Silent, silent.(*GormLogger).logLevel)
}

func TestIsConnected_WithoutInit(t *testing.T) {
	saved := DB
	DB = nil
	defer func() { DB = saved }()

	assert.False(t, IsConnected())
	assert.NoError(t, Close())
}
