package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wfunc/guess-game/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 创建内存测试数据库
func TestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// 内存库每个连接独立，限制为单连接
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.RoundRecord{}))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateTestRound 构造测试回合记录
func CreateTestRound(sessionID string, round int, outcome, winnerID string, guesses int) *models.RoundRecord {
	started := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(round) * time.Minute)
	return &models.RoundRecord{
		RoundID:      fmt.Sprintf("%s-%d", sessionID, round),
		SessionID:    sessionID,
		Round:        round,
		Question:     "2+2",
		Answer:       "4",
		Outcome:      outcome,
		WinnerID:     winnerID,
		WinnerName:   winnerID,
		GameMasterID: "gm",
		Guesses:      guesses,
		StartedAt:    started,
		EndedAt:      started.Add(20 * time.Second),
	}
}
