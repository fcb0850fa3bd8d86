package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/wfunc/guess-game/internal/game"
	"github.com/wfunc/guess-game/internal/logger"
	"github.com/wfunc/guess-game/internal/models"
	"gorm.io/gorm"
)

// RoundRepository 回合归档仓储接口
type RoundRepository interface {
	Create(ctx context.Context, record *models.RoundRecord) error
	FindByRoundID(ctx context.Context, roundID string) (*models.RoundRecord, error)
	FindBySessionID(ctx context.Context, sessionID string, p *Pagination) ([]*models.RoundRecord, error)
	GetStatistics(ctx context.Context, sessionID string) (*RoundStatistics, error)
}

// RoundStatistics 回合统计
type RoundStatistics struct {
	SessionID      string        `json:"session_id"`
	TotalRounds    int64         `json:"total_rounds"`
	WinRounds      int64         `json:"win_rounds"`
	TimeoutRounds  int64         `json:"timeout_rounds"`
	WinRate        float64       `json:"win_rate"`
	AverageGuesses float64       `json:"average_guesses"`
	TopWinners     []WinnerCount `json:"top_winners"`
}

// WinnerCount 玩家胜场
type WinnerCount struct {
	WinnerID   string `json:"winner_id"`
	WinnerName string `json:"winner_name"`
	Wins       int64  `json:"wins"`
}

// roundRepo 回合仓储实现
type roundRepo struct {
	*BaseRepo
}

// NewRoundRepository 创建回合仓储
func NewRoundRepository(db *gorm.DB) RoundRepository {
	return &roundRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 创建回合记录
func (r *roundRepo) Create(ctx context.Context, record *models.RoundRecord) error {
	start := time.Now()
	err := r.db.WithContext(ctx).Create(record).Error
	logger.LogDatabaseOperation("create", record.TableName(), time.Since(start), err)
	return err
}

// FindByRoundID 根据回合ID查找
func (r *roundRepo) FindByRoundID(ctx context.Context, roundID string) (*models.RoundRecord, error) {
	var record models.RoundRecord
	err := r.db.WithContext(ctx).Where("round_id = ?", roundID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindBySessionID 查询会话的回合记录（最新在前）
func (r *roundRepo) FindBySessionID(ctx context.Context, sessionID string, p *Pagination) ([]*models.RoundRecord, error) {
	var records []*models.RoundRecord
	scoped := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.RoundRecord{}).Where("session_id = ?", sessionID)
	}

	query := scoped()
	if p != nil {
		if err := scoped().Count(&p.Total).Error; err != nil {
			return nil, err
		}
		query = query.Scopes(Paginate(p))
	}

	err := query.Order("round DESC").Find(&records).Error
	return records, err
}

// GetStatistics 获取会话统计
func (r *roundRepo) GetStatistics(ctx context.Context, sessionID string) (*RoundStatistics, error) {
	stats := &RoundStatistics{SessionID: sessionID, TopWinners: []WinnerCount{}}

	var agg struct {
		Total   int64
		Wins    int64
		Guesses float64
	}
	err := r.db.WithContext(ctx).Model(&models.RoundRecord{}).
		Select("COUNT(*) AS total, "+
			"COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0) AS wins, "+
			"COALESCE(AVG(guesses), 0) AS guesses", models.RoundOutcomeWin).
		Where("session_id = ?", sessionID).
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}

	stats.TotalRounds = agg.Total
	stats.WinRounds = agg.Wins
	stats.TimeoutRounds = agg.Total - agg.Wins
	stats.AverageGuesses = agg.Guesses
	if agg.Total > 0 {
		stats.WinRate = float64(agg.Wins) / float64(agg.Total)
	}

	err = r.db.WithContext(ctx).Model(&models.RoundRecord{}).
		Select("winner_id, MAX(winner_name) AS winner_name, COUNT(*) AS wins").
		Where("session_id = ? AND outcome = ?", sessionID, models.RoundOutcomeWin).
		Group("winner_id").
		Order("wins DESC, winner_id ASC").
		Limit(10).
		Scan(&stats.TopWinners).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// RoundArchive 将回合结果写入仓储
type RoundArchive struct {
	repo RoundRepository
}

// NewRoundArchive 创建回合归档
func NewRoundArchive(repo RoundRepository) *RoundArchive {
	return &RoundArchive{repo: repo}
}

// RecordRound 实现 game.RoundRecorder
func (a *RoundArchive) RecordRound(ctx context.Context, o *game.RoundOutcome) error {
	return a.repo.Create(ctx, RecordFromOutcome(o))
}

// RecordFromOutcome 回合结果转换为记录
func RecordFromOutcome(o *game.RoundOutcome) *models.RoundRecord {
	return &models.RoundRecord{
		RoundID:          fmt.Sprintf("%s-%d-%d", o.SessionID, o.Round, o.EndedAt.UnixNano()),
		SessionID:        o.SessionID,
		Round:            o.Round,
		Question:         o.Question,
		Answer:           o.Answer,
		Outcome:          string(o.Outcome),
		WinnerID:         o.WinnerID,
		WinnerName:       o.WinnerName,
		GameMasterID:     o.GameMasterID,
		NextGameMasterID: o.NextGameMasterID,
		Guesses:          o.Guesses,
		StartedAt:        o.StartedAt,
		EndedAt:          o.EndedAt,
	}
}
