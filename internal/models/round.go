package models

import (
	"time"
)

// 回合结果
const (
	RoundOutcomeWin     = "win"
	RoundOutcomeTimeout = "timeout"
)

// RoundRecord 回合归档记录
type RoundRecord struct {
	BaseModel
	RoundID          string    `gorm:"uniqueIndex;size:64;not null" json:"round_id"`
	SessionID        string    `gorm:"index;size:64;not null" json:"session_id"`
	Round            int       `gorm:"not null" json:"round"`
	Question         string    `gorm:"size:500" json:"question"`
	Answer           string    `gorm:"size:255" json:"answer"`
	Outcome          string    `gorm:"size:20;not null" json:"outcome"` // win, timeout
	WinnerID         string    `gorm:"size:64;index" json:"winner_id,omitempty"`
	WinnerName       string    `gorm:"size:100" json:"winner_name,omitempty"`
	GameMasterID     string    `gorm:"size:64" json:"game_master_id"`
	NextGameMasterID string    `gorm:"size:64" json:"next_game_master_id"`
	Guesses          int       `gorm:"default:0" json:"guesses"`
	StartedAt        time.Time `json:"started_at"`
	EndedAt          time.Time `json:"ended_at"`
}

// TableName 表名
func (RoundRecord) TableName() string {
	return "round_records"
}

// Duration 回合时长
func (r *RoundRecord) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// IsWin 是否猜中
func (r *RoundRecord) IsWin() bool {
	return r.Outcome == RoundOutcomeWin
}
