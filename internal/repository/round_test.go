package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/guess-game/internal/game"
	"github.com/wfunc/guess-game/internal/models"
)

func TestRoundRepository_Create(t *testing.T) {
	db := TestDB(t)
	repo := NewRoundRepository(db)
	ctx := context.Background()

	record := CreateTestRound("s1", 1, models.RoundOutcomeWin, "B", 3)
	require.NoError(t, repo.Create(ctx, record))
	assert.NotZero(t, record.ID)

	found, err := repo.FindByRoundID(ctx, record.RoundID)
	require.NoError(t, err)
	assert.Equal(t, "B", found.WinnerID)
	assert.True(t, found.IsWin())
	assert.Equal(t, 20*time.Second, found.Duration())

	// 回合ID唯一
	dup := CreateTestRound("s1", 1, models.RoundOutcomeWin, "B", 3)
	assert.Error(t, repo.Create(ctx, dup))
}

func TestRoundRepository_FindBySessionID(t *testing.T) {
	db := TestDB(t)
	repo := NewRoundRepository(db)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, repo.Create(ctx, CreateTestRound("s1", i, models.RoundOutcomeTimeout, "", 0)))
	}
	require.NoError(t, repo.Create(ctx, CreateTestRound("s2", 1, models.RoundOutcomeTimeout, "", 0)))

	p := NewPagination(1, 2)
	records, err := repo.FindBySessionID(ctx, "s1", p)
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Total)
	assert.Equal(t, 3, p.TotalPages())
	assert.True(t, p.HasMore())
	require.Len(t, records, 2)
	assert.Equal(t, 5, records[0].Round)
	assert.Equal(t, 4, records[1].Round)

	p = NewPagination(3, 2)
	records, err = repo.FindBySessionID(ctx, "s1", p)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].Round)
	assert.False(t, p.HasMore())

	all, err := repo.FindBySessionID(ctx, "s1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestRoundRepository_GetStatistics(t *testing.T) {
	db := TestDB(t)
	repo := NewRoundRepository(db)
	ctx := context.Background()

	rounds := []*models.RoundRecord{
		CreateTestRound("s1", 1, models.RoundOutcomeWin, "B", 2),
		CreateTestRound("s1", 2, models.RoundOutcomeWin, "C", 4),
		CreateTestRound("s1", 3, models.RoundOutcomeWin, "B", 6),
		CreateTestRound("s1", 4, models.RoundOutcomeTimeout, "", 8),
	}
	for _, r := range rounds {
		require.NoError(t, repo.Create(ctx, r))
	}

	stats, err := repo.GetStatistics(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalRounds)
	assert.Equal(t, int64(3), stats.WinRounds)
	assert.Equal(t, int64(1), stats.TimeoutRounds)
	assert.InDelta(t, 0.75, stats.WinRate, 0.0001)
	assert.InDelta(t, 5.0, stats.AverageGuesses, 0.0001)
	require.Len(t, stats.TopWinners, 2)
	assert.Equal(t, WinnerCount{WinnerID: "B", WinnerName: "B", Wins: 2}, stats.TopWinners[0])

	empty, err := repo.GetStatistics(ctx, "none")
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.TotalRounds)
	assert.Zero(t, empty.WinRate)
	assert.Empty(t, empty.TopWinners)
}

func TestRoundArchive_RecordRound(t *testing.T) {
	db := TestDB(t)
	repo := NewRoundRepository(db)
	archive := NewRoundArchive(repo)
	ctx := context.Background()

	started := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	outcome := &game.RoundOutcome{
		SessionID:        "main_session",
		Round:            1,
		Question:         "2+2",
		Answer:           "4",
		Outcome:          game.OutcomeWin,
		WinnerID:         "B",
		WinnerName:       "Bob",
		GameMasterID:     "A",
		NextGameMasterID: "B",
		Guesses:          2,
		StartedAt:        started,
		EndedAt:          started.Add(15 * time.Second),
	}
	require.NoError(t, archive.RecordRound(ctx, outcome))

	records, err := repo.FindBySessionID(ctx, "main_session", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Bob", records[0].WinnerName)
	assert.Equal(t, models.RoundOutcomeWin, records[0].Outcome)
	assert.Equal(t, "B", records[0].NextGameMasterID)
	assert.Equal(t, 15*time.Second, records[0].Duration())
}
