package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/guess-game/internal/config"
	"github.com/wfunc/guess-game/internal/game"
)

func TestGameRules(t *testing.T) {
	rules := gameRules(&config.GameConfig{
		RoundDuration:       30 * time.Second,
		AttemptsLimit:       5,
		WinPoints:           20,
		MinPlayers:          2,
		ChatLogLimit:        50,
		PlaceholderQuestion: "wait",
	})

	assert.Equal(t, game.Rules{
		RoundDuration:       30 * time.Second,
		AttemptsLimit:       5,
		WinPoints:           20,
		MinPlayers:          2,
		ChatLogLimit:        50,
		PlaceholderQuestion: "wait",
	}, rules)
}

func TestCORSHandler(t *testing.T) {
	h := corsHandler(&config.CORSConfig{
		AllowedOrigins: []string{"http://example.com"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "X-User-Id"},
	}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/game/sessions/main_session/join", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "X-User-Id")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "http://example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.com")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestGinMode(t *testing.T) {
	assert.Equal(t, gin.ReleaseMode, ginMode("release"))
	assert.Equal(t, gin.TestMode, ginMode("test"))
	assert.Equal(t, gin.DebugMode, ginMode("development"))
}

func TestServer_InitGameAndReload(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	s := NewServer(cfg)
	s.initGame(nil, nil)
	defer func() {
		s.service.Shutdown()
		s.cancel()
	}()

	_, err = s.service.CreateSession(context.Background(), cfg.Game.DefaultSession)
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, s.engine.Rules().RoundDuration)

	updated := *cfg
	updated.Game.RoundDuration = 15 * time.Second
	s.reloadConfig(&updated)
	assert.Equal(t, 15*time.Second, s.engine.Rules().RoundDuration)
}
