package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/game"
	"github.com/wfunc/guess-game/internal/middleware"
	"github.com/wfunc/guess-game/internal/models"
	"github.com/wfunc/guess-game/internal/repository"
	"github.com/wfunc/guess-game/internal/utils"
	ws "github.com/wfunc/guess-game/internal/websocket"
	"go.uber.org/zap"
)

const mainSession = "main_session"

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFixture struct {
	router  *Router
	service *game.GameService
	hub     *ws.Hub
	tokens  *utils.JWTManager
}

func newAPIFixture(t *testing.T, rounds repository.RoundRepository) *apiFixture {
	t.Helper()
	nop := zap.NewNop()

	hub := ws.NewHub(nop)
	var recorder game.RoundRecorder
	if rounds != nil {
		recorder = repository.NewRoundArchive(rounds)
	}
	svc := game.NewGameService(&game.ServiceConfig{Broadcaster: hub, Recorder: recorder, Logger: nop})
	ws.NewGameMessageHandler(hub, svc, nop)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	_, err := svc.CreateSession(context.Background(), mainSession)
	require.NoError(t, err)

	tokens := utils.NewJWTManager("test-secret", time.Hour)
	router := NewRouter(&RouterConfig{
		Service:        svc,
		Rounds:         rounds,
		Hub:            hub,
		Tokens:         tokens,
		DefaultUserID:  "user_mock_123",
		DefaultSession: mainSession,
		Logger:         nop,
	})

	t.Cleanup(func() {
		svc.Shutdown()
		cancel()
	})
	return &apiFixture{router: router, service: svc, hub: hub, tokens: tokens}
}

// do 发送请求，user 非空时设置 X-User-Id
func (f *apiFixture) do(t *testing.T, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewBuffer(raw)
	} else {
		buf = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(middleware.HeaderUserID, user)
	}
	w := httptest.NewRecorder()
	f.router.GetEngine().ServeHTTP(w, req)
	return w
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) SessionResponse {
	t.Helper()
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func sessionPath(parts ...string) string {
	return "/api/v1/game/sessions/" + mainSession + strings.Join(parts, "")
}

// setupLobby A、B、C 加入，A 出题
func (f *apiFixture) setupLobby(t *testing.T) {
	t.Helper()
	for _, id := range []string{"A", "B", "C"} {
		w := f.do(t, http.MethodPost, sessionPath("/join"), id, JoinRequest{PlayerName: id})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w := f.do(t, http.MethodPost, sessionPath("/question"), "A", QuestionRequest{Question: "2+2", Answer: "4"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRouter_Health(t *testing.T) {
	f := newAPIFixture(t, nil)
	w := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "API is running.", w.Body.String())
}

func TestRouter_NoRoute(t *testing.T) {
	f := newAPIFixture(t, nil)
	w := f.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.ErrNotFound, decodeError(t, w).Code)
}

func TestGameHandler_GetSession(t *testing.T) {
	f := newAPIFixture(t, nil)

	w := f.do(t, http.MethodGet, sessionPath(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view game.SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, game.StatusLobby, view.Status)
	assert.Equal(t, "Waiting for GM to set a question.", view.Question)

	w = f.do(t, http.MethodGet, "/api/v1/game/sessions/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeError(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, apperrors.ErrSessionNotFound, resp.Code)
}

func TestGameHandler_CreateSession(t *testing.T) {
	f := newAPIFixture(t, nil)

	w := f.do(t, http.MethodPost, "/api/v1/game/sessions", "", CreateSessionRequest{SessionID: "room2"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "room2", decodeSession(t, w).Session.SessionID)

	w = f.do(t, http.MethodPost, "/api/v1/game/sessions", "", CreateSessionRequest{SessionID: "room2"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.ErrSessionExists, decodeError(t, w).Code)

	// 空请求体生成会话ID
	w = f.do(t, http.MethodPost, "/api/v1/game/sessions", "", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, decodeSession(t, w).Session.SessionID)
}

func TestGameHandler_Join(t *testing.T) {
	f := newAPIFixture(t, nil)

	w := f.do(t, http.MethodPost, sessionPath("/join"), "A", JoinRequest{PlayerName: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Player name required.", decodeError(t, w).Error)

	w = f.do(t, http.MethodPost, sessionPath("/join"), "A", JoinRequest{PlayerName: "Alice"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeSession(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "Joined successfully.", resp.Message)
	assert.Equal(t, "Alice", resp.Session.Players["A"].Name)
	assert.Equal(t, "A", resp.Session.GameMaster())

	// 未带身份时使用默认玩家
	w = f.do(t, http.MethodPost, sessionPath("/join"), "", JoinRequest{PlayerName: "Mock"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeSession(t, w).Session.Players, "user_mock_123")

	w = f.do(t, http.MethodPost, "/api/v1/game/sessions/missing/join", "A", JoinRequest{PlayerName: "Alice"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGameHandler_InvalidBody(t *testing.T) {
	f := newAPIFixture(t, nil)

	req := httptest.NewRequest(http.MethodPost, sessionPath("/join"), strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.GetEngine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body.", decodeError(t, w).Error)
}

func TestGameHandler_SetQuestion(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.do(t, http.MethodPost, sessionPath("/join"), "A", JoinRequest{PlayerName: "A"})
	f.do(t, http.MethodPost, sessionPath("/join"), "B", JoinRequest{PlayerName: "B"})

	w := f.do(t, http.MethodPost, sessionPath("/question"), "A", QuestionRequest{Question: " ", Answer: "4"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Question cannot be empty.", decodeError(t, w).Error)

	w = f.do(t, http.MethodPost, sessionPath("/question"), "A", QuestionRequest{Question: "2+2", Answer: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Answer cannot be empty.", decodeError(t, w).Error)

	w = f.do(t, http.MethodPost, sessionPath("/question"), "B", QuestionRequest{Question: "2+2", Answer: "4"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperrors.ErrUnauthorized, decodeError(t, w).Code)

	w = f.do(t, http.MethodPost, sessionPath("/question"), "A", QuestionRequest{Question: "2+2", Answer: "4"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeSession(t, w)
	assert.Equal(t, "Question set.", resp.Message)
	assert.Equal(t, "2+2", resp.Session.Question)
	assert.Equal(t, game.HiddenAnswer, resp.Session.Answer)
}

func TestGameHandler_StartGame(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.do(t, http.MethodPost, sessionPath("/join"), "A", JoinRequest{PlayerName: "A"})
	f.do(t, http.MethodPost, sessionPath("/join"), "B", JoinRequest{PlayerName: "B"})
	f.do(t, http.MethodPost, sessionPath("/question"), "A", QuestionRequest{Question: "2+2", Answer: "4"})

	w := f.do(t, http.MethodPost, sessionPath("/start"), "A", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	errResp := decodeError(t, w)
	assert.Equal(t, apperrors.ErrCannotStart, errResp.Code)
	assert.Equal(t, apperrors.ReasonTooFewPlayers, errResp.Reason)

	f.do(t, http.MethodPost, sessionPath("/join"), "C", JoinRequest{PlayerName: "C"})

	w = f.do(t, http.MethodPost, sessionPath("/start"), "B", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.ReasonNotGM, decodeError(t, w).Reason)

	w = f.do(t, http.MethodPost, sessionPath("/start"), "A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeSession(t, w)
	assert.Equal(t, "Game starting now!", resp.Message)
	assert.Equal(t, 60, resp.Timeout)
	assert.Equal(t, game.StatusInProgress, resp.Session.Status)
	assert.Equal(t, game.HiddenAnswer, resp.Session.Answer)
	require.NotNil(t, resp.Session.TimeoutTime)

	// 进行中不能出题
	w = f.do(t, http.MethodPost, sessionPath("/question"), "A", QuestionRequest{Question: "q", Answer: "a"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.ErrGameInProgress, decodeError(t, w).Code)
}

func TestGameHandler_TokenIdentity(t *testing.T) {
	f := newAPIFixture(t, nil)

	w := f.do(t, http.MethodPost, "/api/v1/auth/token", "", TokenRequest{PlayerID: "p-1", PlayerName: "Tokyo"})
	require.Equal(t, http.StatusOK, w.Code)
	var tok TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	assert.Equal(t, "p-1", tok.PlayerID)
	assert.Equal(t, "Bearer", tok.TokenType)

	// 请求体没有名字时使用令牌里的名字
	req := httptest.NewRequest(http.MethodPost, sessionPath("/join"), nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	req.Header.Set(middleware.HeaderUserID, "ignored")
	rec := httptest.NewRecorder()
	f.router.GetEngine().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeSession(t, rec)
	assert.Equal(t, "Tokyo", resp.Session.Players["p-1"].Name)
	assert.NotContains(t, resp.Session.Players, "ignored")

	w = f.do(t, http.MethodPost, "/api/v1/auth/token", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	assert.NotEmpty(t, tok.PlayerID)
}

func TestGameHandler_RoundsWithoutDatabase(t *testing.T) {
	f := newAPIFixture(t, nil)

	w := f.do(t, http.MethodGet, sessionPath("/rounds?page=2&page_size=5"), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp RoundsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Rounds)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 5, resp.PageSize)
	assert.Zero(t, resp.Total)

	w = f.do(t, http.MethodGet, sessionPath("/rounds/stats"), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGameHandler_RoundsArchived(t *testing.T) {
	rounds := repository.NewRoundRepository(repository.TestDB(t))
	f := newAPIFixture(t, rounds)
	f.setupLobby(t)

	w := f.do(t, http.MethodPost, sessionPath("/start"), "A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, err := f.service.SubmitGuess(context.Background(), mainSession, "B", "4")
	require.NoError(t, err)

	w = f.do(t, http.MethodGet, sessionPath("/rounds"), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp RoundsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Rounds, 1)
	assert.Equal(t, int64(1), resp.Total)
	assert.Equal(t, 1, resp.Pages)
	assert.False(t, resp.HasMore)
	assert.Equal(t, models.RoundOutcomeWin, resp.Rounds[0].Outcome)
	assert.Equal(t, "B", resp.Rounds[0].WinnerID)

	w = f.do(t, http.MethodGet, sessionPath("/rounds/stats"), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Statistics repository.RoundStatistics `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Statistics.WinRounds)
}

func TestRouter_WebSocket(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.setupLobby(t)

	server := httptest.NewServer(f.router.Handler())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?user_id=B"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func(msgType string) *ws.Message {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			var msg ws.Message
			require.NoError(t, conn.ReadJSON(&msg))
			if msg.Type == msgType {
				return &msg
			}
		}
	}

	connected := read(ws.MessageTypeConnected)
	var hello map[string]string
	require.NoError(t, json.Unmarshal(connected.Data, &hello))
	assert.Equal(t, "B", hello["playerId"])
	read(ws.MessageTypeUpdate)

	// HTTP 开局后房间收到推送
	w := f.do(t, http.MethodPost, sessionPath("/start"), "A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	update := read(ws.MessageTypeUpdate)
	var view game.SessionView
	require.NoError(t, json.Unmarshal(update.Data, &view))
	assert.Equal(t, game.StatusInProgress, view.Status)

	msg, err := ws.NewMessage(ws.MessageTypeGuess, "", ws.GuessRequest{Guess: "4"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))

	win := read(ws.MessageTypeWin)
	var payload ws.WinPayload
	require.NoError(t, json.Unmarshal(win.Data, &payload))
	assert.Equal(t, "B", payload.WinnerName)
	assert.Equal(t, "4", payload.Answer)

	w = f.do(t, http.MethodGet, "/api/v1/ws/online", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var online map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &online))
	assert.Equal(t, float64(1), online["session_online"])
}
