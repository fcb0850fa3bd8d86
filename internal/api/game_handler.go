package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/guess-game/internal/game"
	"github.com/wfunc/guess-game/internal/middleware"
	"github.com/wfunc/guess-game/internal/models"
	"github.com/wfunc/guess-game/internal/repository"
	"go.uber.org/zap"
)

// GameHandler 游戏会话接口
type GameHandler struct {
	service *game.GameService
	rounds  repository.RoundRepository
	logger  *zap.Logger
}

// NewGameHandler 创建游戏处理器，rounds 为空时回合历史返回空页
func NewGameHandler(service *game.GameService, rounds repository.RoundRepository, logger *zap.Logger) *GameHandler {
	return &GameHandler{
		service: service,
		rounds:  rounds,
		logger:  logger,
	}
}

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	SessionID string `json:"sessionId"`
}

// JoinRequest 加入请求
type JoinRequest struct {
	PlayerName string `json:"playerName"`
}

// QuestionRequest 出题请求
type QuestionRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// RoundsResponse 回合历史
type RoundsResponse struct {
	Success  bool                  `json:"success"`
	Rounds   []*models.RoundRecord `json:"rounds"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Total    int64                 `json:"total"`
	Pages    int                   `json:"pages"`
	HasMore  bool                  `json:"has_more"`
}

// bindOptional 允许空请求体
func bindOptional(c *gin.Context, obj interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		respondError(c, invalidParam("Invalid request body."))
		return false
	}
	return true
}

// CreateSession 创建会话
func (h *GameHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if !bindOptional(c, &req) {
		return
	}

	view, err := h.service.CreateSession(c.Request.Context(), strings.TrimSpace(req.SessionID))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSession(c, http.StatusCreated, "Session created.", view, 0)
}

// GetSession 获取会话状态，答案在结束前隐藏
func (h *GameHandler) GetSession(c *gin.Context) {
	view, err := h.service.GetSession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Join 加入会话，玩家ID来自身份中间件
func (h *GameHandler) Join(c *gin.Context) {
	var req JoinRequest
	if !bindOptional(c, &req) {
		return
	}

	name := strings.TrimSpace(req.PlayerName)
	if name == "" {
		name = middleware.PlayerName(c)
	}
	if name == "" {
		respondError(c, invalidParam("Player name required."))
		return
	}

	res, err := h.service.Join(c.Request.Context(), c.Param("sessionId"), middleware.PlayerID(c), name)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSession(c, http.StatusOK, res.Message, res.Session, 0)
}

// SetQuestion 主持人出题
func (h *GameHandler) SetQuestion(c *gin.Context) {
	var req QuestionRequest
	if !bindOptional(c, &req) {
		return
	}

	question := strings.TrimSpace(req.Question)
	answer := strings.TrimSpace(req.Answer)
	if question == "" {
		respondError(c, invalidParam("Question cannot be empty."))
		return
	}
	if answer == "" {
		respondError(c, invalidParam("Answer cannot be empty."))
		return
	}

	res, err := h.service.SetQuestion(c.Request.Context(), c.Param("sessionId"), middleware.PlayerID(c), question, answer)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSession(c, http.StatusOK, res.Message, res.Session, 0)
}

// StartGame 主持人开局
func (h *GameHandler) StartGame(c *gin.Context) {
	res, err := h.service.StartGame(c.Request.Context(), c.Param("sessionId"), middleware.PlayerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSession(c, http.StatusOK, res.Message, res.Session, res.TimeoutSeconds)
}

// ListRounds 回合历史
func (h *GameHandler) ListRounds(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	p := repository.NewPagination(page, pageSize)

	resp := RoundsResponse{
		Success:  true,
		Rounds:   []*models.RoundRecord{},
		Page:     p.Page,
		PageSize: p.PageSize,
	}
	if h.rounds == nil {
		c.JSON(http.StatusOK, resp)
		return
	}

	records, err := h.rounds.FindBySessionID(c.Request.Context(), c.Param("sessionId"), p)
	if err != nil {
		h.logger.Error("查询回合历史失败", zap.String("session_id", c.Param("sessionId")), zap.Error(err))
		respondError(c, wrapQuery(err))
		return
	}
	resp.Rounds = records
	resp.Total = p.Total
	resp.Pages = p.TotalPages()
	resp.HasMore = p.HasMore()
	c.JSON(http.StatusOK, resp)
}

// RoundStatistics 回合统计
func (h *GameHandler) RoundStatistics(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if h.rounds == nil {
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"statistics": repository.RoundStatistics{SessionID: sessionID, TopWinners: []repository.WinnerCount{}},
		})
		return
	}

	stats, err := h.rounds.GetStatistics(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("查询回合统计失败", zap.String("session_id", sessionID), zap.Error(err))
		respondError(c, wrapQuery(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "statistics": stats})
}
