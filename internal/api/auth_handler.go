package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/utils"
)

// AuthHandler 玩家令牌签发
type AuthHandler struct {
	tokens *utils.JWTManager
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(tokens *utils.JWTManager) *AuthHandler {
	return &AuthHandler{tokens: tokens}
}

// TokenRequest 签发令牌请求
type TokenRequest struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// TokenResponse 签发令牌响应
type TokenResponse struct {
	Success    bool   `json:"success"`
	Token      string `json:"token"`
	TokenType  string `json:"token_type"`
	ExpiresAt  int64  `json:"expires_at"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName,omitempty"`
}

// IssueToken 签发玩家令牌，未提供玩家ID时生成一个
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if !bindOptional(c, &req) {
		return
	}

	playerID := strings.TrimSpace(req.PlayerID)
	if playerID == "" {
		playerID = uuid.New().String()
	}
	name := strings.TrimSpace(req.PlayerName)

	token, expiresAt, err := h.tokens.GenerateToken(playerID, name)
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrAuthentication))
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		Success:    true,
		Token:      token,
		TokenType:  "Bearer",
		ExpiresAt:  expiresAt.Unix(),
		PlayerID:   playerID,
		PlayerName: name,
	})
}

