package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/guess-game/internal/logger"
	"github.com/wfunc/guess-game/internal/utils"
	"go.uber.org/zap"
)

// 上下文键
const (
	ContextPlayerID       = "playerID"
	ContextPlayerName     = "playerName"
	ContextIdentitySource = "identitySource"
)

// 身份来源
const (
	SourceToken   = "token"
	SourceHeader  = "header"
	SourceQuery   = "query"
	SourceDefault = "default"
)

// HeaderUserID 直接携带玩家ID的请求头
const HeaderUserID = "X-User-Id"

// IdentityMiddleware 玩家身份解析，不做强制认证
type IdentityMiddleware struct {
	tokens        *utils.JWTManager
	defaultUserID string
}

// NewIdentityMiddleware 创建身份中间件，tokens 为空时跳过令牌解析
func NewIdentityMiddleware(tokens *utils.JWTManager, defaultUserID string) *IdentityMiddleware {
	return &IdentityMiddleware{
		tokens:        tokens,
		defaultUserID: defaultUserID,
	}
}

// Resolve 按令牌、请求头、查询参数、默认值的顺序确定玩家ID
func (m *IdentityMiddleware) Resolve() gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID, playerName, source := m.resolve(c)
		c.Set(ContextPlayerID, playerID)
		c.Set(ContextIdentitySource, source)
		if playerName != "" {
			c.Set(ContextPlayerName, playerName)
		}
		c.Next()
	}
}

func (m *IdentityMiddleware) resolve(c *gin.Context) (string, string, string) {
	if token := extractBearer(c.GetHeader("Authorization")); token != "" && m.tokens != nil {
		claims, err := m.tokens.ValidateToken(token)
		if err == nil {
			return claims.PlayerID, claims.PlayerName, SourceToken
		}
		logger.GetModuleLogger(logger.ModuleHTTP).Debug("忽略无效令牌",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}

	if id := strings.TrimSpace(c.GetHeader(HeaderUserID)); id != "" {
		return id, "", SourceHeader
	}
	if id := strings.TrimSpace(c.Query("user_id")); id != "" {
		return id, "", SourceQuery
	}
	return m.defaultUserID, "", SourceDefault
}

// extractBearer 从Authorization头提取令牌
func extractBearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// PlayerID 获取当前请求的玩家ID
func PlayerID(c *gin.Context) string {
	return c.GetString(ContextPlayerID)
}

// PlayerName 获取令牌中携带的玩家名
func PlayerName(c *gin.Context) string {
	return c.GetString(ContextPlayerName)
}
