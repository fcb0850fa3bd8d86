package api

import (

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/game"
	"github.com/wfunc/guess-game/internal/middleware"
)

// SessionResponse 会话操作成功响应
type SessionResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Session game.SessionView `json:"session"`
	Timeout int              `json:"timeout,omitempty"`
}

// respondError 按错误码输出失败响应
func respondError(c *gin.Context, err error) {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.ErrUnknown)
	}
	c.JSON(appErr.HTTPStatus(), apperrors.NewErrorResponse(appErr, middleware.GetRequestID(c)))
}

// invalidParam 参数校验失败，消息直接给客户端
func invalidParam(message string) *apperrors.AppError {
	err := apperrors.New(apperrors.ErrInvalidParam, message)
	err.Message = message
	return err
}

func respondSession(c *gin.Context, status int, message string, view game.SessionView, timeout int) {
	c.JSON(status, SessionResponse{
		Success: true,
		Message: message,
		Session: view,
		Timeout: timeout,
	})
}

func notFound(c *gin.Context) {
	respondError(c, apperrors.New(apperrors.ErrNotFound))
}


func wrapQuery(err error) *apperrors.AppError {
	return apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
}
