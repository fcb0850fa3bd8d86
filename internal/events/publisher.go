package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/wfunc/guess-game/internal/config"
	apperrors "github.com/wfunc/guess-game/internal/errors"
	"github.com/wfunc/guess-game/internal/game"
	"github.com/wfunc/guess-game/internal/logger"
	"go.uber.org/zap"
)

// publishFunc 底层发送，测试中替换
type publishFunc func(subject string, data []byte) error

// NATSPublisher 通过 NATS 发布游戏事件
type NATSPublisher struct {
	nc      *nats.Conn
	prefix  string
	publish publishFunc
	logger  *zap.Logger
}

// NewNATSPublisher 连接 NATS 并创建发布器
func NewNATSPublisher(cfg *config.EventsConfig) (*NATSPublisher, error) {
	l := logger.GetModuleLogger(logger.ModuleEvents)

	opts := []nats.Option{
		nats.Name("guess-game"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			l.Warn("NATS连接断开", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			l.Info("NATS重新连接", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			l.Error("NATS错误", zap.Error(err))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrEventPublish, "连接NATS失败")
	}

	l.Info("NATS连接成功", zap.String("url", nc.ConnectedUrl()))
	return &NATSPublisher{
		nc:      nc,
		prefix:  cfg.SubjectPrefix,
		publish: nc.Publish,
		logger:  l,
	}, nil
}

// Subject 事件主题：<前缀>.<会话ID>.<事件类型>
func Subject(prefix, sessionID string, eventType game.GameEventType) string {
	parts := make([]string, 0, 3)
	if prefix != "" {
		parts = append(parts, prefix)
	}
	parts = append(parts, sanitizeToken(sessionID), string(eventType))
	return strings.Join(parts, ".")
}

// sanitizeToken 主题分隔符与通配符不能出现在单个 token 中
func sanitizeToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

// PublishGameEvent 发布游戏事件
func (p *NATSPublisher) PublishGameEvent(ctx context.Context, event game.GameEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrMessageFormat, "事件序列化失败")
	}

	subject := Subject(p.prefix, event.SessionID, event.Type)
	err = p.publish(subject, data)
	logger.LogEventPublish(subject, err)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrEventPublish, fmt.Sprintf("发布事件失败: %s", subject))
	}
	return nil
}

// Close 刷新缓冲并关闭连接
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return err
	}
	return nil
}
