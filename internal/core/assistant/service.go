package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jinford/assist-rag/internal/core/conversation"
	"github.com/jinford/assist-rag/internal/core/intent"
	"github.com/jinford/assist-rag/internal/core/session"
	"github.com/jinford/assist-rag/internal/platform/logger"
)

// ErrEmptyMessage は空の発話を受け取った場合のエラー
var ErrEmptyMessage = errors.New("message is empty")

// IntentClassifier は発話の意図を分類します
type IntentClassifier interface {
	Classify(ctx context.Context, description, message string) (intent.Result, error)
}

var _ IntentClassifier = (*intent.Classifier)(nil)

// Reply は1ターンの処理結果
type Reply struct {
	Text   string        `json:"text"`
	Intent intent.Result `json:"intent"`
	Route  Route         `json:"route"`
	// Fallback は分類に失敗して既定の結果を使った場合に true
	Fallback bool `json:"fallback"`
	// Messages はこのターンで会話ログに追加されたメッセージ
	Messages []conversation.Message `json:"-"`
}

// Service は発話の分類から回答までの1ターンを実行します
type Service struct {
	classifier IntentClassifier
	router     *Router
	profile    Profile
	policy     Policy
	logger     *slog.Logger
}

// ServiceOption は Service のオプション
type ServiceOption func(*Service)

// WithServiceLogger はロガーを設定します
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPolicy はポリシーを設定します
func WithPolicy(p Policy) ServiceOption {
	return func(s *Service) {
		s.policy = p
	}
}

// NewService は新しい Service を作成します
func NewService(classifier IntentClassifier, router *Router, profile Profile, opts ...ServiceOption) *Service {
	s := &Service{
		classifier: classifier,
		router:     router,
		profile:    profile,
		policy:     DefaultPolicy(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Profile はアシスタントのプロフィールを返します
func (s *Service) Profile() Profile {
	return s.profile
}

// Respond はセッションで1ターンを実行します。
// ターンはセッションごとに直列化され、呼び出し元のキャンセルかセッションのクローズで中断されます。
// 中断までに会話ログへ追加したメッセージはそのまま残ります
func (s *Service) Respond(ctx context.Context, sess *session.Session, message string) (Reply, error) {
	if strings.TrimSpace(message) == "" {
		return Reply{}, ErrEmptyMessage
	}

	// 1. ターンの取得
	release, err := sess.AcquireTurn(ctx)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to start turn: %w", err)
	}
	defer release()

	turnCtx, cancel := sess.TurnContext(ctx)
	defer cancel()

	start := time.Now()
	logStart := sess.Log.Len()

	// 2. 意図分類
	result, fallback := s.classify(turnCtx, sess, message)
	if err := interrupted(turnCtx); err != nil {
		return Reply{}, err
	}

	// 3. 振り分け
	route, text := s.router.Dispatch(turnCtx, Turn{
		Session: sess,
		Message: message,
		Intent:  result,
	})

	reply := Reply{
		Text:     text,
		Intent:   result,
		Route:    route,
		Fallback: fallback,
		Messages: sess.Log.Since(logStart),
	}
	if err := interrupted(turnCtx); err != nil {
		return reply, err
	}

	s.logger.Info("ターンを処理しました",
		"stage", "respond",
		"session", sess.ID,
		"intent", result.Type,
		"confidence", result.Confidence,
		"route", route,
		"fallback", fallback,
		"duration", time.Since(start),
	)
	return reply, nil
}

// classify は分類に失敗した場合に既定の結果を返します
func (s *Service) classify(ctx context.Context, sess *session.Session, message string) (intent.Result, bool) {
	result, err := s.classifier.Classify(ctx, s.profile.Description, message)
	if err == nil {
		return result, false
	}

	s.logger.Warn("意図分類に失敗したため既定の結果を使用します",
		"stage", "classify",
		"session", sess.ID,
		"input", logger.Truncate(message, logger.DefaultTruncateLength),
		"error", err,
	)
	return s.policy.ClassificationFallback, true
}

func interrupted(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return fmt.Errorf("turn interrupted: %w", context.Cause(ctx))
}
