package handler

import (
	"context"
	"log/slog"
	"sync"

	"marketplace/internal/usecase"
)

// 画面に返すトースト
type Notice struct {
	Kind    usecase.NoticeKind `json:"kind"`
	Message string             `json:"message"`
}

// session は1リクエスト分の確認・通知・URIの入れ物
type session struct {
	mu        sync.Mutex
	confirmed bool
	asked     []string
	notices   []Notice
	openURL   string
}

type sessionKey struct{}

func withSession(ctx context.Context, confirmed bool) (context.Context, *session) {
	s := &session{confirmed: confirmed}
	return context.WithValue(ctx, sessionKey{}, s), s
}

func sessionFrom(ctx context.Context) *session {
	s, _ := ctx.Value(sessionKey{}).(*session)
	return s
}

func noticesOf(ctx context.Context) []Notice {
	s := sessionFrom(ctx)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notice(nil), s.notices...)
}

func (s *session) question() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.asked) == 0 {
		return ""
	}
	return s.asked[len(s.asked)-1]
}

// RequestInteraction はHTTP用の Interaction / Opener。
// 確認は X-Confirm ヘッダ（または confirm クエリ）で事前に受け取る。
type RequestInteraction struct {
	logger *slog.Logger
}

func NewRequestInteraction(logger *slog.Logger) *RequestInteraction {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestInteraction{logger: logger}
}

var (
	_ usecase.Interaction = (*RequestInteraction)(nil)
	_ usecase.Opener      = (*RequestInteraction)(nil)
)

// セッションが無い（HTTP以外から呼ばれた）ときは確認なしで拒否
func (r *RequestInteraction) Confirm(ctx context.Context, question string) (bool, error) {
	s := sessionFrom(ctx)
	if s == nil {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asked = append(s.asked, question)
	return s.confirmed, nil
}

func (r *RequestInteraction) Notify(ctx context.Context, kind usecase.NoticeKind, message string) {
	level := slog.LevelInfo
	if kind == usecase.NoticeWarning || kind == usecase.NoticeError {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "notice", slog.String("kind", string(kind)), slog.String("message", message))

	s := sessionFrom(ctx)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, Notice{Kind: kind, Message: message})
}

func (r *RequestInteraction) Open(ctx context.Context, uri string) {
	s := sessionFrom(ctx)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openURL = uri
}
