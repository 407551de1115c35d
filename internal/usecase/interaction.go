package usecase

import "context"

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeInfo    NoticeKind = "info"
	NoticeWarning NoticeKind = "warning"
	NoticeError   NoticeKind = "error"
)

// Interaction は確認ダイアログとトーストの代わり。
// 画面側（HTTPならリクエスト単位）で実装する。
type Interaction interface {
	Confirm(ctx context.Context, question string) (bool, error)
	Notify(ctx context.Context, kind NoticeKind, message string)
}

// Opener は外部アプリ（WhatsApp等）へのURIを開くよう画面に伝える。
// 結果は待たない。
type Opener interface {
	Open(ctx context.Context, uri string)
}

// 確認は常にOK、通知は捨てる（バッチやテスト用）
type NopInteraction struct{}

func (NopInteraction) Confirm(context.Context, string) (bool, error) { return true, nil }
func (NopInteraction) Notify(context.Context, NoticeKind, string)    {}
