package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	repo "marketplace/internal/repository"

	"github.com/shopspring/decimal"
)

// チェックアウト（外部メッセージへの引き渡し）が起きたことを通知するイベント
type CheckoutEvent struct {
	BuyerID    string              `json:"buyerId"`
	SellerID   string              `json:"sellerId"`
	StoreName  string              `json:"storeName"`
	Items      []CheckoutEventItem `json:"items"`
	Subtotal   decimal.Decimal     `json:"subtotal"`
	OccurredAt time.Time           `json:"occurredAt"`
}

type CheckoutEventItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type CheckoutPublisher interface {
	PublishCheckedOut(ctx context.Context, ev CheckoutEvent) error
}

type CheckoutConfig struct {
	// 例: "https://wa.me/"
	HandoffBaseURL string
	// 引き渡し後、カートを空にするまでの待ち時間
	ClearDelay time.Duration
	Money      MoneyFormat
}

type CheckoutResult struct {
	HandoffURL        string          `json:"handoff_url"`
	Summary           string          `json:"summary"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	FormattedSubtotal string          `json:"formatted_subtotal"`
	Seller            *SellerInfo     `json:"seller"`
	CartCleared       bool            `json:"cart_cleared"`
	Warnings          []string        `json:"warnings,omitempty"`
}

type CheckoutUsecase struct {
	cart      *CartUsecase
	identity  repo.IdentityProvider
	opener    Opener
	publisher CheckoutPublisher
	ui        Interaction
	clock     Clock
	cfg       CheckoutConfig
	logger    *slog.Logger
}

func NewCheckoutUsecase(
	cart *CartUsecase,
	identity repo.IdentityProvider,
	opener Opener,
	publisher CheckoutPublisher,
	ui Interaction,
	clock Clock,
	cfg CheckoutConfig,
	logger *slog.Logger,
) *CheckoutUsecase {
	if ui == nil {
		ui = NopInteraction{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutUsecase{
		cart:      cart,
		identity:  identity,
		opener:    opener,
		publisher: publisher,
		ui:        ui,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Checkout は注文メッセージを作って出品者のWhatsAppへ引き渡し、カートを空にする。
// 前提条件の失敗では何も書き込まない。Openした後は成功扱い。
func (u *CheckoutUsecase) Checkout(ctx context.Context, buyerID string) (CheckoutResult, error) {
	if strings.TrimSpace(buyerID) == "" {
		return CheckoutResult{}, errNotAuthenticated()
	}

	buyer, err := u.identity.CurrentUser(ctx)
	if err != nil {
		return CheckoutResult{}, u.cart.persistence(ctx, "load buyer profile", err)
	}
	if buyer == nil || buyer.ID != buyerID {
		return CheckoutResult{}, errNotAuthenticated()
	}

	snap, err := u.cart.Snapshot(ctx, buyerID)
	if err != nil {
		return CheckoutResult{}, err
	}
	if len(snap.Items) == 0 {
		return CheckoutResult{}, errEmptyCart()
	}

	if strings.TrimSpace(buyer.DisplayName) == "" || strings.TrimSpace(buyer.Email) == "" {
		return CheckoutResult{}, errIncompleteProfile()
	}

	if snap.Seller == nil {
		return CheckoutResult{}, errMissingSellerContact("the seller")
	}

	summary := RenderOrderSummary(snap, *buyer, u.cfg.Money)
	uri, ok := BuildHandoffURI(u.cfg.HandoffBaseURL, snap.Seller.ContactPhone, summary)
	if !ok {
		return CheckoutResult{}, errMissingSellerContact(snap.Seller.StoreName)
	}

	//ここから先は確定扱い
	u.opener.Open(ctx, uri)
	u.logger.InfoContext(ctx, "checkout handed off",
		slog.String("buyer_id", buyerID),
		slog.String("seller_id", snap.Seller.SellerID),
		slog.Int("items", len(snap.Items)),
	)

	result := CheckoutResult{
		HandoffURL:        uri,
		Summary:           summary,
		Subtotal:          snap.Subtotal,
		FormattedSubtotal: u.cfg.Money.Format(snap.Subtotal),
		Seller:            snap.Seller,
	}

	// リクエストが切れても後片付けは続ける
	bg := context.WithoutCancel(ctx)

	if u.publisher != nil {
		if err := u.publisher.PublishCheckedOut(bg, u.eventOf(buyerID, snap)); err != nil {
			result.Warnings = append(result.Warnings, u.warn(ctx, "checkout event not published", err))
		}
	}

	wait(ctx, u.cfg.ClearDelay)

	if err := u.cart.clear(bg, buyerID); err != nil {
		result.Warnings = append(result.Warnings, u.warn(ctx, "your order was sent, but the cart could not be emptied", err))
	} else {
		result.CartCleared = true
	}

	u.ui.Notify(ctx, NoticeSuccess, fmt.Sprintf("order sent to %s; continue in WhatsApp", snap.Seller.StoreName))
	return result, nil
}

func (u *CheckoutUsecase) warn(ctx context.Context, msg string, err error) string {
	u.logger.WarnContext(ctx, msg, slog.Any("error", err))
	text := fmt.Sprintf("%s: %v", msg, err)
	u.ui.Notify(ctx, NoticeWarning, text)
	return text
}

func (u *CheckoutUsecase) eventOf(buyerID string, snap Snapshot) CheckoutEvent {
	ev := CheckoutEvent{
		BuyerID:    buyerID,
		SellerID:   snap.Seller.SellerID,
		StoreName:  snap.Seller.StoreName,
		Subtotal:   snap.Subtotal,
		OccurredAt: u.clock.Now().UTC(),
	}
	for _, it := range snap.Items {
		ev.Items = append(ev.Items, CheckoutEventItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal,
		})
	}
	return ev
}

// ctxが切れたら待たずに戻る
func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
