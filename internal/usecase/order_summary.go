package usecase

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"marketplace/internal/domain/model"
)

// RenderOrderSummary は出品者に送る注文メッセージを作る。
// 同じスナップショットなら常に同じ文字列。
func RenderOrderSummary(snap Snapshot, buyer model.User, money MoneyFormat) string {
	var b strings.Builder

	store := "there"
	if snap.Seller != nil && strings.TrimSpace(snap.Seller.StoreName) != "" {
		store = snap.Seller.StoreName
	}
	fmt.Fprintf(&b, "Hello %s, I would like to order:\n\n", store)

	lines := make([]string, 0, len(snap.Items))
	for i, it := range snap.Items {
		lines = append(lines, fmt.Sprintf("%d. %s (%dx) - %s", i+1, it.Name, it.Quantity, money.Format(it.LineTotal)))
	}
	b.WriteString(strings.Join(lines, "\n"))

	fmt.Fprintf(&b, "\n\nTotal: %s\n\n", money.Format(snap.Subtotal))
	fmt.Fprintf(&b, "Name: %s\nEmail: %s\n\n", strings.TrimSpace(buyer.DisplayName), strings.TrimSpace(buyer.Email))
	b.WriteString("Please send the payment details so I can confirm this order. Thank you!")

	return b.String()
}

// BuildHandoffURI は "<base><digits>?text=<encoded>" を返す。
// 電話番号に数字が無ければ false。
func BuildHandoffURI(base string, phone string, text string) (string, bool) {
	digits := DigitsOnly(phone)
	if digits == "" {
		return "", false
	}
	encoded := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return base + digits + "?text=" + encoded, true
}

func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
