package usecase

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// MoneyFormat は金額の表示形式（例: "Rp 50.000"）。
// 桁区切りはロケールに従う。
type MoneyFormat struct {
	Prefix   string
	Locale   language.Tag
	Decimals int32
}

func NewMoneyFormat(prefix string, locale string, decimals int32) (MoneyFormat, error) {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return MoneyFormat{}, fmt.Errorf("invalid currency locale %q: %w", locale, err)
	}
	if decimals < 0 {
		return MoneyFormat{}, fmt.Errorf("currency decimals must be >= 0")
	}
	return MoneyFormat{
		Prefix:   strings.TrimSpace(prefix),
		Locale:   tag,
		Decimals: decimals,
	}, nil
}

func (f MoneyFormat) Format(v decimal.Decimal) string {
	p := message.NewPrinter(f.Locale)
	rounded := v.Round(f.Decimals)

	var s string
	if f.Decimals == 0 {
		s = p.Sprintf("%d", rounded.IntPart())
	} else {
		s = p.Sprint(number.Decimal(rounded.InexactFloat64(), number.Scale(int(f.Decimals))))
	}

	if f.Prefix == "" {
		return s
	}
	return f.Prefix + " " + s
}
