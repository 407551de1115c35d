package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// カート/チェックアウトの失敗の種類
type ErrorKind string

const (
	KindNotAuthenticated       ErrorKind = "NOT_AUTHENTICATED"
	KindMixedSellerConflict    ErrorKind = "MIXED_SELLER_CONFLICT"
	KindOutOfStock             ErrorKind = "OUT_OF_STOCK"
	KindInsufficientStock      ErrorKind = "INSUFFICIENT_STOCK"
	KindInvalidQuantity        ErrorKind = "INVALID_QUANTITY"
	KindIncompleteBuyerProfile ErrorKind = "INCOMPLETE_BUYER_PROFILE"
	KindMissingSellerContact   ErrorKind = "MISSING_SELLER_CONTACT"
	KindPersistenceFailure     ErrorKind = "PERSISTENCE_FAILURE"
	KindEmptyCart              ErrorKind = "EMPTY_CART"
	KindEntryNotFound          ErrorKind = "ENTRY_NOT_FOUND"
	KindProductNotFound        ErrorKind = "PRODUCT_NOT_FOUND"
)

// CartError は画面にそのまま出せるメッセージを持つ。
// StoreName は MIXED_SELLER_CONFLICT / MISSING_SELLER_CONTACT、
// Stock は OUT_OF_STOCK / INSUFFICIENT_STOCK のときに入る。
type CartError struct {
	Kind      ErrorKind
	Message   string
	StoreName string
	Stock     int64
	Err       error
}

func (e *CartError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CartError) Unwrap() error { return e.Err }

// HTTPステータスへの対応
func (e *CartError) Status() int {
	switch e.Kind {
	case KindNotAuthenticated:
		return http.StatusUnauthorized
	case KindMixedSellerConflict:
		return http.StatusConflict
	case KindOutOfStock, KindInsufficientStock, KindIncompleteBuyerProfile, KindMissingSellerContact:
		return http.StatusUnprocessableEntity
	case KindInvalidQuantity, KindEmptyCart:
		return http.StatusBadRequest
	case KindEntryNotFound, KindProductNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func AsCartError(err error) (*CartError, bool) {
	var ce *CartError
	ok := errors.As(err, &ce)
	return ce, ok
}

func IsKind(err error, kind ErrorKind) bool {
	ce, ok := AsCartError(err)
	return ok && ce.Kind == kind
}

func errNotAuthenticated() error {
	return &CartError{Kind: KindNotAuthenticated, Message: "please log in to use the cart"}
}

func errOutOfStock(productName string) error {
	return &CartError{
		Kind:    KindOutOfStock,
		Message: fmt.Sprintf("%s is out of stock; pick a different product", productName),
	}
}

func errInsufficientStock(productName string, stock int64) error {
	return &CartError{
		Kind:    KindInsufficientStock,
		Message: fmt.Sprintf("only %d of %s left in stock; reduce the quantity", stock, productName),
		Stock:   stock,
	}
}

func errMixedSeller(storeName string) error {
	return &CartError{
		Kind: KindMixedSellerConflict,
		Message: fmt.Sprintf(
			"your cart already holds products from %s; clear the cart before adding products from another store",
			storeName,
		),
		StoreName: storeName,
	}
}

func errInvalidQuantity(msg string) error {
	return &CartError{Kind: KindInvalidQuantity, Message: msg}
}

func errIncompleteProfile() error {
	return &CartError{
		Kind:    KindIncompleteBuyerProfile,
		Message: "complete your name and email in your profile before checking out",
	}
}

func errMissingSellerContact(storeName string) error {
	return &CartError{
		Kind:      KindMissingSellerContact,
		Message:   fmt.Sprintf("%s has no contact phone yet; checkout is unavailable until the seller adds one", storeName),
		StoreName: storeName,
	}
}

func errEmptyCart() error {
	return &CartError{Kind: KindEmptyCart, Message: "your cart is empty"}
}

func errEntryNotFound() error {
	return &CartError{Kind: KindEntryNotFound, Message: "cart item not found; refresh your cart"}
}

func errProductNotFound() error {
	return &CartError{Kind: KindProductNotFound, Message: "product not found or no longer available"}
}

// DBエラーは診断のためそのまま見せる
func errPersistence(op string, err error) error {
	return &CartError{
		Kind:    KindPersistenceFailure,
		Message: fmt.Sprintf("%s failed: %v", op, err),
		Err:     err,
	}
}
