package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"marketplace/internal/middleware"
	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// カート系のエラー（種類と補足つき）
type CartErrorResponse struct {
	Error     string            `json:"error"`
	Kind      usecase.ErrorKind `json:"kind"`
	StoreName string            `json:"store_name,omitempty"`
	Stock     *int64            `json:"stock,omitempty"`
	Notices   []Notice          `json:"notices,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	if ce, ok := usecase.AsCartError(err); ok {
		body := CartErrorResponse{
			Error:     ce.Message,
			Kind:      ce.Kind,
			StoreName: ce.StoreName,
			Notices:   noticesOf(c.Request().Context()),
		}
		if ce.Kind == usecase.KindInsufficientStock || ce.Kind == usecase.KindOutOfStock {
			stock := ce.Stock
			body.Stock = &stock
		}
		return c.JSON(ce.Status(), body)
	}

	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	var ee *echo.HTTPError
	if errors.As(err, &ee) {
		return err
	}

	//500
	slog.ErrorContext(c.Request().Context(), "unhandled error", slog.Any("error", err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

//middleware.AuthJWT が c.Set("user_id", string) した値を取り出す

func getUserIDFromContext(c echo.Context) (string, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return "", false
	}
	return p.UserID, true
}
