package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/daftari/core/access"
)

// callerHandler is an echo.HandlerFunc that needs the authenticated caller.
type callerHandler func(ctx echo.Context, caller access.Caller) error

func withCaller(h callerHandler) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		caller, err := contextCaller(ctx)
		if err != nil {
			return err
		}
		return h(ctx, caller)
	}
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	CountResponse struct {
		Count int `json:"count"`
	}
)
