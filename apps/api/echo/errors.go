package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core"
)

var (
	errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "person not authenticated")
	errNoDocument   = core.NewFieldError("file", "a document is required")
)

// statusOf maps an error kind to its HTTP status.
var statusOf = map[string]int{
	"validation": http.StatusBadRequest,
	"conflict":   http.StatusConflict,
	"not_found":  http.StatusNotFound,
	"forbidden":  http.StatusForbidden,
	"dependency": http.StatusServiceUnavailable,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		kind := core.Kind(err)
		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case *core.ValidationError:
			if len(origErr.Fields) > 0 {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if status, ok := statusOf[kind]; ok {
				code = status
				message = origErr.Error()
				if kind == "dependency" {
					logger.Warn(origErr.Error(), logArgs(ctx, err)...)
				}
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg
			logger.Error(msg, logArgs(ctx, errors.Wrap(err, msg))...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// logArgs adds the caller, when known, to the logged error.
func logArgs(ctx echo.Context, err error) []interface{} {
	if caller, cErr := contextCaller(ctx); cErr == nil {
		return []interface{}{err, caller}
	}
	return []interface{}{err}
}

// bindError reports a malformed request body or query.
func bindError(err error) error {
	if herr, ok := err.(*echo.HTTPError); ok {
		return core.NewValidationError(fmt.Errorf("%v", herr.Message))
	}
	return core.NewValidationError(err)
}
