package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
)

// problem is the RFC 9457 body Huma uses for its own errors.
type problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// Recovery returns Echo middleware that turns a handler panic into a logged
// stack trace and a 500 problem response. http.ErrAbortHandler is re-raised
// so net/http can abort the connection.
func Recovery(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if e, ok := r.(error); ok && errors.Is(e, http.ErrAbortHandler) {
					panic(r)
				}
				err = recovered(c, log, r)
			}()
			return next(c)
		}
	}
}

func recovered(c echo.Context, log *slog.Logger, r any) error {
	req := c.Request()
	log.Error("panic recovered",
		"error", fmt.Sprint(r),
		"method", req.Method,
		"path", req.URL.Path,
		"request_id", RequestID(c),
		"stack", string(debug.Stack()),
	)

	if c.Response().Committed {
		return nil
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	return c.JSON(http.StatusInternalServerError, problem{
		Title:  http.StatusText(http.StatusInternalServerError),
		Status: http.StatusInternalServerError,
		Detail: "internal server error",
	})
}
