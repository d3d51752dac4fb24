package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/daftari/core"
)

const orderingParam = "ordering"

// bindOrdering reads "?ordering=-field"; only the first field is used.
func bindOrdering(ctx echo.Context) core.DBOrdering {
	val := strings.TrimSpace(ctx.QueryParam(orderingParam))
	if val == "" {
		return core.DBOrdering{}
	}
	field := strings.TrimSpace(strings.Split(val, ",")[0])
	descending := strings.HasPrefix(field, "-")
	if descending {
		field = field[1:] // drop "-"
	}
	return core.DBOrdering{Field: field, Ascending: !descending}
}

func bindPage(ctx echo.Context) (core.Page, error) {
	var p core.Page
	var err error
	if p.Number, err = intParam(ctx, "page"); err != nil {
		return p, err
	}
	if p.Size, err = intParam(ctx, "limit"); err != nil {
		return p, err
	}
	return p, nil
}

// intParam reads an optional integer query param, 0 when absent.
func intParam(ctx echo.Context, name string) (int, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, core.NewFieldError(name, "must be an integer")
	}
	return n, nil
}

// timeParam reads an optional query param given as a date or an RFC3339 time.
func timeParam(ctx echo.Context, name string) (time.Time, error) {
	return parseTime(name, ctx.QueryParam(name))
}

func parseTime(name, val string) (time.Time, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(core.DateLayout, val); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, core.NewFieldError(name, "must be a date (YYYY-MM-DD) or an RFC3339 time")
	}
	return t, nil
}
