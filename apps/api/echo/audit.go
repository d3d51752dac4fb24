package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/audit"
)

type auditApi struct {
	svc *audit.Service
}

func registerAuditAPI(g *echo.Group, svc *audit.Service) {
	api := auditApi{svc: svc}

	ag := g.Group("/audit")
	ag.GET("", withCaller(api.query))
	ag.DELETE("", withCaller(api.prune))
	ag.GET("/stats", withCaller(api.stats))
	ag.GET("/:id", withCaller(api.retrieve))
}

func (api *auditApi) query(ctx echo.Context, caller access.Caller) error {
	var (
		f   audit.Filter
		err error
	)
	if f.Since, err = timeParam(ctx, "since"); err != nil {
		return err
	}
	if f.Until, err = timeParam(ctx, "until"); err != nil {
		return err
	}
	f.Action = audit.Action(ctx.QueryParam("action"))
	f.TargetKind = audit.TargetKind(ctx.QueryParam("target_kind"))
	f.ActorID = ctx.QueryParam("actor_id")
	f.Ordering = bindOrdering(ctx)

	page, err := bindPage(ctx)
	if err != nil {
		return err
	}
	entries, err := api.svc.List(ctx.Request().Context(), caller, f, page)
	if err != nil {
		return errors.Wrap(err, "querying audit entries")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *auditApi) retrieve(ctx echo.Context, caller access.Caller) error {
	e, err := api.svc.Get(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting audit entry")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *auditApi) stats(ctx echo.Context, caller access.Caller) error {
	stats, err := api.svc.Stats(ctx.Request().Context(), caller)
	if err != nil {
		return errors.Wrap(err, "computing audit stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

// prune deletes entries created before "?before=".
func (api *auditApi) prune(ctx echo.Context, caller access.Caller) error {
	before, err := timeParam(ctx, "before")
	if err != nil {
		return err
	}
	if before.IsZero() {
		return core.NewFieldError("before", "this field is required")
	}
	n, err := api.svc.Prune(ctx.Request().Context(), caller, before)
	if err != nil {
		return errors.Wrap(err, "pruning audit entries")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}
