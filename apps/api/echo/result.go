package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/result"
)

type resultApi struct {
	svc *result.Service
}

func registerResultAPI(g *echo.Group, svc *result.Service) {
	api := resultApi{svc: svc}

	rg := g.Group("/results")
	rg.POST("", withCaller(api.create))
	rg.GET("/:id", withCaller(api.retrieve))
	rg.PATCH("/:id", withCaller(api.update))
	rg.DELETE("/:id", withCaller(api.destroy))

	g.POST("/courses/:id/results", withCaller(api.createBulk))
	g.GET("/courses/:id/results", withCaller(api.forCourse))
	g.GET("/enrollees/:id/results", withCaller(api.forEnrollee))
	g.GET("/me/results", withCaller(api.forEnrollee))
}

func (api *resultApi) create(ctx echo.Context, caller access.Caller) error {
	var data result.NewResult
	if err := ctx.Bind(&data); err != nil {
		return bindError(err)
	}
	fact, err := api.svc.Add(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "adding result")
	}
	return ctx.JSON(http.StatusCreated, fact)
}

// createBulk takes a JSON array; the course of the path wins over course_id of the entries.
func (api *resultApi) createBulk(ctx echo.Context, caller access.Caller) error {
	var data []result.NewResult
	if err := ctx.Bind(&data); err != nil {
		return bindError(err)
	}
	res, err := api.svc.AddBulk(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding results in bulk")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *resultApi) retrieve(ctx echo.Context, caller access.Caller) error {
	fact, err := api.svc.Get(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting result")
	}
	return ctx.JSON(http.StatusOK, fact)
}

func (api *resultApi) update(ctx echo.Context, caller access.Caller) error {
	var data result.UpdateScores
	if err := ctx.Bind(&data); err != nil {
		return bindError(err)
	}
	fact, err := api.svc.Update(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating result")
	}
	return ctx.JSON(http.StatusOK, fact)
}

func (api *resultApi) destroy(ctx echo.Context, caller access.Caller) error {
	if err := api.svc.Delete(ctx.Request().Context(), caller, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting result")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *resultApi) filter(ctx echo.Context) (f result.Filter, err error) {
	if f.Term, err = intParam(ctx, "term"); err != nil {
		return f, err
	}
	f.CourseID = ctx.QueryParam("course_id")
	return f, nil
}

func (api *resultApi) forEnrollee(ctx echo.Context, caller access.Caller) error {
	f, err := api.filter(ctx)
	if err != nil {
		return err
	}
	report, err := api.svc.ForEnrollee(ctx.Request().Context(), caller, ctx.Param("id"), f)
	if err != nil {
		return errors.Wrap(err, "reporting enrollee results")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *resultApi) forCourse(ctx echo.Context, caller access.Caller) error {
	f, err := api.filter(ctx)
	if err != nil {
		return err
	}
	report, err := api.svc.ForCourse(ctx.Request().Context(), caller, ctx.Param("id"), f)
	if err != nil {
		return errors.Wrap(err, "reporting course results")
	}
	return ctx.JSON(http.StatusOK, report)
}
