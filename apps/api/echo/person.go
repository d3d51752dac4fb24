package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/person"
)

type personApi struct {
	svc *person.Service
}

func registerPersonAPI(g *echo.Group, svc *person.Service) {
	api := personApi{svc: svc}

	g.GET("/me", withCaller(api.me))

	pg := g.Group("/people")
	pg.POST("/admins", withCaller(api.createAdmin))
	pg.GET("/:id", withCaller(api.retrieve))
	pg.DELETE("/:id", withCaller(api.destroy))

	eg := g.Group("/enrollees")
	eg.POST("", withCaller(api.createEnrollee))
	eg.GET("", withCaller(api.queryEnrollees))
	eg.GET("/:id", withCaller(api.retrieveEnrollee))

	ig := g.Group("/instructors")
	ig.POST("", withCaller(api.createInstructor))
	ig.GET("", withCaller(api.queryInstructors))
}

func (api *personApi) me(ctx echo.Context, caller access.Caller) error {
	profile, err := api.svc.Me(ctx.Request().Context(), caller)
	if err != nil {
		return errors.Wrap(err, "getting own profile")
	}
	return ctx.JSON(http.StatusOK, profile)
}

func (api *personApi) createAdmin(ctx echo.Context, caller access.Caller) error {
	var data person.NewPerson
	if err := ctx.Bind(&data); err != nil {
		return bindError(err)
	}
	p, err := api.svc.CreateAdmin(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "creating admin")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *personApi) retrieve(ctx echo.Context, caller access.Caller) error {
	profile, err := api.svc.Get(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting profile")
	}
	return ctx.JSON(http.StatusOK, profile)
}

func (api *personApi) destroy(ctx echo.Context, caller access.Caller) error {
	if err := api.svc.Delete(ctx.Request().Context(), caller, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting person")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *personApi) createEnrollee(ctx echo.Context, caller access.Caller) error {
	var data person.NewEnrollee
	if err := ctx.Bind(&data); err != nil {
		return bindError(err)
	}
	e, err := api.svc.CreateEnrollee(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "creating enrollee")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *personApi) queryEnrollees(ctx echo.Context, caller access.Caller) error {
	level, err := intParam(ctx, "level")
	if err != nil {
		return err
	}
	filter := person.EnrolleeFilter{
		Programme: ctx.QueryParam("programme"),
		Level:     level,
		Unit:      ctx.QueryParam("unit"),
	}
	enrollees, err := api.svc.ListEnrollees(ctx.Request().Context(), caller, filter)
	if err != nil {
		return errors.Wrap(err, "querying enrollees")
	}
	if enrollees == nil {
		enrollees = []person.Enrollee{}
	}
	return ctx.JSON(http.StatusOK, enrollees)
}

func (api *personApi) retrieveEnrollee(ctx echo.Context, caller access.Caller) error {
	e, err := api.svc.GetEnrollee(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting enrollee")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *personApi) createInstructor(ctx echo.Context, caller access.Caller) error {
	var data person.NewInstructor
	if err := ctx.Bind(&data); err != nil {
		return bindError(err)
	}
	i, err := api.svc.CreateInstructor(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "creating instructor")
	}
	return ctx.JSON(http.StatusCreated, i)
}

func (api *personApi) queryInstructors(ctx echo.Context, caller access.Caller) error {
	instructors, err := api.svc.ListInstructors(ctx.Request().Context(), caller, person.InstructorFilter{
		Unit: ctx.QueryParam("unit"),
	})
	if err != nil {
		return errors.Wrap(err, "querying instructors")
	}
	if instructors == nil {
		instructors = []person.Instructor{}
	}
	return ctx.JSON(http.StatusOK, instructors)
}
