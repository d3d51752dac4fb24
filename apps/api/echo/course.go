package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/course"
	"github.com/trezcool/daftari/core/person"
)

type courseApi struct {
	svc *course.Service
}

type (
	AssignInstructorRequest struct {
		InstructorID string `json:"instructor_id"`
	}

	EnrollRequest struct {
		EnrolleeID string `json:"enrollee_id"`
	}
)

func registerCourseAPI(g *echo.Group, svc *course.Service) {
	api := courseApi{svc: svc}

	cg := g.Group("/courses")
	cg.POST("", withCaller(api.create))
	cg.GET("", withCaller(api.query))

	dg := cg.Group("/:id")
	dg.GET("", withCaller(api.retrieve))
	dg.DELETE("", withCaller(api.destroy))
	dg.PUT("/instructor", withCaller(api.assignInstructor))
	dg.GET("/roster", withCaller(api.roster))
	dg.POST("/enrollments", withCaller(api.enroll))
	dg.DELETE("/enrollments/:enrollee_id", withCaller(api.unenroll))
}

func (api *courseApi) create(ctx echo.Context, caller access.Caller) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return bindError(err)
	}
	c, err := api.svc.Create(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) query(ctx echo.Context, caller access.Caller) error {
	term, err := intParam(ctx, "term")
	if err != nil {
		return err
	}
	courses, err := api.svc.List(ctx.Request().Context(), caller, course.Filter{
		Term:         term,
		Unit:         ctx.QueryParam("unit"),
		InstructorID: ctx.QueryParam("instructor_id"),
	})
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context, caller access.Caller) error {
	c, err := api.svc.Get(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroy(ctx echo.Context, caller access.Caller) error {
	if err := api.svc.Delete(ctx.Request().Context(), caller, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) assignInstructor(ctx echo.Context, caller access.Caller) error {
	var data AssignInstructorRequest
	if err := ctx.Bind(&data); err != nil {
		return bindError(err)
	}
	c, err := api.svc.AssignInstructor(ctx.Request().Context(), caller, ctx.Param("id"), data.InstructorID)
	if err != nil {
		return errors.Wrap(err, "assigning instructor")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) roster(ctx echo.Context, caller access.Caller) error {
	enrollees, err := api.svc.Roster(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing roster")
	}
	if enrollees == nil {
		enrollees = []person.Enrollee{}
	}
	return ctx.JSON(http.StatusOK, enrollees)
}

func (api *courseApi) enroll(ctx echo.Context, caller access.Caller) error {
	var data EnrollRequest
	if err := ctx.Bind(&data); err != nil {
		return bindError(err)
	}
	if err := api.svc.Enroll(ctx.Request().Context(), caller, ctx.Param("id"), data.EnrolleeID); err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "enrolled"})
}

func (api *courseApi) unenroll(ctx echo.Context, caller access.Caller) error {
	if err := api.svc.Unenroll(ctx.Request().Context(), caller, ctx.Param("id"), ctx.Param("enrollee_id")); err != nil {
		return errors.Wrap(err, "unenrolling")
	}
	return ctx.NoContent(http.StatusNoContent)
}
