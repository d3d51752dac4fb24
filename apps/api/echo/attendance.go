package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/attendance"
)

type attendanceApi struct {
	svc *attendance.Service
}

type (
	// MarkRequest takes the date as YYYY-MM-DD.
	MarkRequest struct {
		EnrolleeID string            `json:"enrollee_id"`
		CourseID   string            `json:"course_id"`
		Date       string            `json:"date"`
		Status     attendance.Status `json:"status"`
	}

	BulkMarkRequest struct {
		Date    string                 `json:"date"`
		Entries []attendance.BulkEntry `json:"entries"`
	}

	UpdateStatusRequest struct {
		Status attendance.Status `json:"status"`
	}
)

func registerAttendanceAPI(g *echo.Group, svc *attendance.Service) {
	api := attendanceApi{svc: svc}

	ag := g.Group("/attendance")
	ag.POST("", withCaller(api.mark))
	ag.PATCH("/:id", withCaller(api.updateStatus))
	ag.DELETE("/:id", withCaller(api.destroy))

	g.POST("/courses/:id/attendance", withCaller(api.markBulk))
	g.GET("/courses/:id/attendance", withCaller(api.forCourse))
	g.GET("/enrollees/:id/attendance", withCaller(api.forEnrollee))
	g.GET("/me/attendance", withCaller(api.forEnrollee))
}

func (api *attendanceApi) mark(ctx echo.Context, caller access.Caller) error {
	var req MarkRequest
	if err := ctx.Bind(&req); err != nil {
		return bindError(err)
	}
	date, err := parseTime("date", req.Date)
	if err != nil {
		return err
	}
	fact, err := api.svc.Mark(ctx.Request().Context(), caller, attendance.NewFact{
		EnrolleeID: req.EnrolleeID,
		CourseID:   req.CourseID,
		Date:       date,
		Status:     req.Status,
	})
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusCreated, fact)
}

// markBulk upserts; per-enrollee failures are listed in the response.
func (api *attendanceApi) markBulk(ctx echo.Context, caller access.Caller) error {
	var req BulkMarkRequest
	if err := ctx.Bind(&req); err != nil {
		return bindError(err)
	}
	date, err := parseTime("date", req.Date)
	if err != nil {
		return err
	}
	res, err := api.svc.MarkBulk(ctx.Request().Context(), caller, attendance.BulkMark{
		CourseID: ctx.Param("id"),
		Date:     date,
		Entries:  req.Entries,
	})
	if err != nil {
		return errors.Wrap(err, "marking attendance in bulk")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) updateStatus(ctx echo.Context, caller access.Caller) error {
	var req UpdateStatusRequest
	if err := ctx.Bind(&req); err != nil {
		return bindError(err)
	}
	fact, err := api.svc.UpdateStatus(ctx.Request().Context(), caller, ctx.Param("id"), req.Status)
	if err != nil {
		return errors.Wrap(err, "updating attendance")
	}
	return ctx.JSON(http.StatusOK, fact)
}

func (api *attendanceApi) destroy(ctx echo.Context, caller access.Caller) error {
	if err := api.svc.Delete(ctx.Request().Context(), caller, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting attendance")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) filter(ctx echo.Context) (f attendance.Filter, err error) {
	if f.From, err = timeParam(ctx, "from"); err != nil {
		return f, err
	}
	if f.Until, err = timeParam(ctx, "until"); err != nil {
		return f, err
	}
	f.CourseID = ctx.QueryParam("course_id")
	return f, nil
}

func (api *attendanceApi) forEnrollee(ctx echo.Context, caller access.Caller) error {
	f, err := api.filter(ctx)
	if err != nil {
		return err
	}
	report, err := api.svc.ForEnrollee(ctx.Request().Context(), caller, ctx.Param("id"), f)
	if err != nil {
		return errors.Wrap(err, "reporting enrollee attendance")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *attendanceApi) forCourse(ctx echo.Context, caller access.Caller) error {
	f, err := api.filter(ctx)
	if err != nil {
		return err
	}
	report, err := api.svc.ForCourse(ctx.Request().Context(), caller, ctx.Param("id"), f)
	if err != nil {
		return errors.Wrap(err, "reporting course attendance")
	}
	return ctx.JSON(http.StatusOK, report)
}
