package echoapi

import (
	"context"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/assignment"
	blobsvc "github.com/trezcool/daftari/services/blob"
)

const documentField = "file"

type assignmentApi struct {
	svc  *assignment.Service
	blob blobsvc.Store
}

type (
	// SubmitRequest is the JSON form of a submission; a multipart upload sets the handle instead.
	SubmitRequest struct {
		DocumentHandle string `json:"document_handle"`
	}

	DocumentResponse struct {
		Handle string `json:"handle"`
	}
)

func registerAssignmentAPI(g *echo.Group, svc *assignment.Service, blob blobsvc.Store) {
	api := assignmentApi{svc: svc, blob: blob}

	g.POST("/documents", withCaller(api.upload))

	tg := g.Group("/tasks")
	tg.POST("", withCaller(api.createTask))
	tg.GET("", withCaller(api.queryTasks))
	tg.GET("/:id", withCaller(api.retrieveTask))
	tg.PATCH("/:id", withCaller(api.updateTask))
	tg.DELETE("/:id", withCaller(api.destroyTask))
	tg.GET("/:id/document", withCaller(api.taskDocument))
	tg.GET("/:id/submissions", withCaller(api.querySubmissions))
	tg.POST("/:id/submissions", withCaller(api.submit))

	sg := g.Group("/submissions")
	sg.GET("/:id", withCaller(api.retrieveSubmission))
	sg.PUT("/:id/grade", withCaller(api.grade))
	sg.GET("/:id/document", withCaller(api.submissionDocument))

	g.GET("/courses/:id/tasks", withCaller(api.queryTasks))
	g.GET("/me/submissions", withCaller(api.mySubmissions))
}

// store saves the uploaded document of the request.
func (api *assignmentApi) store(ctx echo.Context) (string, error) {
	fh, err := ctx.FormFile(documentField)
	if err != nil {
		return "", errNoDocument
	}
	src, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "opening upload")
	}
	defer src.Close()

	handle, err := api.blob.Put(ctx.Request().Context(), fh.Filename, src)
	return handle, errors.Wrap(err, "storing document")
}

func isMultipart(ctx echo.Context) bool {
	return strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

func (api *assignmentApi) upload(ctx echo.Context, _ access.Caller) error {
	handle, err := api.store(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, DocumentResponse{Handle: handle})
}

func (api *assignmentApi) createTask(ctx echo.Context, caller access.Caller) error {
	var data assignment.NewTask
	if err := ctx.Bind(&data); err != nil {
		return bindError(err)
	}
	t, err := api.svc.CreateTask(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *assignmentApi) queryTasks(ctx echo.Context, caller access.Caller) error {
	courseID := ctx.Param("id")
	if courseID == "" {
		courseID = ctx.QueryParam("course_id")
	}
	tasks, err := api.svc.ListTasks(ctx.Request().Context(), caller, courseID)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if tasks == nil {
		tasks = []assignment.Task{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *assignmentApi) retrieveTask(ctx echo.Context, caller access.Caller) error {
	t, err := api.svc.GetTask(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *assignmentApi) updateTask(ctx echo.Context, caller access.Caller) error {
	var data assignment.UpdateTask
	if err := ctx.Bind(&data); err != nil {
		return bindError(err)
	}
	t, err := api.svc.UpdateTask(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *assignmentApi) destroyTask(ctx echo.Context, caller access.Caller) error {
	if err := api.svc.DeleteTask(ctx.Request().Context(), caller, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assignmentApi) querySubmissions(ctx echo.Context, caller access.Caller) error {
	subs, err := api.svc.ListSubmissions(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []assignment.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assignmentApi) mySubmissions(ctx echo.Context, caller access.Caller) error {
	subs, err := api.svc.MySubmissions(ctx.Request().Context(), caller, ctx.QueryParam("course_id"))
	if err != nil {
		return errors.Wrap(err, "querying own submissions")
	}
	if subs == nil {
		subs = []assignment.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

// submit accepts either a JSON document handle or a multipart upload under "file".
// An upload is discarded when the submission is rejected.
func (api *assignmentApi) submit(ctx echo.Context, caller access.Caller) error {
	data := assignment.NewSubmission{TaskID: ctx.Param("id")}
	uploaded := false
	if isMultipart(ctx) {
		handle, err := api.store(ctx)
		if err != nil {
			return err
		}
		data.DocumentHandle = handle
		uploaded = true
	} else {
		var req SubmitRequest
		if err := ctx.Bind(&req); err != nil {
			return bindError(err)
		}
		data.DocumentHandle = req.DocumentHandle
	}

	s, err := api.svc.Submit(ctx.Request().Context(), caller, data)
	if err != nil {
		if uploaded {
			_ = api.blob.Delete(context.Background(), data.DocumentHandle)
		}
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *assignmentApi) retrieveSubmission(ctx echo.Context, caller access.Caller) error {
	s, err := api.svc.GetSubmission(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting submission")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *assignmentApi) grade(ctx echo.Context, caller access.Caller) error {
	var data assignment.GradeSubmission
	if err := ctx.Bind(&data); err != nil {
		return bindError(err)
	}
	s, err := api.svc.Grade(ctx.Request().Context(), caller, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *assignmentApi) taskDocument(ctx echo.Context, caller access.Caller) error {
	t, err := api.svc.GetTask(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return api.stream(ctx, t.DocumentHandle)
}

func (api *assignmentApi) submissionDocument(ctx echo.Context, caller access.Caller) error {
	s, err := api.svc.GetSubmission(ctx.Request().Context(), caller, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting submission")
	}
	return api.stream(ctx, s.DocumentHandle)
}

// stream sends a stored document as an attachment. Handles from elsewhere are not found.
func (api *assignmentApi) stream(ctx echo.Context, handle string) error {
	if handle == "" {
		return blobsvc.ErrNotFound
	}
	rc, err := api.blob.Open(ctx.Request().Context(), handle)
	if err != nil {
		return errors.Wrap(err, "opening document")
	}
	defer rc.Close()

	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+path.Base(handle)+`"`)
	ctx.Response().Header().Set(echo.HeaderContentType, echo.MIMEOctetStream)
	ctx.Response().WriteHeader(http.StatusOK)
	_, err = io.Copy(ctx.Response(), rc)
	return err
}
