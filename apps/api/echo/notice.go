package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/notice"
)

type noticeApi struct {
	svc *notice.Service
}

func registerNoticeAPI(g *echo.Group, svc *notice.Service) {
	api := noticeApi{svc: svc}

	ng := g.Group("/notices")
	ng.POST("", withCaller(api.send))
	ng.GET("", withCaller(api.inbox))
	ng.GET("/unread-count", withCaller(api.unreadCount))
	ng.POST("/read", withCaller(api.markAllRead))
	ng.GET("/sent", withCaller(api.sent))
	ng.POST("/:id/read", withCaller(api.markRead))
	ng.DELETE("/:id", withCaller(api.destroy))
}

func (api *noticeApi) send(ctx echo.Context, caller access.Caller) error {
	var data notice.NewNotice
	if err := ctx.Bind(&data); err != nil {
		return bindError(err)
	}
	n, err := api.svc.Send(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "sending notice")
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (api *noticeApi) inbox(ctx echo.Context, caller access.Caller) error {
	inbox, err := api.svc.ListVisible(ctx.Request().Context(), caller)
	if err != nil {
		return errors.Wrap(err, "listing notices")
	}
	return ctx.JSON(http.StatusOK, inbox)
}

func (api *noticeApi) unreadCount(ctx echo.Context, caller access.Caller) error {
	n, err := api.svc.UnreadCount(ctx.Request().Context(), caller)
	if err != nil {
		return errors.Wrap(err, "counting unread notices")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *noticeApi) markRead(ctx echo.Context, caller access.Caller) error {
	if err := api.svc.MarkRead(ctx.Request().Context(), caller, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "marking notice read")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// markAllRead answers how many notices were unread.
func (api *noticeApi) markAllRead(ctx echo.Context, caller access.Caller) error {
	n, err := api.svc.MarkAllRead(ctx.Request().Context(), caller)
	if err != nil {
		return errors.Wrap(err, "marking notices read")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *noticeApi) sent(ctx echo.Context, caller access.Caller) error {
	sent, err := api.svc.ListSent(ctx.Request().Context(), caller)
	if err != nil {
		return errors.Wrap(err, "listing sent notices")
	}
	if sent == nil {
		sent = []notice.Sent{}
	}
	return ctx.JSON(http.StatusOK, sent)
}

func (api *noticeApi) destroy(ctx echo.Context, caller access.Caller) error {
	if err := api.svc.Delete(ctx.Request().Context(), caller, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting notice")
	}
	return ctx.NoContent(http.StatusNoContent)
}
