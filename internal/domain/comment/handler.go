package comment

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/apperr"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/auth"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/pkg/pagination"
)

type SubjectSource interface {
	SubjectFor(ctx context.Context, userID uuid.UUID, role access.Role) (*access.Subject, error)
}

type Handler struct {
	svc      *Service
	subjects SubjectSource
}

func NewHandler(svc *Service, subjects SubjectSource) *Handler {
	return &Handler{svc: svc, subjects: subjects}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/comments", h.CreateComment)
	api.GET("/comments/search", h.SearchComments)
	api.GET("/comments/:id", h.GetComment)
	api.PUT("/comments/:id", h.UpdateComment)
	api.DELETE("/comments/:id", h.DeleteComment)
	api.GET("/comments/:id/replies", h.GetReplies)
	api.POST("/comments/:id/reactions", h.AddReaction)
	api.DELETE("/comments/:id/reactions", h.RemoveReaction)
	api.POST("/comments/:id/read", h.MarkAsRead)
	api.POST("/comments/:id/resolve", h.ResolveComment)
	api.POST("/comments/:id/flag", h.FlagComment)
	api.GET("/targets/:kind/:id/threads", h.GetThreads)
	api.GET("/targets/:kind/:id/analytics", h.GetAnalytics)
}

func (h *Handler) subject(c echo.Context) (*access.Subject, error) {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	subject, err := h.subjects.SubjectFor(c.Request().Context(), p.ID, p.Role)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return subject, nil
}

func commentID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

type createRequest struct {
	TargetKind string     `json:"target_kind"`
	TargetID   uuid.UUID  `json:"target_id"`
	ParentID   *uuid.UUID `json:"parent_id"`
	Content    string     `json:"content"`
	Type       string     `json:"type"`
	Priority   string     `json:"priority"`
	Visibility string     `json:"visibility"`
}

func (h *Handler) CreateComment(c echo.Context) error {
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cm := &Comment{
		TargetKind: req.TargetKind,
		TargetID:   req.TargetID,
		ParentID:   req.ParentID,
		Content:    req.Content,
		Type:       req.Type,
		Priority:   req.Priority,
		Visibility: access.Visibility(req.Visibility),
	}
	tc, err := h.svc.CreateComment(c.Request().Context(), subject, cm)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"comment": cm,
		"thread":  tc,
	})
}

func (h *Handler) GetComment(c echo.Context) error {
	id, err := commentID(c)
	if err != nil {
		return err
	}
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	cm, err := h.svc.GetComment(c.Request().Context(), subject, id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, cm)
}

func (h *Handler) UpdateComment(c echo.Context) error {
	id, err := commentID(c)
	if err != nil {
		return err
	}
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cm := &Comment{
		ID:         id,
		Content:    req.Content,
		Type:       req.Type,
		Priority:   req.Priority,
		Visibility: access.Visibility(req.Visibility),
	}
	updated, err := h.svc.UpdateComment(c.Request().Context(), subject, cm)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteComment(c echo.Context) error {
	id, err := commentID(c)
	if err != nil {
		return err
	}
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteComment(c.Request().Context(), subject, id); err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetReplies(c echo.Context) error {
	id, err := commentID(c)
	if err != nil {
		return err
	}
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	replies, err := h.svc.GetCommentReplies(c.Request().Context(), subject, id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, replies)
}

func (h *Handler) AddReaction(c echo.Context) error {
	id, err := commentID(c)
	if err != nil {
		return err
	}
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	var req struct {
		Type string `json:"type"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddReaction(c.Request().Context(), subject, id, req.Type); err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RemoveReaction(c echo.Context) error {
	id, err := commentID(c)
	if err != nil {
		return err
	}
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	if err := h.svc.RemoveReaction(c.Request().Context(), subject, id); err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MarkAsRead(c echo.Context) error {
	id, err := commentID(c)
	if err != nil {
		return err
	}
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	if err := h.svc.MarkAsRead(c.Request().Context(), subject, id); err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ResolveComment(c echo.Context) error {
	id, err := commentID(c)
	if err != nil {
		return err
	}
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	cm, err := h.svc.ResolveComment(c.Request().Context(), subject, id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, cm)
}

func (h *Handler) FlagComment(c echo.Context) error {
	id, err := commentID(c)
	if err != nil {
		return err
	}
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.FlagComment(c.Request().Context(), subject, id, req.Reason); err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetThreads(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid target id")
	}
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	threads, total, err := h.svc.GetThreadedComments(c.Request().Context(), subject,
		c.Param("kind"), id, ThreadOptions{
			Sort:   c.QueryParam("sort"),
			Limit:  pg.Limit,
			Offset: pg.Offset,
		})
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(threads, total, pg.Limit, pg.Offset))
}

func (h *Handler) SearchComments(c echo.Context) error {
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchComments(c.Request().Context(), subject, SearchOptions{
		Term:       c.QueryParam("q"),
		TargetKind: c.QueryParam("target_kind"),
		Type:       c.QueryParam("type"),
		Priority:   c.QueryParam("priority"),
		Status:     c.QueryParam("status"),
		Limit:      pg.Limit,
		Offset:     pg.Offset,
	})
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetAnalytics(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid target id")
	}
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	a, err := h.svc.DiscussionAnalytics(c.Request().Context(), subject, c.Param("kind"), id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, a)
}
