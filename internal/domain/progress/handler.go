package progress

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
	api.POST("/progress", h.RecordEntry)
	api.GET("/progress", h.ListEntries)
	api.GET("/progress/:id", h.GetEntry)
	api.PUT("/progress/:id", h.UpdateEntry)
	api.DELETE("/progress/:id", h.DeleteEntry)
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

func (h *Handler) RecordEntry(c echo.Context) error {
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	var e Entry
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RecordEntry(c.Request().Context(), subject, &e); err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	e, err := h.svc.GetEntry(c.Request().Context(), subject, id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) UpdateEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	var e Entry
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e.ID = id
	if err := h.svc.UpdateEntry(c.Request().Context(), subject, &e); err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteEntry(c.Request().Context(), subject, id); err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListEntries(c echo.Context) error {
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	var taskID, patientID uuid.UUID
	if raw := c.QueryParam("task_id"); raw != "" {
		taskID, err = uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid task_id")
		}
	}
	if raw := c.QueryParam("patient_id"); raw != "" {
		patientID, err = uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListEntries(c.Request().Context(), subject,
		taskID, patientID, c.QueryParam("since"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
