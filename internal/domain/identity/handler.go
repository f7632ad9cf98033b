package identity

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/apperr"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/auth"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/pkg/pagination"
)

type Handler struct {
	svc       *Service
	jwtCfg    auth.JWTConfig
	devTokens bool
}

func NewHandler(svc *Service, jwtCfg auth.JWTConfig, devTokens bool) *Handler {
	return &Handler{svc: svc, jwtCfg: jwtCfg, devTokens: devTokens}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/users", h.RegisterUser)
	api.GET("/users", h.ListUsers)
	api.GET("/users/:id", h.GetUser)
	api.PUT("/users/:id", h.UpdateUser)
	api.DELETE("/users/:id", h.DeactivateUser)
	api.GET("/patients/:id/team", h.CareTeam)
	api.POST("/patients/:id/providers/:providerID", h.AssignProvider)
	api.DELETE("/patients/:id/providers/:providerID", h.UnassignProvider)
}

// RegisterAuthRoutes mounts the token endpoint outside the authenticated
// group. Token minting is available in development only.
func (h *Handler) RegisterAuthRoutes(root *echo.Group) {
	if h.devTokens {
		root.POST("/auth/token", h.DevToken)
	}
}

func (h *Handler) subject(c echo.Context) (*access.Subject, error) {
	p := auth.PrincipalFromContext(c.Request().Context())
	if p == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	subject, err := h.svc.SubjectFor(c.Request().Context(), p.ID, p.Role)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return subject, nil
}

func (h *Handler) RegisterUser(c echo.Context) error {
	var u User
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RegisterUser(c.Request().Context(), &u); err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	u, err := h.svc.GetUser(c.Request().Context(), subject, id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	var u User
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u.ID = id
	if err := h.svc.UpdateUser(c.Request().Context(), subject, &u); err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeactivateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeactivateUser(c.Request().Context(), subject, id); err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListUsers(c echo.Context) error {
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	role := access.Role(c.QueryParam("role"))
	if role != "" && !role.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid role")
	}
	pg := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), subject, role, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, pg.Limit, pg.Offset))
}

func (h *Handler) CareTeam(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	team, err := h.svc.CareTeam(c.Request().Context(), subject, patientID)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, team)
}

func (h *Handler) AssignProvider(c echo.Context) error {
	return h.changeAssignment(c, h.svc.AssignProvider, http.StatusCreated)
}

func (h *Handler) UnassignProvider(c echo.Context) error {
	return h.changeAssignment(c, h.svc.UnassignProvider, http.StatusNoContent)
}

func (h *Handler) changeAssignment(c echo.Context,
	op func(ctx context.Context, subject *access.Subject, patientID, providerID uuid.UUID) error,
	status int) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	providerID, err := uuid.Parse(c.Param("providerID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid provider id")
	}
	subject, err := h.subject(c)
	if err != nil {
		return err
	}
	if err := op(c.Request().Context(), subject, patientID, providerID); err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	if status == http.StatusNoContent {
		return c.NoContent(status)
	}
	return c.JSON(status, map[string]string{
		"patient_id":  patientID.String(),
		"provider_id": providerID.String(),
	})
}

// DevToken mints a signed token for an existing user, looked up by handle.
func (h *Handler) DevToken(c echo.Context) error {
	var req struct {
		Handle string `json:"handle"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.users.GetByHandle(c.Request().Context(), req.Handle)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), "unknown handle")
	}
	token, err := auth.IssueToken(h.jwtCfg, u.ID, u.Role, u.Name, 24*time.Hour)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"token": token})
}
