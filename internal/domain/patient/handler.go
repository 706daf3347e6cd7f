package patient

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/empathic/podiatry/internal/platform/auth"
	"github.com/empathic/podiatry/internal/platform/db"
	"github.com/empathic/podiatry/pkg/pagination"
)

type Handler struct {
	svc    *Service
	policy *Policy
	now    func() time.Time
}

func NewHandler(svc *Service, policy *Policy) *Handler {
	return &Handler{svc: svc, policy: policy, now: time.Now}
}

// SetClock overrides the clock used for staleness views, reviews and MarkSeen.
func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RolePodiatrist, auth.RoleStaff))
	readGroup.GET("/patients", h.List)
	readGroup.GET("/patients/:id", h.Get)
	readGroup.GET("/facilities/:id/patients", h.ListByFacility)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RolePodiatrist, auth.RoleStaff))
	writeGroup.POST("/patients", h.Create)
	writeGroup.PUT("/patients/:id", h.Update)
	writeGroup.PATCH("/patients/:id", h.Update)
	writeGroup.DELETE("/patients/:id", h.Archive)
	writeGroup.PATCH("/patients/:id/restore", h.Restore)
	writeGroup.POST("/patients/:id/seen", h.MarkSeen)

	reviewGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RolePodiatrist))
	reviewGroup.POST("/facilities/:id/review", h.Review)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.DELETE("/patients/:id/force", h.ForceDelete)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) List(c echo.Context) error {
	scope, err := db.ScopeFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pg := pagination.FromContext(c)
	filter := ListFilter{Scope: scope, Limit: pg.Limit, Offset: pg.Offset}
	if v := c.QueryParam("facility_id"); v != "" {
		fid, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid facility_id")
		}
		filter.FacilityID = &fid
	}
	if v := c.QueryParam("status"); v != "" {
		s := Status(v)
		filter.Status = &s
	}

	items, total, err := h.svc.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}

// ListByFacility returns the facility's active queue with derived due flags.
func (h *Handler) ListByFacility(c echo.Context) error {
	fid, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByFacility(c.Request().Context(), fid, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	now := h.now()
	views := make([]View, 0, len(items))
	for _, p := range items {
		views = append(views, NewView(p, now))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	scope, err := db.ScopeFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Get(c.Request().Context(), id, scope)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Create(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &p); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

// Update applies a partial update. With ?policy=true a leaving status also
// archives the patient.
func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var u Update
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	if c.QueryParam("policy") != "true" {
		p, err := h.svc.Update(ctx, id, &u)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, p)
	}

	p, archived, err := h.policy.UpdateWithPolicy(ctx, id, &u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patient":  p,
		"archived": archived,
	})
}

func (h *Handler) Archive(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Archive(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Patient deleted",
		"patient": p,
	})
}

func (h *Handler) Restore(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Restore(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Patient restored",
		"patient": p,
	})
}

func (h *Handler) ForceDelete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.ForceDelete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Patient permanently deleted"})
}

func (h *Handler) MarkSeen(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.policy.MarkSeen(c.Request().Context(), id, h.now())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Review(c echo.Context) error {
	fid, err := parseID(c)
	if err != nil {
		return err
	}
	res, err := h.policy.ReviewFacility(c.Request().Context(), fid, h.now())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
