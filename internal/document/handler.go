package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/empathic/podiatry/internal/domain/facility"
	"github.com/empathic/podiatry/internal/domain/patient"
	"github.com/empathic/podiatry/internal/platform/auth"
	"github.com/empathic/podiatry/internal/platform/blobstore"
	"github.com/empathic/podiatry/internal/platform/db"
	"github.com/empathic/podiatry/internal/platform/middleware"
)

// ArchiveKeyHeader carries the blob key of the archived copy, when archived.
const ArchiveKeyHeader = "X-Document-Key"

// FacilityFinder resolves the facility a document is printed for.
type FacilityFinder interface {
	Get(ctx context.Context, id uuid.UUID, scope db.Scope) (*facility.Facility, error)
}

// PatientLister returns a facility's active patients. Limit 0 returns all.
type PatientLister interface {
	ListByFacility(ctx context.Context, facilityID uuid.UUID, limit, offset int) ([]*patient.Patient, int, error)
}

// Recorder counts rendered documents.
type Recorder interface {
	RecordDocument(template, format string)
}

// Request is the body of every render endpoint. Patients are printed in the
// order given. When Patients is absent and FacilityID is set, the facility's
// queue is loaded, filtered for the template and sorted by name.
type Request struct {
	Patients        []Patient  `json:"patients"`
	FacilityID      *uuid.UUID `json:"facility_id"`
	FacilityName    string     `json:"facilityName"`
	FacilityContact string     `json:"facilityContact"`
}

type Handler struct {
	gen        *Generator
	renderers  map[Format]Renderer
	facilities FacilityFinder
	patients   PatientLister
	archive    blobstore.Store
	recorder   Recorder
	logger     zerolog.Logger
	now        func() time.Time
}

func NewHandler(gen *Generator, facilities FacilityFinder, patients PatientLister, renderers ...Renderer) *Handler {
	h := &Handler{
		gen:        gen,
		renderers:  make(map[Format]Renderer, len(renderers)),
		facilities: facilities,
		patients:   patients,
		logger:     zerolog.Nop(),
		now:        time.Now,
	}
	for _, r := range renderers {
		h.renderers[r.Format()] = r
	}
	return h
}

// SetArchive stores a copy of every rendered document in store. A nil store
// disables archiving.
func (h *Handler) SetArchive(store blobstore.Store) {
	h.archive = store
}

func (h *Handler) SetRecorder(r Recorder) {
	h.recorder = r
}

func (h *Handler) SetLogger(l zerolog.Logger) {
	h.logger = l
}

func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}

// RegisterRoutes mounts, for each template t:
//
//	POST /pdf/generate-<t>  - render inline (?format=html|xlsx, default html)
//	POST /pdf/download-<t>  - render as an attachment
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/pdf", auth.RequireRole(auth.RoleAdmin, auth.RolePodiatrist, auth.RoleStaff))
	for _, t := range []Template{TemplatePhysicianOrder, TemplatePodiatryVisit} {
		g.POST("/generate-"+string(t), h.render(t, false))
		g.POST("/download-"+string(t), h.render(t, true))
	}
}

func (h *Handler) render(t Template, attachment bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		format, err := ParseFormat(c.QueryParam("format"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		renderer, ok := h.renderers[format]
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("format %q is not available", format))
		}

		var req Request
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}

		doc, err := h.build(c.Request().Context(), t, &req)
		if err != nil {
			return err
		}
		out, err := renderer.Render(t, doc)
		if err != nil {
			return err
		}
		if h.recorder != nil {
			h.recorder.RecordDocument(string(t), string(format))
		}
		h.store(c, t, format, out)

		disposition := "inline"
		if attachment {
			disposition = "attachment"
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`%s; filename="%s"`, disposition, out.Filename))
		if format == FormatHTML {
			c.Response().Header().Set("Content-Security-Policy", middleware.DocumentContentSecurityPolicy)
		}
		return c.Blob(http.StatusOK, out.ContentType, out.Body)
	}
}

// build assembles the document for t from the request.
func (h *Handler) build(ctx context.Context, t Template, req *Request) (any, error) {
	patients := req.Patients
	name, contact := req.FacilityName, req.FacilityContact

	if req.FacilityID != nil {
		f, err := h.facilities.Get(ctx, *req.FacilityID, db.ScopeActive)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(name) == "" {
			name = f.Name
		}
		if strings.TrimSpace(contact) == "" && f.ContactName != nil {
			contact = *f.ContactName
		}
		if patients == nil {
			queue, err := h.queue(ctx, t, f.ID)
			if err != nil {
				return nil, err
			}
			patients = queue
		}
	}

	switch t {
	case TemplatePhysicianOrder:
		return h.gen.PhysicianOrder(patients, name), nil
	case TemplatePodiatryVisit:
		return h.gen.PodiatryVisit(patients, name, contact), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, t)
}

// queue selects the facility patients that belong on t, sorted by name.
func (h *Handler) queue(ctx context.Context, t Template, facilityID uuid.UUID) ([]Patient, error) {
	stored, _, err := h.patients.ListByFacility(ctx, facilityID, 0, 0)
	if err != nil {
		return nil, err
	}

	var selected []*patient.Patient
	for _, p := range stored {
		switch t {
		case TemplatePhysicianOrder:
			if p.TypeOfConsent != nil && *p.TypeOfConsent == PhysicianConsent {
				selected = append(selected, p)
			}
		case TemplatePodiatryVisit:
			if p.HasStatus(patient.StatusNeedsSeen) {
				selected = append(selected, p)
			}
		}
	}

	out := FromPatients(selected)
	SortByName(out)
	return out, nil
}

// store archives out when an archive is configured. Failures are logged and
// never fail the request.
func (h *Handler) store(c echo.Context, t Template, format Format, out *Rendered) {
	if h.archive == nil {
		return
	}
	key := ArchiveKey(t, format, h.now(), uuid.New())
	if _, err := h.archive.Put(c.Request().Context(), key, out.ContentType, bytes.NewReader(out.Body)); err != nil {
		level := zerolog.ErrorLevel
		if errors.Is(err, blobstore.ErrBlobExists) {
			level = zerolog.WarnLevel
		}
		h.logger.WithLevel(level).Err(err).Str("key", key).Msg("archive document")
		return
	}
	c.Response().Header().Set(ArchiveKeyHeader, key)
}

// ArchiveKey is documents/<template>/<timestamp>-<id>.<ext>.
func ArchiveKey(t Template, format Format, at time.Time, id uuid.UUID) string {
	return fmt.Sprintf("%s%s/%s-%s.%s", blobstore.Prefix, t, at.UTC().Format("20060102T150405Z"), id, format)
}
