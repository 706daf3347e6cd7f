package blobstore

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
)

// Prefix is the key prefix under which rendered documents are archived.
const Prefix = "documents/"

// listResponse is the JSON envelope returned by the list endpoint.
type listResponse struct {
	Items []Info `json:"items"`
	Total int    `json:"total"`
}

// Handler serves archived documents.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts:
//
//	GET /documents    - list archived documents (?template= narrows the prefix)
//	GET /documents/*  - download one document
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/documents", h.handleList)
	g.GET("/documents/*", h.handleDownload)
}

func (h *Handler) handleList(c echo.Context) error {
	prefix := Prefix
	if t := c.QueryParam("template"); t != "" {
		prefix += t + "/"
	}
	if err := ValidateKey(prefix); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	items, err := h.store.List(c.Request().Context(), prefix)
	if err != nil {
		return err
	}
	if items == nil {
		items = []Info{}
	}
	return c.JSON(http.StatusOK, listResponse{Items: items, Total: len(items)})
}

func (h *Handler) handleDownload(c echo.Context) error {
	key := Prefix + strings.TrimPrefix(c.Param("*"), "/")
	if err := ValidateKey(key); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rc, info, err := h.store.Get(c.Request().Context(), key)
	if err != nil {
		return err
	}
	defer rc.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, path.Base(key)))
	return c.Stream(http.StatusOK, contentType, rc)
}
