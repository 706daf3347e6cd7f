package document

import (
	"errors"
	"fmt"
)

// Template identifies a document layout.
type Template string

const (
	TemplatePhysicianOrder Template = "physician-order"
	TemplatePodiatryVisit  Template = "podiatry-visit"
)

// Format is an output encoding.
type Format string

const (
	FormatHTML Format = "html"
	FormatXLSX Format = "xlsx"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	ErrUnknownTemplate  = errors.New("unknown document template")
	ErrUnknownFormat    = errors.New("unknown document format")
	ErrTemplateMismatch = errors.New("document does not match template")
)

func ParseTemplate(s string) (Template, error) {
	switch t := Template(s); t {
	case TemplatePhysicianOrder, TemplatePodiatryVisit:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, s)
}

// ParseFormat accepts html and xlsx. An empty string selects html.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case "":
		return FormatHTML, nil
	case FormatHTML, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Rendered is an encoded document ready to be served or archived.
type Rendered struct {
	Body        []byte
	ContentType string
	Filename    string
}

// Renderer encodes a generated document for one template. doc must be a
// *PhysicianOrder or *PodiatryVisit matching t.
type Renderer interface {
	Format() Format
	Render(t Template, doc any) (*Rendered, error)
}

func checkDoc(t Template, doc any) error {
	var ok bool
	switch t {
	case TemplatePhysicianOrder:
		_, ok = doc.(*PhysicianOrder)
	case TemplatePodiatryVisit:
		_, ok = doc.(*PodiatryVisit)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTemplate, t)
	}
	if !ok {
		return fmt.Errorf("%w: %s got %T", ErrTemplateMismatch, t, doc)
	}
	return nil
}

func filename(t Template, f Format) string {
	return string(t) + "." + string(f)
}
