package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const check = "✓"

// XLSXRenderer renders documents as a single-sheet workbook for download.
type XLSXRenderer struct{}

func NewXLSXRenderer() *XLSXRenderer { return &XLSXRenderer{} }

func (r *XLSXRenderer) Format() Format { return FormatXLSX }

// sheet is the neutral grid both templates are laid out on before writing.
type sheet struct {
	name    string
	title   string
	meta    [][2]string
	headers []string
	widths  []float64
	rows    [][]string
}

func (r *XLSXRenderer) Render(t Template, doc any) (*Rendered, error) {
	if err := checkDoc(t, doc); err != nil {
		return nil, err
	}

	var s sheet
	switch d := doc.(type) {
	case *PhysicianOrder:
		s = physicianOrderSheet(d)
	case *PodiatryVisit:
		s = podiatryVisitSheet(d)
	}

	body, err := s.write()
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", t, err)
	}
	return &Rendered{Body: body, ContentType: contentTypeXLSX, Filename: filename(t, FormatXLSX)}, nil
}

func mark(b bool) string {
	if b {
		return check
	}
	return ""
}

func physicianOrderSheet(d *PhysicianOrder) sheet {
	s := sheet{
		name:  "Physician Order",
		title: "Physician Order for Podiatry Services",
		meta: [][2]string{
			{"Practice", d.PracticeName},
			{"Facility", d.FacilityName},
			{"Date", d.Date},
		},
		headers: []string{"Name", "Diagnoses", "Deceased", "Discharged", "Other"},
		widths:  []float64{30, 40, 12, 12, 12},
	}
	if d.Placeholder != "" {
		s.rows = [][]string{{d.Placeholder}}
		return s
	}
	for _, row := range d.Rows {
		s.rows = append(s.rows, []string{
			row.Name,
			strings.Join(row.Diagnoses, "\n"),
			mark(row.Deceased),
			mark(row.Discharged),
			mark(row.Other),
		})
	}
	return s
}

func podiatryVisitSheet(d *PodiatryVisit) sheet {
	s := sheet{
		name:  "Podiatry Visit",
		title: "Podiatry Visit",
		meta: [][2]string{
			{"Practice", d.PracticeName},
			{"Facility", d.FacilityName},
			{"Contact", d.FacilityContact},
			{"Address", d.Address},
			{"Phone", d.Phone},
			{"Date", d.Date},
		},
		headers: []string{"#", "Name", "Room", "Comment"},
		widths:  []float64{6, 30, 12, 40},
	}
	if d.Placeholder != "" {
		s.rows = [][]string{{d.Placeholder}}
		return s
	}
	for _, row := range d.Rows {
		s.rows = append(s.rows, []string{fmt.Sprint(row.Number), row.Name, row.RoomNumber, row.Comment})
	}
	return s
}

func (s sheet) write() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(s.name); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	index, err := f.GetSheetIndex(s.name)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return nil, fmt.Errorf("create title style: %w", err)
	}
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#F0F0F0"}, Pattern: 1},
		Border:    border,
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	cellStyle, err := f.NewStyle(&excelize.Style{
		Border:    border,
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create cell style: %w", err)
	}

	if err := f.SetCellValue(s.name, "A1", s.title); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(s.name, "A1", "A1", titleStyle); err != nil {
		return nil, err
	}

	row := 2
	for _, kv := range s.meta {
		if err := f.SetSheetRow(s.name, fmt.Sprintf("A%d", row), &[]string{kv[0], kv[1]}); err != nil {
			return nil, fmt.Errorf("write %s: %w", kv[0], err)
		}
		row++
	}
	row++

	headerRow := row
	if err := f.SetSheetRow(s.name, fmt.Sprintf("A%d", headerRow), &s.headers); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(s.headers))
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(s.name, fmt.Sprintf("A%d", headerRow), fmt.Sprintf("%s%d", lastCol, headerRow), headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i, width := range s.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(s.name, col, col, width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	for i, values := range s.rows {
		r := headerRow + 1 + i
		if err := f.SetSheetRow(s.name, fmt.Sprintf("A%d", r), &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r, err)
		}
		if len(values) == 1 && len(s.headers) > 1 {
			if err := f.MergeCell(s.name, fmt.Sprintf("A%d", r), fmt.Sprintf("%s%d", lastCol, r)); err != nil {
				return nil, fmt.Errorf("merge placeholder: %w", err)
			}
		}
		if err := f.SetCellStyle(s.name, fmt.Sprintf("A%d", r), fmt.Sprintf("%s%d", lastCol, r), cellStyle); err != nil {
			return nil, fmt.Errorf("style row %d: %w", r, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
