package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"text/template"

	"github.com/go-pdf/fpdf"
)

// Template names understood by the renderer.
const (
	TemplateApprovalProof  = "approval_proof"
	TemplateManagerRequest = "manager_request"
)

var ErrUnknownTemplate = errors.New("unknown document template")

// Field is one label/value line of the request summary.
type Field struct {
	Label string
	Value string
}

// ApprovalLine is one row of the approval table.
type ApprovalLine struct {
	Level    int
	Approver string
	Status   string
	ActedAt  string
	Notes    string
}

// Signature is a PNG image printed under Label.
type Signature struct {
	Label string
	Image []byte
}

// Data is the bag of values a template is rendered with.
type Data struct {
	CompanyName  string
	DocumentNo   string
	EmployeeName string
	RequestType  string
	Status       string
	GeneratedAt  string
	Fields       []Field
	Approvals    []ApprovalLine
	Signatures   []Signature
}

type Renderer interface {
	Render(name string, data Data) ([]byte, error)
}

type layout struct {
	heading string
	intro   *template.Template
}

type renderer struct {
	layouts map[string]layout
}

func NewRenderer() (Renderer, error) {
	layouts := make(map[string]layout, len(builtinTemplates))
	for name, t := range builtinTemplates {
		intro, err := template.New(name).Parse(t.intro)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		layouts[name] = layout{heading: t.heading, intro: intro}
	}
	return &renderer{layouts: layouts}, nil
}

var builtinTemplates = map[string]struct{ heading, intro string }{
	TemplateApprovalProof: {
		heading: "BUKTI PERSETUJUAN PENGAJUAN",
		intro: "Dokumen ini menyatakan bahwa pengajuan {{.RequestType}} atas nama {{.EmployeeName}} " +
			"telah diproses dengan status akhir: {{.Status}}.",
	},
	TemplateManagerRequest: {
		heading: "FORMULIR PENGAJUAN",
		intro: "Pengajuan {{.RequestType}} atas nama {{.EmployeeName}} sedang menunggu persetujuan. " +
			"Formulir ini dicetak untuk ditandatangani secara langsung.",
	},
}

// Render lays out the named template as an A4 PDF.
func (r *renderer) Render(name string, data Data) (out []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf render panic: %v", rec)
		}
	}()

	l, ok := r.layouts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}

	var intro bytes.Buffer
	if err := l.intro.Execute(&intro, data); err != nil {
		return nil, fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	doc := fpdf.New("P", "mm", "A4", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetMargins(15, 15, 15)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 14)
	doc.CellFormat(0, 8, tr(data.CompanyName), "", 1, "C", false, 0, "")
	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(0, 8, tr(l.heading), "", 1, "C", false, 0, "")
	if data.DocumentNo != "" {
		doc.SetFont("Helvetica", "", 9)
		doc.CellFormat(0, 5, tr("No: "+data.DocumentNo), "", 1, "C", false, 0, "")
	}
	doc.Ln(4)

	doc.SetFont("Helvetica", "", 10)
	doc.MultiCell(0, 5, tr(intro.String()), "", "L", false)
	doc.Ln(3)

	for _, f := range data.Fields {
		doc.SetFont("Helvetica", "B", 10)
		doc.CellFormat(45, 6, tr(f.Label), "", 0, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 10)
		doc.MultiCell(0, 6, tr(": "+f.Value), "", "L", false)
	}

	if len(data.Approvals) > 0 {
		doc.Ln(4)
		widths := []float64{15, 55, 25, 35, 50}
		headers := []string{"Level", "Approver", "Status", "Waktu", "Catatan"}
		doc.SetFont("Helvetica", "B", 9)
		doc.SetFillColor(230, 230, 230)
		for i, h := range headers {
			doc.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
		}
		doc.Ln(-1)
		doc.SetFont("Helvetica", "", 9)
		for _, a := range data.Approvals {
			cells := []string{fmt.Sprintf("%d", a.Level), a.Approver, a.Status, a.ActedAt, a.Notes}
			for i, c := range cells {
				doc.CellFormat(widths[i], 7, tr(truncate(c, 40)), "1", 0, "L", false, 0, "")
			}
			doc.Ln(-1)
		}
	}

	if len(data.Signatures) > 0 {
		doc.Ln(8)
		drawSignatures(doc, tr, data.Signatures)
	}

	if data.GeneratedAt != "" {
		doc.SetAutoPageBreak(false, 0)
		doc.SetY(-20)
		doc.SetFont("Helvetica", "I", 8)
		doc.CellFormat(0, 5, tr("Dicetak pada "+data.GeneratedAt), "", 0, "R", false, 0, "")
	}

	if err := doc.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawSignatures(doc *fpdf.Fpdf, tr func(string) string, sigs []Signature) {
	const boxW, boxH = 55.0, 25.0
	left, _, _, _ := doc.GetMargins()
	y := doc.GetY()
	for i, s := range sigs {
		col := i % 3
		if col == 0 && i > 0 {
			y += boxH + 12
		}
		x := left + float64(col)*(boxW+5)

		doc.SetXY(x, y)
		doc.SetFont("Helvetica", "", 9)
		doc.CellFormat(boxW, 5, tr(s.Label), "", 0, "C", false, 0, "")
		if len(s.Image) > 0 {
			name := fmt.Sprintf("signature-%d", i)
			opts := fpdf.ImageOptions{ImageType: "PNG"}
			doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(s.Image))
			doc.ImageOptions(name, x+2, y+6, boxW-4, 0, false, opts, 0, "")
		}
		doc.Line(x, y+boxH+2, x+boxW, y+boxH+2)
	}
	doc.SetXY(left, y+boxH+6)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
