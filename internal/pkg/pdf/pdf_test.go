package pdf

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signaturePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 60, 20))
	for x := 0; x < 60; x++ {
		img.Set(x, 10, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func sampleData(t *testing.T) Data {
	return Data{
		CompanyName:  "PT Sobat Sejahtera",
		DocumentNo:   "0190f3a2",
		EmployeeName: "Sari Dewi",
		RequestType:  "leave",
		Status:       "approved",
		GeneratedAt:  "2025-03-04 10:00",
		Fields: []Field{
			{Label: "Judul", Value: "Cuti tahunan"},
			{Label: "Tanggal", Value: "2025-03-01 s/d 2025-03-03"},
		},
		Approvals: []ApprovalLine{
			{Level: 1, Approver: "Budi", Status: "approved", ActedAt: "2025-03-02 09:00"},
			{Level: 2, Approver: "Citra", Status: "approved", ActedAt: "2025-03-02 11:00", Notes: "ok"},
		},
		Signatures: []Signature{
			{Label: "Pemohon"},
			{Label: "Budi", Image: signaturePNG(t)},
		},
	}
}

func TestRender_Templates(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	for _, name := range []string{TemplateApprovalProof, TemplateManagerRequest} {
		t.Run(name, func(t *testing.T) {
			out, err := r.Render(name, sampleData(t))
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
		})
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, err = r.Render("payslip", Data{})
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestRender_BrokenImageIsAnError(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	data := sampleData(t)
	data.Signatures = []Signature{{Label: "x", Image: []byte("not a png")}}
	_, err = r.Render(TemplateApprovalProof, data)
	assert.Error(t, err)
}
