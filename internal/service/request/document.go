package request

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sobat-hris/sobat-backend-go/internal/domain/overtime"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/request"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/user"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/pdf"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/xlsx"
)

// printableLevel is the lowest requester approval level whose pending
// requests may be printed for wet signature.
const printableLevel = 2

const timestampLayout = "02-01-2006 15:04"

var statusLabels = map[string]string{
	string(request.StatusDraft):     "Draft",
	string(request.StatusPending):   "Menunggu",
	string(request.StatusApproved):  "Disetujui",
	string(request.StatusRejected):  "Ditolak",
	string(request.ApprovalSkipped): "Dilewati",
}

func statusLabel(s string) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return s
}

func (s *RequestServiceImpl) canPrint(ctx context.Context, r request.Request) (bool, error) {
	if r.Status != request.StatusPending {
		return false, nil
	}
	requester, err := s.getEmployee(ctx, r.CompanyID, r.EmployeeID)
	if err != nil {
		return false, err
	}
	return requester.Level() >= printableLevel, nil
}

// CanPrint implements request.Service.
func (s *RequestServiceImpl) CanPrint(ctx context.Context, caller request.Caller, id string) (request.CanPrintResponse, error) {
	r, _, err := s.loadVisible(ctx, caller, id)
	if err != nil {
		return request.CanPrintResponse{}, err
	}
	ok, err := s.canPrint(ctx, r)
	if err != nil {
		return request.CanPrintResponse{}, err
	}
	return request.CanPrintResponse{CanPrint: ok}, nil
}

// RenderProof implements request.Service.
func (s *RequestServiceImpl) RenderProof(ctx context.Context, caller request.Caller, id string) (request.Document, error) {
	r, approvals, err := s.loadVisible(ctx, caller, id)
	if err != nil {
		return request.Document{}, err
	}
	if !r.Status.IsTerminal() {
		return request.Document{}, request.ErrNotFinalized
	}

	data := s.documentData(ctx, r, approvals, true)
	out, err := s.renderer.Render(pdf.TemplateApprovalProof, data)
	if err != nil {
		return request.Document{}, fmt.Errorf("failed to render approval proof: %w", err)
	}
	return request.Document{
		Filename:    fmt.Sprintf("bukti-persetujuan-%s.pdf", r.ID),
		ContentType: "application/pdf",
		Data:        out,
	}, nil
}

// RenderPrint implements request.Service.
func (s *RequestServiceImpl) RenderPrint(ctx context.Context, caller request.Caller, id string) (request.Document, error) {
	r, approvals, err := s.loadVisible(ctx, caller, id)
	if err != nil {
		return request.Document{}, err
	}
	ok, err := s.canPrint(ctx, r)
	if err != nil {
		return request.Document{}, err
	}
	if !ok {
		return request.Document{}, request.ErrNotPrintable
	}

	data := s.documentData(ctx, r, approvals, false)
	out, err := s.renderer.Render(pdf.TemplateManagerRequest, data)
	if err != nil {
		return request.Document{}, fmt.Errorf("failed to render request form: %w", err)
	}
	return request.Document{
		Filename:    fmt.Sprintf("formulir-pengajuan-%s.pdf", r.ID),
		ContentType: "application/pdf",
		Data:        out,
	}, nil
}

func (s *RequestServiceImpl) documentData(ctx context.Context, r request.Request, approvals []request.Approval, withSignatures bool) pdf.Data {
	data := pdf.Data{
		CompanyName:  s.appName,
		DocumentNo:   strings.ToUpper(r.ID),
		EmployeeName: r.EmployeeName,
		RequestType:  typeLabel(r.Type),
		Status:       statusLabel(string(r.Status)),
		GeneratedAt:  s.now().Format(timestampLayout),
		Fields:       requestFields(r),
	}

	for _, a := range approvals {
		line := pdf.ApprovalLine{
			Level:    a.Level,
			Approver: a.ApproverName,
			Status:   statusLabel(string(a.Status)),
		}
		if a.ActedAt != nil {
			line.ActedAt = a.ActedAt.Format(timestampLayout)
		}
		if a.Notes != nil {
			line.Notes = *a.Notes
		}
		data.Approvals = append(data.Approvals, line)

		if !withSignatures {
			data.Signatures = append(data.Signatures, pdf.Signature{Label: a.ApproverName})
			continue
		}
		if a.Status != request.ApprovalApproved || a.SignatureBlobID == nil {
			continue
		}
		img, err := s.fileService.Read(ctx, r.CompanyID, *a.SignatureBlobID)
		if err != nil {
			slog.Warn("signature image unavailable", "request_id", r.ID, "blob_id", *a.SignatureBlobID, "error", err)
			continue
		}
		data.Signatures = append(data.Signatures, pdf.Signature{Label: a.ApproverName, Image: img})
	}
	return data
}

func requestFields(r request.Request) []pdf.Field {
	fields := []pdf.Field{
		{Label: "Judul", Value: r.Title},
		{Label: "Keterangan", Value: r.Description},
	}
	add := func(label, value string) {
		if value != "" {
			fields = append(fields, pdf.Field{Label: label, Value: value})
		}
	}
	if d := formatDate(r.StartDate); d != nil {
		add("Tanggal Mulai", *d)
	}
	if d := formatDate(r.EndDate); d != nil {
		add("Tanggal Selesai", *d)
	}
	if r.Amount != nil {
		add("Jumlah", r.Amount.String())
	}

	d := r.Detail
	add("Jenis Cuti", d.LeaveKind)
	add("Tanggal Lembur", d.Date)
	if d.StartTime != "" && d.EndTime != "" {
		add("Jam", d.StartTime+" - "+d.EndTime)
	}
	add("Tanggal Kuitansi", d.ReceiptDate)
	add("Kategori", d.Category)
	add("Tujuan", d.Destination)
	add("Keperluan", d.Purpose)
	add("Merek", d.Brand)
	add("Spesifikasi", d.Specification)
	if d.IsUrgent {
		add("Mendesak", "Ya")
	}
	add("Hari Kerja Terakhir", d.LastWorkingDate)
	add("Jenis Resign", d.ResignType)
	add("Serah Terima", d.HandoverNotes)
	if r.SubmittedAt != nil {
		add("Diajukan", r.SubmittedAt.Format(timestampLayout))
	}
	if r.RejectionReason != nil {
		add("Alasan Penolakan", *r.RejectionReason)
	}
	return fields
}

// ExportOvertime implements request.Service.
func (s *RequestServiceImpl) ExportOvertime(ctx context.Context, caller request.Caller, filter request.OvertimeExportFilter) (request.Document, error) {
	if caller.CompanyID == "" {
		return request.Document{}, user.ErrCompanyIDRequired
	}
	if !caller.Can(user.PermissionOvertimeExport) {
		return request.Document{}, user.ErrInsufficientPermissions
	}
	if err := filter.Validate(); err != nil {
		return request.Document{}, err
	}

	records, err := s.overtimeRepo.List(ctx, caller.CompanyID, overtime.Filter{
		From:           request.ParseDate(filter.From),
		To:             request.ParseDate(filter.To),
		OrganizationID: filter.OrganizationID,
	})
	if err != nil {
		return request.Document{}, fmt.Errorf("failed to list overtime records: %w", err)
	}

	rows := make([]xlsx.OvertimeRow, len(records))
	for i, rec := range records {
		rows[i] = xlsx.OvertimeRow{
			EmployeeCode:     rec.EmployeeCode,
			EmployeeName:     rec.EmployeeName,
			OrganizationName: rec.OrganizationName,
			Date:             rec.Date.Format("2006-01-02"),
			StartTime:        rec.StartTime,
			EndTime:          rec.EndTime,
			DurationMinutes:  rec.DurationMinutes,
			Reason:           rec.Reason,
			ApprovedAt:       rec.ApprovedAt.Format(timestampLayout),
		}
	}

	title := "Rekap Lembur"
	if filter.From != nil || filter.To != nil {
		title = fmt.Sprintf("Rekap Lembur %s s/d %s", valueOr(filter.From, "awal"), valueOr(filter.To, "sekarang"))
	}
	out, err := xlsx.Overtime(title, rows)
	if err != nil {
		return request.Document{}, fmt.Errorf("failed to build overtime export: %w", err)
	}

	slog.Info("overtime export generated", "company_id", caller.CompanyID, "rows", len(rows))
	return request.Document{
		Filename:    fmt.Sprintf("rekap-lembur-%s.xlsx", s.now().Format("20060102")),
		ContentType: xlsx.ContentType,
		Data:        out,
	}, nil
}

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
