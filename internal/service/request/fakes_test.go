package request

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/employee"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/notification"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/overtime"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/policy"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/request"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/user"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/pdf"
)

// store is the in-memory database shared by the fake repositories. fakeTx
// snapshots it so a failed transaction leaves no trace.
type store struct {
	mu        sync.Mutex
	seq       int
	requests  map[string]request.Request
	approvals map[string]request.Approval
	overtime  map[string]overtime.Record

	// staleUpdates makes UpdateStatusIfPending report a lost race.
	staleUpdates bool
}

func newStore() *store {
	return &store{
		requests:  map[string]request.Request{},
		approvals: map[string]request.Approval{},
		overtime:  map[string]overtime.Record{},
	}
}

func (s *store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%03d", prefix, s.seq)
}

type snapshot struct {
	requests  map[string]request.Request
	approvals map[string]request.Approval
	overtime  map[string]overtime.Record
}

func (s *store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		requests:  make(map[string]request.Request, len(s.requests)),
		approvals: make(map[string]request.Approval, len(s.approvals)),
		overtime:  make(map[string]overtime.Record, len(s.overtime)),
	}
	for k, v := range s.requests {
		snap.requests[k] = v
	}
	for k, v := range s.approvals {
		snap.approvals[k] = v
	}
	for k, v := range s.overtime {
		snap.overtime[k] = v
	}
	return snap
}

func (s *store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests, s.approvals, s.overtime = snap.requests, snap.approvals, snap.overtime
}

func (s *store) approvalsOf(requestID string) []request.Approval {
	var out []request.Approval
	for _, a := range s.approvals {
		if a.RequestID == requestID {
			out = append(out, a)
		}
	}
	request.SortApprovals(out)
	return out
}

type fakeTx struct {
	store *store
}

func (t *fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// ==================== requests ====================

type fakeRequestRepo struct {
	store     *store
	employees *fakeEmployeeRepo
}

func (f *fakeRequestRepo) Create(ctx context.Context, r *request.Request) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	r.ID = f.store.nextID("req")
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	f.store.requests[r.ID] = *r
	return nil
}

func (f *fakeRequestRepo) GetByID(ctx context.Context, companyID, id string) (request.Request, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	r, ok := f.store.requests[id]
	if !ok || r.CompanyID != companyID {
		return request.Request{}, pgx.ErrNoRows
	}
	if e, ok := f.employees.byID[r.EmployeeID]; ok {
		r.EmployeeName = e.FullName
	}
	return r, nil
}

func (f *fakeRequestRepo) GetByIDForUpdate(ctx context.Context, companyID, id string) (request.Request, error) {
	return f.GetByID(ctx, companyID, id)
}

func (f *fakeRequestRepo) Update(ctx context.Context, r request.Request) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if _, ok := f.store.requests[r.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.UpdatedAt = time.Now()
	f.store.requests[r.ID] = r
	return nil
}

func (f *fakeRequestRepo) Delete(ctx context.Context, companyID, id string) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	delete(f.store.requests, id)
	return nil
}

func (f *fakeRequestRepo) List(ctx context.Context, companyID string, filter request.RequestFilter) ([]request.Request, int64, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []request.Request
	for _, r := range f.store.requests {
		if r.CompanyID != companyID {
			continue
		}
		if filter.EmployeeID != nil && r.EmployeeID != *filter.EmployeeID {
			continue
		}
		if filter.Status != nil && string(r.Status) != *filter.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (f *fakeRequestRepo) ListPending(ctx context.Context, companyID *string) ([]request.Request, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []request.Request
	for _, r := range f.store.requests {
		if r.Status == request.StatusPending && (companyID == nil || r.CompanyID == *companyID) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ==================== approvals ====================

type fakeApprovalRepo struct {
	store *store
}

func (f *fakeApprovalRepo) CreateBatch(ctx context.Context, approvals []request.Approval) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for i := range approvals {
		approvals[i].ID = f.store.nextID("apr")
		approvals[i].CreatedAt = time.Now()
		f.store.approvals[approvals[i].ID] = approvals[i]
	}
	return nil
}

func (f *fakeApprovalRepo) ListByRequest(ctx context.Context, requestID string) ([]request.Approval, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.approvalsOf(requestID), nil
}

func (f *fakeApprovalRepo) UpdateStatusIfPending(ctx context.Context, a request.Approval) (int64, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	cur, ok := f.store.approvals[a.ID]
	if !ok || cur.Status != request.ApprovalPending || f.store.staleUpdates {
		return 0, nil
	}
	cur.Status = a.Status
	cur.Notes = a.Notes
	cur.SignatureBlobID = a.SignatureBlobID
	cur.ActedAt = a.ActedAt
	f.store.approvals[a.ID] = cur
	return 1, nil
}

func (f *fakeApprovalRepo) SkipPending(ctx context.Context, requestID string, at time.Time) (int64, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var n int64
	for id, a := range f.store.approvals {
		if a.RequestID == requestID && a.Status == request.ApprovalPending {
			a.Status = request.ApprovalSkipped
			f.store.approvals[id] = a
			n++
		}
	}
	return n, nil
}

func (f *fakeApprovalRepo) ListActive(ctx context.Context, companyID string, approverID *string, filter request.ApprovalFilter) ([]request.PendingApproval, int64, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []request.PendingApproval
	for _, r := range f.store.requests {
		if r.CompanyID != companyID || r.Status != request.StatusPending {
			continue
		}
		active, ok := request.ActiveApproval(f.store.approvalsOf(r.ID))
		if !ok || (approverID != nil && active.ApproverID != *approverID) {
			continue
		}
		out = append(out, request.PendingApproval{Approval: active, Request: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Request.ID < out[j].Request.ID })
	return out, int64(len(out)), nil
}

func (f *fakeApprovalRepo) ListByApprover(ctx context.Context, companyID, approverID string, filter request.ApprovalFilter) ([]request.PendingApproval, int64, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []request.PendingApproval
	for _, a := range f.store.approvals {
		r := f.store.requests[a.RequestID]
		if a.ApproverID != approverID || r.CompanyID != companyID {
			continue
		}
		if filter.Status != nil && string(a.Status) != *filter.Status {
			continue
		}
		out = append(out, request.PendingApproval{Approval: a, Request: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Approval.ID < out[j].Approval.ID })
	return out, int64(len(out)), nil
}

// ==================== directory ====================

type fakeEmployeeRepo struct {
	byID map[string]employee.Employee
}

func (f *fakeEmployeeRepo) add(e employee.Employee) {
	f.byID[e.ID] = e
}

func (f *fakeEmployeeRepo) GetByID(ctx context.Context, companyID, id string) (employee.Employee, error) {
	e, ok := f.byID[id]
	if !ok || e.CompanyID != companyID {
		return employee.Employee{}, pgx.ErrNoRows
	}
	return e, nil
}

func (f *fakeEmployeeRepo) GetByIDs(ctx context.Context, companyID string, ids []string) (map[string]employee.Employee, error) {
	out := make(map[string]employee.Employee, len(ids))
	for _, id := range ids {
		if e, ok := f.byID[id]; ok && e.CompanyID == companyID {
			out[id] = e
		}
	}
	return out, nil
}

func (f *fakeEmployeeRepo) sorted(keep func(employee.Employee) bool) []employee.Employee {
	var out []employee.Employee
	for _, e := range f.byID {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (f *fakeEmployeeRepo) FindByRole(ctx context.Context, companyID, roleName string, organizationID *string) ([]employee.Employee, error) {
	return f.sorted(func(e employee.Employee) bool {
		return e.CompanyID == companyID && e.JobRoleName == roleName &&
			(organizationID == nil || e.OrganizationID == *organizationID)
	}), nil
}

func (f *fakeEmployeeRepo) FindAboveLevel(ctx context.Context, companyID, organizationID string, level int) ([]employee.Employee, error) {
	out := f.sorted(func(e employee.Employee) bool {
		return e.CompanyID == companyID && e.OrganizationID == organizationID && e.Level() > level
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Level() < out[j].Level() })
	return out, nil
}

type fakeOrgRepo struct {
	byID map[string]employee.Organization
}

func (f *fakeOrgRepo) GetByID(ctx context.Context, companyID, id string) (employee.Organization, error) {
	o, ok := f.byID[id]
	if !ok || o.CompanyID != companyID {
		return employee.Organization{}, pgx.ErrNoRows
	}
	return o, nil
}

func (f *fakeOrgRepo) Ancestors(ctx context.Context, companyID, id string) ([]employee.Organization, error) {
	var out []employee.Organization
	for cur := id; cur != ""; {
		o, err := f.GetByID(ctx, companyID, cur)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
		if o.ParentID == nil {
			break
		}
		cur = *o.ParentID
	}
	return out, nil
}

// ==================== collaborators ====================

type fakePolicyService struct {
	active *policy.Policy
}

func (f *fakePolicyService) Active(ctx context.Context, companyID string) (policy.Policy, error) {
	if f.active != nil {
		return *f.active, nil
	}
	return policy.Default(companyID), nil
}

func (f *fakePolicyService) GetActive(ctx context.Context, companyID string) (policy.PolicyResponse, error) {
	p, err := f.Active(ctx, companyID)
	return policy.ToResponse(p), err
}

func (f *fakePolicyService) ListVersions(ctx context.Context, companyID string) ([]policy.PolicyResponse, error) {
	return nil, nil
}

func (f *fakePolicyService) Publish(ctx context.Context, companyID, actorUserID string, req policy.PublishPolicyRequest) (policy.PolicyResponse, error) {
	return policy.PolicyResponse{}, nil
}

type fakeOvertimeRepo struct {
	store *store
}

func (f *fakeOvertimeRepo) Upsert(ctx context.Context, r overtime.Record) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	r.ID = "ot-" + r.RequestID
	f.store.overtime[r.RequestID] = r
	return nil
}

func (f *fakeOvertimeRepo) List(ctx context.Context, companyID string, filter overtime.Filter) ([]overtime.Record, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []overtime.Record
	for _, r := range f.store.overtime {
		if r.CompanyID == companyID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeFileService struct {
	mu         sync.Mutex
	signatures map[string][]byte
	failSign   bool
}

func (f *fakeFileService) StoreAttachments(ctx context.Context, companyID string, uploads []request.AttachmentUpload) []request.Attachment {
	out := make([]request.Attachment, 0, len(uploads))
	for i, u := range uploads {
		out = append(out, request.Attachment{BlobID: fmt.Sprintf("blob-%d", i), Filename: u.Filename, Size: int64(len(u.Data))})
	}
	return out
}

func (f *fakeFileService) StoreSignature(ctx context.Context, companyID, encoded string) (string, error) {
	if f.failSign {
		return "", fmt.Errorf("decode failed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("sig-%d", len(f.signatures)+1)
	f.signatures[id] = []byte(encoded)
	return id, nil
}

func (f *fakeFileService) Open(ctx context.Context, companyID, blobID string) (io.ReadCloser, error) {
	data, err := f.Read(ctx, companyID, blobID)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeFileService) Read(ctx context.Context, companyID, blobID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.signatures[blobID]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", blobID)
	}
	return data, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification.CreateNotificationRequest
}

func (f *fakeNotifier) QueueNotification(ctx context.Context, req notification.CreateNotificationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeNotifier) GetNotifications(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) (*notification.NotificationListResponse, error) {
	return &notification.NotificationListResponse{}, nil
}

func (f *fakeNotifier) GetUnreadCount(ctx context.Context, userID string) (int, error) { return 0, nil }

func (f *fakeNotifier) MarkAsRead(ctx context.Context, userID string, req notification.MarkAsReadRequest) error {
	return nil
}

func (f *fakeNotifier) MarkAllAsRead(ctx context.Context, userID string) error { return nil }

func (f *fakeNotifier) Delete(ctx context.Context, userID string, notificationID string) error {
	return nil
}

func (f *fakeNotifier) GetPreferences(ctx context.Context, userID string) ([]notification.PreferenceResponse, error) {
	return nil, nil
}

func (f *fakeNotifier) UpdatePreference(ctx context.Context, userID string, req notification.UpdatePreferenceRequest) error {
	return nil
}

func (f *fakeNotifier) Subscribe(ctx context.Context, userID string) (<-chan notification.SSEEvent, func()) {
	ch := make(chan notification.SSEEvent)
	return ch, func() {}
}

func (f *fakeNotifier) Stop() {}

func (f *fakeNotifier) sentTo(userID string) []notification.CreateNotificationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notification.CreateNotificationRequest
	for _, n := range f.sent {
		if n.RecipientID == userID {
			out = append(out, n)
		}
	}
	return out
}

// ==================== fixture ====================

func levelPtr(i int) *int { return &i }
func strPtr(s string) *string { return &s }

// fixture is a small company: a head office with an operations division
// below it and a separate sales division.
//
//	HQ:    Citra (coo, 3), Hana (hrd, 3)
//	OPS:   Sari (spv, 1), Maya (manager_divisi, 2), Bayu (staff), Dewi (staff, supervised by Maya)
//	SALES: Rudi (staff)
type fixture struct {
	store     *store
	employees *fakeEmployeeRepo
	orgs      *fakeOrgRepo
	policies  *fakePolicyService
	files     *fakeFileService
	notifier  *fakeNotifier
	svc       *RequestServiceImpl
	now       time.Time
}

func newEmployee(id, name, org, role string, level *int) employee.Employee {
	userID := "u-" + id
	return employee.Employee{
		ID:             id,
		CompanyID:      "c1",
		UserID:         &userID,
		OrganizationID: org,
		EmployeeCode:   "EMP-" + id,
		FullName:       name,
		Email:          id + "@sobat.test",
		JobRoleName:    role,
		ApprovalLevel:  level,
	}
}

func newFixture() *fixture {
	st := newStore()
	employees := &fakeEmployeeRepo{byID: map[string]employee.Employee{}}
	root := "org-hq"
	orgs := &fakeOrgRepo{byID: map[string]employee.Organization{
		"org-hq":    {ID: "org-hq", CompanyID: "c1", Name: "Head Office"},
		"org-ops":   {ID: "org-ops", CompanyID: "c1", Name: "Operations", ParentID: &root},
		"org-sales": {ID: "org-sales", CompanyID: "c1", Name: "Sales", ParentID: &root},
	}}

	employees.add(newEmployee("coo", "Citra", "org-hq", employee.JobRoleCOO, levelPtr(3)))
	employees.add(newEmployee("hrd", "Hana", "org-hq", employee.JobRoleHRD, levelPtr(3)))
	employees.add(newEmployee("spv", "Sari", "org-ops", employee.JobRoleSPV, levelPtr(1)))
	employees.add(newEmployee("mgr", "Maya", "org-ops", employee.JobRoleManagerDivisi, levelPtr(2)))
	employees.add(newEmployee("staff", "Bayu", "org-ops", "staff", nil))
	employees.add(newEmployee("sales", "Rudi", "org-sales", "staff", nil))
	dewi := newEmployee("dewi", "Dewi", "org-ops", "staff", nil)
	dewi.SupervisorID = strPtr("mgr")
	employees.add(dewi)

	renderer, err := pdf.NewRenderer()
	if err != nil {
		panic(err)
	}

	f := &fixture{
		store:     st,
		employees: employees,
		orgs:      orgs,
		policies:  &fakePolicyService{},
		files:     &fakeFileService{signatures: map[string][]byte{}},
		notifier:  &fakeNotifier{},
		now:       time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	svc := NewRequestService(
		&fakeTx{store: st},
		&fakeRequestRepo{store: st, employees: employees},
		&fakeApprovalRepo{store: st},
		employees,
		orgs,
		f.policies,
		&fakeOvertimeRepo{store: st},
		f.files,
		f.notifier,
		renderer,
		"PT Sobat Sejahtera",
	).(*RequestServiceImpl)
	svc.now = func() time.Time { return f.now }
	f.svc = svc
	return f
}

func (f *fixture) caller(employeeID string) request.Caller {
	return request.Caller{
		UserID:     "u-" + employeeID,
		CompanyID:  "c1",
		EmployeeID: employeeID,
		Role:       user.RoleEmployee,
	}
}

func (f *fixture) admin() request.Caller {
	return request.Caller{UserID: "u-admin", CompanyID: "c1", Role: user.RoleHRD}
}

func (f *fixture) approvals(requestID string) []request.Approval {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.approvalsOf(requestID)
}

func (f *fixture) request(id string) request.Request {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.requests[id]
}
