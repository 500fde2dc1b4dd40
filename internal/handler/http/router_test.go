package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sobat-hris/sobat-backend-go/internal/config"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/auth"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/notification"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/policy"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/request"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/user"
	"github.com/sobat-hris/sobat-backend-go/internal/handler/http/middleware"
	"github.com/sobat-hris/sobat-backend-go/internal/handler/http/response"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/idempotency"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/jwt"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/validator"
	"github.com/sobat-hris/sobat-backend-go/internal/service/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	handlerTestSecret     = "test-secret-key-for-jwt"
	handlerTestAccessExp  = "1h"
	handlerTestRefreshExp = "24h"
)

type stubAuthService struct {
	auth.AuthService
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (auth.TokenResponse, error) {
	if req.Password != "password123" {
		return auth.TokenResponse{}, auth.ErrInvalidCredentials
	}
	return auth.TokenResponse{AccessToken: "access"}, nil
}

type stubRequestService struct {
	request.Service

	created   int32
	lastActor request.Caller
	lastID    string

	approveErr error
	rejectErr  error
	getErr     error
}

func (s *stubRequestService) CreateRequest(ctx context.Context, caller request.Caller, req request.CreateRequestRequest) (request.RequestResponse, error) {
	n := atomic.AddInt32(&s.created, 1)
	s.lastActor = caller
	status := request.StatusPending
	if req.Submit != nil && !*req.Submit {
		status = request.StatusDraft
	}
	return request.RequestResponse{ID: fmt.Sprintf("req-%d", n), Type: req.Type, Title: req.Title, Status: status}, nil
}

func (s *stubRequestService) GetRequest(ctx context.Context, caller request.Caller, id string) (request.RequestResponse, error) {
	s.lastActor, s.lastID = caller, id
	if s.getErr != nil {
		return request.RequestResponse{}, s.getErr
	}
	return request.RequestResponse{ID: id, Status: request.StatusPending}, nil
}

func (s *stubRequestService) Approve(ctx context.Context, caller request.Caller, req request.ApproveRequestRequest) (request.RequestResponse, error) {
	s.lastActor, s.lastID = caller, req.RequestID
	if s.approveErr != nil {
		return request.RequestResponse{}, s.approveErr
	}
	return request.RequestResponse{ID: req.RequestID, Status: request.StatusApproved}, nil
}

func (s *stubRequestService) Reject(ctx context.Context, caller request.Caller, req request.RejectRequestRequest) (request.RequestResponse, error) {
	s.lastActor, s.lastID = caller, req.RequestID
	if s.rejectErr != nil {
		return request.RequestResponse{}, s.rejectErr
	}
	return request.RequestResponse{ID: req.RequestID, Status: request.StatusRejected}, nil
}

func (s *stubRequestService) RenderProof(ctx context.Context, caller request.Caller, id string) (request.Document, error) {
	return request.Document{Filename: "bukti-" + id + ".pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")}, nil
}

func (s *stubRequestService) ListPendingApprovals(ctx context.Context, caller request.Caller, filter request.ApprovalFilter) (request.ListApprovalResponse, error) {
	s.lastActor = caller
	return request.ListApprovalResponse{}, nil
}

type stubPolicyService struct {
	policy.Service
	published int32
}

func (s *stubPolicyService) Publish(ctx context.Context, companyID, actorUserID string, req policy.PublishPolicyRequest) (policy.PolicyResponse, error) {
	atomic.AddInt32(&s.published, 1)
	return policy.PolicyResponse{Version: 1, Rules: req.Rules}, nil
}

type stubNotificationService struct {
	notification.Service
}

type stubFileService struct {
	file.FileService
}

func (s *stubFileService) Open(ctx context.Context, companyID, blobID string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("\x89PNG\r\n\x1a\nrest")), nil
}

type testServer struct {
	handler  http.Handler
	jwt      jwt.Service
	requests *stubRequestService
	policies *stubPolicyService
}

func newTestServer(t *testing.T, store idempotency.Store) *testServer {
	t.Helper()
	jwtService, err := jwt.NewJWTService(handlerTestSecret, handlerTestAccessExp, handlerTestRefreshExp)
	require.NoError(t, err)

	ts := &testServer{
		jwt:      jwtService,
		requests: &stubRequestService{},
		policies: &stubPolicyService{},
	}
	app := config.AppConfig{Env: "test", Version: "test", AllowedOrigins: []string{"http://localhost:3000"}}
	ts.handler = NewRouter(app, jwtService, store, time.Hour, Handlers{
		Auth:         NewAuthHandler(&stubAuthService{}),
		Request:      NewRequestHandler(ts.requests),
		Policy:       NewPolicyHandler(ts.policies),
		Notification: NewNotificationHandler(&stubNotificationService{}, jwtService),
		File:         NewFileHandler(&stubFileService{}),
	})
	return ts
}

func (ts *testServer) token(t *testing.T, role user.Role) string {
	t.Helper()
	companyID, employeeID := "company-1", "emp-"+string(role)
	token, _, err := ts.jwt.GenerateAccessToken(jwt.AccessClaims{
		UserID:     "user-" + string(role),
		Email:      string(role) + "@sobat.test",
		EmployeeID: &employeeID,
		CompanyID:  &companyID,
		Role:       role,
	})
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var env response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRouter_RequiresAccessToken(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/requests/req-1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	refresh, _, err := ts.jwt.GenerateRefreshToken("user-1")
	require.NoError(t, err)
	rec = ts.do(t, http.MethodGet, "/api/v1/requests/req-1", refresh, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_Login(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "a@sobat.test", "password": "password123"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "a@sobat.test", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Details, "password")
}

func TestRouter_ApprovePassesCallerAndID(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/requests/req-9/approve", ts.token(t, user.RoleEmployee), map[string]string{"notes": "ok"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-9", ts.requests.lastID)
	assert.Equal(t, "emp-employee", ts.requests.lastActor.EmployeeID)
	assert.Equal(t, "company-1", ts.requests.lastActor.CompanyID)
	assert.Equal(t, user.RoleEmployee, ts.requests.lastActor.Role)
}

func TestRouter_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"not authorized", request.ErrNotAuthorized, http.StatusForbidden, "FORBIDDEN"},
		{"already finalized", request.ErrAlreadyFinalized, http.StatusConflict, "CONFLICT"},
		{"no approver", request.ErrNoApproverFound, http.StatusUnprocessableEntity, "NO_APPROVER_FOUND"},
		{"not found", request.ErrRequestNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"validation", validator.ValidationErrors{{Field: "reason", Message: "reason is required"}}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"unexpected", fmt.Errorf("approve: %w", context.DeadlineExceeded), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.requests.rejectErr = tt.err

			rec := ts.do(t, http.MethodPost, "/api/v1/requests/req-1/reject", ts.token(t, user.RoleEmployee), map[string]string{"reason": "no"})
			assert.Equal(t, tt.wantCode, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantErr, env.Error.Code)
		})
	}
}

func TestRouter_InvalidBody(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests/req-1/approve", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ts.token(t, user.RoleEmployee))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_PolicyRequiresPermission(t *testing.T) {
	ts := newTestServer(t, nil)
	body := policy.PublishPolicyRequest{Rules: []policy.Rule{{Steps: []policy.Step{{Source: policy.SourceSupervisor}}}}}

	rec := ts.do(t, http.MethodPost, "/api/v1/approval-policies", ts.token(t, user.RoleEmployee), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.do(t, http.MethodPost, "/api/v1/approval-policies", ts.token(t, user.RoleAdminCabang), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ts.policies.published))

	rec = ts.do(t, http.MethodPost, "/api/v1/approval-policies", ts.token(t, user.RoleHRD), body)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ts.policies.published))
}

func TestRouter_ProofIsAttachment(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/requests/req-3/proof", ts.token(t, user.RoleHRD), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "bukti-req-3.pdf")
	assert.Equal(t, "%PDF-1.4", rec.Body.String())
}

func TestRouter_FileDownloadSniffsType(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/files/blob-1", ts.token(t, user.RoleEmployee), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")
}

func TestRouter_IdempotentCreate(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ts := newTestServer(t, idempotency.NewRedisStore(rdb))

	token := ts.token(t, user.RoleEmployee)
	body := map[string]interface{}{"type": "leave", "title": "Cuti"}

	first := ts.do(t, http.MethodPost, "/api/v1/requests", token, body, middleware.IdempotencyHeader, "create-1")
	require.Equal(t, http.StatusCreated, first.Code)

	second := ts.do(t, http.MethodPost, "/api/v1/requests", token, body, middleware.IdempotencyHeader, "create-1")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(middleware.ReplayedHeader))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int32(1), atomic.LoadInt32(&ts.requests.created))

	// another user may reuse the same key
	other := ts.do(t, http.MethodPost, "/api/v1/requests", ts.token(t, user.RoleHRD), body, middleware.IdempotencyHeader, "create-1")
	assert.Equal(t, http.StatusCreated, other.Code)
	assert.Empty(t, other.Header().Get(middleware.ReplayedHeader))
	assert.Equal(t, int32(2), atomic.LoadInt32(&ts.requests.created))
}

func TestRouter_PendingApprovals(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/approvals/pending", ts.token(t, user.RoleHRD), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.RoleHRD, ts.requests.lastActor.Role)
}
