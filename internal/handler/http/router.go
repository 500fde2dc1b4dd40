package http

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
	"github.com/sobat-hris/sobat-backend-go/internal/config"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/user"
	"github.com/sobat-hris/sobat-backend-go/internal/handler/http/middleware"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/idempotency"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/jwt"
)

type Handlers struct {
	Auth         AuthHandler
	Request      RequestHandler
	Policy       PolicyHandler
	Notification NotificationHandler
	File         FileHandler
}

// NewRouter wires every route. idem may be nil, which turns Idempotency-Key
// handling off.
func NewRouter(app config.AppConfig, JWTService jwt.Service, idem idempotency.Store, idemTTL time.Duration, h Handlers) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(app.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "sobat-hris"),
		slog.String("version", app.Version),
		slog.String("env", app.Env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", middleware.IdempotencyHeader},
		ExposedHeaders:   []string{"Link", "Content-Disposition", middleware.ReplayedHeader},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
		// the SSE token travels in the query string
		Skip: func(req *http.Request, respStatus int) bool {
			return req.URL.Path == "/api/v1/notifications/stream" && respStatus < 400
		},
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	idempotent := func(next http.Handler) http.Handler { return next }
	if idem != nil {
		idempotent = middleware.Idempotency(idem, idemTTL)
	}

	r.Route("/api/v1", func(r chi.Router) {

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.Auth.Login)
			r.Post("/refresh", h.Auth.RefreshToken)
		})

		// SSE authenticates with a short-lived token in the query string
		r.Get("/notifications/stream", h.Notification.Stream)

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired)

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.Notification.List)
				r.Get("/unread-count", h.Notification.UnreadCount)
				r.Patch("/read", h.Notification.MarkAsRead)
				r.Patch("/read-all", h.Notification.MarkAllAsRead)
				r.Delete("/{id}", h.Notification.Delete)
				r.Get("/preferences", h.Notification.GetPreferences)
				r.Put("/preferences", h.Notification.UpdatePreference)
				r.Post("/sse-token", h.Notification.GetSSEToken)
			})

			// Everything below is company scoped
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCompany)

				r.Route("/requests", func(r chi.Router) {
					r.Use(idempotent)

					r.Get("/", h.Request.List)
					r.With(middleware.RequirePermission(user.PermissionRequestCreate)).Post("/", h.Request.Create)

					r.With(middleware.RequirePermission(user.PermissionOvertimeExport)).
						Get("/export/overtime", h.Request.ExportOvertime)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", h.Request.Get)
						r.Put("/", h.Request.Update)
						r.Delete("/", h.Request.Delete)
						r.Post("/submit", h.Request.Submit)
						r.Post("/approve", h.Request.Approve)
						r.Post("/reject", h.Request.Reject)
						r.With(middleware.RequirePermission(user.PermissionRequestManage)).Patch("/note", h.Request.UpdateNote)
						r.Get("/can-print", h.Request.CanPrint)
						r.Get("/proof", h.Request.Proof)
						r.Get("/print", h.Request.Print)
					})
				})

				r.Route("/approvals", func(r chi.Router) {
					r.Get("/", h.Request.ListApprovals)
					r.Get("/pending", h.Request.ListPendingApprovals)
				})

				r.Get("/approval-chain", h.Request.PreviewChain)

				r.Route("/approval-policies", func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionPolicyManage))
					r.Get("/", h.Policy.List)
					r.Get("/active", h.Policy.GetActive)
					r.With(idempotent).Post("/", h.Policy.Publish)
				})

				r.Get("/files/{blob_id}", h.File.Download)
			})
		})
	})
	return r
}
