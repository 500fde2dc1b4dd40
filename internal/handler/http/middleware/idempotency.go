package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/sobat-hris/sobat-backend-go/internal/handler/http/response"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/idempotency"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	// ReplayedHeader marks a response served from the idempotency store.
	ReplayedHeader = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 128
	storeTimeout         = 2 * time.Second
)

type recorder struct {
	http.ResponseWriter
	buf  bytes.Buffer
	code int
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.code == 0 {
		r.code = http.StatusOK
	}
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *recorder) WriteHeader(code int) {
	if r.code == 0 {
		r.code = code
	}
	r.ResponseWriter.WriteHeader(code)
}

// Idempotency replays the stored response of a mutating request sent again
// with the same Idempotency-Key by the same user. The header is optional.
// A concurrent duplicate, or a reused key with a different body, gets 409.
// Server errors release the key so the client can retry.
func Idempotency(store idempotency.Store, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			idemKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if idemKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(idemKey) > maxIdempotencyKeyLen {
				response.BadRequest(w, "Idempotency-Key is too long", nil)
				return
			}

			var body []byte
			if r.Body != nil {
				var err error
				body, err = io.ReadAll(r.Body)
				if err != nil {
					response.BadRequest(w, "Failed to read request body", nil)
					return
				}
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			sum := sha256.Sum256(body)
			bodyHash := hex.EncodeToString(sum[:])

			key := storeKey(r, idemKey)
			token := uuid.NewString()

			ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
			defer cancel()

			reserved, err := store.Reserve(ctx, key, idempotency.Entry{
				Token:      token,
				InProgress: true,
				BodySHA256: bodyHash,
				CreatedAt:  time.Now().UTC(),
			})
			if err != nil {
				slog.Error("idempotency store unavailable", "error", err)
				response.ServiceUnavailable(w, "Idempotency store unavailable")
				return
			}

			if !reserved {
				cur, err := store.Load(ctx, key)
				if err != nil && !errors.Is(err, idempotency.ErrNotFound) {
					slog.Warn("failed to load idempotency entry", "key", key, "error", err)
				}
				if cur.BodySHA256 != "" && cur.BodySHA256 != bodyHash {
					response.Conflict(w, "Idempotency-Key was reused with a different body")
					return
				}
				if !cur.InProgress && cur.Code != 0 {
					if cur.ContentType != "" {
						w.Header().Set("Content-Type", cur.ContentType)
					}
					w.Header().Set(ReplayedHeader, "true")
					w.WriteHeader(cur.Code)
					_, _ = w.Write(cur.Body)
					return
				}
				response.Conflict(w, "A request with this Idempotency-Key is already in progress")
				return
			}

			rec := &recorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.code == 0 {
				rec.code = http.StatusOK
			}

			finishCtx, finishCancel := context.WithTimeout(context.Background(), storeTimeout)
			defer finishCancel()

			if rec.code >= http.StatusInternalServerError {
				err := store.Release(finishCtx, key, token)
				switch {
				case errors.Is(err, idempotency.ErrLockLost):
					slog.Warn("idempotency lock lost before completion", "key", key)
				case err != nil:
					slog.Warn("failed to release idempotency key", "key", key, "error", err)
				}
				return
			}

			err = store.Save(finishCtx, key, idempotency.Entry{
				Token:       token,
				Code:        rec.code,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.buf.Bytes(),
				BodySHA256:  bodyHash,
				CreatedAt:   time.Now().UTC(),
			}, ttl)
			switch {
			case errors.Is(err, idempotency.ErrLockLost):
				slog.Warn("idempotency lock lost before completion", "key", key)
			case err != nil:
				slog.Warn("failed to save idempotent response", "key", key, "error", err)
			}
		})
	}
}

// storeKey scopes a client key to its user and route.
func storeKey(r *http.Request, idemKey string) string {
	userID := "anonymous"
	if _, claims, err := jwtauth.FromContext(r.Context()); err == nil {
		if id, ok := claims["user_id"].(string); ok && id != "" {
			userID = id
		}
	}

	path := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			path = pattern + "|" + r.URL.Path
		}
	}
	return "idem:" + userID + ":" + r.Method + ":" + path + ":" + idemKey
}
