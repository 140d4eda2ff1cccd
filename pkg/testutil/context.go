package testutil

import (
	"net/http"

	"github.com/NogaLive/SNIUGB/pkg/requestcontext"
)

// WithUser adds an authenticated producer to the request context, as the
// auth middleware would.
func WithUser(req *http.Request, nationalID string) *http.Request {
	return req.WithContext(requestcontext.WithUser(req.Context(), nationalID, requestcontext.RoleProducer))
}

// WithAdmin adds an authenticated administrator to the request context.
func WithAdmin(req *http.Request, nationalID string) *http.Request {
	return req.WithContext(requestcontext.WithUser(req.Context(), nationalID, requestcontext.RoleAdmin))
}
