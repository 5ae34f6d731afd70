package registration

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the registration routes relative to r. Mount it
// under a prefix such as /v1/register. phone wraps the code-dispatching
// endpoints and verify the code-checking ones.
func (h *Handler) RegisterRoutes(r chi.Router, phone, verify func(next http.Handler) http.Handler) {
	r.Get("/", h.State)
	r.Post("/restart", h.Restart)
	r.With(phone).Post("/phone", h.SubmitPhone)
	r.With(phone).Post("/resend", h.ResendCode)
	r.With(verify).Post("/code", h.SubmitCode)
	r.With(verify).Post("/profile", h.SubmitProfile)
}
