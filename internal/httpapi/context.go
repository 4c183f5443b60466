package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/apierr"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/authz"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/httpapi/middleware"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
)

func callerFrom(r *http.Request) (authz.Caller, error) {
	c, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		return authz.Caller{}, apierr.New(apierr.Unauthenticated, "NO_CALLER", "request has no authenticated caller")
	}
	return c, nil
}

func chiParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

func idParam(r *http.Request, name string) (idgen.ID, error) {
	raw := chi.URLParam(r, name)
	id, err := idgen.Parse(raw)
	if err != nil {
		return idgen.ID{}, apierr.Validationf("INVALID_ID", "%s is not a valid id", name)
	}
	return id, nil
}
