package resources

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stchstepan/passbolt/pkg/contextkeys"
	"github.com/stchstepan/passbolt/pkg/httputil"
	"github.com/stchstepan/passbolt/pkg/observability"
	"github.com/stchstepan/passbolt/pkg/principal"
)

// Handler exposes the resource index over HTTP.
type Handler struct {
	service *Service
	logger  *observability.Logger
}

// NewHandler creates the index handler.
func NewHandler(service *Service, logger *observability.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the index endpoint. Only the .json surface exists;
// the bare path is registered so it resolves to the 404 quirk instead of the
// router's default not-found page.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	index := httputil.RequireJSONSuffix(http.HandlerFunc(h.Index))
	router.Handle("/resources.json", index).Methods(http.MethodGet)
	router.Handle("/resources", index).Methods(http.MethodGet)
}

// Index handles GET /resources.json.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pc, ok := ctx.Value(contextkeys.PrincipalKey).(*principal.Context)
	if !ok || pc == nil {
		httputil.WriteUnauthorized(w, "Authentication is required to access this resource.")
		return
	}

	plan, err := Compile(r.URL.Query())
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			httputil.WriteValidationError(w, validationErr.Message)
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	entries, err := h.service.Index(ctx, pc, plan)
	if err != nil {
		h.logger.WithError(err).Error("resource index failed")
		httputil.WriteInternalError(w, errors.New("internal server error"))
		return
	}

	httputil.WriteSuccess(w, entries)
}
