package provisioning

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-provision/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-provision/internal/shared"
)

// Provisioner is the contract the HTTP layer calls into.
type Provisioner interface {
	CreateManagedUser(ctx context.Context, caller Caller, in Input) (Result, error)
	BootstrapCreateInitialAdministrator(ctx context.Context, secret string, in Input) (Result, error)
	UpdateUserRole(ctx context.Context, caller Caller, in RoleUpdateInput) (Result, error)
}

// Handler exposes provisioning operations over JSON.
type Handler struct {
	logger         *slog.Logger
	service        Provisioner
	bootstrapLimit int
}

// NewHandler builds a Handler. bootstrapLimit caps bootstrap attempts per IP
// per minute.
func NewHandler(logger *slog.Logger, service Provisioner, bootstrapLimit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if bootstrapLimit <= 0 {
		bootstrapLimit = 5
	}
	return &Handler{logger: logger, service: service, bootstrapLimit: bootstrapLimit}
}

// MountRoutes registers provisioning endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/users", h.handleCreateUser)
	r.Put("/users/role", h.handleUpdateRole)
	r.Group(func(gr chi.Router) {
		gr.Use(httprate.Limit(h.bootstrapLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "")
			}),
		))
		gr.Post("/bootstrap/initial-admin", h.handleBootstrap)
	})
}

type bootstrapRequest struct {
	Input
	BootstrapKey string `json:"bootstrapKey"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	result, err := h.service.CreateManagedUser(r.Context(), callerFromRequest(r), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	var req bootstrapRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	result, err := h.service.BootstrapCreateInitialAdministrator(r.Context(), req.BootstrapKey, req.Input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var in RoleUpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	result, err := h.service.UpdateUserRole(r.Context(), callerFromRequest(r), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	perr := AsError(err)
	lang := r.Header.Get("Accept-Language")
	problem := httpx.ProblemDetail{
		Status: StatusFor(perr),
		Code:   string(perr.Category),
		Detail: Localize(perr, lang),
	}
	if perr.Category == CategoryValidation {
		problem.Errors = make(map[string]string, len(perr.Fields))
		for field, key := range perr.Fields {
			var args []any
			if key == MsgInvalidModules {
				args = []any{strings.Join(perr.InvalidModules, ", ")}
			}
			problem.Errors[field] = Localize(&Error{Category: CategoryValidation, Message: key, Args: args}, lang)
		}
		problem.Invalid = perr.InvalidModules
	}
	if perr.Category == CategoryInternal {
		h.logger.Error("provisioning request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	httpx.WriteProblem(w, problem)
}

// StatusFor maps a failure category to its HTTP status.
func StatusFor(perr *Error) int {
	switch perr.Category {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryPermission:
		if perr.Message == MsgUnauthenticated {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case CategoryPrecondition, CategoryAlreadyExists:
		return http.StatusConflict
	case CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func callerFromRequest(r *http.Request) Caller {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		return Caller{}
	}
	role, _ := ParseRole(principal.Role)
	return Caller{ID: principal.ID, Role: role}
}
