// Package api exposes the IAM service over JSON HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"iamcore/internal/domain"
	"iamcore/internal/service/iam"
)

// Handler routes HTTP requests to the IAM services.
type Handler struct {
	accounts    *iam.AccountService
	users       *iam.UserService
	groups      *iam.GroupService
	roles       *iam.RoleService
	policies    *iam.PolicyService
	credentials *iam.CredentialService
	limits      *iam.LimitService
	sts         *iam.STSService
	authz       *iam.Authorizer
	logger      *slog.Logger
}

// NewHandler creates a Handler over the service layer.
func NewHandler(
	accounts *iam.AccountService,
	users *iam.UserService,
	groups *iam.GroupService,
	roles *iam.RoleService,
	policies *iam.PolicyService,
	credentials *iam.CredentialService,
	limits *iam.LimitService,
	sts *iam.STSService,
	authz *iam.Authorizer,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		accounts:    accounts,
		users:       users,
		groups:      groups,
		roles:       roles,
		policies:    policies,
		credentials: credentials,
		limits:      limits,
		sts:         sts,
		authz:       authz,
		logger:      logger,
	}
}

// Routes registers all authenticated endpoints on r. The caller is expected
// to have passed the authentication middleware already.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/limits", h.listLimitDefinitions)

	r.Route("/sts", func(r chi.Router) {
		r.Post("/assume-role", h.assumeRole)
		r.Get("/caller-identity", h.getCallerIdentity)
	})

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.createAccount)
		r.Get("/", h.listAccounts)

		r.Route("/{accountID}", func(r chi.Router) {
			r.Get("/", h.getAccount)
			r.Put("/alias", h.putAccountAlias)
			r.Delete("/alias", h.deleteAccountAlias)
			r.Get("/limits/{limitName}", h.getAccountLimit)
			r.Put("/limits/{limitName}", h.putAccountLimit)
			r.Get("/limits/{serviceName}/{limitName}", h.getAccountLimit)
			r.Put("/limits/{serviceName}/{limitName}", h.putAccountLimit)

			r.Route("/users", func(r chi.Router) {
				r.Post("/", h.createUser)
				r.Get("/", h.listUsers)
				r.Route("/{userName}", func(r chi.Router) {
					r.Get("/", h.getUser)
					r.Patch("/", h.updateUser)
					r.Delete("/", h.deleteUser)
					r.Put("/permissions-boundary", h.putUserBoundary)
					r.Delete("/permissions-boundary", h.deleteUserBoundary)
					r.Get("/groups", h.listUserGroups)
					h.mountPrincipalPolicies(r, h.userPolicyOps())
					h.mountCredentials(r)
				})
			})

			r.Route("/groups", func(r chi.Router) {
				r.Post("/", h.createGroup)
				r.Get("/", h.listGroups)
				r.Route("/{groupName}", func(r chi.Router) {
					r.Get("/", h.getGroup)
					r.Patch("/", h.updateGroup)
					r.Delete("/", h.deleteGroup)
					r.Get("/members", h.listGroupMembers)
					r.Put("/members/{userName}", h.addGroupMember)
					r.Delete("/members/{userName}", h.removeGroupMember)
					h.mountPrincipalPolicies(r, h.groupPolicyOps())
				})
			})

			r.Route("/roles", func(r chi.Router) {
				r.Post("/", h.createRole)
				r.Get("/", h.listRoles)
				r.Route("/{roleName}", func(r chi.Router) {
					r.Get("/", h.getRole)
					r.Patch("/", h.updateRole)
					r.Delete("/", h.deleteRole)
					r.Put("/assume-role-policy", h.putAssumeRolePolicy)
					r.Put("/permissions-boundary", h.putRoleBoundary)
					r.Delete("/permissions-boundary", h.deleteRoleBoundary)
					h.mountPrincipalPolicies(r, h.rolePolicyOps())
				})
			})

			r.Route("/policies", func(r chi.Router) {
				r.Post("/", h.createPolicy)
				r.Get("/", h.listPolicies)
				r.Route("/{policyName}", func(r chi.Router) {
					r.Get("/", h.getPolicy)
					r.Patch("/", h.updatePolicy)
					r.Delete("/", h.deletePolicy)
					r.Route("/versions", func(r chi.Router) {
						r.Post("/", h.createPolicyVersion)
						r.Get("/", h.listPolicyVersions)
						r.Get("/{versionID}", h.getPolicyVersion)
						r.Delete("/{versionID}", h.deletePolicyVersion)
						r.Post("/{versionID}/set-default", h.setDefaultPolicyVersion)
					})
				})
			})
		})
	})
}

// PublicRoutes registers endpoints that authenticate by other means than
// IAM credentials. AssumeRoleWithWebIdentity carries its own proof of
// identity, so it is served before the credential middleware.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Post("/sts/assume-role-with-web-identity", h.assumeRoleWithWebIdentity)
}

// Healthz reports liveness. Mounted outside the authenticated router.
func Healthz(ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := ping(r.Context()); err != nil {
			WriteError(w, domain.ErrStorage(err, "health check failed"))
			return
		}
		respond(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// --- request plumbing ---

// allow runs the account-scope check and policy authorization for a route.
// An empty accountID skips the scope check (operator-level routes). It
// writes the refusal response and returns false when the caller may not
// proceed.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, accountID, action, resource string) bool {
	if accountID != "" {
		caller, ok := domain.CallerFromContext(r.Context())
		if !ok {
			WriteError(w, domain.ErrAccessDenied("request is not authenticated"))
			return false
		}
		if !callerInScope(caller, accountID) {
			WriteError(w, domain.ErrAccessDenied(
				"account %s credentials cannot operate on account %s", caller.AccountID, accountID))
			return false
		}
	}
	if err := h.authz.Authorize(r.Context(), action, resource); err != nil {
		WriteError(w, err)
		return false
	}
	return true
}

// callerInScope reports whether the caller may touch resources of the given
// account. The operator root in the seed account may touch any account.
func callerInScope(caller domain.Caller, accountID string) bool {
	if caller.AccountID == accountID {
		return true
	}
	return caller.IsRoot() && caller.AccountID == domain.SeedAccountID
}

func respond(w http.ResponseWriter, status int, v any) {
	if v == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.ErrValidation("request body is not valid JSON: %v", err)
	}
	return nil
}

// pageFromQuery extracts pagination from maxResults/pageToken params.
func pageFromQuery(r *http.Request) (domain.PageRequest, error) {
	var p domain.PageRequest
	if s := r.URL.Query().Get("maxResults"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return p, domain.ErrValidation("maxResults must be an integer, got %q", s)
		}
		p.MaxItems = n
	}
	p.Marker = r.URL.Query().Get("pageToken")
	return p, nil
}

type listResponse[T any] struct {
	Items         []T    `json:"items"`
	Total         int64  `json:"total"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// listOf wraps a page of items with the continuation token when more rows
// remain beyond this page.
func listOf[T any](items []T, total int64, page domain.PageRequest) listResponse[T] {
	resp := listResponse[T]{Items: items, Total: total}
	if resp.Items == nil {
		resp.Items = []T{}
	}
	if next := page.Offset() + len(items); int64(next) < total {
		resp.NextPageToken = domain.EncodeMarker(next)
	}
	return resp
}
