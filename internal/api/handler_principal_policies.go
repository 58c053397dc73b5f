package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"iamcore/internal/domain"
)

// principalPolicyOps binds one principal kind's attachment and inline
// document operations to the shared HTTP handlers. Users, groups, and
// roles expose identical sub-resources, so the handlers are written once.
type principalPolicyOps struct {
	kind  string // ARN segment: user, group, role
	title string // action segment: User, Group, Role
	param string // chi URL parameter holding the principal name

	attach       func(ctx context.Context, accountID, name, ref string) error
	detach       func(ctx context.Context, accountID, name, ref string) error
	listAttached func(ctx context.Context, accountID, name string, page domain.PageRequest) ([]domain.AttachedPolicy, int64, error)
	putInline    func(ctx context.Context, accountID, name string, req domain.PutInlinePolicyRequest) error
	getInline    func(ctx context.Context, accountID, name, policyName string) (*domain.InlinePolicy, error)
	deleteInline func(ctx context.Context, accountID, name, policyName string) error
	listInline   func(ctx context.Context, accountID, name string, page domain.PageRequest) ([]domain.InlinePolicy, int64, error)
}

func (h *Handler) userPolicyOps() principalPolicyOps {
	return principalPolicyOps{
		kind: "user", title: "User", param: "userName",
		attach:       h.users.AttachPolicy,
		detach:       h.users.DetachPolicy,
		listAttached: h.users.ListAttachedPolicies,
		putInline:    h.users.PutInlinePolicy,
		getInline:    h.users.GetInlinePolicy,
		deleteInline: h.users.DeleteInlinePolicy,
		listInline:   h.users.ListInlinePolicies,
	}
}

func (h *Handler) groupPolicyOps() principalPolicyOps {
	return principalPolicyOps{
		kind: "group", title: "Group", param: "groupName",
		attach:       h.groups.AttachPolicy,
		detach:       h.groups.DetachPolicy,
		listAttached: h.groups.ListAttachedPolicies,
		putInline:    h.groups.PutInlinePolicy,
		getInline:    h.groups.GetInlinePolicy,
		deleteInline: h.groups.DeleteInlinePolicy,
		listInline:   h.groups.ListInlinePolicies,
	}
}

func (h *Handler) rolePolicyOps() principalPolicyOps {
	return principalPolicyOps{
		kind: "role", title: "Role", param: "roleName",
		attach:       h.roles.AttachPolicy,
		detach:       h.roles.DetachPolicy,
		listAttached: h.roles.ListAttachedPolicies,
		putInline:    h.roles.PutInlinePolicy,
		getInline:    h.roles.GetInlinePolicy,
		deleteInline: h.roles.DeleteInlinePolicy,
		listInline:   h.roles.ListInlinePolicies,
	}
}

func (h *Handler) mountPrincipalPolicies(r chi.Router, ops principalPolicyOps) {
	r.Get("/attached-policies", h.listAttachedPolicies(ops))
	r.Put("/attached-policies/{policyName}", h.attachPolicy(ops))
	r.Delete("/attached-policies/{policyName}", h.detachPolicy(ops))
	r.Get("/policies", h.listInlinePolicies(ops))
	r.Put("/policies/{inlineName}", h.putInlinePolicy(ops))
	r.Get("/policies/{inlineName}", h.getInlinePolicy(ops))
	r.Delete("/policies/{inlineName}", h.deleteInlinePolicy(ops))
}

func (h *Handler) attachPolicy(ops principalPolicyOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "accountID")
		name := chi.URLParam(r, ops.param)
		if !h.allow(w, r, accountID, "iam:Attach"+ops.title+"Policy", resourceARN(accountID, ops.kind, name)) {
			return
		}
		if err := ops.attach(r.Context(), accountID, name, chi.URLParam(r, "policyName")); err != nil {
			WriteError(w, err)
			return
		}
		respond(w, http.StatusNoContent, nil)
	}
}

func (h *Handler) detachPolicy(ops principalPolicyOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "accountID")
		name := chi.URLParam(r, ops.param)
		if !h.allow(w, r, accountID, "iam:Detach"+ops.title+"Policy", resourceARN(accountID, ops.kind, name)) {
			return
		}
		if err := ops.detach(r.Context(), accountID, name, chi.URLParam(r, "policyName")); err != nil {
			WriteError(w, err)
			return
		}
		respond(w, http.StatusNoContent, nil)
	}
}

func (h *Handler) listAttachedPolicies(ops principalPolicyOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "accountID")
		name := chi.URLParam(r, ops.param)
		if !h.allow(w, r, accountID, "iam:ListAttached"+ops.title+"Policies", resourceARN(accountID, ops.kind, name)) {
			return
		}
		page, err := pageFromQuery(r)
		if err != nil {
			WriteError(w, err)
			return
		}
		attached, total, err := ops.listAttached(r.Context(), accountID, name, page)
		if err != nil {
			WriteError(w, err)
			return
		}
		items := make([]attachedPolicyJSON, 0, len(attached))
		for _, p := range attached {
			items = append(items, attachedPolicyToAPI(p))
		}
		respond(w, http.StatusOK, listOf(items, total, page))
	}
}

type putInlinePolicyRequest struct {
	Document string `json:"document"`
}

func (h *Handler) putInlinePolicy(ops principalPolicyOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "accountID")
		name := chi.URLParam(r, ops.param)
		if !h.allow(w, r, accountID, "iam:Put"+ops.title+"Policy", resourceARN(accountID, ops.kind, name)) {
			return
		}
		var body putInlinePolicyRequest
		if err := decode(r, &body); err != nil {
			WriteError(w, err)
			return
		}
		err := ops.putInline(r.Context(), accountID, name, domain.PutInlinePolicyRequest{
			Name:     chi.URLParam(r, "inlineName"),
			Document: body.Document,
		})
		if err != nil {
			WriteError(w, err)
			return
		}
		respond(w, http.StatusNoContent, nil)
	}
}

func (h *Handler) getInlinePolicy(ops principalPolicyOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "accountID")
		name := chi.URLParam(r, ops.param)
		if !h.allow(w, r, accountID, "iam:Get"+ops.title+"Policy", resourceARN(accountID, ops.kind, name)) {
			return
		}
		p, err := ops.getInline(r.Context(), accountID, name, chi.URLParam(r, "inlineName"))
		if err != nil {
			WriteError(w, err)
			return
		}
		respond(w, http.StatusOK, inlinePolicyToAPI(*p))
	}
}

func (h *Handler) deleteInlinePolicy(ops principalPolicyOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "accountID")
		name := chi.URLParam(r, ops.param)
		if !h.allow(w, r, accountID, "iam:Delete"+ops.title+"Policy", resourceARN(accountID, ops.kind, name)) {
			return
		}
		if err := ops.deleteInline(r.Context(), accountID, name, chi.URLParam(r, "inlineName")); err != nil {
			WriteError(w, err)
			return
		}
		respond(w, http.StatusNoContent, nil)
	}
}

func (h *Handler) listInlinePolicies(ops principalPolicyOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "accountID")
		name := chi.URLParam(r, ops.param)
		if !h.allow(w, r, accountID, "iam:List"+ops.title+"Policies", resourceARN(accountID, ops.kind, name)) {
			return
		}
		page, err := pageFromQuery(r)
		if err != nil {
			WriteError(w, err)
			return
		}
		policies, total, err := ops.listInline(r.Context(), accountID, name, page)
		if err != nil {
			WriteError(w, err)
			return
		}
		items := make([]inlinePolicyJSON, 0, len(policies))
		for _, p := range policies {
			items = append(items, inlinePolicyToAPI(p))
		}
		respond(w, http.StatusOK, listOf(items, total, page))
	}
}
