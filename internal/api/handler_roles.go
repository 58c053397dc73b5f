package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"iamcore/internal/domain"
)

type createRoleRequest struct {
	RoleName            string `json:"roleName"`
	Path                string `json:"path,omitempty"`
	Description         string `json:"description,omitempty"`
	AssumeRolePolicy    string `json:"assumeRolePolicyDocument"`
	MaxSessionDuration  int    `json:"maxSessionDuration,omitempty"`
	PermissionsBoundary string `json:"permissionsBoundary,omitempty"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	var body createRoleRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	if !h.allow(w, r, accountID, "iam:CreateRole", resourceARN(accountID, "role", body.RoleName)) {
		return
	}
	role, err := h.roles.Create(r.Context(), domain.CreateRoleRequest{
		AccountID:           accountID,
		Name:                body.RoleName,
		Path:                body.Path,
		Description:         body.Description,
		AssumeRolePolicy:    body.AssumeRolePolicy,
		MaxSessionDuration:  body.MaxSessionDuration,
		PermissionsBoundary: body.PermissionsBoundary,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusCreated, roleToAPI(*role))
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if !h.allow(w, r, accountID, "iam:ListRoles", resourceARN(accountID, "role", "*")) {
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	roles, total, err := h.roles.List(r.Context(), accountID, r.URL.Query().Get("pathPrefix"), page)
	if err != nil {
		WriteError(w, err)
		return
	}
	items := make([]roleJSON, 0, len(roles))
	for _, role := range roles {
		items = append(items, roleToAPI(role))
	}
	respond(w, http.StatusOK, listOf(items, total, page))
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	name := chi.URLParam(r, "roleName")
	if !h.allow(w, r, accountID, "iam:GetRole", resourceARN(accountID, "role", name)) {
		return
	}
	role, err := h.roles.Get(r.Context(), accountID, name)
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, roleToAPI(*role))
}

type updateRoleRequest struct {
	Description        *string `json:"description,omitempty"`
	MaxSessionDuration *int    `json:"maxSessionDuration,omitempty"`
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	name := chi.URLParam(r, "roleName")
	if !h.allow(w, r, accountID, "iam:UpdateRole", resourceARN(accountID, "role", name)) {
		return
	}
	var body updateRoleRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	role, err := h.roles.Update(r.Context(), accountID, name, domain.UpdateRoleRequest{
		Description:        body.Description,
		MaxSessionDuration: body.MaxSessionDuration,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, roleToAPI(*role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	name := chi.URLParam(r, "roleName")
	if !h.allow(w, r, accountID, "iam:DeleteRole", resourceARN(accountID, "role", name)) {
		return
	}
	if err := h.roles.Delete(r.Context(), accountID, name); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

type putTrustPolicyRequest struct {
	PolicyDocument string `json:"policyDocument"`
}

func (h *Handler) putAssumeRolePolicy(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	name := chi.URLParam(r, "roleName")
	if !h.allow(w, r, accountID, "iam:UpdateAssumeRolePolicy", resourceARN(accountID, "role", name)) {
		return
	}
	var body putTrustPolicyRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.roles.SetAssumeRolePolicy(r.Context(), accountID, name, body.PolicyDocument); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) putRoleBoundary(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	name := chi.URLParam(r, "roleName")
	if !h.allow(w, r, accountID, "iam:PutRolePermissionsBoundary", resourceARN(accountID, "role", name)) {
		return
	}
	var body putBoundaryRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.roles.SetPermissionsBoundary(r.Context(), accountID, name, body.PermissionsBoundary); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) deleteRoleBoundary(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	name := chi.URLParam(r, "roleName")
	if !h.allow(w, r, accountID, "iam:DeleteRolePermissionsBoundary", resourceARN(accountID, "role", name)) {
		return
	}
	if err := h.roles.DeletePermissionsBoundary(r.Context(), accountID, name); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}
