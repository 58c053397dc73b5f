package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"iamcore/internal/domain"
)

type createUserRequest struct {
	UserName            string `json:"userName"`
	Path                string `json:"path,omitempty"`
	PermissionsBoundary string `json:"permissionsBoundary,omitempty"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	var body createUserRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	if !h.allow(w, r, accountID, "iam:CreateUser", resourceARN(accountID, "user", body.UserName)) {
		return
	}
	u, err := h.users.Create(r.Context(), domain.CreateUserRequest{
		AccountID:           accountID,
		Name:                body.UserName,
		Path:                body.Path,
		PermissionsBoundary: body.PermissionsBoundary,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusCreated, userToAPI(*u))
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if !h.allow(w, r, accountID, "iam:ListUsers", resourceARN(accountID, "user", "*")) {
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	users, total, err := h.users.List(r.Context(), accountID, r.URL.Query().Get("pathPrefix"), page)
	if err != nil {
		WriteError(w, err)
		return
	}
	items := make([]userJSON, 0, len(users))
	for _, u := range users {
		items = append(items, userToAPI(u))
	}
	respond(w, http.StatusOK, listOf(items, total, page))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	name := chi.URLParam(r, "userName")
	if !h.allow(w, r, accountID, "iam:GetUser", resourceARN(accountID, "user", name)) {
		return
	}
	u, err := h.users.Get(r.Context(), accountID, name)
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, userToAPI(*u))
}

type updateUserRequest struct {
	NewUserName string `json:"newUserName,omitempty"`
	NewPath     string `json:"newPath,omitempty"`
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	name := chi.URLParam(r, "userName")
	if !h.allow(w, r, accountID, "iam:UpdateUser", resourceARN(accountID, "user", name)) {
		return
	}
	var body updateUserRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	u, err := h.users.Update(r.Context(), accountID, name, domain.UpdateUserRequest{
		NewName: body.NewUserName,
		NewPath: body.NewPath,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, userToAPI(*u))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	name := chi.URLParam(r, "userName")
	if !h.allow(w, r, accountID, "iam:DeleteUser", resourceARN(accountID, "user", name)) {
		return
	}
	if err := h.users.Delete(r.Context(), accountID, name); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

type putBoundaryRequest struct {
	PermissionsBoundary string `json:"permissionsBoundary"`
}

func (h *Handler) putUserBoundary(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	name := chi.URLParam(r, "userName")
	if !h.allow(w, r, accountID, "iam:PutUserPermissionsBoundary", resourceARN(accountID, "user", name)) {
		return
	}
	var body putBoundaryRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.users.SetPermissionsBoundary(r.Context(), accountID, name, body.PermissionsBoundary); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) deleteUserBoundary(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	name := chi.URLParam(r, "userName")
	if !h.allow(w, r, accountID, "iam:DeleteUserPermissionsBoundary", resourceARN(accountID, "user", name)) {
		return
	}
	if err := h.users.DeletePermissionsBoundary(r.Context(), accountID, name); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) listUserGroups(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	name := chi.URLParam(r, "userName")
	if !h.allow(w, r, accountID, "iam:ListGroupsForUser", resourceARN(accountID, "user", name)) {
		return
	}
	groups, err := h.users.ListGroups(r.Context(), accountID, name)
	if err != nil {
		WriteError(w, err)
		return
	}
	items := make([]groupJSON, 0, len(groups))
	for _, g := range groups {
		items = append(items, groupToAPI(g))
	}
	respond(w, http.StatusOK, listOf(items, int64(len(items)), domain.PageRequest{}))
}
