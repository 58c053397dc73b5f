package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"iamcore/internal/domain"
)

type createGroupRequest struct {
	GroupName string `json:"groupName"`
	Path      string `json:"path,omitempty"`
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	var body createGroupRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	if !h.allow(w, r, accountID, "iam:CreateGroup", resourceARN(accountID, "group", body.GroupName)) {
		return
	}
	g, err := h.groups.Create(r.Context(), domain.CreateGroupRequest{
		AccountID: accountID,
		Name:      body.GroupName,
		Path:      body.Path,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusCreated, groupToAPI(*g))
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if !h.allow(w, r, accountID, "iam:ListGroups", resourceARN(accountID, "group", "*")) {
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	groups, total, err := h.groups.List(r.Context(), accountID, r.URL.Query().Get("pathPrefix"), page)
	if err != nil {
		WriteError(w, err)
		return
	}
	items := make([]groupJSON, 0, len(groups))
	for _, g := range groups {
		items = append(items, groupToAPI(g))
	}
	respond(w, http.StatusOK, listOf(items, total, page))
}

func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	name := chi.URLParam(r, "groupName")
	if !h.allow(w, r, accountID, "iam:GetGroup", resourceARN(accountID, "group", name)) {
		return
	}
	g, err := h.groups.Get(r.Context(), accountID, name)
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, groupToAPI(*g))
}

type updateGroupRequest struct {
	NewGroupName string `json:"newGroupName,omitempty"`
	NewPath      string `json:"newPath,omitempty"`
}

func (h *Handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	name := chi.URLParam(r, "groupName")
	if !h.allow(w, r, accountID, "iam:UpdateGroup", resourceARN(accountID, "group", name)) {
		return
	}
	var body updateGroupRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	g, err := h.groups.Update(r.Context(), accountID, name, domain.UpdateGroupRequest{
		NewName: body.NewGroupName,
		NewPath: body.NewPath,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, groupToAPI(*g))
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	name := chi.URLParam(r, "groupName")
	if !h.allow(w, r, accountID, "iam:DeleteGroup", resourceARN(accountID, "group", name)) {
		return
	}
	if err := h.groups.Delete(r.Context(), accountID, name); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) listGroupMembers(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	name := chi.URLParam(r, "groupName")
	if !h.allow(w, r, accountID, "iam:GetGroup", resourceARN(accountID, "group", name)) {
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	users, total, err := h.groups.ListMembers(r.Context(), accountID, name, page)
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

func (h *Handler) addGroupMember(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	name := chi.URLParam(r, "groupName")
	if !h.allow(w, r, accountID, "iam:AddUserToGroup", resourceARN(accountID, "group", name)) {
		return
	}
	if err := h.groups.AddMember(r.Context(), accountID, name, chi.URLParam(r, "userName")); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) removeGroupMember(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	name := chi.URLParam(r, "groupName")
	if !h.allow(w, r, accountID, "iam:RemoveUserFromGroup", resourceARN(accountID, "group", name)) {
		return
	}
	if err := h.groups.RemoveMember(r.Context(), accountID, name, chi.URLParam(r, "userName")); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}
