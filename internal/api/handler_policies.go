package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"iamcore/internal/domain"
)

type createPolicyRequest struct {
	PolicyName string `json:"policyName"`
	Path       string `json:"path,omitempty"`
	Document   string `json:"document"`
	PolicyType string `json:"policyType,omitempty"`
}

func (h *Handler) createPolicy(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	var body createPolicyRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	if !h.allow(w, r, accountID, "iam:CreatePolicy", resourceARN(accountID, "policy", body.PolicyName)) {
		return
	}
	p, err := h.policies.Create(r.Context(), domain.CreatePolicyRequest{
		AccountID:  accountID,
		Name:       body.PolicyName,
		Path:       body.Path,
		Document:   body.Document,
		PolicyType: body.PolicyType,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusCreated, policyToAPI(*p))
}

func (h *Handler) listPolicies(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if !h.allow(w, r, accountID, "iam:ListPolicies", resourceARN(accountID, "policy", "*")) {
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	q := r.URL.Query()
	includeDeprecated := q.Get("includeDeprecated") == "true"
	policies, total, err := h.policies.List(r.Context(), accountID, q.Get("pathPrefix"), includeDeprecated, page)
	if err != nil {
		WriteError(w, err)
		return
	}
	items := make([]policyJSON, 0, len(policies))
	for _, p := range policies {
		items = append(items, policyToAPI(p))
	}
	respond(w, http.StatusOK, listOf(items, total, page))
}

func (h *Handler) getPolicy(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	ref := chi.URLParam(r, "policyName")
	if !h.allow(w, r, accountID, "iam:GetPolicy", resourceARN(accountID, "policy", ref)) {
		return
	}
	p, err := h.policies.Get(r.Context(), accountID, ref)
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, policyToAPI(*p))
}

type updatePolicyRequest struct {
	Deprecated *bool `json:"deprecated"`
}

// updatePolicy toggles policy metadata. Only the deprecation flag is
// mutable; documents change through versions.
func (h *Handler) updatePolicy(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	ref := chi.URLParam(r, "policyName")
	if !h.allow(w, r, accountID, "iam:SetPolicyDeprecated", resourceARN(accountID, "policy", ref)) {
		return
	}
	var body updatePolicyRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	if body.Deprecated == nil {
		WriteError(w, domain.ErrValidation("nothing to update"))
		return
	}
	if err := h.policies.SetDeprecated(r.Context(), accountID, ref, *body.Deprecated); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) deletePolicy(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	ref := chi.URLParam(r, "policyName")
	if !h.allow(w, r, accountID, "iam:DeletePolicy", resourceARN(accountID, "policy", ref)) {
		return
	}
	if err := h.policies.Delete(r.Context(), accountID, ref); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

type createPolicyVersionRequest struct {
	Document   string `json:"document"`
	SetDefault bool   `json:"setAsDefault,omitempty"`
}

func (h *Handler) createPolicyVersion(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	ref := chi.URLParam(r, "policyName")
	if !h.allow(w, r, accountID, "iam:CreatePolicyVersion", resourceARN(accountID, "policy", ref)) {
		return
	}
	var body createPolicyVersionRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	v, err := h.policies.CreateVersion(r.Context(), accountID, ref, domain.CreatePolicyVersionRequest{
		Document:   body.Document,
		SetDefault: body.SetDefault,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	p, err := h.policies.Get(r.Context(), accountID, ref)
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusCreated, policyVersionToAPI(*v, p.DefaultVersion))
}

func (h *Handler) listPolicyVersions(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	ref := chi.URLParam(r, "policyName")
	if !h.allow(w, r, accountID, "iam:ListPolicyVersions", resourceARN(accountID, "policy", ref)) {
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	p, err := h.policies.Get(r.Context(), accountID, ref)
	if err != nil {
		WriteError(w, err)
		return
	}
	versions, total, err := h.policies.ListVersions(r.Context(), accountID, ref, page)
	if err != nil {
		WriteError(w, err)
		return
	}
	items := make([]policyVersionJSON, 0, len(versions))
	for _, v := range versions {
		items = append(items, policyVersionToAPI(v, p.DefaultVersion))
	}
	respond(w, http.StatusOK, listOf(items, total, page))
}

func (h *Handler) getPolicyVersion(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	ref := chi.URLParam(r, "policyName")
	if !h.allow(w, r, accountID, "iam:GetPolicyVersion", resourceARN(accountID, "policy", ref)) {
		return
	}
	p, err := h.policies.Get(r.Context(), accountID, ref)
	if err != nil {
		WriteError(w, err)
		return
	}
	v, err := h.policies.GetVersion(r.Context(), accountID, ref, chi.URLParam(r, "versionID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, policyVersionToAPI(*v, p.DefaultVersion))
}

func (h *Handler) deletePolicyVersion(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	ref := chi.URLParam(r, "policyName")
	if !h.allow(w, r, accountID, "iam:DeletePolicyVersion", resourceARN(accountID, "policy", ref)) {
		return
	}
	if err := h.policies.DeleteVersion(r.Context(), accountID, ref, chi.URLParam(r, "versionID")); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) setDefaultPolicyVersion(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	ref := chi.URLParam(r, "policyName")
	if !h.allow(w, r, accountID, "iam:SetDefaultPolicyVersion", resourceARN(accountID, "policy", ref)) {
		return
	}
	if err := h.policies.SetDefaultVersion(r.Context(), accountID, ref, chi.URLParam(r, "versionID")); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}
