package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"iamcore/internal/domain"
)

// mountCredentials registers the credential sub-resources of one user.
func (h *Handler) mountCredentials(r chi.Router) {
	r.Route("/access-keys", func(r chi.Router) {
		r.Post("/", h.createAccessKey)
		r.Get("/", h.listAccessKeys)
		r.Patch("/{accessKeyID}", h.updateAccessKey)
		r.Delete("/{accessKeyID}", h.deleteAccessKey)
	})
	r.Route("/login-profile", func(r chi.Router) {
		r.Put("/", h.createLoginProfile)
		r.Get("/", h.getLoginProfile)
		r.Patch("/", h.updateLoginProfile)
		r.Delete("/", h.deleteLoginProfile)
	})
	r.Route("/service-credentials", func(r chi.Router) {
		r.Post("/", h.createServiceCredential)
		r.Get("/", h.listServiceCredentials)
		r.Post("/{credentialID}/reset", h.resetServiceCredential)
		r.Patch("/{credentialID}", h.updateServiceCredential)
		r.Delete("/{credentialID}", h.deleteServiceCredential)
	})
	r.Route("/ssh-keys", func(r chi.Router) {
		r.Post("/", h.uploadSSHPublicKey)
		r.Get("/", h.listSSHPublicKeys)
		r.Get("/{keyID}", h.getSSHPublicKey)
		r.Patch("/{keyID}", h.updateSSHPublicKey)
		r.Delete("/{keyID}", h.deleteSSHPublicKey)
	})
}

// userParams pulls the account and user name out of the route.
func userParams(r *http.Request) (accountID, userName string) {
	return chi.URLParam(r, "accountID"), chi.URLParam(r, "userName")
}

// --- access keys ---

func (h *Handler) createAccessKey(w http.ResponseWriter, r *http.Request) {
	accountID, userName := userParams(r)
	if !h.allow(w, r, accountID, "iam:CreateAccessKey", resourceARN(accountID, "user", userName)) {
		return
	}
	key, err := h.credentials.CreateAccessKey(r.Context(), accountID, userName)
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusCreated, accessKeyToAPI(*key))
}

func (h *Handler) listAccessKeys(w http.ResponseWriter, r *http.Request) {
	accountID, userName := userParams(r)
	if !h.allow(w, r, accountID, "iam:ListAccessKeys", resourceARN(accountID, "user", userName)) {
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	keys, total, err := h.credentials.ListAccessKeys(r.Context(), accountID, userName, page)
	if err != nil {
		WriteError(w, err)
		return
	}
	items := make([]accessKeyJSON, 0, len(keys))
	for _, k := range keys {
		items = append(items, accessKeyToAPI(k))
	}
	respond(w, http.StatusOK, listOf(items, total, page))
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateAccessKey(w http.ResponseWriter, r *http.Request) {
	accountID, userName := userParams(r)
	if !h.allow(w, r, accountID, "iam:UpdateAccessKey", resourceARN(accountID, "user", userName)) {
		return
	}
	var body setStatusRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	active, err := statusActive(body.Status)
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.credentials.SetAccessKeyStatus(r.Context(), accountID, userName, chi.URLParam(r, "accessKeyID"), active); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) deleteAccessKey(w http.ResponseWriter, r *http.Request) {
	accountID, userName := userParams(r)
	if !h.allow(w, r, accountID, "iam:DeleteAccessKey", resourceARN(accountID, "user", userName)) {
		return
	}
	if err := h.credentials.DeleteAccessKey(r.Context(), accountID, userName, chi.URLParam(r, "accessKeyID")); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

// --- login profile ---

type createLoginProfileRequest struct {
	Password              string `json:"password"`
	PasswordResetRequired bool   `json:"passwordResetRequired,omitempty"`
}

func (h *Handler) createLoginProfile(w http.ResponseWriter, r *http.Request) {
	accountID, userName := userParams(r)
	if !h.allow(w, r, accountID, "iam:CreateLoginProfile", resourceARN(accountID, "user", userName)) {
		return
	}
	var body createLoginProfileRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	profile, err := h.credentials.CreateLoginProfile(r.Context(), accountID, userName, domain.CreateLoginProfileRequest{
		Password:      body.Password,
		ResetRequired: body.PasswordResetRequired,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusCreated, loginProfileToAPI(*profile))
}

func (h *Handler) getLoginProfile(w http.ResponseWriter, r *http.Request) {
	accountID, userName := userParams(r)
	if !h.allow(w, r, accountID, "iam:GetLoginProfile", resourceARN(accountID, "user", userName)) {
		return
	}
	profile, err := h.credentials.GetLoginProfile(r.Context(), accountID, userName)
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, loginProfileToAPI(*profile))
}

type updateLoginProfileRequest struct {
	Password              string `json:"password,omitempty"`
	PasswordResetRequired *bool  `json:"passwordResetRequired,omitempty"`
}

func (h *Handler) updateLoginProfile(w http.ResponseWriter, r *http.Request) {
	accountID, userName := userParams(r)
	if !h.allow(w, r, accountID, "iam:UpdateLoginProfile", resourceARN(accountID, "user", userName)) {
		return
	}
	var body updateLoginProfileRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.credentials.UpdateLoginProfile(r.Context(), accountID, userName, body.Password, body.PasswordResetRequired); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) deleteLoginProfile(w http.ResponseWriter, r *http.Request) {
	accountID, userName := userParams(r)
	if !h.allow(w, r, accountID, "iam:DeleteLoginProfile", resourceARN(accountID, "user", userName)) {
		return
	}
	if err := h.credentials.DeleteLoginProfile(r.Context(), accountID, userName); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

// --- service-specific credentials ---

type createServiceCredentialRequest struct {
	ServiceName string `json:"serviceName"`
}

func (h *Handler) createServiceCredential(w http.ResponseWriter, r *http.Request) {
	accountID, userName := userParams(r)
	if !h.allow(w, r, accountID, "iam:CreateServiceSpecificCredential", resourceARN(accountID, "user", userName)) {
		return
	}
	var body createServiceCredentialRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	cred, err := h.credentials.CreateServiceCredential(r.Context(), accountID, userName, domain.CreateServiceCredentialRequest{
		ServiceName: body.ServiceName,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusCreated, serviceCredentialToAPI(*cred))
}

func (h *Handler) listServiceCredentials(w http.ResponseWriter, r *http.Request) {
	accountID, userName := userParams(r)
	if !h.allow(w, r, accountID, "iam:ListServiceSpecificCredentials", resourceARN(accountID, "user", userName)) {
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	creds, total, err := h.credentials.ListServiceCredentials(r.Context(), accountID, userName, page)
	if err != nil {
		WriteError(w, err)
		return
	}
	items := make([]serviceCredentialJSON, 0, len(creds))
	for _, c := range creds {
		items = append(items, serviceCredentialToAPI(c))
	}
	respond(w, http.StatusOK, listOf(items, total, page))
}

func (h *Handler) resetServiceCredential(w http.ResponseWriter, r *http.Request) {
	accountID, userName := userParams(r)
	if !h.allow(w, r, accountID, "iam:ResetServiceSpecificCredential", resourceARN(accountID, "user", userName)) {
		return
	}
	cred, err := h.credentials.ResetServiceCredential(r.Context(), accountID, userName, chi.URLParam(r, "credentialID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, serviceCredentialToAPI(*cred))
}

func (h *Handler) updateServiceCredential(w http.ResponseWriter, r *http.Request) {
	accountID, userName := userParams(r)
	if !h.allow(w, r, accountID, "iam:UpdateServiceSpecificCredential", resourceARN(accountID, "user", userName)) {
		return
	}
	var body setStatusRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	active, err := statusActive(body.Status)
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.credentials.SetServiceCredentialStatus(r.Context(), accountID, userName, chi.URLParam(r, "credentialID"), active); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) deleteServiceCredential(w http.ResponseWriter, r *http.Request) {
	accountID, userName := userParams(r)
	if !h.allow(w, r, accountID, "iam:DeleteServiceSpecificCredential", resourceARN(accountID, "user", userName)) {
		return
	}
	if err := h.credentials.DeleteServiceCredential(r.Context(), accountID, userName, chi.URLParam(r, "credentialID")); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

// --- ssh public keys ---

type uploadSSHKeyRequest struct {
	Body string `json:"sshPublicKeyBody"`
}

func (h *Handler) uploadSSHPublicKey(w http.ResponseWriter, r *http.Request) {
	accountID, userName := userParams(r)
	if !h.allow(w, r, accountID, "iam:UploadSSHPublicKey", resourceARN(accountID, "user", userName)) {
		return
	}
	var body uploadSSHKeyRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	key, err := h.credentials.UploadSSHPublicKey(r.Context(), accountID, userName, domain.UploadSSHPublicKeyRequest{
		Body: body.Body,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusCreated, sshPublicKeyToAPI(*key))
}

func (h *Handler) listSSHPublicKeys(w http.ResponseWriter, r *http.Request) {
	accountID, userName := userParams(r)
	if !h.allow(w, r, accountID, "iam:ListSSHPublicKeys", resourceARN(accountID, "user", userName)) {
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	keys, total, err := h.credentials.ListSSHPublicKeys(r.Context(), accountID, userName, page)
	if err != nil {
		WriteError(w, err)
		return
	}
	items := make([]sshPublicKeyJSON, 0, len(keys))
	for _, k := range keys {
		items = append(items, sshPublicKeyToAPI(k))
	}
	respond(w, http.StatusOK, listOf(items, total, page))
}

func (h *Handler) getSSHPublicKey(w http.ResponseWriter, r *http.Request) {
	accountID, userName := userParams(r)
	if !h.allow(w, r, accountID, "iam:GetSSHPublicKey", resourceARN(accountID, "user", userName)) {
		return
	}
	key, err := h.credentials.GetSSHPublicKey(r.Context(), accountID, userName, chi.URLParam(r, "keyID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, sshPublicKeyToAPI(*key))
}

func (h *Handler) updateSSHPublicKey(w http.ResponseWriter, r *http.Request) {
	accountID, userName := userParams(r)
	if !h.allow(w, r, accountID, "iam:UpdateSSHPublicKey", resourceARN(accountID, "user", userName)) {
		return
	}
	var body setStatusRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	active, err := statusActive(body.Status)
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.credentials.SetSSHPublicKeyStatus(r.Context(), accountID, userName, chi.URLParam(r, "keyID"), active); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) deleteSSHPublicKey(w http.ResponseWriter, r *http.Request) {
	accountID, userName := userParams(r)
	if !h.allow(w, r, accountID, "iam:DeleteSSHPublicKey", resourceARN(accountID, "user", userName)) {
		return
	}
	if err := h.credentials.DeleteSSHPublicKey(r.Context(), accountID, userName, chi.URLParam(r, "keyID")); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}
