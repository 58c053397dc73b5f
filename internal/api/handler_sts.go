package api

import (
	"net/http"

	"iamcore/internal/domain"
)

type assumeRoleRequest struct {
	AccountID       string `json:"accountId,omitempty"`
	RoleName        string `json:"roleName"`
	SessionName     string `json:"sessionName"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	SessionPolicy   string `json:"sessionPolicy,omitempty"`
}

func (req assumeRoleRequest) toDomain() domain.AssumeRoleRequest {
	return domain.AssumeRoleRequest{
		AccountID:       req.AccountID,
		RoleName:        req.RoleName,
		SessionName:     req.SessionName,
		DurationSeconds: req.DurationSeconds,
		SessionPolicy:   req.SessionPolicy,
	}
}

// assumeRole exchanges the caller's credentials for a role session. Access is
// decided by the role's trust policy, not by an identity-policy check here.
func (h *Handler) assumeRole(w http.ResponseWriter, r *http.Request) {
	var body assumeRoleRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	if body.AccountID == "" {
		if caller, ok := domain.CallerFromContext(r.Context()); ok {
			body.AccountID = caller.AccountID
		}
	}
	creds, err := h.sts.AssumeRole(r.Context(), body.toDomain())
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, tempCredentialsToAPI(*creds))
}

type assumeRoleWithWebIdentityRequest struct {
	assumeRoleRequest
	WebIdentityToken string `json:"webIdentityToken"`
}

func (h *Handler) assumeRoleWithWebIdentity(w http.ResponseWriter, r *http.Request) {
	var body assumeRoleWithWebIdentityRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	creds, err := h.sts.AssumeRoleWithWebIdentity(r.Context(), body.toDomain(), body.WebIdentityToken)
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, tempCredentialsToAPI(*creds))
}

type callerIdentityJSON struct {
	AccountID string `json:"accountId"`
	ARN       string `json:"arn"`
	UserID    string `json:"userId"`
}

func (h *Handler) getCallerIdentity(w http.ResponseWriter, r *http.Request) {
	identity, err := h.sts.GetCallerIdentity(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, callerIdentityJSON{
		AccountID: identity.AccountID,
		ARN:       identity.ARN,
		UserID:    identity.PrincipalID,
	})
}
