package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"iamcore/internal/domain"
)

type createAccountRequest struct {
	Email string `json:"email"`
	Alias string `json:"alias,omitempty"`
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, "", "organizations:CreateAccount", "*") {
		return
	}
	var body createAccountRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	acct, err := h.accounts.Create(r.Context(), domain.CreateAccountRequest{
		Email: body.Email,
		Alias: body.Alias,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusCreated, accountToAPI(*acct))
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, "", "organizations:ListAccounts", "*") {
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	accounts, total, err := h.accounts.List(r.Context(), page)
	if err != nil {
		WriteError(w, err)
		return
	}
	items := make([]accountJSON, 0, len(accounts))
	for _, a := range accounts {
		items = append(items, accountToAPI(a))
	}
	respond(w, http.StatusOK, listOf(items, total, page))
}

// getAccount accepts an account id or alias. The scope check runs against
// the resolved id so aliases cannot sidestep it.
func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accounts.Get(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		WriteError(w, err)
		return
	}
	if !h.allow(w, r, acct.ID, "organizations:DescribeAccount", acct.ARN()) {
		return
	}
	respond(w, http.StatusOK, accountToAPI(*acct))
}

type putAliasRequest struct {
	Alias string `json:"alias"`
}

func (h *Handler) putAccountAlias(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if !h.allow(w, r, accountID, "iam:CreateAccountAlias", "arn:aws:iam::"+accountID+":root") {
		return
	}
	var body putAliasRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.accounts.SetAlias(r.Context(), accountID, body.Alias); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

func (h *Handler) deleteAccountAlias(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if !h.allow(w, r, accountID, "iam:DeleteAccountAlias", "arn:aws:iam::"+accountID+":root") {
		return
	}
	if err := h.accounts.DeleteAlias(r.Context(), accountID); err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}
