package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"iamcore/internal/domain"
)

func (h *Handler) listLimitDefinitions(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, "", "servicequotas:ListServiceQuotas", "*") {
		return
	}
	page, err := pageFromQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	defs, total, err := h.limits.ListDefinitions(r.Context(), page)
	if err != nil {
		WriteError(w, err)
		return
	}
	items := make([]limitDefinitionJSON, 0, len(defs))
	for _, d := range defs {
		items = append(items, limitDefinitionToAPI(d))
	}
	respond(w, http.StatusOK, listOf(items, total, page))
}

// limitNameParam reassembles a limit reference routed as either a bare
// name or the qualified service/name form.
func limitNameParam(r *http.Request) string {
	name := chi.URLParam(r, "limitName")
	if svc := chi.URLParam(r, "serviceName"); svc != "" {
		return svc + "/" + name
	}
	return name
}

func (h *Handler) getAccountLimit(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if !h.allow(w, r, accountID, "servicequotas:GetServiceQuota", "arn:aws:iam::"+accountID+":root") {
		return
	}
	limit, err := h.limits.GetAccountLimit(r.Context(), accountID, limitNameParam(r), r.URL.Query().Get("region"))
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, effectiveLimitToAPI(*limit))
}

type putAccountLimitRequest struct {
	Region string `json:"region,omitempty"`
	Value  *int   `json:"value"`
}

func (h *Handler) putAccountLimit(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if !h.allow(w, r, accountID, "servicequotas:RequestServiceQuotaIncrease", "arn:aws:iam::"+accountID+":root") {
		return
	}
	var body putAccountLimitRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	limit, err := h.limits.SetAccountLimit(r.Context(), accountID, limitNameParam(r), domain.PutAccountLimitRequest{
		Region:   body.Region,
		IntValue: body.Value,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, http.StatusOK, effectiveLimitToAPI(*limit))
}
