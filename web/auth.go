package web

import (
	"net/http"

	"github.com/artpar/recordbase/domain/user"
	"github.com/artpar/recordbase/pkg/apierror"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := decodeBody(r, &creds); err != nil {
		writeError(w, err)
		return
	}

	u, token, err := h.users.Auth(r.Context(), creds.Username, creds.Password)
	if err != nil {
		if h.metrics != nil && apierror.Code(err) == http.StatusUnauthorized {
			h.metrics.AuthFailures.Inc()
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": u})
}

// handleSignup registers a new account. Requested groups are honored with
// one restriction: an admin group may only be claimed while no admin
// exists yet, which bootstraps the very first account. Without an explicit
// groups field the first account becomes an admin and everyone after lands
// in the users group.
func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string   `json:"username"`
		Password string   `json:"password"`
		Groups   []string `json:"groups"`
	}
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	hasAdmins, err := h.users.HasAdmins(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	groups := payload.Groups
	if len(groups) == 0 {
		groups = []string{user.GroupUsers}
		if !hasAdmins {
			groups = []string{user.GroupAdmins}
		}
	} else {
		for _, g := range groups {
			if user.IsAdminGroup(g) && hasAdmins {
				writeError(w, apierror.ErrUnauthorized)
				return
			}
		}
	}

	u, err := h.users.Create(r.Context(), payload.Username, payload.Password, groups)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.users.Tokens().Issue(u.ID, u.Groups)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"token": token, "user": u})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	if u == nil {
		writeError(w, apierror.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
