package auth

import (
	"net/http"

	"gather/cmd/identity"
	"gather/cmd/internal/webapi"
)

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		h.log.Error("auth.admin.list_users.fail", "err", err)
		webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	webapi.WriteJSON(w, http.StatusOK, usersResponse{Users: out})
}

func (h *Handler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	caller, _ := UserFrom(r.Context())
	targetID := r.PathValue("id")

	var req updateRoleRequest
	if err := webapi.DecodeJSON(w, r, maxAuthBodyBytes, &req); err != nil {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_request", "role must be user or admin")
		return
	}

	// Admins cannot demote or promote themselves.
	if targetID == caller.ID {
		webapi.WriteError(w, http.StatusBadRequest, "invalid_request", "cannot change your own role")
		return
	}

	u, err := h.users.UpdateUserRole(r.Context(), targetID, req.Role)
	if err != nil {
		switch {
		case identity.IsNotFound(err):
			webapi.WriteError(w, http.StatusNotFound, "not_found", "user not found")
		case identity.IsInvalidInput(err):
			webapi.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid role")
		default:
			h.log.Error("auth.admin.update_role.fail", "err", err)
			webapi.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.log.Info("auth.admin.role_changed", "user_id", u.ID, "role", u.Role, "changed_by", caller.ID)
	webapi.WriteJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}
