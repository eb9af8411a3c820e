package api

import (
	"net/http"

	"spx-studio/internal/models"
	"spx-studio/internal/plans"
)

type MeResponse struct {
	User   *models.User `json:"user"`
	Limits plans.Limits `json:"limits"`
}

// @Summary      Get current user info
// @Description  Retrieves the authenticated user's profile together with the limits of their plan.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  MeResponse
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "User not found"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /me [get]
func (s *Server) GetCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Could not retrieve user from token", http.StatusInternalServerError)
		return
	}

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		internalError(w, r, "Failed to retrieve user data", err)
		return
	}
	if user == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{User: user, Limits: plans.Lookup(user.Plan)})
}
