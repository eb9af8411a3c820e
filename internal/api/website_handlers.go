package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"spx-studio/internal/database"
	"spx-studio/internal/models"
	"spx-studio/internal/plans"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
)

var (
	errDomainNotAllowed = errors.New("your plan does not include more custom domains")
	textPolicy          = bluemonday.StrictPolicy()
)

type WebsiteRequest struct {
	Name        *string `json:"name" example:"Bakery"`
	Description *string `json:"description" example:"Landing page for the shop"`
	HTMLContent *string `json:"html_content"`
	CSSContent  *string `json:"css_content"`
	JSContent   *string `json:"js_content"`
	IsPublished *bool   `json:"is_published"`
	Domain      *string `json:"domain" example:"bakery.example.com"`
}

// sanitizeText strips markup from user supplied labels.
func sanitizeText(s *string) *string {
	if s == nil {
		return nil
	}
	clean := strings.TrimSpace(textPolicy.Sanitize(*s))
	return &clean
}

func normalizeDomain(s *string) *string {
	if s == nil {
		return nil
	}
	d := strings.ToLower(strings.TrimSpace(*s))
	return &d
}

// checkDomainAllowance reports errDomainNotAllowed when binding one more
// custom domain would exceed the user's plan.
func (s *Server) checkDomainAllowance(ctx context.Context, userID int64, websiteID string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return database.ErrUserNotFound
	}

	bound, err := s.store.CountWebsiteDomains(ctx, userID, websiteID)
	if err != nil {
		return err
	}
	if bound >= plans.Lookup(user.Plan).Domains {
		return errDomainNotAllowed
	}
	return nil
}

func (s *Server) websiteError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, errDomainNotAllowed):
		http.Error(w, "Your plan does not include more custom domains. Please upgrade your plan.", http.StatusForbidden)
	case errors.Is(err, database.ErrDomainTaken):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		internalError(w, r, msg, err)
	}
}

// ownedWebsite loads websiteId and answers 404/403 itself when the caller may not use it.
func (s *Server) ownedWebsite(w http.ResponseWriter, r *http.Request) (*models.Website, bool) {
	claims := GetUserFromContext(r.Context())

	site, err := s.store.GetWebsiteByID(r.Context(), chi.URLParam(r, "websiteId"))
	if err != nil {
		internalError(w, r, "Failed to fetch website", err)
		return nil, false
	}
	if site == nil {
		http.Error(w, "Website not found", http.StatusNotFound)
		return nil, false
	}
	if site.UserID != claims.UserID {
		http.Error(w, "Unauthorized", http.StatusForbidden)
		return nil, false
	}
	return site, true
}

// @Summary      List websites
// @Tags         websites
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   models.Website
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /websites [get]
func (s *Server) ListWebsitesHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	sites, err := s.store.ListWebsitesByUser(r.Context(), claims.UserID)
	if err != nil {
		internalError(w, r, "Failed to fetch websites", err)
		return
	}

	writeJSON(w, http.StatusOK, sites)
}

// @Summary      Get a website
// @Tags         websites
// @Produce      json
// @Security     BearerAuth
// @Param        websiteId  path      string  true  "Website ID"
// @Success      200        {object}  models.Website
// @Failure      401        {string}  string "Unauthorized"
// @Failure      403        {string}  string "Unauthorized"
// @Failure      404        {string}  string "Website not found"
// @Failure      500        {string}  string "Internal Server Error"
// @Router       /websites/{websiteId} [get]
func (s *Server) GetWebsiteHandler(w http.ResponseWriter, r *http.Request) {
	site, ok := s.ownedWebsite(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, site)
}

// @Summary      Create a website
// @Tags         websites
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        website  body      WebsiteRequest  true  "Website"
// @Success      201      {object}  models.Website
// @Failure      400      {string}  string "Invalid website data"
// @Failure      401      {string}  string "Unauthorized"
// @Failure      403      {string}  string "Custom domain not included in plan"
// @Failure      409      {string}  string "Domain already in use"
// @Failure      500      {string}  string "Internal Server Error"
// @Router       /websites [post]
func (s *Server) CreateWebsiteHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req WebsiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid website data", http.StatusBadRequest)
		return
	}

	name := sanitizeText(req.Name)
	if name == nil || *name == "" {
		http.Error(w, "Website name is required", http.StatusBadRequest)
		return
	}

	domain := normalizeDomain(req.Domain)
	if domain != nil && *domain == "" {
		domain = nil
	}

	arg := database.CreateWebsiteParams{
		ID:          s.newID(),
		UserID:      claims.UserID,
		Name:        *name,
		Description: sanitizeText(req.Description),
		Domain:      domain,
	}
	if req.HTMLContent != nil {
		arg.HTMLContent = *req.HTMLContent
	}
	if req.CSSContent != nil {
		arg.CSSContent = *req.CSSContent
	}
	if req.JSContent != nil {
		arg.JSContent = *req.JSContent
	}
	if req.IsPublished != nil {
		arg.IsPublished = *req.IsPublished
	}

	if domain != nil {
		if err := s.checkDomainAllowance(r.Context(), claims.UserID, arg.ID); err != nil {
			s.websiteError(w, r, "Failed to create website", err)
			return
		}
	}

	site, err := s.store.CreateWebsite(r.Context(), arg)
	if err != nil {
		s.websiteError(w, r, "Failed to create website", err)
		return
	}

	s.recordEvent(r.Context(), claims.UserID, "website_saved", map[string]string{"id": site.ID, "name": site.Name})
	writeJSON(w, http.StatusCreated, site)
}

// @Summary      Update a website
// @Description  Partially updates a website; omitted fields keep their value. An empty domain removes the custom domain.
// @Tags         websites
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        websiteId  path      string          true  "Website ID"
// @Param        website    body      WebsiteRequest  true  "Fields to change"
// @Success      200        {object}  models.Website
// @Failure      400        {string}  string "Invalid website data"
// @Failure      401        {string}  string "Unauthorized"
// @Failure      403        {string}  string "Unauthorized"
// @Failure      404        {string}  string "Website not found"
// @Failure      409        {string}  string "Domain already in use"
// @Failure      500        {string}  string "Internal Server Error"
// @Router       /websites/{websiteId} [put]
func (s *Server) UpdateWebsiteHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	site, ok := s.ownedWebsite(w, r)
	if !ok {
		return
	}

	var req WebsiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid website data", http.StatusBadRequest)
		return
	}

	name := sanitizeText(req.Name)
	if name != nil && *name == "" {
		http.Error(w, "Website name cannot be empty", http.StatusBadRequest)
		return
	}

	domain := normalizeDomain(req.Domain)
	if domain != nil && *domain != "" && (site.Domain == nil || *site.Domain != *domain) {
		if err := s.checkDomainAllowance(r.Context(), claims.UserID, site.ID); err != nil {
			s.websiteError(w, r, "Failed to update website", err)
			return
		}
	}

	updated, err := s.store.UpdateWebsite(r.Context(), database.UpdateWebsiteParams{
		ID:          site.ID,
		UserID:      claims.UserID,
		Name:        name,
		Description: sanitizeText(req.Description),
		HTMLContent: req.HTMLContent,
		CSSContent:  req.CSSContent,
		JSContent:   req.JSContent,
		IsPublished: req.IsPublished,
		Domain:      domain,
	})
	if err != nil {
		s.websiteError(w, r, "Failed to update website", err)
		return
	}
	if updated == nil {
		http.Error(w, "Website not found", http.StatusNotFound)
		return
	}

	s.recordEvent(r.Context(), claims.UserID, "website_saved", map[string]string{"id": updated.ID, "name": updated.Name})
	writeJSON(w, http.StatusOK, updated)
}

// @Summary      Delete a website
// @Tags         websites
// @Security     BearerAuth
// @Param        websiteId  path      string  true  "Website ID"
// @Success      204        {null}    nil "No Content"
// @Failure      401        {string}  string "Unauthorized"
// @Failure      403        {string}  string "Unauthorized"
// @Failure      404        {string}  string "Website not found"
// @Failure      500        {string}  string "Internal Server Error"
// @Router       /websites/{websiteId} [delete]
func (s *Server) DeleteWebsiteHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	site, ok := s.ownedWebsite(w, r)
	if !ok {
		return
	}

	deleted, err := s.store.DeleteWebsite(r.Context(), site.ID, claims.UserID)
	if err != nil {
		internalError(w, r, "Failed to delete website", err)
		return
	}
	if !deleted {
		http.Error(w, "Website not found", http.StatusNotFound)
		return
	}

	s.recordEvent(r.Context(), claims.UserID, "website_deleted", map[string]string{"id": site.ID})
	w.WriteHeader(http.StatusNoContent)
}
