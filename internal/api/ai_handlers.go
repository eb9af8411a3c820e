package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"spx-studio/internal/ai"
	"spx-studio/internal/logging"
	"spx-studio/internal/metrics"
	"spx-studio/internal/plans"
)

type GenerateWebsiteRequest struct {
	Prompt string `json:"prompt" example:"A landing page for a bakery in Lisbon"`
}

type AnalyzeDesignRequest struct {
	ImageData string `json:"imageData" example:"data:image/png;base64,iVBORw0KGgo..."`
}

type GenerationResponse struct {
	*ai.Result
	CreditsUsed int `json:"ai_credits_used" example:"3"`
}

// generate runs one metered generation for the caller: rate limit, plan
// allowance, the generation itself, then the credit increment.
func (s *Server) generate(w http.ResponseWriter, r *http.Request, kind string, run func(ctx context.Context) *ai.Result) {
	claims := GetUserFromContext(r.Context())

	if !s.limiter.Allow(claims.UserID) {
		metrics.RecordRateLimitHit()
		http.Error(w, "Too many AI requests, please slow down", http.StatusTooManyRequests)
		return
	}

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		internalError(w, r, "Failed to load user", err)
		return
	}
	if user == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	if !plans.Lookup(user.Plan).AllowsGeneration(user.AICreditsUsed) {
		metrics.RecordQuotaExceeded("ai")
		http.Error(w, "AI generation limit reached. Please upgrade your plan.", http.StatusForbidden)
		return
	}

	result := run(r.Context())
	metrics.RecordGeneration(kind, result.Source)

	credits, err := s.store.IncrementAICredits(r.Context(), claims.UserID)
	if err != nil {
		internalError(w, r, "Failed to record AI usage", err)
		return
	}

	logging.WithContext(r.Context()).Info("website generated",
		logging.String("kind", kind),
		logging.String("source", result.Source),
		logging.Int64("user_id", claims.UserID),
	)
	writeJSON(w, http.StatusOK, GenerationResponse{Result: result, CreditsUsed: credits})
}

// @Summary      Generate a website from a prompt
// @Description  Generates HTML, CSS and JavaScript for the described website. Uses one AI credit; falls back to a template when the model is unavailable.
// @Tags         ai
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      GenerateWebsiteRequest  true  "Prompt"
// @Success      200      {object}  GenerationResponse
// @Failure      400      {string}  string "Prompt is required"
// @Failure      401      {string}  string "Unauthorized"
// @Failure      403      {string}  string "AI generation limit reached"
// @Failure      429      {string}  string "Too many AI requests"
// @Failure      500      {string}  string "Internal Server Error"
// @Router       /ai/generate-website [post]
func (s *Server) GenerateWebsiteHandler(w http.ResponseWriter, r *http.Request) {
	var req GenerateWebsiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		http.Error(w, "Prompt is required", http.StatusBadRequest)
		return
	}

	s.generate(w, r, "prompt", func(ctx context.Context) *ai.Result {
		return s.generator.GenerateWebsite(ctx, prompt)
	})
}

// @Summary      Recreate a design as a website
// @Description  Analyzes a design image (base64, optionally as a data URL) and generates matching website code. Uses one AI credit.
// @Tags         ai
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      AnalyzeDesignRequest  true  "Design image"
// @Success      200      {object}  GenerationResponse
// @Failure      400      {string}  string "Image data is required"
// @Failure      401      {string}  string "Unauthorized"
// @Failure      403      {string}  string "AI generation limit reached"
// @Failure      429      {string}  string "Too many AI requests"
// @Failure      500      {string}  string "Internal Server Error"
// @Router       /ai/analyze-canva [post]
func (s *Server) AnalyzeDesignHandler(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeDesignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ImageData) == "" {
		http.Error(w, "Image data is required", http.StatusBadRequest)
		return
	}

	s.generate(w, r, "design", func(ctx context.Context) *ai.Result {
		return s.generator.AnalyzeDesign(ctx, req.ImageData)
	})
}
