package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"spx-studio/internal/auth"
	"spx-studio/internal/database"
	"spx-studio/internal/logging"
	"spx-studio/internal/models"

	"github.com/google/uuid"
)

var errInvalidRefreshToken = errors.New("invalid or expired refresh token")

type RegisterRequest struct {
	Username  string  `json:"username" example:"ada"`
	Email     string  `json:"email" example:"ada@example.com"`
	Password  string  `json:"password" example:"correct horse"`
	FirstName *string `json:"first_name,omitempty" example:"Ada"`
	LastName  *string `json:"last_name,omitempty" example:"Lovelace"`
}

type LoginRequest struct {
	Username string `json:"username" example:"ada"`
	Password string `json:"password" example:"correct horse"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJ1c2VyX2lkIjoxLCJ1c2VybmFtZSI6ImFkYSJ9...."`
	RefreshToken string `json:"refresh_token" example:"V1StGXR8_Z5jdHi6B-myT78q_Z5jdHi6B-myT78q"`
}

type RegisterResponse struct {
	User *models.User `json:"user"`
	TokenResponse
}

// newSession issues an access token and persists a fresh refresh token for user.
func (s *Server) newSession(ctx context.Context, q *database.Queries, r *http.Request, user *models.User) (*TokenResponse, error) {
	accessToken, err := auth.GenerateJWT(user, s.config.JWT.Secret, s.config.JWT.AccessTTL)
	if err != nil {
		return nil, err
	}

	refreshToken := s.newToken()

	err = q.CreateSession(ctx, database.CreateSessionParams{
		ID:           uuid.New(),
		UserID:       user.ID,
		RefreshToken: refreshToken,
		UserAgent:    r.UserAgent(),
		ClientIP:     r.RemoteAddr,
		ExpiresAt:    time.Now().Add(s.config.JWT.RefreshTTL),
	})
	if err != nil {
		return nil, err
	}

	return &TokenResponse{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *Server) setAccessCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.config.JWT.AccessTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.config.HTTP.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearAccessCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.HTTP.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// @Summary      Register a new account
// @Description  Creates a user on the free plan and logs them in.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        registerRequest  body      RegisterRequest  true  "Account details"
// @Success      201              {object}  RegisterResponse
// @Failure      400              {string}  string "Invalid request body"
// @Failure      409              {string}  string "Username or email already taken"
// @Failure      500              {string}  string "Internal Server Error"
// @Router       /auth/register [post]
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" {
		http.Error(w, "Username is required", http.StatusBadRequest)
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		http.Error(w, "A valid email is required", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		internalError(w, r, "Failed to register user", err)
		return
	}

	var user *models.User
	var tokens *TokenResponse
	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		var err error
		user, err = q.CreateUser(r.Context(), database.CreateUserParams{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: hash,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
		})
		if err != nil {
			return err
		}
		tokens, err = s.newSession(r.Context(), q, r, user)
		return err
	})
	if txErr != nil {
		switch {
		case errors.Is(txErr, database.ErrUsernameTaken), errors.Is(txErr, database.ErrEmailTaken):
			http.Error(w, txErr.Error(), http.StatusConflict)
		default:
			internalError(w, r, "Failed to register user", txErr)
		}
		return
	}

	logging.WithContext(r.Context()).Info("user registered", logging.Int64("user_id", user.ID))

	s.setAccessCookie(w, tokens.AccessToken)
	writeJSON(w, http.StatusCreated, RegisterResponse{User: user, TokenResponse: *tokens})
}

// @Summary      Logs a user in
// @Description  Authenticates a user and returns a short-lived access token and a long-lived refresh token. The access token is also set as an HttpOnly cookie.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        loginRequest   body      LoginRequest  true  "Login Credentials"
// @Success      200            {object}  TokenResponse
// @Failure      400            {string}  string "Invalid request body"
// @Failure      401            {string}  string "Invalid username or password"
// @Failure      500            {string}  string "Internal Server Error"
// @Router       /auth/login [post]
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		internalError(w, r, "Internal server error", err)
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	tokens, err := s.newSession(r.Context(), s.store.Queries, r, user)
	if err != nil {
		internalError(w, r, "Failed to process login session", err)
		return
	}

	s.setAccessCookie(w, tokens.AccessToken)
	writeJSON(w, http.StatusOK, tokens)
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" example:"V1StGXR8_Z5jdHi6B-myT78q_Z5jdHi6B-myT78q"`
}

// @Summary      Refresh access token
// @Description  Provides a new short-lived access token and a new refresh token in exchange for a valid, non-expired refresh token. Implements refresh token rotation.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        refreshTokenRequest   body      RefreshTokenRequest  true  "Refresh Token"
// @Success      200                   {object}  TokenResponse
// @Failure      400                   {string}  string "Invalid request body or missing token"
// @Failure      401                   {string}  string "Invalid or expired refresh token"
// @Failure      500                   {string}  string "Internal Server Error"
// @Router       /auth/refresh [post]
func (s *Server) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.RefreshToken == "" {
		http.Error(w, "Refresh token is required", http.StatusBadRequest)
		return
	}

	var tokens *TokenResponse
	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		user, err := q.GetUserByRefreshToken(r.Context(), req.RefreshToken)
		if err != nil {
			return err
		}
		if user == nil {
			return errInvalidRefreshToken
		}

		if err := q.DeleteSessionByRefreshToken(r.Context(), req.RefreshToken); err != nil {
			return err
		}

		tokens, err = s.newSession(r.Context(), q, r, user)
		return err
	})

	if txErr != nil {
		if errors.Is(txErr, errInvalidRefreshToken) {
			http.Error(w, txErr.Error(), http.StatusUnauthorized)
		} else {
			internalError(w, r, "Failed to refresh token", txErr)
		}
		return
	}

	s.setAccessCookie(w, tokens.AccessToken)
	writeJSON(w, http.StatusOK, tokens)
}

// @Summary      Log out
// @Description  Ends the session of the given refresh token and clears the access token cookie.
// @Tags         auth
// @Accept       json
// @Security     BearerAuth
// @Param        refreshTokenRequest  body      RefreshTokenRequest  false  "Refresh token of the session to end"
// @Success      204                  {null}    nil "No Content"
// @Failure      401                  {string}  string "Unauthorized"
// @Failure      500                  {string}  string "Internal Server Error"
// @Router       /auth/logout [post]
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	// An empty body only clears the cookie.
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.RefreshToken != "" {
		if err := s.store.DeleteSessionByRefreshToken(r.Context(), req.RefreshToken); err != nil {
			internalError(w, r, "Failed to end session", err)
			return
		}
	}

	s.clearAccessCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
