package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/auth"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/user"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required,min=2"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type AuthResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

func newUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role.String(),
		CreatedAt: u.CreatedAt,
	}
}

type AuthHandler struct {
	service  user.Service
	tokens   *auth.TokenManager
	validate *validator.Validate
}

func NewAuthHandler(service user.Service, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{
		service:  service,
		tokens:   tokens,
		validate: newValidator(),
	}
}

func (h *AuthHandler) RegisterPublicRoutes(router chi.Router) {
	router.Post("/auth/register", h.handleRegister)
	router.Post("/auth/login", h.handleLogin)
}

func (h *AuthHandler) RegisterProtectedRoutes(router chi.Router) {
	router.Get("/auth/me", h.handleMe)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	created, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		statusCode := mapErrorToStatusCode(err)
		switch statusCode {
		case http.StatusConflict:
			respondWithError(w, statusCode, "Email already exists")
		case http.StatusBadRequest:
			respondWithError(w, statusCode, err.Error())
		default:
			log.Error().Err(err).Msg("Failed to register user via service")
			respondWithError(w, statusCode, "Failed to register user")
		}
		return
	}

	h.respondWithToken(w, http.StatusCreated, created)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	u, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		statusCode := mapErrorToStatusCode(err)
		if statusCode == http.StatusUnauthorized {
			respondWithError(w, statusCode, "Invalid email or password")
			return
		}
		log.Error().Err(err).Msg("Failed to authenticate user via service")
		respondWithError(w, statusCode, "Failed to log in")
		return
	}

	h.respondWithToken(w, http.StatusOK, u)
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetUserByID(r.Context(), p.UserID)
	if err != nil {
		statusCode := mapErrorToStatusCode(err)
		if statusCode == http.StatusNotFound {
			respondWithError(w, statusCode, "User not found")
			return
		}
		log.Error().Err(err).Stringer("user_id", p.UserID).Msg("Failed to get current user via service")
		respondWithError(w, statusCode, "Failed to get user")
		return
	}

	respondWithJSON(w, http.StatusOK, newUserResponse(u))
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, code int, u *user.User) {
	token, err := h.tokens.Issue(u)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", u.ID).Msg("Failed to issue token")
		respondWithError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	respondWithJSON(w, code, AuthResponse{User: newUserResponse(u), Token: token})
}
