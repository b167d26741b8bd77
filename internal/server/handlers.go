package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pathakanu/assistant/internal/auth"
	"github.com/pathakanu/assistant/internal/database"
	"github.com/pathakanu/assistant/internal/model"
	"github.com/pathakanu/assistant/internal/reminder"
	"github.com/pathakanu/assistant/internal/twilio"
)

// anonymousUser owns commands sent without a valid token.
const anonymousUser = "User"

type commandRequest struct {
	Command string `json:"command" validate:"required"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,e164"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID        uint      `json:"id,omitempty"`
	Username  string    `json:"username"`
	Email     *string   `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) processCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || s.validate.Struct(req) != nil {
		writeError(w, http.StatusBadRequest, "No command provided")
		return
	}

	user, ok := auth.UsernameFrom(r.Context())
	if !ok {
		user = anonymousUser
	}
	writeJSON(w, http.StatusOK, s.assistant.Process(r.Context(), user, req.Command))
}

func (s *Server) getTip(w http.ResponseWriter, _ *http.Request) {
	tip := s.assistant.RandomTip()
	s.logger.Debug().Str("tip", tip).Msg("generated tip")
	writeJSON(w, http.StatusOK, map[string]string{"tip": tip})
}

func (s *Server) getTime(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"time":     s.assistant.CurrentTime(),
		"timezone": s.timezoneName,
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"speech_recognition": false,
		"text_to_speech":     s.speech != nil && s.speech.Available(),
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Phone = twilio.SanitizeWhatsAppNumber(strings.TrimSpace(req.Phone))
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	_, err := s.users.Register(r.Context(), auth.Registration{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Phone:    req.Phone,
	})
	switch {
	case errors.Is(err, auth.ErrUserExists):
		writeError(w, http.StatusBadRequest, "Username already exists")
	case errors.Is(err, auth.ErrEmailExists):
		writeError(w, http.StatusBadRequest, "Email already exists")
	case errors.Is(err, auth.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "Username and password are required")
	case err != nil:
		s.logger.Error().Err(err).Msg("registration failed")
		writeError(w, http.StatusInternalServerError, "Registration failed")
	default:
		writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := s.users.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("login failed")
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		s.logger.Error().Err(err).Msg("issue token")
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Login successful",
		"token":    token,
		"username": user.Username,
	})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	username, _ := auth.UsernameFrom(r.Context())
	user, err := s.users.Get(r.Context(), username)
	if errors.Is(err, auth.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("load profile")
		writeError(w, http.StatusInternalServerError, "Failed to get profile")
		return
	}
	resp := toUserResponse(user)
	resp.ID = 0
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list users")
		writeError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}
	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		item := toUserResponse(u)
		item.Phone = ""
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": resp})
}

func (s *Server) listReminders(w http.ResponseWriter, r *http.Request) {
	username, _ := auth.UsernameFrom(r.Context())
	pending := s.reminders.Pending(username)
	if pending == nil {
		pending = []reminder.Reminder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": pending})
}

func (s *Server) dbStructure(w http.ResponseWriter, _ *http.Request) {
	structure, err := database.Describe(s.db)
	if err != nil {
		s.logger.Error().Err(err).Msg("describe database")
		writeError(w, http.StatusInternalServerError, "Failed to describe database")
		return
	}
	writeJSON(w, http.StatusOK, structure)
}

func toUserResponse(u model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Phone:     u.Phone,
		CreatedAt: u.CreatedAt,
	}
}

func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "Invalid request"
	}
	switch errs[0].Field() {
	case "Email":
		return "Invalid email address"
	case "Phone":
		return "Invalid phone number, use E.164 format such as +14155550100"
	default:
		return "Username and password are required"
	}
}
