package server

import (
	"net/http"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/pathakanu/assistant/internal/assistant"
	"github.com/pathakanu/assistant/internal/auth"
	"github.com/pathakanu/assistant/internal/reminder"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const indexFile = "assistant.html"

// SpeechStatus reports whether spoken output is available on the host.
type SpeechStatus interface {
	Available() bool
}

// Deps wires the HTTP layer to the rest of the application.
type Deps struct {
	Assistant         *assistant.Assistant
	Users             *auth.Users
	Tokens            *auth.Tokens
	Reminders         *reminder.Service
	Hub               *Hub
	DB                *gorm.DB
	Speech            SpeechStatus
	Webhook           *TwilioWebhook
	StaticDir         string
	TimezoneName      string
	EnableDebugRoutes bool
	Logger            zerolog.Logger
}

// Server holds the HTTP handlers of the assistant.
type Server struct {
	assistant    *assistant.Assistant
	users        *auth.Users
	tokens       *auth.Tokens
	reminders    *reminder.Service
	hub          *Hub
	db           *gorm.DB
	speech       SpeechStatus
	webhook      *TwilioWebhook
	staticDir    string
	timezoneName string
	debugRoutes  bool
	validate     *validator.Validate
	logger       zerolog.Logger
}

// New creates a Server.
func New(deps Deps) *Server {
	staticDir := deps.StaticDir
	if staticDir == "" {
		staticDir = "."
	}
	return &Server{
		assistant:    deps.Assistant,
		users:        deps.Users,
		tokens:       deps.Tokens,
		reminders:    deps.Reminders,
		hub:          deps.Hub,
		db:           deps.DB,
		speech:       deps.Speech,
		webhook:      deps.Webhook,
		staticDir:    staticDir,
		timezoneName: deps.TimezoneName,
		debugRoutes:  deps.EnableDebugRoutes,
		validate:     validator.New(),
		logger:       deps.Logger.With().Str("component", "http").Logger(),
	}
}

// Routes returns the root handler with CORS, logging and panic recovery applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/process_command", s.tokens.Optional(http.HandlerFunc(s.processCommand)))
	mux.HandleFunc("GET /api/get_tip", s.getTip)
	mux.HandleFunc("GET /api/get_time", s.getTime)
	mux.HandleFunc("GET /health", s.health)

	mux.HandleFunc("POST /api/register", s.register)
	mux.HandleFunc("POST /api/login", s.login)
	mux.Handle("GET /api/profile", s.tokens.Required(http.HandlerFunc(s.profile)))
	mux.Handle("GET /api/users", s.tokens.Required(http.HandlerFunc(s.listUsers)))
	mux.Handle("GET /api/reminders", s.tokens.Required(http.HandlerFunc(s.listReminders)))

	if s.debugRoutes && s.db != nil {
		mux.HandleFunc("GET /api/debug/db-structure", s.dbStructure)
	}
	if s.hub != nil {
		mux.HandleFunc("GET /api/ws", s.hub.HandleWebSocket)
	}
	if s.webhook != nil {
		mux.Handle("POST /twilio/webhook", s.webhook)
	}

	files := http.FileServer(http.Dir(s.staticDir))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(s.staticDir, indexFile))
	})
	mux.Handle("GET /", files)

	return corsMiddleware(loggingMiddleware(s.logger, recoverMiddleware(s.logger, mux)))
}
