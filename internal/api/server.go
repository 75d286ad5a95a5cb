// Package api is the HTTP and websocket boundary of the service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/abdghn/youapp-be-test/internal/account"
	"github.com/abdghn/youapp-be-test/internal/apperr"
	"github.com/abdghn/youapp-be-test/internal/auth"
	"github.com/abdghn/youapp-be-test/internal/logger"
	"github.com/abdghn/youapp-be-test/internal/metrics"
	"github.com/abdghn/youapp-be-test/internal/models"
)

const maxBodyBytes = 1 << 20

// Accounts manages registration and profiles.
type Accounts interface {
	Register(ctx context.Context, req account.RegisterRequest) (*models.User, error)
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	SaveProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.User, error)
}

// Authenticator exchanges credentials for a session token.
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (string, error)
}

// Messenger sends and lists messages.
type Messenger interface {
	Send(ctx context.Context, senderID, receiverID, content string) (*models.Message, error)
	GetMessages(ctx context.Context, receiverID string) ([]models.MessageView, error)
	QueueHealthy() bool
}

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	mux       *http.ServeMux
	hub       *Hub
	schemas   *SchemaValidator
	accounts  Accounts
	login     Authenticator
	sessions  auth.TokenVerifier
	messenger Messenger
	store     Pinger
	maxMsgLen int
}

func NewServer(accounts Accounts, login Authenticator, sessions auth.TokenVerifier, messenger Messenger, store Pinger, maxLen int) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		hub:       NewHub(),
		schemas:   NewSchemaValidator(),
		accounts:  accounts,
		login:     login,
		sessions:  sessions,
		messenger: messenger,
		store:     store,
		maxMsgLen: maxLen,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	protected := auth.Middleware(s.sessions, func(w http.ResponseWriter, _ *http.Request, _ error) {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
	})
	s.mux.HandleFunc("POST /register", s.handleRegister)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.Handle("GET /getProfile", protected(http.HandlerFunc(s.handleGetProfile)))
	s.mux.Handle("POST /createProfile", protected(s.saveProfile(http.StatusCreated, "Create Profile Success")))
	s.mux.Handle("PUT /updateProfile", protected(s.saveProfile(http.StatusCreated, "Update Profile Success")))
	s.mux.Handle("POST /sendMessage", protected(http.HandlerFunc(s.handleSendMessage)))
	s.mux.Handle("GET /viewMessages", protected(http.HandlerFunc(s.handleViewMessages)))
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.mux.HandleFunc("GET /metrics", metrics.Handler)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Handler wraps the server with request logging.
func (s *Server) Handler() http.Handler { return RequestLogger(s) }

// Notify pushes a sent message to the receiver's websocket clients.
func (s *Server) Notify(msg *models.Message) { s.hub.Notify(msg) }

type envelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message,omitempty"`
	Data       any    `json:"data,omitempty"`
}

type loginResponse struct {
	StatusCode  int    `json:"statusCode"`
	AccessToken string `json:"access_token"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("write response", err)
	}
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{StatusCode: status, Message: message, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{StatusCode: status, Message: message})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindInvalidCredential, apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", err)
	}
	writeMessage(w, status, apperr.MessageOf(err))
}

// decode checks the body against schema and unmarshals it into dst.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schema string, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("request body too large")
		}
		return apperr.Validation("read request body")
	}
	if err := s.schemas.Validate(schema, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.Validation("request body must be valid JSON")
	}
	return nil
}

func identity(r *http.Request) *auth.Identity {
	id, _ := auth.IdentityFrom(r.Context())
	return id
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req account.RegisterRequest
	if err := s.decode(w, r, "register", &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := s.accounts.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, "User has been created successfully", user)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(w, r, "login", &req); err != nil {
		writeError(w, err)
		return
	}
	token, err := s.login.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrInvalidCredential):
		writeMessage(w, http.StatusUnauthorized, "Invalid username or password")
		return
	case err != nil:
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{StatusCode: http.StatusOK, AccessToken: token})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.accounts.GetProfile(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "", user)
}

func (s *Server) saveProfile(status int, message string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var update models.ProfileUpdate
		if err := s.decode(w, r, "profile", &update); err != nil {
			writeError(w, err)
			return
		}
		user, err := s.accounts.SaveProfile(r.Context(), identity(r).UserID, update)
		if err != nil {
			writeError(w, err)
			return
		}
		writeData(w, status, message, user)
	})
}

type sendRequest struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

func (s *Server) send(ctx context.Context, senderID string, req sendRequest) (*models.Message, error) {
	if s.maxMsgLen > 0 && utf8.RuneCountInString(req.Content) > s.maxMsgLen {
		return nil, apperr.Validation("content must be at most %d characters", s.maxMsgLen)
	}
	return s.messenger.Send(ctx, senderID, req.ReceiverID, req.Content)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := s.decode(w, r, "message", &req); err != nil {
		writeError(w, err)
		return
	}
	msg, err := s.send(r.Context(), identity(r).UserID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "", msg)
}

func (s *Server) handleViewMessages(w http.ResponseWriter, r *http.Request) {
	list, err := s.messenger.GetMessages(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []models.MessageView{}
	}
	writeData(w, http.StatusOK, "", list)
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// handleWS authenticates with ?token= or a bearer header, then keeps the
// connection open for inbox pushes. Frames sent by the client are treated
// as send requests and answered on the same connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = auth.BearerToken(r)
	}
	if token == "" {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := s.sessions.Verify(r.Context(), token)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", err)
		return
	}
	conn.SetReadLimit(maxBodyBytes)
	c := s.hub.add(id.UserID, conn)
	go s.readLoop(c)
}

func (s *Server) readLoop(c *client) {
	defer s.hub.remove(c)
	for {
		var req sendRequest
		if err := c.conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Error("ws read", err, logger.FieldKV("user_id", c.userID))
			}
			return
		}
		var reply envelope
		msg, err := s.send(context.Background(), c.userID, req)
		if err != nil {
			reply = envelope{StatusCode: statusFor(err), Message: apperr.MessageOf(err)}
		} else {
			reply = envelope{StatusCode: http.StatusOK, Data: msg}
		}
		if !c.deliver(reply) {
			return
		}
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz fails only when the store is unreachable. A failing queue
// is reported as degraded since sends still succeed without it.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]string{"status": "ok", "store": "ok", "queue": "ok"}
	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		logger.Error("readiness: store unreachable", err)
		body["status"], body["store"] = "unavailable", "unavailable"
		status = http.StatusServiceUnavailable
	}
	if !s.messenger.QueueHealthy() {
		body["queue"] = "degraded"
		if status == http.StatusOK {
			body["status"] = "degraded"
		}
	}
	writeJSON(w, status, body)
}
