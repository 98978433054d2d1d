package httpapi

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"wagate/internal/domain"
)

// APIKeyHeader carries the shared secret when one is configured.
const APIKeyHeader = "X-API-Key"

// Session is the facade the handlers drive.
type Session interface {
	SendText(ctx context.Context, phone, text string) (domain.Receipt, error)
	SendImage(ctx context.Context, phone, fileURL, caption string) (domain.Receipt, error)
	SendDocument(ctx context.Context, phone, fileURL, caption, mimetype, fileName string) (domain.Receipt, error)
	SendLink(ctx context.Context, phone, link, text string) (domain.Receipt, error)
	Status() domain.ConnectionStatus
	Authenticated() bool
	CurrentQR() (domain.QRChallenge, bool)
	Logout(ctx context.Context) error
	Subscribe(buffer int) (<-chan domain.Event, func())
}

// Options controls access and optional endpoints.
type Options struct {
	// AllowRemote disables the loopback-only check.
	AllowRemote bool
	// APIKey, when set, must be presented in X-API-Key.
	APIKey string
	// Websocket enables /ws.
	Websocket bool
}

// Server holds the HTTP handlers.
type Server struct {
	session Session
	opts    Options
	hub     *Hub
	log     *logrus.Entry
}

// New constructs a Server.
func New(session Session, opts Options, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.WithField("component", "http")
	}
	s := &Server{session: session, opts: opts, log: log}
	if opts.Websocket {
		s.hub = NewHub(session, log.WithField("component", "websocket"))
	}
	return s
}

// Hub returns the websocket hub, or nil when websockets are disabled.
func (s *Server) Hub() *Hub { return s.hub }

// Run drives background work (the websocket hub) until ctx is done.
func (s *Server) Run(ctx context.Context) {
	if s.hub == nil {
		<-ctx.Done()
		return
	}
	s.hub.Run(ctx)
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	if !s.opts.AllowRemote {
		r.Use(s.localOnly)
	}

	r.Get("/", s.root)
	r.Group(func(r chi.Router) {
		if s.opts.APIKey != "" {
			r.Use(s.requireAPIKey)
		}
		s.Mount(r)
	})
	return r
}

// Mount registers the session routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Post("/send_message", s.sendMessage)
	r.Post("/send_image", s.sendImage)
	r.Post("/send_file", s.sendFile)
	r.Post("/send_link", s.sendLink)
	r.Get("/auth_status", s.authStatus)
	r.Get("/qr_code", s.qrCode)
	r.Get("/logout", s.logout)
	if s.hub != nil {
		r.Get("/ws", s.hub.ServeHTTP)
	}
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		entry := s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     status,
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
			"remote":     r.RemoteAddr,
		})
		if status >= http.StatusInternalServerError {
			entry.Warn("Request failed")
			return
		}
		entry.Debug("Request served")
	})
}

func (s *Server) localOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLoopback(r.RemoteAddr) {
			s.log.WithField("remote", r.RemoteAddr).Warn("Rejected non-local request")
			writeError(w, http.StatusForbidden, "Access denied.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	want := []byte(s.opts.APIKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get(APIKeyHeader))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
