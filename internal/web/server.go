//go:build !no_web

package web

import (
	"bytes"
	"crypto/subtle"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"fp300-bridge/internal/coordinator"
	"fp300-bridge/internal/fp300"
)

//go:embed templates/*.html
var templateFS embed.FS

// ServerOption configures the web server.
type ServerOption func(*Server)

// WithAPIKey enables API key authentication.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithAllowedOrigins sets allowed WebSocket and CORS origin patterns.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithVersion sets the application version string shown in the UI.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// Server is the HTTP server for the REST API, the event stream and the
// overview page.
type Server struct {
	coord          *coordinator.Coordinator
	index          *template.Template
	wsHub          *WSHub
	logger         *slog.Logger
	mux            *http.ServeMux
	apiKey         string
	allowedOrigins []string
	version        string
	wg             sync.WaitGroup
	unsubEvents    func()
}

// DeviceView is a device row on the overview page.
type DeviceView struct {
	IEEEAddress string
	Name        string
	Model       string
	LastSeen    time.Time
	Endpoints   []uint8
	FP300       bool
	Bands       []BandView
}

// BandView is one detection range band of an FP300.
type BandView struct {
	Name    string
	Label   string
	Enabled bool
}

// NewServer creates a new web server.
func NewServer(coord *coordinator.Coordinator, logger *slog.Logger, opts ...ServerOption) (*Server, error) {
	index, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}

	s := &Server{
		coord:  coord,
		index:  index,
		logger: logger.With("component", "web"),
		mux:    http.NewServeMux(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.wsHub = NewWSHub(s.logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.wsHub.Run()
	}()

	// Forward coordinator events to WebSocket clients.
	s.unsubEvents = coord.Events().OnAll(func(event coordinator.Event) {
		s.wsHub.Broadcast(eventIEEE(event), wireEvent(event))
	})

	s.routes()
	return s, nil
}

// Stop gracefully shuts down the WebSocket hub and waits for goroutines.
func (s *Server) Stop() {
	if s.unsubEvents != nil {
		s.unsubEvents()
	}
	s.wsHub.Stop()
	s.wg.Wait()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)

	// REST API
	s.mux.HandleFunc("GET /api/devices", s.handleAPIListDevices)
	s.mux.HandleFunc("GET /api/devices/{ieee}", s.handleAPIGetDevice)
	s.mux.HandleFunc("PATCH /api/devices/{ieee}", s.handleAPIRenameDevice)
	s.mux.HandleFunc("DELETE /api/devices/{ieee}", s.handleAPIDeleteDevice)
	s.mux.HandleFunc("GET /api/devices/{ieee}/entities", s.handleAPIListEntities)
	s.mux.HandleFunc("POST /api/devices/{ieee}/entities/{key}", s.handleAPISetEntity)
	s.mux.HandleFunc("GET /api/devices/{ieee}/endpoints/{ep}", s.handleAPIGetEndpoint)
	s.mux.HandleFunc("GET /api/devices/{ieee}/endpoints/{ep}/detection-range", s.handleAPIGetDetectionRange)
	s.mux.HandleFunc("PUT /api/devices/{ieee}/endpoints/{ep}/detection-range", s.handleAPISetDetectionRange)
	s.mux.HandleFunc("POST /api/devices/{ieee}/endpoints/{ep}/write", s.handleAPIWriteAttributes)
	s.mux.HandleFunc("GET /api/clusters", s.handleAPIListClusters)
	s.mux.HandleFunc("GET /api/version", s.handleAPIVersion)

	// WebSocket
	s.mux.HandleFunc("GET /ws", s.handleWS)
}

// ServeHTTP implements http.Handler, applying auth and CORS middleware.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// CORS: check Origin on mutating requests to prevent CSRF.
	if len(s.allowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if r.Method == http.MethodOptions {
				// Preflight request.
				if s.isOriginAllowed(origin) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "3600")
					w.WriteHeader(http.StatusNoContent)
					return
				}
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			if r.Method != http.MethodGet {
				if !s.isOriginAllowed(origin) {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
		}
	}

	if s.apiKey != "" && strings.HasPrefix(r.URL.Path, "/api/") {
		// Browsers cannot set headers on a plain link, so the key may also
		// come as a query parameter.
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}
	s.mux.ServeHTTP(w, r)
}

// isOriginAllowed checks if the origin matches any allowed origin pattern.
func (s *Server) isOriginAllowed(origin string) bool {
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	devices, err := s.coord.Store().ListDevices()
	if err != nil {
		s.logger.Error("list devices for index", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].DisplayName() < devices[j].DisplayName()
	})

	views := make([]DeviceView, 0, len(devices))
	for _, dev := range devices {
		v := DeviceView{
			IEEEAddress: dev.IEEEAddress,
			Name:        dev.DisplayName(),
			Model:       dev.Model,
			LastSeen:    dev.LastSeen,
			Endpoints:   dev.Endpoints,
			FP300:       fp300.IsFP300(dev.Model),
		}
		if v.FP300 {
			if ep, err := s.coord.LookupEndpoint(dev.IEEEAddress, 1); err == nil {
				d := fp300.FromAttributes(ep.ClusterSnapshot(fp300.DetectionRangeClusterID))
				for i, b := range fp300.Bands {
					v.Bands = append(v.Bands, BandView{Name: b.Name, Label: bandLabel(b.Name), Enabled: d.Bands[i]})
				}
			}
		}
		views = append(views, v)
	}

	s.renderTemplate(w, map[string]any{
		"Devices": views,
		"Version": s.version,
		"APIKey":  s.apiKey,
	})
}

// bandLabel turns range_2_3m into "2-3 m".
func bandLabel(name string) string {
	lo, hi, _ := strings.Cut(strings.TrimSuffix(strings.TrimPrefix(name, "range_"), "m"), "_")
	return lo + "-" + hi + " m"
}

func (s *Server) handleAPIVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// renderTemplate renders to a buffer first, so partial write failures don't corrupt the response.
func (s *Server) renderTemplate(w http.ResponseWriter, data any) {
	var buf bytes.Buffer
	if err := s.index.Execute(&buf, data); err != nil {
		s.logger.Error("render template", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Debug("write template response", "err", err)
	}
}
