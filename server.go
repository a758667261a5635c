package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	gallery *Gallery
	keys    *KeyChecker
	indent  string
	log     *log.Logger
}

type queryRequest struct {
	Query string `json:"query"`
}

func NewServer(cfg *Config, gallery *Gallery) http.Handler {
	srv := &Server{
		gallery: gallery,
		keys:    NewKeyChecker(cfg.Server.ApiKeyHash),
		log:     log.New(os.Stderr, "(http) ", log.LstdFlags),
	}
	if cfg.Debug.PrettyJson {
		srv.indent = "  "
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", srv.guard(promhttp.Handler()))
	mux.Handle("GET /gallery", srv.guard(http.HandlerFunc(srv.handleGallery)))
	mux.Handle("POST /gallery/query", srv.guard(http.HandlerFunc(srv.handleQuery)))
	mux.Handle("POST /gallery/search", srv.guard(http.HandlerFunc(srv.handleSearch)))
	mux.Handle("POST /gallery/more", srv.guard(http.HandlerFunc(srv.handleMore)))
	mux.Handle("GET /favorites", srv.guard(http.HandlerFunc(srv.handleFavorites)))
	mux.Handle("POST /favorites/toggle", srv.guard(http.HandlerFunc(srv.handleToggle)))
	mux.Handle("POST /favorites/refresh", srv.guard(http.HandlerFunc(srv.handleRefresh)))
	mux.Handle("GET /favorites/{id}", srv.guard(http.HandlerFunc(srv.handleIsFavorite)))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Not Found"))
	})
	return srv.logRequests(mux)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (srv *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		srv.log.Println(reqID, r.Method, r.URL.Path, sw.status)
	})
}

func (srv *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !srv.keys.TestKey(r.Header.Get(apiKeyHeader)) {
			srv.writeError(w, r, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (srv *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	body := brotli.HTTPCompressor(w, r)
	defer body.Close()
	w.WriteHeader(status)
	enc := json.NewEncoder(body)
	enc.SetIndent("", srv.indent)
	if err := enc.Encode(v); err != nil {
		srv.log.Println("Failed to encode response", err)
	}
}

func (srv *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	srv.writeJSON(w, r, status, map[string]string{"error": msg})
}

func (srv *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	srv.writeJSON(w, r, http.StatusOK, srv.gallery.View())
}

func (srv *Server) decodeQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		srv.writeError(w, r, http.StatusBadRequest, "body must be {\"query\": string}")
		return "", false
	}
	return req.Query, true
}

func (srv *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	query, ok := srv.decodeQuery(w, r)
	if !ok {
		return
	}
	srv.gallery.QueryChanged(query)
	srv.writeJSON(w, r, http.StatusAccepted, map[string]string{"query": query})
}

func (srv *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query, ok := srv.decodeQuery(w, r)
	if !ok {
		return
	}
	err := srv.gallery.Search(r.Context(), query)
	srv.writeOutcome(w, r, err)
}

func (srv *Server) handleMore(w http.ResponseWriter, r *http.Request) {
	err := srv.gallery.LoadMore(r.Context())
	srv.writeOutcome(w, r, err)
}

func (srv *Server) writeOutcome(w http.ResponseWriter, r *http.Request, err error) {
	view := srv.gallery.View()
	switch {
	case err == nil:
		srv.writeJSON(w, r, http.StatusOK, view)
	case errors.Is(err, ErrStaleResult), errors.Is(err, ErrBusy):
		srv.writeJSON(w, r, http.StatusConflict, view)
	case errors.Is(err, ErrPaginationStopped):
		srv.writeJSON(w, r, http.StatusOK, view)
	default:
		srv.writeJSON(w, r, http.StatusBadGateway, view)
	}
}

func (srv *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	srv.writeJSON(w, r, http.StatusOK, map[string]any{
		"images":    srv.gallery.Favorites(),
		"isLoading": srv.gallery.FavoritesLoading(),
	})
}

func (srv *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var img Image
	if err := json.NewDecoder(r.Body).Decode(&img); err != nil || img.Id == "" {
		srv.writeError(w, r, http.StatusBadRequest, "body must be an image with an id")
		return
	}
	favorite := srv.gallery.ToggleFavorite(r.Context(), img)
	srv.writeJSON(w, r, http.StatusOK, map[string]any{"id": img.Id, "favorite": favorite})
}

func (srv *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	images := srv.gallery.RefreshFavorites(r.Context())
	srv.writeJSON(w, r, http.StatusOK, map[string]any{
		"images":    images,
		"isLoading": srv.gallery.FavoritesLoading(),
	})
}

func (srv *Server) handleIsFavorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	srv.writeJSON(w, r, http.StatusOK, map[string]any{"id": id, "favorite": srv.gallery.IsFavorite(id)})
}
