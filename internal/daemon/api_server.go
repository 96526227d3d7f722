package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/rs/cors"

	"attune/internal/api"
	"attune/internal/config"
	"attune/internal/logging"
	"attune/internal/queue"
)

type apiServer struct {
	bind     string
	cfg      *config.Config
	logger   *slog.Logger
	daemon   *Daemon
	queueSvc *api.QueueService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:     bind,
		cfg:      cfg,
		logger:   logger,
		daemon:   d,
		queueSvc: api.NewQueueService(d.store),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/convert", srv.handleConvert)
	mux.HandleFunc("/api/listen/", srv.handleListen)
	mux.HandleFunc("/api/download/", srv.handleDownload)
	mux.HandleFunc("/api/share/", srv.handleShare)
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/queue", srv.handleQueue)
	mux.HandleFunc("/api/queue/", srv.handleQueueJob)
	mux.HandleFunc("/api/notifications/test", srv.handleNotificationTest)
	mux.HandleFunc("/healthz", srv.handleHealthz)

	// The browser front end is served from a different origin, so /api/*
	// stays open the way the original deployment ran it.
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	srv.server = &http.Server{
		Handler:           corsMiddleware.Handler(mux),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req api.ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.YoutubeURL) == "" {
		s.writeError(w, http.StatusBadRequest, "Please provide a YouTube URL")
		return
	}

	ctx := r.Context()
	if timeout := s.cfg.Conversion.RequestTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	job, err := s.daemon.Enqueue(ctx, req.YoutubeURL)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	job, waitErr := s.daemon.AwaitCompletion(ctx, job.ID)
	if waitErr != nil {
		if errors.Is(waitErr, context.DeadlineExceeded) {
			s.writeError(w, http.StatusGatewayTimeout, "Conversion timed out. Try again later.")
			return
		}
		s.writeError(w, http.StatusInternalServerError, waitErr.Error())
		return
	}

	if job.Status != queue.StatusCompleted {
		message := strings.TrimSpace(job.ErrorMessage)
		if message == "" {
			message = "Conversion failed. Try again later."
		}
		// The workflow records the sentinel classification of the stage
		// error when it fails the job; rejections answer 400.
		status := job.FailureCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		s.writeError(w, status, message)
		return
	}

	base := s.baseURL(r)
	s.writeJSON(w, http.StatusOK, api.ConvertResponse{
		Success:     true,
		FileID:      job.Token,
		AudioURL:    base + "/api/listen/" + job.Token,
		DownloadURL: base + "/api/download/" + job.Token,
		ShareURL:    base + "/api/download/" + job.Token,
	})
}

func (s *apiServer) handleListen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	job, path := s.completedFile(r, "/api/listen/")
	if job == nil {
		s.writeError(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Type", audioContentType(path))
	w.Header().Set("Content-Disposition", "inline")
	http.ServeFile(w, r, path)
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	job, path := s.completedFile(r, "/api/download/")
	if job == nil {
		s.writeError(w, http.StatusNotFound, "File not found")
		return
	}
	filename := "converted_432hz" + filepath.Ext(path)
	w.Header().Set("Content-Type", audioContentType(path))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, path)
}

func (s *apiServer) handleShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	job, _ := s.completedFile(r, "/api/share/")
	if job == nil {
		s.writeError(w, http.StatusNotFound, "File not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.ShareResponse{
		Success:  true,
		ShareURL: s.baseURL(r) + "/api/download/" + job.Token,
	})
}

// completedFile resolves a token path segment to its completed job and
// converted file. Returns nils when the token is unknown, the job has not
// completed, or the file vanished from the work directory.
func (s *apiServer) completedFile(r *http.Request, prefix string) (*queue.Job, string) {
	token := strings.TrimPrefix(r.URL.Path, prefix)
	if token == "" || strings.Contains(token, "/") {
		return nil, ""
	}
	job, err := s.daemon.store.GetByToken(r.Context(), token)
	if err != nil {
		s.log().Error("token lookup failed", logging.Error(err))
		return nil, ""
	}
	if job == nil || job.Status != queue.StatusCompleted || strings.TrimSpace(job.ConvertedFile) == "" {
		return nil, ""
	}
	if _, err := os.Stat(job.ConvertedFile); err != nil {
		return nil, ""
	}
	return job, job.ConvertedFile
}

// baseURL resolves the absolute URL prefix for links handed back to callers.
// The configured public base wins; otherwise the request's own host is used.
func (s *apiServer) baseURL(r *http.Request) string {
	base := strings.TrimRight(strings.TrimSpace(s.cfg.Conversion.PublicBaseURL), "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: api.FromDependencyStatuses(status.Dependencies),
	}
	if status.WorkDirUsage != nil {
		payload.WorkDirUsage = &api.DiskUsage{
			TotalBytes: status.WorkDirUsage.TotalBytes,
			FreeBytes:  status.WorkDirUsage.FreeBytes,
			FreeRatio:  status.WorkDirUsage.FreeRatio,
		}
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var statuses []queue.Status
		for _, value := range r.URL.Query()["status"] {
			trimmed := strings.TrimSpace(value)
			if trimmed == "" {
				continue
			}
			statuses = append(statuses, queue.Status(trimmed))
		}
		jobs, err := s.queueSvc.List(r.Context(), statuses...)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.QueueListResponse{Jobs: jobs})
	case http.MethodDelete:
		var (
			affected int64
			err      error
		)
		switch scope := strings.TrimSpace(r.URL.Query().Get("scope")); scope {
		case "", "all":
			affected, err = s.daemon.ClearQueue(r.Context())
		case "completed":
			affected, err = s.daemon.ClearCompleted(r.Context())
		case "failed":
			affected, err = s.daemon.ClearFailed(r.Context())
		default:
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown scope %q", scope))
			return
		}
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.QueueMutationResponse{Affected: affected})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleQueueJob(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/queue/")
	if rest == "health" {
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		summary, err := s.daemon.QueueHealth(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		database, err := s.daemon.DatabaseHealth(r.Context())
		if err != nil && database.Error == "" {
			database.Error = err.Error()
		}
		s.writeJSON(w, http.StatusOK, api.QueueHealthResponse{
			Summary:  api.FromHealthSummary(summary),
			Database: api.FromDatabaseHealth(database),
		})
		return
	}
	if rest == "reset" {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		affected, err := s.daemon.ResetStuck(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.QueueMutationResponse{Affected: affected})
		return
	}
	if rest == "retry" {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		affected, err := s.daemon.RetryFailed(r.Context(), nil)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.QueueMutationResponse{Affected: affected})
		return
	}

	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid queue job id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		job, err := s.queueSvc.Describe(r.Context(), id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if job == nil {
			s.writeError(w, http.StatusNotFound, "queue job not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.QueueJobResponse{Job: *job})
	case action == "" && r.Method == http.MethodDelete:
		affected, err := s.daemon.RemoveJob(r.Context(), id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if affected == 0 {
			s.writeError(w, http.StatusNotFound, "queue job not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.QueueMutationResponse{Affected: affected})
	case action == "retry" && r.Method == http.MethodPost:
		affected, err := s.daemon.RetryFailed(r.Context(), []int64{id})
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.QueueMutationResponse{Affected: affected})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleNotificationTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sent, detail, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, detail)
		return
	}
	s.writeJSON(w, http.StatusOK, api.NotificationTestResponse{
		Success: true,
		Sent:    sent,
		Message: detail,
	})
}

func (s *apiServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func audioContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".aac":
		return "audio/mp4"
	case ".opus", ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Success: false, Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
