package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/Kartekeya-Sharma/Contract-Guard/middleware"
	"github.com/Kartekeya-Sharma/Contract-Guard/model"
	"github.com/Kartekeya-Sharma/Contract-Guard/pkg/logger"
	"github.com/Kartekeya-Sharma/Contract-Guard/service"
	"github.com/gin-gonic/gin"
)

// QueryAsker answers questions about a clause set.
type QueryAsker interface {
	Ask(ctx context.Context, question string, clauses []model.Clause) (service.Answer, error)
}

// DocumentArchiver stores submitted documents per tenant and session.
type DocumentArchiver interface {
	Store(ctx context.Context, tenant, sessionID string, doc model.Document, body io.Reader) (string, error)
	DownloadURL(ctx context.Context, key string) (string, error)
	RemoveSession(ctx context.Context, tenant, sessionID string) (int, error)
}

// ResultRepository persists successful analyses.
type ResultRepository interface {
	Save(ctx context.Context, result service.AnalysisResult) error
	Get(ctx context.Context, sessionID string) (*service.AnalysisResult, error)
	Delete(ctx context.Context, sessionID string) error
}

const backgroundTimeout = 30 * time.Second

type SessionHandler struct {
	store    *service.SessionStore
	analyzer service.Analyzer
	policy   service.Policy
	query    QueryAsker
	archive  DocumentArchiver
	results  ResultRepository
}

func NewSessionHandler(store *service.SessionStore, analyzer service.Analyzer, policy service.Policy, query QueryAsker) *SessionHandler {
	return &SessionHandler{
		store:    store,
		analyzer: analyzer,
		policy:   policy,
		query:    query,
	}
}

// WithArchive enables archiving of submitted documents.
func (h *SessionHandler) WithArchive(archive DocumentArchiver) *SessionHandler {
	h.archive = archive
	return h
}

// WithResults enables persisting successful analyses.
func (h *SessionHandler) WithResults(results ResultRepository) *SessionHandler {
	h.results = results
	return h
}

type SessionResponse struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	CreatedAt string `json:"created_at"`
	service.Snapshot
}

type SessionSummary struct {
	ID        string      `json:"id"`
	State     model.State `json:"state"`
	Filename  string      `json:"filename,omitempty"`
	Clauses   int         `json:"clauses"`
	HighRisk  int         `json:"high_risk"`
	CreatedAt string      `json:"created_at"`
}

type QueryRequest struct {
	Question string `json:"question"`
}

func respondError(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.JSON(status, gin.H{
		"error": service.UserMessage(err),
		"code":  service.Code(err),
	})
}

func sessionResponse(session *service.Session) SessionResponse {
	return SessionResponse{
		ID:        session.ID,
		Owner:     session.Owner,
		CreatedAt: session.CreatedAt.Format(time.RFC3339),
		Snapshot:  session.Lifecycle.Snapshot(),
	}
}

// lookup resolves :id for the caller's tenant and tags the request context
// with the session id.
func (h *SessionHandler) lookup(c *gin.Context) (*service.Session, bool) {
	session, err := h.store.GetForTenant(c.Param("id"), middleware.GetTenant(c))
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return nil, false
	}
	c.Request = c.Request.WithContext(logger.WithSession(c.Request.Context(), session.ID))
	return session, true
}

// Create opens a new idle session for the caller's tenant.
func (h *SessionHandler) Create(c *gin.Context) {
	lifecycle := service.NewLifecycle(h.analyzer, h.policy)
	session := service.NewSession(middleware.GetTenant(c), middleware.GetUsername(c), lifecycle)
	if h.results != nil {
		lifecycle.Subscribe(func(snap service.Snapshot) {
			if snap.State != model.StateSucceeded {
				return
			}
			result := service.NewAnalysisResult(session, snap)
			session.Go(func() { h.persist(session, snap.Generation, result) })
		})
	}
	h.store.Save(session)

	ctx := logger.WithSession(c.Request.Context(), session.ID)
	logger.Info(ctx, "Session created")

	c.JSON(http.StatusCreated, sessionResponse(session))
}

// persist saves a succeeded result unless the session was reset since.
func (h *SessionHandler) persist(session *service.Session, generation uint64, result service.AnalysisResult) {
	ctx, cancel := context.WithTimeout(logger.WithSession(context.Background(), result.SessionID), backgroundTimeout)
	defer cancel()

	if current := session.Lifecycle.Snapshot().Generation; current != generation {
		logger.Debug(ctx, "Skipping result of a reset submission", "generation", generation, "current", current)
		return
	}

	if err := h.results.Save(ctx, result); err != nil {
		logger.Error(ctx, "Failed to persist analysis result", "error", err)
		return
	}
	logger.Debug(ctx, "Analysis result persisted", "clauses", len(result.Clauses))
}

// List returns the caller's sessions, newest first
func (h *SessionHandler) List(c *gin.Context) {
	sessions := h.store.GetByTenant(middleware.GetTenant(c))

	result := make([]SessionSummary, len(sessions))
	for i, session := range sessions {
		snap := session.Lifecycle.Snapshot()
		summary := SessionSummary{
			ID:        session.ID,
			State:     snap.State,
			Clauses:   len(snap.Clauses),
			HighRisk:  service.Aggregate(snap.Clauses).HighRisk,
			CreatedAt: session.CreatedAt.Format(time.RFC3339),
		}
		if snap.Document != nil {
			summary.Filename = snap.Document.Filename
		}
		result[i] = summary
	}

	c.JSON(http.StatusOK, gin.H{"sessions": result})
}

// Get returns the session with its current snapshot
func (h *SessionHandler) Get(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session))
}

// declaredMediaType prefers the part's Content-Type and falls back to the
// filename extension when the client sent none or a generic one.
func declaredMediaType(partType, filename string) string {
	if partType != "" {
		if mediaType, _, err := mime.ParseMediaType(partType); err == nil && mediaType != "application/octet-stream" {
			return mediaType
		}
	}
	return model.MediaTypeForFilename(filename)
}

// Upload submits a document to the session. The analysis runs in the
// background unless ?wait=true is given.
func (h *SessionHandler) Upload(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided", "code": "no_file"})
		return
	}
	defer file.Close()

	doc := model.Document{
		Filename:  header.Filename,
		Size:      header.Size,
		MediaType: declaredMediaType(header.Header.Get("Content-Type"), header.Filename),
	}

	// Oversized documents are rejected by the lifecycle without being read.
	var data []byte
	if doc.Size <= h.policy.MaxFileSize {
		data, err = io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file", "code": "read_failed"})
			return
		}
	}

	ctx := context.WithoutCancel(c.Request.Context())
	sub, err := session.Lifecycle.Start(ctx, doc, bytes.NewReader(data))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, service.ErrSubmissionInFlight) {
			status = http.StatusConflict
		}
		respondError(c, status, err)
		return
	}

	if h.archive != nil {
		session.Go(func() { h.archiveDocument(ctx, session, doc, data) })
	}

	if c.Query("wait") == "true" {
		snap, err := sub.Result()
		if errors.Is(err, service.ErrStaleSubmission) {
			// The session moved on; tell the caller this submission was dropped.
			snap.ErrorCode = service.Code(err)
			snap.Message = service.UserMessage(err)
		}
		c.JSON(http.StatusOK, SessionResponse{
			ID:        session.ID,
			Owner:     session.Owner,
			CreatedAt: session.CreatedAt.Format(time.RFC3339),
			Snapshot:  snap,
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":         session.ID,
		"generation": sub.Generation(),
		"state":      model.StateUploading,
	})
}

func (h *SessionHandler) archiveDocument(ctx context.Context, session *service.Session, doc model.Document, data []byte) {
	ctx, cancel := context.WithTimeout(ctx, backgroundTimeout)
	defer cancel()

	key, err := h.archive.Store(ctx, session.Tenant, session.ID, doc, bytes.NewReader(data))
	if err != nil {
		logger.Error(ctx, "Failed to archive document", "error", err)
		return
	}
	session.SetObjectKey(key)
	logger.Debug(ctx, "Document archived", "object", key)
}

// DocumentURL returns a download link for the archived document.
func (h *SessionHandler) DocumentURL(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}
	if h.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document archive is not configured", "code": "archive_disabled"})
		return
	}

	key := session.ObjectKey()
	if key == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No archived document for this session", "code": "not_archived"})
		return
	}

	url, err := h.archive.DownloadURL(c.Request.Context(), key)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Reset discards the session's document, clauses and any running submission.
func (h *SessionHandler) Reset(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}
	session.Lifecycle.Reset()
	logger.Info(c.Request.Context(), "Session reset")
	c.JSON(http.StatusOK, sessionResponse(session))
}

// Delete removes the session along with its archived documents and stored
// result. Archiving or persisting still running for the session finishes
// first so nothing is written back afterwards.
func (h *SessionHandler) Delete(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}
	h.store.Delete(session.ID)
	session.Close()

	ctx := c.Request.Context()
	if h.archive != nil {
		removed, err := h.archive.RemoveSession(ctx, session.Tenant, session.ID)
		if err != nil {
			logger.Warn(ctx, "Failed to remove archived documents", "error", err)
		} else {
			logger.Debug(ctx, "Archived documents removed", "objects", removed)
		}
	}
	if h.results != nil {
		if err := h.results.Delete(ctx, session.ID); err != nil {
			logger.Warn(ctx, "Failed to delete stored result", "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
}

// Aggregate returns dashboard statistics for the current clauses.
func (h *SessionHandler) Aggregate(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}
	snap := session.Lifecycle.Snapshot()
	view := service.Aggregate(snap.Clauses)

	c.JSON(http.StatusOK, gin.H{
		"state":        snap.State,
		"aggregate":    view,
		"risk_buckets": view.RiskBuckets(),
	})
}

// Query asks a question about the session's current clauses. It can run in
// any state; with no clauses the service receives an empty list.
func (h *SessionHandler) Query(c *gin.Context) {
	session, ok := h.lookup(c)
	if !ok {
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": "invalid_request"})
		return
	}

	answer, err := h.query.Ask(c.Request.Context(), req.Question, session.Lifecycle.Clauses())
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, service.ErrEmptyQuestion) {
			status = http.StatusBadRequest
		}
		logger.Warn(c.Request.Context(), "Query failed", "code", service.Code(err), "error", err)
		respondError(c, status, err)
		return
	}

	c.JSON(http.StatusOK, answer)
}
