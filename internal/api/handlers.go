// Package api implements spec.md §6.1's HTTP surface (plus SPEC_FULL.md
// §7's additive auth/profile/health routes) on top of a gin.Engine.
// Handlers are thin: every one of them delegates to the Registry,
// Supervisor, SSE Hub, Media Server, or auth stores for actual behavior,
// the same separation the teacher's internal/api/handlers.go keeps
// between HTTP plumbing and the service layer underneath it.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"joborchestrator/internal/auth"
	"joborchestrator/internal/authstore"
	"joborchestrator/internal/jobmodel"
	"joborchestrator/internal/media"
	"joborchestrator/internal/queue"
	"joborchestrator/internal/registry"
	"joborchestrator/internal/sse"
	"joborchestrator/internal/store"
	"joborchestrator/pkg/logger"
)

// Handler holds every collaborator the HTTP layer dispatches into.
type Handler struct {
	store      *store.Store
	registry   *registry.Registry
	supervisor *queue.Supervisor
	hub        *sse.Hub
	media      *media.Server

	authService *auth.Service
	authStore   *authstore.Store
}

// New builds a Handler. Each field is already fully constructed by
// cmd/server's wiring step — Handler performs no construction of its own,
// matching the teacher's thin-constructor Handler.
func New(st *store.Store, reg *registry.Registry, sup *queue.Supervisor, hub *sse.Hub, mediaSrv *media.Server, authService *auth.Service, authStore *authstore.Store) *Handler {
	return &Handler{
		store:       st,
		registry:    reg,
		supervisor:  sup,
		hub:         hub,
		media:       mediaSrv,
		authService: authService,
		authStore:   authStore,
	}
}

// HealthCheck is the liveness probe (teacher: HealthCheck).
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Upload / job creation ---

// Upload saves a multipart file to the input directory and creates a job
// in `created` (spec.md §6.1 "POST /api/upload").
func (h *Handler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	// Prefix with a random ID to avoid collisions between uploads that
	// share a filename, while preserving the original name for display.
	storedName := uuid.NewString() + "_" + filepath.Base(fileHeader.Filename)
	destPath := filepath.Join(h.store.InputDir(), storedName)

	if err := c.SaveUploadedFile(fileHeader, destPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save upload"})
		return
	}

	job, err := h.registry.Create(fileHeader.Filename, destPath)
	if err != nil {
		_ = os.Remove(destPath)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job_id": job.ID, "filename": job.Filename})
}

type createJobRequest struct {
	Filename string `json:"filename" binding:"required"`
}

// CreateJob creates a job for a file that already exists under input/
// (spec.md §6.1 "POST /api/create-job").
func (h *Handler) CreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename is required"})
		return
	}

	inputPath := filepath.Join(h.store.InputDir(), req.Filename)
	if _, err := os.Stat(inputPath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found in input directory"})
		return
	}

	job, err := h.registry.Create(req.Filename, inputPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": job.ID, "filename": job.Filename})
}

type startRequest struct {
	JobID    string           `json:"job_id" binding:"required"`
	Settings jobmodel.Settings `json:"settings"`
}

// Start freezes settings on a job and enqueues it (spec.md §6.1 "POST
// /api/start").
func (h *Handler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id is required"})
		return
	}

	settings, err := jobmodel.ParseSettings(req.Settings)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.supervisor.StartJob(req.JobID, settings); err != nil {
		writeSupervisorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}

// --- Lifecycle control ---

// Cancel cancels a job; ?delete_data=true also removes its working
// directory (spec.md §6.1 "POST /api/cancel/<id>").
func (h *Handler) Cancel(c *gin.Context) {
	deleteData, _ := strconv.ParseBool(c.Query("delete_data"))
	if err := h.supervisor.Cancel(c.Param("id"), deleteData); err != nil {
		writeSupervisorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "canceled"})
}

// Pause pauses a job (spec.md §6.1 "POST /api/pause/<id>").
func (h *Handler) Pause(c *gin.Context) {
	if err := h.supervisor.Pause(c.Param("id")); err != nil {
		writeSupervisorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

// Resume re-enqueues a paused job at the tail (spec.md §6.1 "POST
// /api/resume/<id>").
func (h *Handler) Resume(c *gin.Context) {
	if err := h.supervisor.Resume(c.Param("id")); err != nil {
		writeSupervisorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}

// Prioritize moves a job to the head of the queue, optionally preempting
// the running job (spec.md §6.1 "POST /api/prioritize/<id>?mode=").
func (h *Handler) Prioritize(c *gin.Context) {
	mode := queue.PrioritizeMode(c.DefaultQuery("mode", string(queue.PrioritizeGentle)))
	if mode != queue.PrioritizeGentle && mode != queue.PrioritizeForce {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be gentle or force"})
		return
	}
	if err := h.supervisor.Prioritize(c.Param("id"), mode); err != nil {
		writeSupervisorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type reorderRequest struct {
	JobIDs []string `json:"job_ids" binding:"required"`
}

// ReorderQueue replaces the queue order (spec.md §6.1 "POST
// /api/reorder-queue").
func (h *Handler) ReorderQueue(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_ids is required"})
		return
	}
	if err := h.supervisor.Reorder(req.JobIDs); err != nil {
		writeSupervisorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Status / sync ---

// Status returns the full Job snapshot (spec.md §6.1 "GET /api/status/<id>").
func (h *Handler) Status(c *gin.Context) {
	job, err := h.registry.Get(c.Param("id"))
	if err != nil {
		writeSupervisorError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// QueueStatus returns `{queue[], running, interrupted, jobs{}}` (spec.md
// §6.1 "GET /api/queue-status").
func (h *Handler) QueueStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.supervisor.Status())
}

// SyncTasks returns every known job, for clients repairing stale local
// state (spec.md §6.1 "GET /api/sync-tasks").
func (h *Handler) SyncTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.registry.List()})
}

// UpdateJobTitle renames a job (SPEC_FULL.md §7: teacher's
// UpdateTranscriptionTitle).
func (h *Handler) UpdateJobTitle(c *gin.Context) {
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	job, err := h.registry.Update(c.Param("id"), func(j *jobmodel.Job) { j.Title = req.Title })
	if err != nil {
		writeSupervisorError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// --- SSE streams ---

// StreamJob streams per-job events (spec.md §4.C, §6.1 "GET
// /api/stream/<id>").
func (h *Handler) StreamJob(c *gin.Context) {
	jobID := c.Param("id")
	job, err := h.registry.Get(jobID)
	if err != nil {
		writeSupervisorError(c, err)
		return
	}
	sub := h.hub.SubscribeJob(jobID, sse.Event{Type: sse.EventInitialState, Payload: job})
	streamSSE(c, sub)
}

// StreamGlobal streams the global event feed (spec.md §4.C, §6.1 "GET
// /api/events/global").
func (h *Handler) StreamGlobal(c *gin.Context) {
	sub := h.hub.SubscribeGlobal(sse.Event{Type: sse.EventInitialState, Payload: h.supervisor.Status()})
	streamSSE(c, sub)
}

// streamSSE drives one subscriber's lifetime: flush any buffered events
// whenever notified, until the client disconnects or the Hub closes the
// subscription (two consecutive failed writes, or an unrecoverable buffer
// overflow). Grounded on the Hub's own doc comment describing this
// notify-then-drain usage pattern.
func streamSSE(c *gin.Context, sub *sse.Subscription) {
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher, canFlush := c.Writer.(http.Flusher)

	write := func(ev sse.Event) bool {
		data, err := marshalEvent(ev)
		if err != nil {
			return true
		}
		if _, err := c.Writer.Write(data); err != nil {
			sub.MarkWriteFailed()
			return false
		}
		sub.MarkWriteSucceeded()
		if canFlush {
			flusher.Flush()
		}
		return true
	}

	for _, ev := range sub.Drain() {
		if !write(ev) {
			return
		}
	}

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-sub.Closed():
			return
		case <-sub.Events():
			for _, ev := range sub.Drain() {
				if !write(ev) {
					return
				}
			}
		}
	}
}

// --- Media ---

// MediaVideo range-serves the job's original input file (spec.md §6.1
// "GET /api/media/<id>/{video,audio}").
func (h *Handler) MediaVideo(c *gin.Context) {
	if err := h.media.ServeVideo(c.Writer, c.Request, c.Param("id")); err != nil {
		writeMediaError(c, err)
	}
}

// MediaAudio range-serves the extracted audio.
func (h *Handler) MediaAudio(c *gin.Context) {
	if err := h.media.ServeAudio(c.Writer, c.Request, c.Param("id")); err != nil {
		writeMediaError(c, err)
	}
}

// MediaThumbnail serves the extract phase's JPEG thumbnail (spec.md §4.F).
func (h *Handler) MediaThumbnail(c *gin.Context) {
	if err := h.media.ServeThumbnail(c.Writer, c.Request, c.Param("id")); err != nil {
		writeMediaError(c, err)
	}
}

// MediaPeaks returns (computing and caching on first request) the
// downsampled waveform (spec.md §6.1 "GET /api/media/<id>/peaks?samples=N").
func (h *Handler) MediaPeaks(c *gin.Context) {
	samples, _ := strconv.Atoi(c.Query("samples"))
	peaks, err := h.media.Peaks(c.Param("id"), samples)
	if err != nil {
		writeMediaError(c, err)
		return
	}
	c.JSON(http.StatusOK, peaks)
}

// GetSRT returns the raw SRT text (spec.md §6.1 "GET /api/media/<id>/srt").
func (h *Handler) GetSRT(c *gin.Context) {
	text, err := h.media.ReadSRT(c.Param("id"))
	if err != nil {
		writeMediaError(c, err)
		return
	}
	c.String(http.StatusOK, text)
}

type putSRTRequest struct {
	Content string `json:"content" binding:"required"`
}

// PutSRT overwrites the SRT with editor-supplied text (spec.md §6.1 "POST
// /api/media/<id>/srt").
func (h *Handler) PutSRT(c *gin.Context) {
	var req putSRTRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	if err := h.media.WriteSRT(c.Param("id"), req.Content); err != nil {
		writeMediaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CopyResult copies the SRT next to the job's original input file
// (spec.md §6.1 "POST /api/copy-result/<id>").
func (h *Handler) CopyResult(c *gin.Context) {
	dst, err := h.media.CopyResult(c.Param("id"))
	if err != nil {
		writeMediaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": dst})
}

// --- Profiles ---

// ListProfiles returns saved settings presets (SPEC_FULL.md §4).
func (h *Handler) ListProfiles(c *gin.Context) {
	profiles, err := h.store.LoadProfiles()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profiles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

type saveProfileRequest struct {
	Name     string            `json:"name" binding:"required"`
	Settings jobmodel.Settings `json:"settings"`
}

// SaveProfile creates or overwrites a named settings preset.
func (h *Handler) SaveProfile(c *gin.Context) {
	var req saveProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	profiles, err := h.store.LoadProfiles()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profiles"})
		return
	}

	replaced := false
	for i, p := range profiles {
		if p.Name == req.Name {
			profiles[i] = jobmodel.Profile{Name: req.Name, Settings: req.Settings, CreatedAt: p.CreatedAt}
			replaced = true
			break
		}
	}
	if !replaced {
		profiles = append(profiles, jobmodel.Profile{Name: req.Name, Settings: req.Settings, CreatedAt: time.Now()})
	}

	if err := h.store.SaveProfiles(profiles); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Auth ---

type loginRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	LongLived bool   `json:"long_lived"`
}

// Login authenticates the admin user and issues a JWT (SPEC_FULL.md §7
// "POST /api/auth/login").
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, err := h.authStore.FindUserByUsername(req.Username)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !auth.CheckPassword(req.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	generate := h.authService.GenerateToken
	if req.LongLived {
		// orchestratorctl login requests a year-long token so a watched
		// folder can run unattended without re-authenticating.
		generate = h.authService.GenerateLongLivedToken
	}
	token, err := generate(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "username": user.Username})
}

// ListAPIKeys lists API keys (SPEC_FULL.md §7).
func (h *Handler) ListAPIKeys(c *gin.Context) {
	keys, err := h.authStore.ListAPIKeys()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list api keys"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"api_keys": keys})
}

type createAPIKeyRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateAPIKey creates a new API key.
func (h *Handler) CreateAPIKey(c *gin.Context) {
	var req createAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	key, err := h.authStore.CreateAPIKey(req.Name, req.Description)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create api key"})
		return
	}
	c.JSON(http.StatusOK, key)
}

// DeleteAPIKey revokes an API key.
func (h *Handler) DeleteAPIKey(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.authStore.DeleteAPIKey(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete api key"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- error translation ---

func writeSupervisorError(c *gin.Context, err error) {
	var notFound *registry.ErrNotFound
	var invalidOrder *queue.InvalidQueueOrder
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &invalidOrder):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error("api: unexpected error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func writeMediaError(c *gin.Context, err error) {
	var notFound *media.NotFoundError
	var regNotFound *registry.ErrNotFound
	switch {
	case errors.As(err, &notFound), errors.As(err, &regNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		logger.Error("api: media error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// marshalEvent renders an SSE event in the standard "data: <json>\n\n"
// wire format.
func marshalEvent(ev sse.Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return append(append([]byte("data: "), payload...), '\n', '\n'), nil
}
