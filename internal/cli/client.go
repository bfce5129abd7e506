package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// apiError wraps a non-2xx response from the orchestrator so callers can
// surface the server's own error message.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

// doRequest issues an authenticated request against the configured server,
// attaching the bearer token saved by 'orchestratorctl login'.
func doRequest(method, path string, body io.Reader, contentType string) ([]byte, error) {
	cfg := GetConfig()
	if cfg.ServerURL == "" {
		return nil, newUsageError("server URL not configured; run 'orchestratorctl login'")
	}

	req, err := http.NewRequest(method, cfg.ServerURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &apiError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// doJSON marshals payload (if non-nil) and issues a JSON request.
func doJSON(method, path string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	return doRequest(method, path, body, "application/json")
}

// UploadFile uploads a file to the orchestrator's input directory and
// returns the raw {job_id, filename} response body.
func UploadFile(filePath string) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	return doRequest(http.MethodPost, "/api/upload", body, writer.FormDataContentType())
}

// StartJob freezes settings on jobID and enqueues it.
func StartJob(jobID string, settings map[string]interface{}) ([]byte, error) {
	payload := map[string]interface{}{"job_id": jobID, "settings": settings}
	return doJSON(http.MethodPost, "/api/start", payload)
}

// CancelJob cancels jobID, optionally deleting its working directory.
func CancelJob(jobID string, deleteData bool) ([]byte, error) {
	path := fmt.Sprintf("/api/cancel/%s", jobID)
	if deleteData {
		path += "?delete_data=true"
	}
	return doJSON(http.MethodPost, path, nil)
}

// PauseJob requests suspension of jobID.
func PauseJob(jobID string) ([]byte, error) {
	return doJSON(http.MethodPost, fmt.Sprintf("/api/pause/%s", jobID), nil)
}

// ResumeJob re-enqueues a paused job at the tail of the queue.
func ResumeJob(jobID string) ([]byte, error) {
	return doJSON(http.MethodPost, fmt.Sprintf("/api/resume/%s", jobID), nil)
}

// PrioritizeJob moves jobID to the head of the queue in the given mode
// ("gentle" or "force").
func PrioritizeJob(jobID, mode string) ([]byte, error) {
	return doJSON(http.MethodPost, fmt.Sprintf("/api/prioritize/%s?mode=%s", jobID, mode), nil)
}

// ReorderQueue replaces the queue order.
func ReorderQueue(jobIDs []string) ([]byte, error) {
	return doJSON(http.MethodPost, "/api/reorder-queue", map[string]interface{}{"job_ids": jobIDs})
}

// JobStatus returns the full Job snapshot for jobID.
func JobStatus(jobID string) ([]byte, error) {
	return doRequest(http.MethodGet, fmt.Sprintf("/api/status/%s", jobID), nil, "")
}

// QueueStatus returns the queue/running/interrupted/jobs snapshot.
func QueueStatus() ([]byte, error) {
	return doRequest(http.MethodGet, "/api/queue-status", nil, "")
}

// SyncTasks returns every known job.
func SyncTasks() ([]byte, error) {
	return doRequest(http.MethodGet, "/api/sync-tasks", nil, "")
}

// Login authenticates against the server and returns the raw
// {token, username} response body.
func Login(serverURL, username, password string, longLived bool) ([]byte, error) {
	data, err := json.Marshal(map[string]interface{}{
		"username":   username,
		"password":   password,
		"long_lived": longLived,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, serverURL+"/api/auth/login", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &apiError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
