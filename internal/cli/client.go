package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// SubmitResponse — ответ на запуск job.
type SubmitResponse struct {
	JobID     string `json:"job_id"`
	StatusURL string `json:"status_url"`
}

// JobResponse — job из API.
type JobResponse struct {
	JobID     string          `json:"job_id"`
	Username  string          `json:"username"`
	Status    string          `json:"status"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// JobListResponse — список jobs пользователя.
type JobListResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Total int           `json:"total"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

// --- Client ---

// Client — HTTP-клиент для Cascade API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Submit запускает новый job для пользователя.
func (c *Client) Submit(username string) (*SubmitResponse, error) {
	var sr SubmitResponse
	err := c.doJSON(http.MethodPost, "/orchestrate/"+username, nil, &sr)
	if err != nil {
		return nil, err
	}
	return &sr, nil
}

// Status возвращает текущее состояние job.
func (c *Client) Status(username, jobID string) (*JobResponse, error) {
	var jr JobResponse
	err := c.doJSON(http.MethodGet, "/status/"+username+"/"+jobID, nil, &jr)
	if err != nil {
		return nil, err
	}
	return &jr, nil
}

// ListJobs возвращает jobs пользователя, новые первыми.
func (c *Client) ListJobs(username string) (*JobListResponse, error) {
	var lr JobListResponse
	err := c.doJSON(http.MethodGet, "/jobs/"+username, nil, &lr)
	if err != nil {
		return nil, err
	}
	return &lr, nil
}

// --- HTTP helpers ---

func (c *Client) doJSON(method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var dr detailResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil || dr.Detail == "" {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}
	return fmt.Errorf("%s", dr.Detail)
}
