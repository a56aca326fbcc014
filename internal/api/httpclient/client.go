package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"defect-inspector/internal/domain/entity"
)

const basePath = "/v1/inspections"

// ErrNotFound: сервер не знает такого задания или картинки.
var ErrNotFound = errors.New("not found")

// APIError описывает ответ сервера с кодом 4xx/5xx.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Kind       string `json:"error_kind"`
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("server returned %d (%s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Client ходит в HTTP API проверок.
type Client struct {
	r *resty.Client
}

// New создаёт клиента для сервера baseURL, например "http://127.0.0.1:8080".
func New(baseURL string, timeout time.Duration) *Client {
	r := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout)
	return &Client{r: r}
}

// Submit отправляет пару снимков и возвращает идентификатор задания.
// params == nil означает параметры сервера по умолчанию.
func (c *Client) Submit(ctx context.Context, template, test []byte, params *entity.Params) (string, error) {
	req := c.r.R().
		SetContext(ctx).
		SetFileReader("template", "template.img", bytes.NewReader(template)).
		SetFileReader("test", "test.img", bytes.NewReader(test)).
		SetError(&APIError{})

	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return "", fmt.Errorf("marshal params: %w", err)
		}
		req.SetFormData(map[string]string{"params": string(encoded)})
	}

	var accepted struct {
		ID string `json:"id"`
	}
	resp, err := req.SetResult(&accepted).Post(basePath)
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	if resp.StatusCode() != http.StatusAccepted {
		return "", apiError(resp)
	}
	if accepted.ID == "" {
		location := resp.Header().Get("Location")
		accepted.ID = location[strings.LastIndex(location, "/")+1:]
	}
	if accepted.ID == "" {
		return "", errors.New("submit: server returned no job id")
	}
	return accepted.ID, nil
}

// Get возвращает текущее состояние задания.
func (c *Client) Get(ctx context.Context, id string) (*entity.Job, error) {
	var job entity.Job
	resp, err := c.r.R().
		SetContext(ctx).
		SetResult(&job).
		SetError(&APIError{}).
		Get(basePath + "/" + id)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError(resp)
	}
	return &job, nil
}

// Image скачивает подписанный снимок готового задания.
func (c *Client) Image(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.r.R().
		SetContext(ctx).
		SetError(&APIError{}).
		Get(basePath + "/" + id + "/image")
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError(resp)
	}
	return resp.Body(), nil
}

// Wait опрашивает задание с интервалом interval, пока оно не завершится.
func (c *Client) Wait(ctx context.Context, id string, interval time.Duration) (*entity.Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Finished() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func apiError(resp *resty.Response) error {
	e, ok := resp.Error().(*APIError)
	if !ok || e == nil {
		e = &APIError{}
	}
	e.StatusCode = resp.StatusCode()
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode())
	}
	return e
}
