package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/locvowork/employee_roster/internal/domain"
	"github.com/locvowork/employee_roster/internal/logger"
	"github.com/locvowork/employee_roster/internal/repository/builder"
)

const (
	HeaderRequestID = "X-Request-ID"

	// maxErrorBody bounds how much of a failed response is kept in StatusError.
	maxErrorBody = 512
)

type employeeRepository struct {
	baseURL *url.URL
	client  *http.Client
}

// Option customizes the repository.
type Option func(*employeeRepository)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *employeeRepository) {
		if c != nil {
			r.client = c
		}
	}
}

// WithTimeout bounds every request. Zero keeps requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(r *employeeRepository) {
		if d > 0 {
			c := *r.client
			c.Timeout = d
			r.client = &c
		}
	}
}

// NewEmployeeRepository creates a repository talking to the employee collection at baseURL,
// e.g. http://localhost:8000/api/employees/.
func NewEmployeeRepository(baseURL string, opts ...Option) (domain.EmployeeRepository, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	r := &employeeRepository{baseURL: u, client: &http.Client{}}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *employeeRepository) List(ctx context.Context, filter domain.FilterState) (*domain.Page, error) {
	u := builder.NewURLBuilder(r.baseURL).
		Param("page", filter.Page).
		ParamIf("department", filter.Department).
		ParamIf("role", filter.Role).
		Build()

	resp, err := r.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var page domain.Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrMalformedResponse, u, err)
	}
	if page.Results == nil || page.CurrentPage < 1 || page.TotalPages < 1 {
		return nil, fmt.Errorf("%w: GET %s: missing results or pagination fields", ErrMalformedResponse, u)
	}
	return &page, nil
}

func (r *employeeRepository) Create(ctx context.Context, in domain.EmployeeInput) error {
	u := builder.NewURLBuilder(r.baseURL).Build()
	return r.send(ctx, http.MethodPost, u, in)
}

func (r *employeeRepository) Update(ctx context.Context, id domain.EmployeeID, in domain.EmployeeInput) error {
	u := builder.NewURLBuilder(r.baseURL).Path(id.String()).Build()
	return r.send(ctx, http.MethodPut, u, in)
}

func (r *employeeRepository) Delete(ctx context.Context, id domain.EmployeeID) error {
	u := builder.NewURLBuilder(r.baseURL).Path(id.String()).Build()
	return r.send(ctx, http.MethodDelete, u, nil)
}

// send performs a request whose response body is not needed.
func (r *employeeRepository) send(ctx context.Context, method, u string, body interface{}) error {
	resp, err := r.do(ctx, method, u, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// do sends the request and converts non-2xx answers into *StatusError.
// On success the caller owns resp.Body.
func (r *employeeRepository) do(ctx context.Context, method, u string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, u, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, u, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	ctx = logger.WithLogger(ctx, map[string]interface{}{
		"request_id": requestID,
		"method":     method,
		"url":        u,
	})
	start := time.Now()

	resp, err := r.client.Do(req)
	if err != nil {
		logger.DebugLog(ctx, "employee api request failed after %s", time.Since(start))
		return nil, fmt.Errorf("%s %s: %w", method, u, err)
	}
	logger.DebugLog(ctx, "employee api answered %d in %s", resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method:     method,
			URL:        u,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	return resp, nil
}
