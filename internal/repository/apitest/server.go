// Package apitest provides an in-memory employee service for tests.
// It paginates, filters and validates like the production service.
package apitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/locvowork/employee_roster/internal/domain"
)

// DefaultPageSize matches the production paginator.
const DefaultPageSize = 10

// Request is one request received by the server.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Query    map[string]string
	Body     string
}

// Server is an httptest server exposing /api/employees/.
type Server struct {
	*httptest.Server
	PageSize int

	mu        sync.Mutex
	employees []domain.Employee // newest first
	nextID    domain.EmployeeID
	requests  []Request
	failures  map[string][]int
	gates     map[string][]chan struct{}
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		PageSize: DefaultPageSize,
		nextID:   1,
		failures: make(map[string][]int),
		gates:    make(map[string][]chan struct{}),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(s.record)
	e.GET("/api/employees/", s.list)
	e.POST("/api/employees/", s.create)
	e.GET("/api/employees/:id/", s.get)
	e.PUT("/api/employees/:id/", s.update)
	e.DELETE("/api/employees/:id/", s.delete)

	s.Server = httptest.NewServer(e)
	t.Cleanup(s.Close)
	return s
}

// CollectionURL is the base URL for the employee repository.
func (s *Server) CollectionURL() string {
	return s.URL + "/api/employees/"
}

// Seed stores employees as if they had been created in the given order.
// Zero IDs are assigned.
func (s *Server) Seed(employees ...domain.Employee) []domain.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Employee, 0, len(employees))
	for _, e := range employees {
		if e.ID == 0 {
			e.ID = s.nextID
		}
		if e.ID >= s.nextID {
			s.nextID = e.ID + 1
		}
		if e.DateJoined == "" {
			e.DateJoined = time.Now().Format(time.DateOnly)
		}
		s.employees = append([]domain.Employee{e}, s.employees...)
		out = append(out, e)
	}
	return out
}

// Employees returns the stored records, newest first.
func (s *Server) Employees() []domain.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Employee, len(s.employees))
	copy(out, s.employees)
	return out
}

// FailNext makes the next request with method answer with status instead of being served.
func (s *Server) FailNext(method string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = append(s.failures[method], status)
}

// HoldNext blocks the next request with method until the returned func is called.
func (s *Server) HoldNext(method string) (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	s.gates[method] = append(s.gates[method], gate)
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsFor returns the received requests with method.
func (s *Server) RequestsFor(method string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

// ResetRequests forgets the recorded requests.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		body, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(strings.NewReader(string(body)))

		query := make(map[string]string)
		for k, v := range req.URL.Query() {
			if len(v) > 0 {
				query[k] = v[0]
			}
		}

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:   req.Method,
			Path:     req.URL.Path,
			RawQuery: req.URL.RawQuery,
			Query:    query,
			Body:     string(body),
		})
		var gate chan struct{}
		if gates := s.gates[req.Method]; len(gates) > 0 {
			gate, s.gates[req.Method] = gates[0], gates[1:]
		}
		status := 0
		if statuses := s.failures[req.Method]; len(statuses) > 0 {
			status, s.failures[req.Method] = statuses[0], statuses[1:]
		}
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-req.Context().Done():
				return req.Context().Err()
			}
		}
		if status != 0 {
			return c.JSON(status, map[string]string{"detail": "injected failure"})
		}
		return next(c)
	}
}

func (s *Server) list(c echo.Context) error {
	department := c.QueryParam("department")
	role := c.QueryParam("role")

	s.mu.Lock()
	var matched []domain.Employee
	for _, e := range s.employees {
		if department != "" && e.DepartmentOrEmpty() != department {
			continue
		}
		if role != "" && e.RoleOrEmpty() != role {
			continue
		}
		matched = append(matched, e)
	}
	s.mu.Unlock()

	pageSize := s.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	totalPages := (len(matched) + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	// Not an integer → first page, out of range → last page.
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil {
		page = 1
	} else if page < 1 || page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	results := make([]domain.Employee, 0, end-start)
	if start < end {
		results = append(results, matched[start:end]...)
	}

	return c.JSON(http.StatusOK, domain.Page{
		Count:       len(matched),
		TotalPages:  totalPages,
		CurrentPage: page,
		Results:     results,
	})
}

func (s *Server) create(c echo.Context) error {
	var in domain.EmployeeInput
	if err := json.NewDecoder(c.Request().Body).Decode(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": err.Error()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if errs := s.validate(in, 0); len(errs) > 0 {
		return c.JSON(http.StatusBadRequest, errs)
	}

	e := fromInput(s.nextID, in)
	e.DateJoined = time.Now().Format(time.DateOnly)
	s.nextID++
	s.employees = append([]domain.Employee{e}, s.employees...)
	return c.JSON(http.StatusCreated, e)
}

func (s *Server) get(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.find(c.Param("id"))
	if !ok {
		return notFound(c)
	}
	return c.JSON(http.StatusOK, s.employees[idx])
}

func (s *Server) update(c echo.Context) error {
	var in domain.EmployeeInput
	if err := json.NewDecoder(c.Request().Body).Decode(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": err.Error()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.find(c.Param("id"))
	if !ok {
		return notFound(c)
	}
	current := s.employees[idx]
	if errs := s.validate(in, current.ID); len(errs) > 0 {
		return c.JSON(http.StatusBadRequest, errs)
	}

	updated := fromInput(current.ID, in)
	updated.DateJoined = current.DateJoined
	s.employees[idx] = updated
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) delete(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.find(c.Param("id"))
	if !ok {
		return notFound(c)
	}
	s.employees = append(s.employees[:idx], s.employees[idx+1:]...)
	return c.NoContent(http.StatusNoContent)
}

// validate mirrors the production serializer: non-blank name, unique email.
func (s *Server) validate(in domain.EmployeeInput, self domain.EmployeeID) map[string][]string {
	errs := make(map[string][]string)
	if strings.TrimSpace(in.Name) == "" {
		errs["name"] = append(errs["name"], "Name cannot be empty.")
	}
	for _, e := range s.employees {
		if e.ID != self && e.Email == in.Email {
			errs["email"] = append(errs["email"], "An employee with this email already exists.")
			break
		}
	}
	return errs
}

func (s *Server) find(rawID string) (int, bool) {
	id, err := domain.ParseEmployeeID(rawID)
	if err != nil {
		return 0, false
	}
	for i, e := range s.employees {
		if e.ID == id {
			return i, true
		}
	}
	return 0, false
}

func fromInput(id domain.EmployeeID, in domain.EmployeeInput) domain.Employee {
	e := domain.Employee{ID: id, Name: in.Name, Email: in.Email}
	if in.Department != "" {
		d := in.Department
		e.Department = &d
	}
	if in.Role != "" {
		r := in.Role
		e.Role = &r
	}
	return e
}

func notFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, map[string]string{"detail": "Employee not found."})
}
