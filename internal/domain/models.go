package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ==================== EMPLOYEE ROSTER ====================

// EmployeeID is the server-assigned identifier of an employee record.
// The client only ever echoes it back.
type EmployeeID int64

func (id EmployeeID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseEmployeeID parses an identifier taken from a URL path segment.
func ParseEmployeeID(s string) (EmployeeID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid employee id %q: %w", s, err)
	}
	return EmployeeID(v), nil
}

// Employee represents one row of the remote employee collection
type Employee struct {
	ID         EmployeeID `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Department *string    `json:"department"`
	Role       *string    `json:"role"`
	DateJoined string     `json:"date_joined,omitempty"`
}

// DepartmentOrEmpty returns the department, or "" when the server sent none.
func (e Employee) DepartmentOrEmpty() string {
	if e.Department == nil {
		return ""
	}
	return *e.Department
}

// RoleOrEmpty returns the role, or "" when the server sent none.
func (e Employee) RoleOrEmpty() string {
	if e.Role == nil {
		return ""
	}
	return *e.Role
}

// Page is one list response: the records of the requested page plus pagination metadata.
// CurrentPage is authoritative; the server may clamp the page that was asked for.
type Page struct {
	Count       int        `json:"count"`
	TotalPages  int        `json:"total_pages"`
	CurrentPage int        `json:"current_page"`
	Results     []Employee `json:"results"`
}

// FilterState is the department/role selection and page number driving the next list request.
// Empty Department or Role means no filter on that field.
type FilterState struct {
	Department string
	Role       string
	Page       int
}

// NewFilterState returns the state of a roster before its first load.
func NewFilterState() FilterState {
	return FilterState{Page: 1}
}

// EmployeeInput is the body of a create or update request
type EmployeeInput struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
	Role       string `json:"role"`
}

// Draft holds the in-progress field values of the employee form.
type Draft struct {
	Name       string `form:"name"`
	Email      string `form:"email"`
	Department string `form:"department"`
	Role       string `form:"role"`
}

// DraftFrom copies a record into form fields, absent optional fields become "".
func DraftFrom(e Employee) Draft {
	return Draft{
		Name:       e.Name,
		Email:      e.Email,
		Department: e.DepartmentOrEmpty(),
		Role:       e.RoleOrEmpty(),
	}
}

// Input builds the request payload for the draft.
func (d Draft) Input() EmployeeInput {
	return EmployeeInput{
		Name:       d.Name,
		Email:      d.Email,
		Department: d.Department,
		Role:       d.Role,
	}
}

// IsZero reports whether every field is empty.
func (d Draft) IsZero() bool {
	return d == Draft{}
}
