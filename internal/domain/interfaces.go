package domain

import "context"

// EmployeeRepository defines the contract of the remote employee service
type EmployeeRepository interface {
	// List returns the page selected by filter. Department and Role are sent only when non-empty.
	List(ctx context.Context, filter FilterState) (*Page, error)
	Create(ctx context.Context, in EmployeeInput) error
	Update(ctx context.Context, id EmployeeID, in EmployeeInput) error
	Delete(ctx context.Context, id EmployeeID) error
}
