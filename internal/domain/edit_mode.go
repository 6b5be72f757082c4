package domain

// EditMode is the state of the edit session: Idle, Creating or Editing.
// The set is closed; switch on the concrete type.
type EditMode interface {
	editMode()
	String() string
}

// Idle is the initial mode. Submitting from Idle creates a record.
type Idle struct{}

// Creating means the form will create a new record.
type Creating struct{}

// Editing means the form will replace the record with ID.
type Editing struct {
	ID EmployeeID
}

func (Idle) editMode()     {}
func (Creating) editMode() {}
func (Editing) editMode()  {}

func (Idle) String() string     { return "idle" }
func (Creating) String() string { return "create" }
func (m Editing) String() string {
	return "edit(" + m.ID.String() + ")"
}

// EditingID returns the identifier targeted by the mode, if any.
func EditingID(m EditMode) (EmployeeID, bool) {
	if e, ok := m.(Editing); ok {
		return e.ID, true
	}
	return 0, false
}
