package handler

import (
	"sync"

	"github.com/locvowork/employee_roster/internal/domain"
)

// ConsoleState is what the HTML console shows.
type ConsoleState struct {
	Rows         []domain.Employee
	Loaded       bool
	PageInfo     string
	Count        int
	PrevDisabled bool
	NextDisabled bool

	FilterDepartment string
	FilterRole       string

	ModalTitle string
	ModalOpen  bool
	Form       domain.Draft

	Notice string
}

// ConsoleView implements service.View by keeping the state the console page is rendered from.
// The session writes it from the event loop while page requests read it, hence the mutex.
type ConsoleView struct {
	mu    sync.Mutex
	state ConsoleState
}

func NewConsoleView() *ConsoleView {
	return &ConsoleView{}
}

// Snapshot returns a copy of the current state and consumes the pending notice.
func (v *ConsoleView) Snapshot() ConsoleState {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.state
	s.Rows = append([]domain.Employee(nil), v.state.Rows...)
	v.state.Notice = ""
	return s
}

// SetFilterInputs records the values selected in the filter controls.
func (v *ConsoleView) SetFilterInputs(department, role string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.FilterDepartment = department
	v.state.FilterRole = role
}

func (v *ConsoleView) RenderRows(rows []domain.Employee) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Rows = rows
	v.state.Loaded = true
}

func (v *ConsoleView) SetPageInfo(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.PageInfo = text
}

func (v *ConsoleView) SetCount(count int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Count = count
}

func (v *ConsoleView) SetNavigation(prevDisabled, nextDisabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.PrevDisabled = prevDisabled
	v.state.NextDisabled = nextDisabled
}

func (v *ConsoleView) SetModalTitle(title string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.ModalTitle = title
}

func (v *ConsoleView) ShowModal() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.ModalOpen = true
}

func (v *ConsoleView) HideModal() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.ModalOpen = false
}

func (v *ConsoleView) FillForm(d domain.Draft) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Form = d
}

func (v *ConsoleView) ResetFilterInputs() {
	v.SetFilterInputs("", "")
}

// Notify shows msg once on the next page render.
func (v *ConsoleView) Notify(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Notice = msg
}
