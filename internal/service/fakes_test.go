package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/locvowork/employee_roster/internal/domain"
	"github.com/locvowork/employee_roster/pkg/eventloop"
)

func strPtr(s string) *string { return &s }

// manualScheduler keeps spawned tasks until the test resolves them, in any order.
type manualScheduler struct {
	tasks []eventloop.Task
}

func (m *manualScheduler) Spawn(task eventloop.Task) {
	m.tasks = append(m.tasks, task)
}

func (m *manualScheduler) Pending() int {
	return len(m.tasks)
}

// Resolve runs the i-th outstanding task and its completion.
func (m *manualScheduler) Resolve(t *testing.T, i int) {
	t.Helper()
	require.Less(t, i, len(m.tasks), "no outstanding task %d", i)
	task := m.tasks[i]
	m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
	if complete := task(context.Background()); complete != nil {
		complete()
	}
}

// RunAll resolves tasks in spawn order until none are left, including tasks spawned by completions.
func (m *manualScheduler) RunAll(t *testing.T) {
	t.Helper()
	for len(m.tasks) > 0 {
		m.Resolve(t, 0)
	}
}

type updateCall struct {
	ID    domain.EmployeeID
	Input domain.EmployeeInput
}

// fakeRepository records calls. By default List echoes the requested page within TotalPages.
type fakeRepository struct {
	mu sync.Mutex

	TotalPages int
	Rows       []domain.Employee
	ListFn     func(filter domain.FilterState) (*domain.Page, error)
	CreateErr  error
	UpdateErr  error
	DeleteErr  error

	Lists   []domain.FilterState
	Creates []domain.EmployeeInput
	Updates []updateCall
	Deletes []domain.EmployeeID
}

func (f *fakeRepository) List(_ context.Context, filter domain.FilterState) (*domain.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Lists = append(f.Lists, filter)
	if f.ListFn != nil {
		return f.ListFn(filter)
	}

	total := f.TotalPages
	if total < 1 {
		total = 1
	}
	current := filter.Page
	if current < 1 || current > total {
		current = total
	}
	rows := f.Rows
	if rows == nil {
		rows = []domain.Employee{}
	}
	return &domain.Page{Count: len(rows), TotalPages: total, CurrentPage: current, Results: rows}, nil
}

func (f *fakeRepository) Create(_ context.Context, in domain.EmployeeInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Creates = append(f.Creates, in)
	return f.CreateErr
}

func (f *fakeRepository) Update(_ context.Context, id domain.EmployeeID, in domain.EmployeeInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Updates = append(f.Updates, updateCall{ID: id, Input: in})
	return f.UpdateErr
}

func (f *fakeRepository) Delete(_ context.Context, id domain.EmployeeID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deletes = append(f.Deletes, id)
	return f.DeleteErr
}

func (f *fakeRepository) ListCalls() []domain.FilterState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.FilterState, len(f.Lists))
	copy(out, f.Lists)
	return out
}

// recordingView keeps whatever the session last told it.
type recordingView struct {
	mu sync.Mutex

	Rows         []domain.Employee
	Renders      int
	PageInfo     string
	Count        int
	PrevDisabled bool
	NextDisabled bool
	Title        string
	ModalShown   bool
	Form         domain.Draft
	FilterResets int
	Notices      []string
}

func (v *recordingView) RenderRows(rows []domain.Employee) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Rows = rows
	v.Renders++
}

func (v *recordingView) SetPageInfo(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.PageInfo = text
}

func (v *recordingView) SetCount(count int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Count = count
}

func (v *recordingView) SetNavigation(prevDisabled, nextDisabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.PrevDisabled = prevDisabled
	v.NextDisabled = nextDisabled
}

func (v *recordingView) SetModalTitle(title string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Title = title
}

func (v *recordingView) ShowModal() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ModalShown = true
}

func (v *recordingView) HideModal() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ModalShown = false
}

func (v *recordingView) FillForm(d domain.Draft) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Form = d
}

func (v *recordingView) ResetFilterInputs() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.FilterResets++
}

func (v *recordingView) Notify(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Notices = append(v.Notices, msg)
}

// countingRecorder counts outcomes reported by the session.
type countingRecorder struct {
	Issued, Applied, Discarded, Failed int
	Mutations                          map[string]int
}

func (r *countingRecorder) LoadIssued()    { r.Issued++ }
func (r *countingRecorder) LoadApplied()   { r.Applied++ }
func (r *countingRecorder) LoadDiscarded() { r.Discarded++ }
func (r *countingRecorder) LoadFailed()    { r.Failed++ }

func (r *countingRecorder) MutationDone(operation string, err error) {
	if r.Mutations == nil {
		r.Mutations = make(map[string]int)
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.Mutations[operation+"/"+result]++
}
