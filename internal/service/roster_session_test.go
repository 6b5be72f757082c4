package service

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locvowork/employee_roster/internal/domain"
	"github.com/locvowork/employee_roster/internal/repository"
)

type sessionFixture struct {
	repo     *fakeRepository
	sched    *manualScheduler
	view     *recordingView
	recorder *countingRecorder
	session  *RosterSession
}

func newFixture(totalPages int) *sessionFixture {
	f := &sessionFixture{
		repo:     &fakeRepository{TotalPages: totalPages},
		sched:    &manualScheduler{},
		view:     &recordingView{},
		recorder: &countingRecorder{},
	}
	f.session = NewRosterSession(f.repo, f.sched, f.view, WithRecorder(f.recorder))
	return f
}

// goToPage moves the session to page n and settles every load.
func (f *sessionFixture) goToPage(t *testing.T, n int) {
	t.Helper()
	for f.session.Filter().Page < n {
		f.session.NextPage()
		f.sched.RunAll(t)
	}
	require.Equal(t, n, f.session.Filter().Page)
}

func TestNewRosterSession_InitialState(t *testing.T) {
	f := newFixture(1)

	assert.Equal(t, domain.FilterState{Page: 1}, f.session.Filter())
	assert.Equal(t, domain.Idle{}, f.session.Mode())
	assert.True(t, f.session.Draft().IsZero())
	assert.Empty(t, f.session.Rows())
	assert.Equal(t, uint64(0), f.session.LatestSeq())
	assert.Zero(t, f.sched.Pending(), "nothing is requested before the first load")
}

func TestApplyFilters(t *testing.T) {
	testCases := map[string]struct {
		department string
		role       string
	}{
		"department and role": {department: "Engineering", role: "Manager"},
		"department only":     {department: "HR"},
		"role only":           {role: "Intern"},
		"no filters":          {},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(5)
			f.goToPage(t, 3)

			f.session.ApplyFilters(tc.department, tc.role)
			assert.Equal(t, 1, f.session.Filter().Page, "page resets before the request is issued")
			require.Equal(t, 1, f.sched.Pending())

			f.sched.RunAll(t)
			calls := f.repo.ListCalls()
			assert.Equal(t, domain.FilterState{Department: tc.department, Role: tc.role, Page: 1}, calls[len(calls)-1])
		})
	}
}

func TestClearFilters(t *testing.T) {
	f := newFixture(5)
	f.session.ApplyFilters("Sales", "Analyst")
	f.sched.RunAll(t)
	f.goToPage(t, 2)

	f.session.ClearFilters()
	f.sched.RunAll(t)

	assert.Equal(t, 1, f.view.FilterResets)
	calls := f.repo.ListCalls()
	assert.Equal(t, domain.FilterState{Page: 1}, calls[len(calls)-1])
	assert.Equal(t, domain.FilterState{Page: 1}, f.session.Filter())
}

func TestPreviousPage(t *testing.T) {
	t.Run("first page is a no-op", func(t *testing.T) {
		f := newFixture(3)
		assert.False(t, f.session.PreviousPage())
		assert.Zero(t, f.sched.Pending())
		assert.Equal(t, 1, f.session.Filter().Page)
	})

	t.Run("decrements by one", func(t *testing.T) {
		f := newFixture(5)
		f.goToPage(t, 3)
		before := len(f.repo.ListCalls())

		assert.True(t, f.session.PreviousPage())
		assert.Equal(t, 2, f.session.Filter().Page)
		f.sched.RunAll(t)

		calls := f.repo.ListCalls()
		require.Len(t, calls, before+1)
		assert.Equal(t, 2, calls[before].Page)
	})
}

func TestNextPage_IgnoresKnownTotal(t *testing.T) {
	f := newFixture(1)
	f.session.Load()
	f.sched.RunAll(t)
	require.True(t, f.view.NextDisabled)

	f.session.NextPage()
	assert.Equal(t, 2, f.session.Filter().Page)
	require.Equal(t, 1, f.sched.Pending())
	f.sched.RunAll(t)

	calls := f.repo.ListCalls()
	assert.Equal(t, 2, calls[len(calls)-1].Page)
	assert.Equal(t, 1, f.session.Filter().Page, "reconciled to the page the server answered with")
}

func TestLoad_RendersPageInfoAndNavigation(t *testing.T) {
	testCases := map[string]struct {
		current, total int
		prevDisabled   bool
		nextDisabled   bool
	}{
		"single page": {current: 1, total: 1, prevDisabled: true, nextDisabled: true},
		"first page":  {current: 1, total: 3, prevDisabled: true, nextDisabled: false},
		"middle page": {current: 2, total: 3, prevDisabled: false, nextDisabled: false},
		"last page":   {current: 3, total: 3, prevDisabled: false, nextDisabled: true},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(0)
			rows := []domain.Employee{{ID: 1, Name: "Ada", Email: "ada@example.com"}}
			f.repo.ListFn = func(domain.FilterState) (*domain.Page, error) {
				return &domain.Page{Count: 21, TotalPages: tc.total, CurrentPage: tc.current, Results: rows}, nil
			}

			f.session.Load()
			f.sched.RunAll(t)

			assert.Equal(t, rows, f.view.Rows)
			assert.Equal(t, 21, f.view.Count)
			assert.Equal(t, fmt.Sprintf("Page %d of %d", tc.current, tc.total), f.view.PageInfo)
			assert.Equal(t, tc.prevDisabled, f.view.PrevDisabled)
			assert.Equal(t, tc.nextDisabled, f.view.NextDisabled)
			assert.Equal(t, tc.current, f.session.Filter().Page)
		})
	}
}

func TestLoad_ReconcilesClampedPage(t *testing.T) {
	f := newFixture(5)
	f.goToPage(t, 5)

	f.repo.TotalPages = 2
	f.session.ApplyFilters("HR", "")
	f.session.NextPage()
	f.session.NextPage()
	assert.Equal(t, 3, f.session.Filter().Page)
	f.sched.RunAll(t)

	assert.Equal(t, 2, f.session.Filter().Page)
	assert.Equal(t, "Page 2 of 2", f.view.PageInfo)
}

func TestLoad_DiscardsStaleResponses(t *testing.T) {
	f := newFixture(0)
	f.repo.ListFn = func(filter domain.FilterState) (*domain.Page, error) {
		name := "all"
		if filter.Department != "" {
			name = filter.Department
		}
		return &domain.Page{TotalPages: 1, CurrentPage: 1, Results: []domain.Employee{{ID: 1, Name: name}}}, nil
	}

	first := f.session.Load()
	f.session.ApplyFilters("Engineering", "")
	assert.Equal(t, first+1, f.session.LatestSeq())
	require.Equal(t, 2, f.sched.Pending())

	// The newer request answers first.
	f.sched.Resolve(t, 1)
	require.Len(t, f.view.Rows, 1)
	assert.Equal(t, "Engineering", f.view.Rows[0].Name)

	f.sched.Resolve(t, 0)
	assert.Equal(t, "Engineering", f.view.Rows[0].Name, "stale response must not overwrite the table")
	assert.Equal(t, 1, f.view.Renders)
	assert.Equal(t, 2, f.recorder.Issued)
	assert.Equal(t, 1, f.recorder.Applied)
	assert.Equal(t, 1, f.recorder.Discarded)
}

func TestLoad_FailureLeavesTableUnchanged(t *testing.T) {
	f := newFixture(0)
	rows := []domain.Employee{{ID: 9, Name: "Ada"}}
	f.repo.ListFn = func(domain.FilterState) (*domain.Page, error) {
		return &domain.Page{TotalPages: 2, CurrentPage: 1, Results: rows}, nil
	}
	f.session.Load()
	f.sched.RunAll(t)

	f.repo.ListFn = func(domain.FilterState) (*domain.Page, error) {
		return nil, &repository.StatusError{Method: http.MethodGet, StatusCode: http.StatusBadGateway}
	}
	f.session.NextPage()
	f.sched.RunAll(t)

	assert.Equal(t, rows, f.view.Rows)
	assert.Equal(t, 1, f.view.Renders)
	assert.Equal(t, "Page 1 of 2", f.view.PageInfo)
	assert.Empty(t, f.view.Notices, "list failures are not surfaced")
	assert.Equal(t, 1, f.recorder.Failed)
	assert.Equal(t, 2, f.session.Filter().Page, "no retry and no rollback")
}

func TestOpenEdit(t *testing.T) {
	testCases := map[string]struct {
		record domain.Employee
		draft  domain.Draft
	}{
		"all fields": {
			record: domain.Employee{ID: 4, Name: "Ada", Email: "ada@example.com", Department: strPtr("Engineering"), Role: strPtr("Developer")},
			draft:  domain.Draft{Name: "Ada", Email: "ada@example.com", Department: "Engineering", Role: "Developer"},
		},
		"absent optionals": {
			record: domain.Employee{ID: 5, Name: "Bob", Email: "bob@example.com"},
			draft:  domain.Draft{Name: "Bob", Email: "bob@example.com"},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(1)
			f.session.OpenCreate()
			f.session.UpdateDraft(domain.Draft{Name: "unsaved"})

			f.session.OpenEdit(tc.record)

			assert.Equal(t, domain.Editing{ID: tc.record.ID}, f.session.Mode())
			assert.Equal(t, tc.draft, f.session.Draft())
			assert.Equal(t, tc.draft, f.view.Form)
			assert.Equal(t, TitleEdit, f.view.Title)
			assert.True(t, f.view.ModalShown)
			assert.Zero(t, f.sched.Pending())
		})
	}
}

func TestOpenCreate(t *testing.T) {
	f := newFixture(1)
	f.session.OpenEdit(domain.Employee{ID: 3, Name: "Ada", Email: "ada@example.com"})
	f.session.Cancel()

	f.session.OpenCreate()

	assert.Equal(t, domain.Creating{}, f.session.Mode())
	assert.True(t, f.session.Draft().IsZero())
	assert.True(t, f.view.Form.IsZero())
	assert.Equal(t, TitleCreate, f.view.Title)
	assert.False(t, f.view.ModalShown, "the caller decides whether to show the dialog")
}

func TestCancel_KeepsEditSession(t *testing.T) {
	f := newFixture(1)
	f.session.OpenEdit(domain.Employee{ID: 3, Name: "Ada", Email: "ada@example.com"})

	f.session.Cancel()

	assert.False(t, f.view.ModalShown)
	assert.Equal(t, domain.Editing{ID: 3}, f.session.Mode())
	assert.Equal(t, "Ada", f.session.Draft().Name)
}

func TestSubmit_Create(t *testing.T) {
	for name, open := range map[string]bool{"after OpenCreate": true, "from idle": false} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(1)
			if open {
				f.session.OpenCreate()
			}
			draft := domain.Draft{Name: "Ada", Email: "ada@example.com", Department: "Engineering"}
			f.session.UpdateDraft(draft)

			f.session.Submit()
			f.sched.RunAll(t)

			require.Len(t, f.repo.Creates, 1)
			assert.Equal(t, draft.Input(), f.repo.Creates[0])
			assert.Empty(t, f.repo.Updates)
			assert.Len(t, f.repo.ListCalls(), 1, "exactly one reload")
			assert.Equal(t, domain.Idle{}, f.session.Mode())
			assert.True(t, f.session.Draft().IsZero())
			assert.True(t, f.view.Form.IsZero())
			assert.Equal(t, 1, f.recorder.Mutations["create/ok"])
		})
	}
}

func TestSubmit_Update(t *testing.T) {
	f := newFixture(1)
	f.session.OpenEdit(domain.Employee{ID: 42, Name: "Ada", Email: "ada@example.com"})
	f.session.UpdateDraft(domain.Draft{Name: "Ada L.", Email: "ada@example.com", Role: "Manager"})

	f.session.Submit()
	f.sched.RunAll(t)

	assert.Empty(t, f.repo.Creates)
	require.Len(t, f.repo.Updates, 1)
	assert.Equal(t, domain.EmployeeID(42), f.repo.Updates[0].ID)
	assert.Equal(t, domain.EmployeeInput{Name: "Ada L.", Email: "ada@example.com", Role: "Manager"}, f.repo.Updates[0].Input)
	assert.False(t, f.view.ModalShown)
	assert.Len(t, f.repo.ListCalls(), 1)
	assert.Equal(t, 1, f.recorder.Mutations["update/ok"])
}

func TestSubmit_FailureKeepsDraft(t *testing.T) {
	testCases := map[string]struct {
		open func(s *RosterSession)
		fail func(r *fakeRepository, err error)
	}{
		"create": {
			open: func(s *RosterSession) { s.OpenCreate() },
			fail: func(r *fakeRepository, err error) { r.CreateErr = err },
		},
		"update": {
			open: func(s *RosterSession) { s.OpenEdit(domain.Employee{ID: 8, Name: "Ada", Email: "ada@example.com"}) },
			fail: func(r *fakeRepository, err error) { r.UpdateErr = err },
		},
	}
	failures := map[string]error{
		"bad request": &repository.StatusError{StatusCode: http.StatusBadRequest},
		"server":      &repository.StatusError{StatusCode: http.StatusInternalServerError},
		"transport":   errors.New("connection refused"),
	}

	for name, tc := range testCases {
		for failName, failErr := range failures {
			t.Run(name+"/"+failName, func(t *testing.T) {
				f := newFixture(1)
				tc.open(f.session)
				tc.fail(f.repo, failErr)
				draft := domain.Draft{Name: "Ada", Email: "taken@example.com", Department: "HR", Role: "Analyst"}
				f.session.UpdateDraft(draft)
				modeBefore := f.session.Mode()
				shownBefore := f.view.ModalShown

				f.session.Submit()
				f.sched.RunAll(t)

				assert.Equal(t, draft, f.session.Draft())
				assert.Equal(t, modeBefore, f.session.Mode())
				assert.Equal(t, shownBefore, f.view.ModalShown)
				assert.Equal(t, []string{NoticeSaveFailure}, f.view.Notices)
				assert.Empty(t, f.repo.ListCalls(), "no reload after a failed save")
				assert.Equal(t, 1, f.recorder.Mutations[name+"/error"])
			})
		}
	}
}

func TestSubmit_KeepsSessionOpenedWhileSaving(t *testing.T) {
	f := newFixture(1)
	f.session.OpenCreate()
	f.session.UpdateDraft(domain.Draft{Name: "Ada", Email: "ada@example.com"})
	f.session.Submit()

	f.session.OpenEdit(domain.Employee{ID: 6, Name: "Bob", Email: "bob@example.com"})
	f.sched.RunAll(t)

	require.Len(t, f.repo.Creates, 1)
	assert.Equal(t, domain.Editing{ID: 6}, f.session.Mode())
	assert.Equal(t, "Bob", f.session.Draft().Name)
	assert.True(t, f.view.ModalShown)
	assert.Len(t, f.repo.ListCalls(), 1, "the table still reloads")
}

// A failed delete still reloads; "already gone" and real failures are not told apart.
func TestDeleteRecord_AlwaysReloadsOnce(t *testing.T) {
	testCases := map[string]error{
		"success":   nil,
		"not found": &repository.StatusError{Method: http.MethodDelete, StatusCode: http.StatusNotFound},
		"server":    &repository.StatusError{Method: http.MethodDelete, StatusCode: http.StatusInternalServerError},
		"transport": errors.New("connection reset"),
	}

	for name, deleteErr := range testCases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(1)
			f.repo.DeleteErr = deleteErr

			f.session.DeleteRecord(11)
			assert.Empty(t, f.repo.ListCalls(), "reload waits for the delete to complete")
			f.sched.RunAll(t)

			assert.Equal(t, []domain.EmployeeID{11}, f.repo.Deletes)
			assert.Len(t, f.repo.ListCalls(), 1)
			assert.Empty(t, f.view.Notices)
		})
	}
}

func TestRecord(t *testing.T) {
	f := newFixture(0)
	f.repo.Rows = []domain.Employee{{ID: 1, Name: "Ada"}, {ID: 2, Name: "Bob"}}
	f.session.Load()
	f.sched.RunAll(t)

	e, ok := f.session.Record(2)
	require.True(t, ok)
	assert.Equal(t, "Bob", e.Name)

	_, ok = f.session.Record(3)
	assert.False(t, ok)

	rows := f.session.Rows()
	rows[0].Name = "changed"
	assert.Equal(t, "Ada", f.session.Rows()[0].Name)
}
