package service

import (
	"context"
	"fmt"

	"github.com/locvowork/employee_roster/internal/domain"
	"github.com/locvowork/employee_roster/internal/logger"
	"github.com/locvowork/employee_roster/pkg/eventloop"
)

// Labels shown by the presentation layer.
const (
	TitleCreate       = "Add Employee"
	TitleEdit         = "Edit Employee"
	NoticeSaveFailure = "Error saving employee"
)

// Mutation operation names reported to the Recorder.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Scheduler runs a task off the session's goroutine and delivers its completion back onto it.
// *eventloop.Loop is the production implementation.
type Scheduler interface {
	Spawn(task eventloop.Task)
}

// View is the presentation layer driven by the session.
type View interface {
	RenderRows(rows []domain.Employee)
	SetPageInfo(text string)
	SetCount(count int)
	SetNavigation(prevDisabled, nextDisabled bool)
	SetModalTitle(title string)
	ShowModal()
	HideModal()
	FillForm(d domain.Draft)
	ResetFilterInputs()
	Notify(msg string)
}

// Recorder observes load and mutation outcomes, e.g. for metrics.
type Recorder interface {
	LoadIssued()
	LoadApplied()
	LoadDiscarded()
	LoadFailed()
	MutationDone(operation string, err error)
}

type nopRecorder struct{}

func (nopRecorder) LoadIssued()                {}
func (nopRecorder) LoadApplied()               {}
func (nopRecorder) LoadDiscarded()             {}
func (nopRecorder) LoadFailed()                {}
func (nopRecorder) MutationDone(string, error) {}

// SessionOption customizes a RosterSession.
type SessionOption func(*RosterSession)

// WithRecorder reports load and mutation outcomes to r.
func WithRecorder(r Recorder) SessionOption {
	return func(s *RosterSession) {
		if r != nil {
			s.recorder = r
		}
	}
}

// RosterSession owns the filter state and edit session of one roster console and keeps
// the rendered table in sync with the remote employee service.
//
// Every method must be called from the goroutine that runs the Scheduler's completions
// (the event loop). The session itself holds no locks.
type RosterSession struct {
	repo     domain.EmployeeRepository
	sched    Scheduler
	view     View
	recorder Recorder
	logCtx   context.Context

	filter domain.FilterState
	mode   domain.EditMode
	draft  domain.Draft
	rows   []domain.Employee

	// seq is the sequence number of the latest issued load.
	seq uint64
	// editEpoch changes whenever an edit session is opened.
	editEpoch uint64
}

// NewRosterSession creates a session in its initial state: page 1, no filters, Idle.
func NewRosterSession(repo domain.EmployeeRepository, sched Scheduler, view View, opts ...SessionOption) *RosterSession {
	s := &RosterSession{
		repo:     repo,
		sched:    sched,
		view:     view,
		recorder: nopRecorder{},
		logCtx:   logger.WithLogger(context.Background(), map[string]interface{}{"component": "roster_session"}),
		filter:   domain.NewFilterState(),
		mode:     domain.Idle{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ==================== Sync ====================

// Load requests the page selected by the current filter state and returns the sequence
// number of the request. Only the response to the latest issued load is rendered.
func (s *RosterSession) Load() uint64 {
	s.seq++
	seq := s.seq
	filter := s.filter
	s.recorder.LoadIssued()
	logger.DebugLog(s.logCtx, "load #%d issued: page=%d department=%q role=%q", seq, filter.Page, filter.Department, filter.Role)

	s.sched.Spawn(func(ctx context.Context) func() {
		page, err := s.repo.List(ctx, filter)
		return func() {
			s.applyPage(seq, page, err)
		}
	})
	return seq
}

func (s *RosterSession) applyPage(seq uint64, page *domain.Page, err error) {
	if err != nil {
		s.recorder.LoadFailed()
		logger.WarnErr(s.logCtx, err, "load #%d failed, table left unchanged", seq)
		return
	}
	if seq != s.seq {
		s.recorder.LoadDiscarded()
		logger.DebugLog(s.logCtx, "load #%d discarded, #%d is newer", seq, s.seq)
		return
	}
	s.recorder.LoadApplied()

	s.rows = page.Results
	s.filter.Page = page.CurrentPage

	s.view.RenderRows(s.Rows())
	s.view.SetPageInfo(fmt.Sprintf("Page %d of %d", page.CurrentPage, page.TotalPages))
	s.view.SetCount(page.Count)
	s.view.SetNavigation(page.CurrentPage == 1, page.CurrentPage == page.TotalPages)
}

// ==================== Filters & Pagination ====================

// ApplyFilters selects department and role, goes back to the first page and reloads.
// Empty values mean no filter.
func (s *RosterSession) ApplyFilters(department, role string) {
	s.filter.Department = department
	s.filter.Role = role
	s.filter.Page = 1
	s.Load()
}

// ClearFilters removes both filters, resets the filter inputs and reloads.
func (s *RosterSession) ClearFilters() {
	s.view.ResetFilterInputs()
	s.ApplyFilters("", "")
}

// PreviousPage moves one page back. It does nothing on the first page and reports whether a load was issued.
func (s *RosterSession) PreviousPage() bool {
	if s.filter.Page <= 1 {
		return false
	}
	s.filter.Page--
	s.Load()
	return true
}

// NextPage moves one page forward. The server clamps pages past the end.
func (s *RosterSession) NextPage() {
	s.filter.Page++
	s.Load()
}

// ==================== Edit session ====================

// OpenCreate starts an edit session for a new record with an empty form.
// Showing the dialog is left to the caller.
func (s *RosterSession) OpenCreate() {
	s.editEpoch++
	s.mode = domain.Creating{}
	s.draft = domain.Draft{}
	s.view.SetModalTitle(TitleCreate)
	s.view.FillForm(s.draft)
}

// OpenEdit starts an edit session for record and shows the dialog.
// Any unsaved draft is discarded.
func (s *RosterSession) OpenEdit(record domain.Employee) {
	s.editEpoch++
	s.mode = domain.Editing{ID: record.ID}
	s.draft = domain.DraftFrom(record)
	s.view.SetModalTitle(TitleEdit)
	s.view.FillForm(s.draft)
	s.view.ShowModal()
}

// Cancel closes the dialog. The edit session is kept as is.
func (s *RosterSession) Cancel() {
	s.view.HideModal()
}

// UpdateDraft stores the current form values.
func (s *RosterSession) UpdateDraft(d domain.Draft) {
	s.draft = d
}

// ==================== Mutations ====================

// Submit saves the draft: an update when editing a record, a create otherwise.
// On failure the user is notified and the draft and dialog are left untouched.
// On success the form is cleared, the dialog closed and the table reloaded.
func (s *RosterSession) Submit() {
	input := s.draft.Input()
	epoch := s.editEpoch
	id, editing := domain.EditingID(s.mode)

	op := OpCreate
	if editing {
		op = OpUpdate
	}
	logger.DebugLog(s.logCtx, "%s submitted (mode %s)", op, s.mode)

	s.sched.Spawn(func(ctx context.Context) func() {
		var err error
		if editing {
			err = s.repo.Update(ctx, id, input)
		} else {
			err = s.repo.Create(ctx, input)
		}
		return func() {
			s.submitted(op, epoch, err)
		}
	})
}

func (s *RosterSession) submitted(op string, epoch uint64, err error) {
	s.recorder.MutationDone(op, err)
	if err != nil {
		logger.WarnErr(s.logCtx, err, "%s failed", op)
		s.view.Notify(NoticeSaveFailure)
		return
	}

	// A session opened while the request was in flight keeps its draft.
	if epoch == s.editEpoch {
		s.mode = domain.Idle{}
		s.draft = domain.Draft{}
		s.view.FillForm(s.draft)
		s.view.HideModal()
	}
	s.Load()
}

// DeleteRecord deletes the record with id and reloads whatever the outcome.
func (s *RosterSession) DeleteRecord(id domain.EmployeeID) {
	s.sched.Spawn(func(ctx context.Context) func() {
		err := s.repo.Delete(ctx, id)
		return func() {
			s.recorder.MutationDone(OpDelete, err)
			if err != nil {
				logger.WarnErr(s.logCtx, err, "delete of employee %s failed, reloading anyway", id)
			}
			s.Load()
		}
	})
}

// ==================== Accessors ====================

// Filter returns the current filter state.
func (s *RosterSession) Filter() domain.FilterState {
	return s.filter
}

// Mode returns the edit mode.
func (s *RosterSession) Mode() domain.EditMode {
	return s.mode
}

// Draft returns the in-progress form values.
func (s *RosterSession) Draft() domain.Draft {
	return s.draft
}

// Rows returns a copy of the rendered records.
func (s *RosterSession) Rows() []domain.Employee {
	out := make([]domain.Employee, len(s.rows))
	copy(out, s.rows)
	return out
}

// Record looks up a rendered record by id.
func (s *RosterSession) Record(id domain.EmployeeID) (domain.Employee, bool) {
	for _, e := range s.rows {
		if e.ID == id {
			return e, true
		}
	}
	return domain.Employee{}, false
}

// LatestSeq returns the sequence number of the latest issued load, 0 before the first.
func (s *RosterSession) LatestSeq() uint64 {
	return s.seq
}
