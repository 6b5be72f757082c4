package seeder

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/locvowork/employee_roster/internal/domain"
	"github.com/locvowork/employee_roster/internal/logger"
	"github.com/locvowork/employee_roster/internal/repository"
	"github.com/locvowork/employee_roster/pkg/dataflow"
)

// Presets
type Preset string

const (
	PresetSmall  Preset = "small"
	PresetMedium Preset = "medium"
	PresetLarge  Preset = "large"
)

// PresetCount returns the number of employees a preset creates.
func PresetCount(p Preset) int {
	switch p {
	case PresetSmall:
		return 25
	case PresetLarge:
		return 500
	default:
		return 120
	}
}

var (
	firstNames  = []string{"Ada", "Alan", "Grace", "Linus", "Margaret", "Dennis", "Barbara", "Ken", "Frances", "Edsger"}
	lastNames   = []string{"Lovelace", "Turing", "Hopper", "Torvalds", "Hamilton", "Ritchie", "Liskov", "Thompson", "Allen", "Dijkstra"}
	departments = []string{"Engineering", "HR", "Sales", "Marketing", "Finance"}
	roles       = []string{"Developer", "Manager", "Analyst", "Designer", "Intern"}
)

// Stats summarizes one seeder run.
type Stats struct {
	Done    int
	Failed  int
	Elapsed time.Duration
}

// Seeder creates and removes employees through the employee service.
type Seeder struct {
	repo    domain.EmployeeRepository
	workers int
	rnd     *rand.Rand
}

func NewSeeder(repo domain.EmployeeRepository, workers int) *Seeder {
	if workers < 1 {
		workers = 1
	}
	return &Seeder{
		repo:    repo,
		workers: workers,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func retryBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * 200 * time.Millisecond
}

// Seed creates n employees with unique emails. Records the service rejects are
// counted as failed and do not stop the run.
func (s *Seeder) Seed(ctx context.Context, n int) (Stats, error) {
	start := time.Now()
	runID := strings.SplitN(uuid.NewString(), "-", 2)[0]
	ctx = logger.WithLogger(ctx, map[string]interface{}{"seed_run": runID})

	// The generator stage runs on one worker; s.rnd is not safe for concurrent use.
	// Its buffer keeps every create worker supplied.
	inputs := dataflow.Map(ctx, dataflow.Range(ctx, n), func(i int) (domain.EmployeeInput, error) {
		return s.input(runID, i), nil
	}, dataflow.WithBufferSize(s.workers))

	var created, failed atomic.Int64
	err := dataflow.ForEach(ctx, inputs, func(in domain.EmployeeInput) error {
		if err := s.repo.Create(ctx, in); err != nil {
			return fmt.Errorf("create %s: %w", in.Email, err)
		}
		created.Add(1)
		return nil
	},
		dataflow.WithWorkers(s.workers),
		dataflow.WithRetry(2, retryBackoff),
		dataflow.WithErrorHandler(func(err error) bool {
			failed.Add(1)
			logger.WarnErr(ctx, err, "employee skipped")
			return true
		}),
	)

	stats := Stats{Done: int(created.Load()), Failed: int(failed.Load()), Elapsed: time.Since(start)}
	logger.InfoLog(ctx, "Seeded %d employees (%d failed) in %v", stats.Done, stats.Failed, stats.Elapsed)
	return stats, err
}

func (s *Seeder) input(runID string, i int) domain.EmployeeInput {
	first := firstNames[i%len(firstNames)]
	last := lastNames[(i/len(firstNames))%len(lastNames)]
	in := domain.EmployeeInput{
		Name:  first + " " + last,
		Email: fmt.Sprintf("%s.%s.%d.%s@example.com", strings.ToLower(first), strings.ToLower(last), i, runID),
	}
	// Some records leave the optional fields empty, as hand-entered data does.
	if s.rnd.Intn(5) > 0 {
		in.Department = departments[s.rnd.Intn(len(departments))]
	}
	if s.rnd.Intn(5) > 0 {
		in.Role = roles[s.rnd.Intn(len(roles))]
	}
	return in
}

// Clear deletes every employee, one first page at a time.
func (s *Seeder) Clear(ctx context.Context) (Stats, error) {
	start := time.Now()
	var deleted int64

	for {
		page, err := s.repo.List(ctx, domain.NewFilterState())
		if err != nil {
			return Stats{Done: int(deleted), Elapsed: time.Since(start)}, fmt.Errorf("list employees: %w", err)
		}
		if len(page.Results) == 0 {
			break
		}

		err = dataflow.ForEach(ctx, dataflow.From(ctx, page.Results...), func(e domain.Employee) error {
			err := s.repo.Delete(ctx, e.ID)
			if repository.StatusCode(err) == http.StatusNotFound {
				// Removed by someone else in the meantime.
				err = nil
			}
			if err != nil {
				return fmt.Errorf("delete %d: %w", e.ID, err)
			}
			atomic.AddInt64(&deleted, 1)
			return nil
		}, dataflow.WithWorkers(s.workers), dataflow.WithRetry(2, retryBackoff))
		if err != nil {
			return Stats{Done: int(deleted), Elapsed: time.Since(start)}, err
		}
		logger.DebugLog(ctx, "Deleted a page of %d employees", len(page.Results))
	}

	stats := Stats{Done: int(deleted), Elapsed: time.Since(start)}
	logger.InfoLog(ctx, "Cleared %d employees in %v", stats.Done, stats.Elapsed)
	return stats, nil
}
