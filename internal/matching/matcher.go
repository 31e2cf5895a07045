// Package matching resolves upload rows against the employee directory.
//
// Resolution runs three lookup tiers in priority order: exact employee code,
// exact name plus department, then name alone. The first tier producing any
// candidate decides the outcome; a single candidate is a match, several are
// ambiguous. Rows are independent, so large sheets resolve concurrently.
package matching

import (
	"context"

	"github.com/nukk-pain/smpain-HR-sub013/internal/spreadsheet"
	"golang.org/x/sync/errgroup"
)

// Status classifies the outcome of resolving one row.
type Status string

const (
	StatusFound     Status = "found"
	StatusAmbiguous Status = "ambiguous"
	StatusNotFound  Status = "not_found"
)

// MatchedBy identifies the lookup tier that produced a result.
type MatchedBy string

const (
	MatchedByCode           MatchedBy = "employee_code"
	MatchedByNameDepartment MatchedBy = "name_department"
	MatchedByName           MatchedBy = "name"
)

// Employee is the directory view the matcher needs.
type Employee struct {
	ID         string
	Code       string
	Name       string
	Department string
}

// Result is the outcome of resolving a row. EmployeeID is set exactly when
// Status is StatusFound; ambiguous and not-found results carry none.
type Result struct {
	Status     Status
	EmployeeID string
	MatchedBy  MatchedBy
	// Candidates counts the entries found at the deciding tier, for
	// ambiguity reporting.
	Candidates int
}

// Directory exposes the read-only lookups the matcher issues. Each method
// returns every candidate for the key; order is not significant.
type Directory interface {
	FindByCode(ctx context.Context, code string) ([]Employee, error)
	FindByNameAndDepartment(ctx context.Context, name, department string) ([]Employee, error)
	FindByName(ctx context.Context, name string) ([]Employee, error)
}

// Matcher resolves rows against a Directory.
type Matcher struct {
	directory   Directory
	concurrency int
}

// NewMatcher wires a matcher over the given directory. concurrency bounds the
// parallel lookups issued by MatchAll; values below one fall back to 8.
func NewMatcher(directory Directory, concurrency int) *Matcher {
	if concurrency < 1 {
		concurrency = 8
	}
	return &Matcher{directory: directory, concurrency: concurrency}
}

// Match resolves a single row. Tiers run in priority order and stop at the
// first one yielding candidates, so an unambiguous code match wins even when
// the name would also match a different employee.
func (m *Matcher) Match(ctx context.Context, row spreadsheet.UploadRow) (Result, error) {
	code := row.Field(spreadsheet.ColumnEmployeeCode)
	name := row.Field(spreadsheet.ColumnName)
	department := row.Field(spreadsheet.ColumnDepartment)

	if code != "" {
		candidates, err := m.directory.FindByCode(ctx, code)
		if err != nil {
			return Result{}, err
		}
		if len(candidates) > 0 {
			return tierResult(candidates, MatchedByCode), nil
		}
	}

	if name != "" && department != "" {
		candidates, err := m.directory.FindByNameAndDepartment(ctx, name, department)
		if err != nil {
			return Result{}, err
		}
		if len(candidates) > 0 {
			return tierResult(candidates, MatchedByNameDepartment), nil
		}
	}

	if name != "" {
		candidates, err := m.directory.FindByName(ctx, name)
		if err != nil {
			return Result{}, err
		}
		if len(candidates) > 0 {
			return tierResult(candidates, MatchedByName), nil
		}
	}

	return Result{Status: StatusNotFound}, nil
}

// MatchAll resolves every row concurrently, preserving row order in the
// returned slice. The first lookup error cancels the remaining work.
func (m *Matcher) MatchAll(ctx context.Context, rows []spreadsheet.UploadRow) ([]Result, error) {
	results := make([]Result, len(rows))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(m.concurrency)

	for i, row := range rows {
		i, row := i, row
		group.Go(func() error {
			result, err := m.Match(groupCtx, row)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func tierResult(candidates []Employee, matchedBy MatchedBy) Result {
	if len(candidates) == 1 {
		return Result{
			Status:     StatusFound,
			EmployeeID: candidates[0].ID,
			MatchedBy:  matchedBy,
			Candidates: 1,
		}
	}
	return Result{Status: StatusAmbiguous, MatchedBy: matchedBy, Candidates: len(candidates)}
}
