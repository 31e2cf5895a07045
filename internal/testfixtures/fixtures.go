package testfixtures

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nukk-pain/smpain-HR-sub013/internal/matching"
)

var employeeCounter uint64

var referenceTime = time.Date(2025, time.April, 1, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// EmployeeFixture is a deterministic directory record for matcher and
// pipeline tests.
type EmployeeFixture struct {
	ID         string
	Code       string
	Name       string
	Department string
}

// EmployeeOption configures the generated employee fixture.
type EmployeeOption func(*EmployeeFixture)

// NewEmployeeFixture returns a deterministic employee with optional overrides.
func NewEmployeeFixture(opts ...EmployeeOption) EmployeeFixture {
	idx := atomic.AddUint64(&employeeCounter, 1)
	fixture := EmployeeFixture{
		ID:         fmt.Sprintf("emp-%03d", idx),
		Code:       fmt.Sprintf("E%03d", idx),
		Name:       fmt.Sprintf("社員%03d", idx),
		Department: "総務部",
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEmployeeCode overrides the generated employee code.
func WithEmployeeCode(code string) EmployeeOption {
	return func(f *EmployeeFixture) { f.Code = code }
}

// WithEmployeeName overrides the generated name.
func WithEmployeeName(name string) EmployeeOption {
	return func(f *EmployeeFixture) { f.Name = name }
}

// WithEmployeeDepartment overrides the generated department.
func WithEmployeeDepartment(department string) EmployeeOption {
	return func(f *EmployeeFixture) { f.Department = department }
}

// Directory is an in-memory matching.Directory backed by fixtures.
type Directory struct {
	employees []matching.Employee
}

// NewDirectory builds a directory over the given fixtures.
func NewDirectory(fixtures ...EmployeeFixture) *Directory {
	employees := make([]matching.Employee, 0, len(fixtures))
	for _, fixture := range fixtures {
		employees = append(employees, matching.Employee{
			ID:         fixture.ID,
			Code:       fixture.Code,
			Name:       fixture.Name,
			Department: fixture.Department,
		})
	}
	return &Directory{employees: employees}
}

// FindByCode returns employees with an exact code match.
func (d *Directory) FindByCode(_ context.Context, code string) ([]matching.Employee, error) {
	return d.filter(func(e matching.Employee) bool { return e.Code == code }), nil
}

// FindByNameAndDepartment returns employees matching name and department.
func (d *Directory) FindByNameAndDepartment(_ context.Context, name, department string) ([]matching.Employee, error) {
	return d.filter(func(e matching.Employee) bool { return e.Name == name && e.Department == department }), nil
}

// FindByName returns employees matching the name across departments.
func (d *Directory) FindByName(_ context.Context, name string) ([]matching.Employee, error) {
	return d.filter(func(e matching.Employee) bool { return e.Name == name }), nil
}

func (d *Directory) filter(keep func(matching.Employee) bool) []matching.Employee {
	var out []matching.Employee
	for _, employee := range d.employees {
		if keep(employee) {
			out = append(out, employee)
		}
	}
	return out
}
