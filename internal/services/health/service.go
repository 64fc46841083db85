// Package health reports readiness of the service's backing stores.
package health

import (
	"context"
	"sort"
	"time"
)

// Checker reports whether a dependency is reachable.
type Checker func(ctx context.Context) error

// Service runs named readiness checks.
type Service struct {
	Timeout time.Duration

	checks map[string]Checker
}

// NewService constructs a health service with no checks.
func NewService() *Service {
	return &Service{Timeout: 2 * time.Second, checks: map[string]Checker{}}
}

// Add registers a named check. A nil checker is ignored.
func (s *Service) Add(name string, check Checker) {
	if check == nil {
		return
	}
	s.checks[name] = check
}

// Report is the outcome of a health run.
type Report struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Status runs every check concurrently and reports ok only if all pass.
func (s *Service) Status(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(s.checks))
	for name, check := range s.checks {
		go func() {
			results <- result{name: name, err: check(ctx)}
		}()
	}

	report := Report{OK: true, Checks: map[string]string{}}
	for range s.checks {
		r := <-results
		if r.err != nil {
			report.OK = false
			report.Checks[r.name] = r.err.Error()
			continue
		}
		report.Checks[r.name] = "ok"
	}
	return report
}

// Names returns the registered check names, sorted.
func (s *Service) Names() []string {
	out := make([]string, 0, len(s.checks))
	for name := range s.checks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
