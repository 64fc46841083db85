package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatusAggregatesChecks(t *testing.T) {
	svc := NewService()
	if report := svc.Status(context.Background()); !report.OK {
		t.Fatalf("expected ok with no checks, got %+v", report)
	}

	svc.Add("db", func(context.Context) error { return nil })
	svc.Add("redis", func(context.Context) error { return errors.New("connection refused") })
	svc.Add("skipped", nil)

	report := svc.Status(context.Background())
	if report.OK {
		t.Fatal("expected failing report")
	}
	if report.Checks["db"] != "ok" || report.Checks["redis"] != "connection refused" {
		t.Fatalf("unexpected checks %+v", report.Checks)
	}
	if names := svc.Names(); len(names) != 2 || names[0] != "db" {
		t.Fatalf("unexpected names %v", names)
	}
}
