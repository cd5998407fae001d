package health

import (
	"context"
	"errors"
	"testing"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestCheckWithoutDatabase(t *testing.T) {
	st := NewService(nil, "").Check(context.Background())
	if !st.OK || st.Database != "memory" || st.Scoring != "unconfigured" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestCheckReportsDatabaseDown(t *testing.T) {
	svc := NewService(pingFunc(func(context.Context) error { return errors.New("refused") }), "http://oracle/predict")
	st := svc.Check(context.Background())
	if st.OK || st.Database != "down" || st.Scoring != "configured" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestCheckReportsDatabaseUp(t *testing.T) {
	svc := NewService(pingFunc(func(context.Context) error { return nil }), "")
	if st := svc.Check(context.Background()); !st.OK || st.Database != "up" {
		t.Fatalf("unexpected status %+v", st)
	}
}
