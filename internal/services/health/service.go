package health

import (
	"context"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service reports liveness plus the state of the backing database.
type Service struct {
	DB             Pinger
	OracleEndpoint string
	Timeout        time.Duration
}

// Status is the /health payload.
type Status struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
	Scoring  string `json:"scoring"`
}

// NewService constructs a health service. db may be nil when running on
// in-memory repositories.
func NewService(db Pinger, oracleEndpoint string) *Service {
	return &Service{DB: db, OracleEndpoint: oracleEndpoint, Timeout: 2 * time.Second}
}

// Check pings the database. The scoring oracle is only reported as
// configured or not; it is never called from a health check.
func (s *Service) Check(ctx context.Context) Status {
	st := Status{OK: true, Database: "memory", Scoring: "unconfigured"}
	if s.OracleEndpoint != "" {
		st.Scoring = "configured"
	}
	if s.DB == nil {
		return st
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.DB.PingContext(pingCtx); err != nil {
		st.OK = false
		st.Database = "down"
		return st
	}
	st.Database = "up"
	return st
}
