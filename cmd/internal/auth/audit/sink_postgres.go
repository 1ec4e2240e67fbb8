package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const defaultInsertTimeout = 2 * time.Second

// Execer is the subset of *pgxpool.Pool the sink needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSink appends events to the audit_log table.
type PostgresSink struct {
	db      Execer
	timeout time.Duration
}

// NewPostgresSink returns a PostgresSink writing through db.
func NewPostgresSink(db Execer) *PostgresSink {
	return &PostgresSink{db: db, timeout: defaultInsertTimeout}
}

func (s *PostgresSink) Record(ctx context.Context, ev Event) error {
	var ipVal any
	if ev.IP != nil {
		ipVal = ev.IP.String()
	}

	var metaVal *string
	if len(ev.Meta) > 0 {
		b, err := json.Marshal(ev.Meta)
		if err != nil {
			return fmt.Errorf("audit: meta: %w", err)
		}
		m := string(b)
		metaVal = &m
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.Exec(ctx, `
		INSERT INTO audit_log (
			action, user_id, session_id, ip, user_agent, meta, created_at
		) VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
	`, ev.Action, trimOrNil(ev.UserID), trimOrNil(ev.SessionID), ipVal, trimOrNil(ev.UserAgent), metaVal, ev.At)
	if err != nil {
		return fmt.Errorf("audit: insert %s: %w", ev.Action, err)
	}
	return nil
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
