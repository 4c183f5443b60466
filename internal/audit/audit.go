// Package audit emits the append-only AuditLog rows required by §4.9. Every
// service package calls Logger.Record inside the same database transaction
// as its write, the explicit "model hook" step §9 asks for in place of a
// hidden persistence-layer callback.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/clock"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
)

// Sink persists one AuditLog row. The postgres repository implements this
// on its own connection, outside the caller's transaction; tests use an
// in-memory Sink.
type Sink interface {
	Insert(ctx context.Context, entry models.AuditLog) error
}

// Logger builds and persists AuditLog rows with consistent defaults.
type Logger struct {
	sink   Sink
	clock  clock.Clock
	log    zerolog.Logger
}

func NewLogger(sink Sink, clk clock.Clock, log zerolog.Logger) *Logger {
	return &Logger{sink: sink, clock: clk, log: log.With().Str("component", "audit").Logger()}
}

// Entry is the subset of AuditLog fields a call site supplies; CreatedAt and
// ID are always assigned here so every row is timestamped and identified
// consistently.
type Entry struct {
	UserID      *idgen.ID
	CachedEmail string
	CachedRole  models.Role
	StationID   *idgen.ID
	Action      string
	EntityType  string
	EntityID    idgen.ID
	OldValues   map[string]interface{}
	NewValues   map[string]interface{}
	Description string
	IP          string
	UserAgent   string
	Severity    models.AuditSeverity
	Category    models.AuditCategory
	Success     bool
	ErrorMessage string
}

// sensitiveFields are stripped from OldValues/NewValues before persistence,
// per §3 ("never passwords or credentials").
var sensitiveFields = map[string]bool{
	"password":       true,
	"credentialHash": true,
	"credential":     true,
	"token":          true,
	"secret":         true,
}

func sanitize(values map[string]interface{}) map[string]interface{} {
	if values == nil {
		return nil
	}
	clean := make(map[string]interface{}, len(values))
	for k, v := range values {
		if sensitiveFields[k] {
			continue
		}
		clean[k] = v
	}
	return clean
}

// Record persists one audit entry. It never returns an error to the caller
// for anything other than the underlying sink failing. A caller that returns
// that error from its uow.WithTransaction callback rolls back the write the
// entry describes; the audit row itself is not part of that transaction
// with the postgres sink, so it stays if the write later rolls back.
func (l *Logger) Record(ctx context.Context, e Entry) error {
	if e.Severity == "" {
		e.Severity = models.SeverityInfo
	}
	if e.Category == "" {
		e.Category = models.CategoryGeneral
	}
	row := models.AuditLog{
		ID:           idgen.New(),
		UserID:       e.UserID,
		CachedEmail:  e.CachedEmail,
		CachedRole:   e.CachedRole,
		StationID:    e.StationID,
		Action:       e.Action,
		EntityType:   e.EntityType,
		EntityID:     e.EntityID,
		OldValues:    sanitize(e.OldValues),
		NewValues:    sanitize(e.NewValues),
		Description:  e.Description,
		IP:           e.IP,
		UserAgent:    e.UserAgent,
		Severity:     e.Severity,
		Category:     e.Category,
		Success:      e.Success,
		ErrorMessage: e.ErrorMessage,
		CreatedAt:    l.now(),
	}
	if err := l.sink.Insert(ctx, row); err != nil {
		l.log.Error().Err(err).Str("entity_type", e.EntityType).Msg("audit write failed")
		return err
	}
	return nil
}

func (l *Logger) now() time.Time {
	if l.clock == nil {
		return time.Now().UTC()
	}
	return l.clock.Now()
}

// AuthFailure records a failed authentication attempt (§4.9: "success=false,
// category=auth, severity=warning").
func (l *Logger) AuthFailure(ctx context.Context, description, ip, userAgent string) error {
	return l.Record(ctx, Entry{
		Action:      "auth.failure",
		EntityType:  "User",
		Description: description,
		IP:          ip,
		UserAgent:   userAgent,
		Severity:    models.SeverityWarning,
		Category:    models.CategoryAuth,
		Success:     false,
	})
}
