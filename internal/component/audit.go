package component

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/annel0/mmo-game/internal/eventbus"
	"github.com/annel0/mmo-game/internal/logging"
)

// auditedEventTypes are the component lifecycle events Manager.publish
// emits that the audit log persists (spec §2's audit trail).
var auditedEventTypes = []string{
	"component.created",
	"component.merged",
	"component.removed",
	"component.rebuilt",
}

// AuditLog is a durable, queryable record of every component lifecycle
// transition, backed by MySQL/MariaDB. It never sits in the hot path:
// it subscribes to the same event bus Manager.publish already writes
// to, so a slow or unavailable database only ever delays audit
// visibility, never simulation throughput.
type AuditLog struct {
	db *sql.DB
}

// NewAuditLog opens (or creates) the audit table at dsn.
func NewAuditLog(dsn string) (*AuditLog, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening component audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connecting to component audit database: %w", err)
	}

	const createTable = `
	CREATE TABLE IF NOT EXISTS component_audit_log (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		event_type VARCHAR(32) NOT NULL,
		component_id BIGINT NOT NULL,
		payload JSON NULL,
		recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_component_id (component_id),
		INDEX idx_event_type (event_type)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating component_audit_log table: %w", err)
	}

	return &AuditLog{db: db}, nil
}

// Subscribe attaches the audit log to bus, recording every component
// lifecycle event Manager.publish fires from here on. Non-blocking.
func (a *AuditLog) Subscribe(bus eventbus.EventBus) error {
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{Types: auditedEventTypes}, func(_ context.Context, ev *eventbus.Envelope) {
		var payload struct {
			ComponentID int `json:"component_id"`
		}
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			logging.LogWarn("component audit: malformed payload for %s: %v", ev.EventType, err)
			return
		}
		if err := a.record(ev.EventType, payload.ComponentID, ev.Payload); err != nil {
			logging.LogWarn("component audit: write failed for %s: %v", ev.EventType, err)
		}
	})
	return err
}

func (a *AuditLog) record(eventType string, componentID int, payload []byte) error {
	_, err := a.db.Exec(
		`INSERT INTO component_audit_log (event_type, component_id, payload) VALUES (?, ?, ?)`,
		eventType, componentID, payload,
	)
	return err
}

// Stats returns lifecycle-event counts per type, for admin dashboards.
func (a *AuditLog) Stats() (map[string]int64, error) {
	rows, err := a.db.Query(`SELECT event_type, COUNT(*) FROM component_audit_log GROUP BY event_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]int64)
	for rows.Next() {
		var eventType string
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, err
		}
		stats[eventType] = count
	}
	return stats, rows.Err()
}

// Close closes the underlying database connection.
func (a *AuditLog) Close() error {
	return a.db.Close()
}
