package audit

import (
	"context"
	"time"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"

	"shop_back_end/internal/models"
)

// Entries are partitioned by UTC day and clustered by a time-based UUID, so a
// day reads back newest first.
const createAuditTable = `
	CREATE TABLE IF NOT EXISTS audit_logs (
		day text,
		id timeuuid,
		user_id text,
		role text,
		action text,
		resource text,
		resource_id text,
		status int,
		ip_address text,
		user_agent text,
		request_id text,
		success boolean,
		timestamp timestamp,
		PRIMARY KEY ((day), id)
	) WITH CLUSTERING ORDER BY (id DESC)`

const insertAudit = `
	INSERT INTO audit_logs (
		day, id, user_id, role, action, resource, resource_id,
		status, ip_address, user_agent, request_id, success, timestamp
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectAudit = `
	SELECT id, user_id, role, action, resource, resource_id,
		status, ip_address, user_agent, request_id, success, timestamp
	FROM audit_logs WHERE day = ?`

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

type ScyllaSink struct {
	session *gocql.Session
}

func NewScyllaSink(session *gocql.Session) *ScyllaSink {
	return &ScyllaSink{session: session}
}

// Migrate creates the audit table when missing.
func (s *ScyllaSink) Migrate(ctx context.Context) error {
	return errors.Wrap(s.session.Query(createAuditTable).WithContext(ctx).Exec(), "creating audit_logs")
}

func (s *ScyllaSink) Record(ctx context.Context, e models.AuditLog) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	id := gocql.UUIDFromTime(e.Timestamp)

	err := s.session.Query(insertAudit,
		dayKey(e.Timestamp), id, e.UserID, e.Role, e.Action, e.Resource, e.ResourceID,
		e.Status, e.IPAddress, e.UserAgent, e.RequestID, e.Success, e.Timestamp,
	).WithContext(ctx).Exec()
	return errors.Wrap(err, "inserting audit log")
}

// List reads one day partition (today when q.Day is zero) and filters it.
func (s *ScyllaSink) List(ctx context.Context, q Query) ([]models.AuditLog, error) {
	day := q.Day
	if day.IsZero() {
		day = time.Now()
	}

	iter := s.session.Query(selectAudit, dayKey(day)).WithContext(ctx).PageSize(q.limit()).Iter()
	out := []models.AuditLog{}
	var (
		e  models.AuditLog
		id gocql.UUID
	)
	for len(out) < q.limit() && iter.Scan(&id, &e.UserID, &e.Role, &e.Action, &e.Resource, &e.ResourceID,
		&e.Status, &e.IPAddress, &e.UserAgent, &e.RequestID, &e.Success, &e.Timestamp) {
		e.ID = id.String()
		if q.matches(e) {
			out = append(out, e)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrap(err, "reading audit logs")
	}
	return out, nil
}
