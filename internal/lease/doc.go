// Package lease persists segment audio jobs and batch run leases in SQLite
// and enforces the claim/commit/fail protocol workers rely on.
//
// Every claim is a single conditional UPDATE, never a read-then-write, so two
// workers polling the same store cannot both hold the same job. Commit and
// fail are guarded by the job key fingerprint recorded at claim time; a stale
// holder gets ErrStaleLease instead of silently clobbering newer work. Jobs
// are never deleted; retries increment the attempt counter in place, and
// RequeueStale recovers work abandoned by a crashed worker.
//
// Treat this package as the single source of truth for lease semantics; when
// you add statuses or columns, update schema.sql and bump schemaVersion.
package lease
