/*
Copyright 2026 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package relational implements the RelationalStore capability on Postgres: the authoritative half of the dual-write coordinator.
// Production callers open the pool with pgx's stdlib adapter (see Open);
// tests drive the same *sqlx.DB against DATA-DOG/go-sqlmock.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"

	"github.com/baggageops/core/pkg/domain"
	shrderrors "github.com/baggageops/core/pkg/shared/errors"
	"github.com/baggageops/core/pkg/store/reconcile"
)

// Store wraps a *sqlx.DB with the queries the dual-write coordinator and
// query endpoints need. It holds no business logic beyond translating Go
// values to SQL statements and back; transition validity is decided by
// pkg/coordinator.
type Store struct {
	db *sqlx.DB
}

// Open dials Postgres through pgx's database/sql adapter and wraps it in
// sqlx for named-query convenience on the read side.
func Open(ctx context.Context, dsn string) (*Store, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, shrderrors.DatabaseError("open connection", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		return nil, shrderrors.DatabaseError("ping", err)
	}
	return &Store{db: sqlx.NewDb(conn, "pgx")}, nil
}

// New wraps an already-open *sql.DB (a sqlmock connection in tests, a
// stdlib-adapted pgx pool in production).
func New(conn *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(conn, "pgx")}
}

// UpsertBag inserts or updates a Bag row.
func (s *Store) UpsertBag(ctx context.Context, bag *domain.Bag) error {
	const q = `
INSERT INTO bags (bag_tag, routing, status, current_location, risk_score, passenger_ref, pnr, created_at, updated_at, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (bag_tag) DO UPDATE SET
  routing = EXCLUDED.routing,
  status = EXCLUDED.status,
  current_location = EXCLUDED.current_location,
  risk_score = EXCLUDED.risk_score,
  passenger_ref = EXCLUDED.passenger_ref,
  pnr = EXCLUDED.pnr,
  updated_at = EXCLUDED.updated_at,
  version = EXCLUDED.version
WHERE bags.version < EXCLUDED.version`

	_, err := s.db.ExecContext(ctx, q,
		bag.BagTag, pqStringArray(bag.Routing), bag.Status, bag.CurrentLocation, bag.RiskScore,
		bag.PassengerRef, bag.PNR, bag.CreatedAt, bag.UpdatedAt, bag.Version,
	)
	if err != nil {
		return shrderrors.DatabaseError("upsert bag", err)
	}
	return nil
}

// RecordEventResult reports whether record_event actually applied a new
// row or observed a prior application of the same event_id.
type RecordEventResult struct {
	Applied        bool
	AlreadyApplied bool
}

// RecordEvent implements the write algorithm's relational
// half: insert the scan row (idempotent on event_id), then recompute the
// bag's derived fields within the same transaction. Graph projection is
// the caller's responsibility (pkg/coordinator), kept out of this
// transaction since the two stores are never committed atomically.
func (s *Store) RecordEvent(ctx context.Context, scan domain.ScanEvent, newStatus domain.BagStatus, newLocation string, now time.Time) (RecordEventResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return RecordEventResult{}, shrderrors.DatabaseError("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
INSERT INTO scan_events (event_id, bag_tag, scan_type, location, timestamp, raw_payload)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (event_id) DO NOTHING`,
		scan.EventID, scan.BagTag, scan.ScanType, scan.Location, scan.Timestamp, scan.RawPayload,
	)
	if err != nil {
		return RecordEventResult{}, shrderrors.DatabaseError("insert scan event", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return RecordEventResult{}, shrderrors.DatabaseError("read rows affected", err)
	}
	if rows == 0 {
		// Already applied: nothing else to do, commit the no-op and return.
		if err := tx.Commit(); err != nil {
			return RecordEventResult{}, shrderrors.DatabaseError("commit no-op transaction", err)
		}
		return RecordEventResult{AlreadyApplied: true}, nil
	}

	// Timestamp regressions are tolerated but must not move status/location
	// backwards: only update derived fields when this event is not older
	// than the bag's last known update.
	_, err = tx.ExecContext(ctx, `
UPDATE bags SET
  current_location = CASE WHEN $2 >= updated_at THEN $3 ELSE current_location END,
  status = CASE WHEN $2 >= updated_at THEN $4 ELSE status END,
  updated_at = GREATEST(updated_at, $2),
  version = version + 1
WHERE bag_tag = $1`,
		scan.BagTag, now, newLocation, newStatus,
	)
	if err != nil {
		return RecordEventResult{}, shrderrors.DatabaseError("update bag derived fields", err)
	}

	if err := tx.Commit(); err != nil {
		return RecordEventResult{}, shrderrors.DatabaseError("commit record_event transaction", err)
	}
	return RecordEventResult{Applied: true}, nil
}

// RecordRisk inserts an append-only RiskAssessment and updates the bag's
// current risk_score.
func (s *Store) RecordRisk(ctx context.Context, assessment domain.RiskAssessment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return shrderrors.DatabaseError("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
INSERT INTO risk_assessments (bag_tag, assessed_at, risk_score, risk_level, factors, confidence, algorithm_version)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		assessment.BagTag, assessment.AssessedAt, assessment.RiskScore, assessment.RiskLevel,
		pqStringArray(assessment.Factors), assessment.Confidence, assessment.AlgorithmVersion,
	)
	if err != nil {
		return shrderrors.DatabaseError("insert risk assessment", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE bags SET risk_score = $2, version = version + 1 WHERE bag_tag = $1`,
		assessment.BagTag, assessment.RiskScore)
	if err != nil {
		return shrderrors.DatabaseError("update bag risk score", err)
	}

	if err := tx.Commit(); err != nil {
		return shrderrors.DatabaseError("commit record_risk transaction", err)
	}
	return nil
}

// OpenCase inserts an ExceptionCase row.
func (s *Store) OpenCase(ctx context.Context, c domain.ExceptionCase) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO exception_cases (case_id, bag_tag, case_type, priority, status, assignee, sla_deadline, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.CaseID, c.BagTag, c.CaseType, c.Priority, c.Status, c.Assignee, c.SLADeadline, c.CreatedAt,
	)
	if err != nil {
		return shrderrors.DatabaseError("open exception case", err)
	}
	return nil
}

// ErrInvalidTransition is returned by UpdateCase when patch.Status would
// move a case backward out of a terminal state.
var ErrInvalidTransition = fmt.Errorf("invalid_transition")

// UpdateCase applies patch to the case if the transition is legal.
func (s *Store) UpdateCase(ctx context.Context, caseID string, newStatus domain.CaseStatus, entry domain.TimelineEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return shrderrors.DatabaseError("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current domain.CaseStatus
	if err := tx.GetContext(ctx, &current, `SELECT status FROM exception_cases WHERE case_id = $1 FOR UPDATE`, caseID); err != nil {
		return shrderrors.DatabaseError("read case status", err)
	}
	if current.Terminal() {
		return ErrInvalidTransition
	}

	_, err = tx.ExecContext(ctx, `UPDATE exception_cases SET status = $2 WHERE case_id = $1`, caseID, newStatus)
	if err != nil {
		return shrderrors.DatabaseError("update case status", err)
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO case_timeline_entries (case_id, at, actor, summary) VALUES ($1, $2, $3, $4)`,
		caseID, entry.At, entry.Actor, entry.Summary)
	if err != nil {
		return shrderrors.DatabaseError("append case timeline entry", err)
	}

	return tx.Commit()
}

// caseRow is the sqlx scan target for exception_cases.
type caseRow struct {
	CaseID      string    `db:"case_id"`
	BagTag      string    `db:"bag_tag"`
	CaseType    string    `db:"case_type"`
	Priority    string    `db:"priority"`
	Status      string    `db:"status"`
	Assignee    string    `db:"assignee"`
	SLADeadline time.Time `db:"sla_deadline"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r caseRow) toDomain() domain.ExceptionCase {
	return domain.ExceptionCase{
		CaseID:      r.CaseID,
		BagTag:      r.BagTag,
		CaseType:    r.CaseType,
		Priority:    domain.CasePriority(r.Priority),
		Status:      domain.CaseStatus(r.Status),
		Assignee:    r.Assignee,
		SLADeadline: r.SLADeadline,
		CreatedAt:   r.CreatedAt,
	}
}

// GetOpenCaseForBag reads bagTag's open or in_progress ExceptionCase, if
// any. idx_exception_cases_one_open_per_bag guarantees at most one row
// ever matches; this is the read side of that same invariant.
func (s *Store) GetOpenCaseForBag(ctx context.Context, bagTag string) (*domain.ExceptionCase, error) {
	var row caseRow
	err := s.db.GetContext(ctx, &row, `
SELECT * FROM exception_cases WHERE bag_tag = $1 AND status IN ('open', 'in_progress')`, bagTag)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, shrderrors.DatabaseError("get open case for bag", err)
	}
	c := row.toDomain()
	return &c, nil
}

// CreateCourierDispatch inserts a CourierDispatch row: pending_approval
// when the request-courier step flagged RequiresApproval, booked
// otherwise.
func (s *Store) CreateCourierDispatch(ctx context.Context, d domain.CourierDispatch) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO courier_dispatches (dispatch_id, bag_tag, destination_address, cost_estimate, status, requires_approval, approved_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.DispatchID, d.BagTag, d.DestinationAddress, d.CostEstimate, d.Status, d.RequiresApproval, d.ApprovedBy, d.CreatedAt,
	)
	if err != nil {
		return shrderrors.DatabaseError("create courier dispatch", err)
	}
	return nil
}

// courierDispatchRow is the sqlx scan target for courier_dispatches.
type courierDispatchRow struct {
	DispatchID         string    `db:"dispatch_id"`
	BagTag             string    `db:"bag_tag"`
	DestinationAddress string    `db:"destination_address"`
	CostEstimate       float64   `db:"cost_estimate"`
	Status             string    `db:"status"`
	RequiresApproval   bool      `db:"requires_approval"`
	ApprovedBy         string    `db:"approved_by"`
	CreatedAt          time.Time `db:"created_at"`
}

func (r courierDispatchRow) toDomain() domain.CourierDispatch {
	return domain.CourierDispatch{
		DispatchID:         r.DispatchID,
		BagTag:             r.BagTag,
		DestinationAddress: r.DestinationAddress,
		CostEstimate:       r.CostEstimate,
		Status:             domain.DispatchStatus(r.Status),
		RequiresApproval:   r.RequiresApproval,
		ApprovedBy:         r.ApprovedBy,
		CreatedAt:          r.CreatedAt,
	}
}

// ErrDispatchNotPendingApproval is returned by ResolveCourierApproval when
// dispatchID does not exist or is no longer waiting on a decision —
// already resolved by an earlier delivery of the same approval event, or
// never required one.
var ErrDispatchNotPendingApproval = fmt.Errorf("dispatch_not_pending_approval")

// ResolveCourierApproval applies an approval_granted/approval_denied
// decision to a pending_approval CourierDispatch. Denied moves straight to
// cancelled; granted moves to approved so the sink can book it with the
// courier service and advance it to booked itself once that succeeds.
func (s *Store) ResolveCourierApproval(ctx context.Context, dispatchID string, approved bool, approvedBy string) (domain.CourierDispatch, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.CourierDispatch{}, shrderrors.DatabaseError("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var row courierDispatchRow
	err = tx.GetContext(ctx, &row, `SELECT * FROM courier_dispatches WHERE dispatch_id = $1 FOR UPDATE`, dispatchID)
	if err == sql.ErrNoRows {
		return domain.CourierDispatch{}, ErrDispatchNotPendingApproval
	}
	if err != nil {
		return domain.CourierDispatch{}, shrderrors.DatabaseError("read courier dispatch", err)
	}
	if row.Status != string(domain.DispatchPendingApproval) {
		return domain.CourierDispatch{}, ErrDispatchNotPendingApproval
	}

	newStatus := domain.DispatchCancelled
	if approved {
		newStatus = domain.DispatchApproved
	}
	_, err = tx.ExecContext(ctx, `UPDATE courier_dispatches SET status = $2, approved_by = $3 WHERE dispatch_id = $1`,
		dispatchID, newStatus, approvedBy)
	if err != nil {
		return domain.CourierDispatch{}, shrderrors.DatabaseError("update courier dispatch status", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.CourierDispatch{}, shrderrors.DatabaseError("commit courier dispatch approval", err)
	}

	row.Status = string(newStatus)
	row.ApprovedBy = approvedBy
	return row.toDomain(), nil
}

// UpdateCourierDispatchStatus advances a dispatch to status. The sink uses
// this to record booked once an approved dispatch has actually been
// accepted by the courier service.
func (s *Store) UpdateCourierDispatchStatus(ctx context.Context, dispatchID string, status domain.DispatchStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE courier_dispatches SET status = $2 WHERE dispatch_id = $1`, dispatchID, status)
	if err != nil {
		return shrderrors.DatabaseError("update courier dispatch status", err)
	}
	return nil
}

// GetBag reads a bag snapshot by tag.
func (s *Store) GetBag(ctx context.Context, bagTag string) (*domain.Bag, error) {
	var row bagRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM bags WHERE bag_tag = $1`, bagTag)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, shrderrors.DatabaseError("get bag", err)
	}
	bag := row.toDomain()
	return &bag, nil
}

// BagFilter narrows ListBags per the GET /bags query parameters.
type BagFilter struct {
	Status   string
	RiskMin  *float64
	RiskMax  *float64
	Location string
	Limit    int
	Offset   int
}

// ListBags reads a page of bags matching filter.
func (s *Store) ListBags(ctx context.Context, f BagFilter) ([]domain.Bag, error) {
	query := `SELECT * FROM bags WHERE 1=1`
	args := []interface{}{}
	argN := 0
	add := func(clause string, val interface{}) {
		argN++
		query += fmt.Sprintf(" AND %s $%d", clause, argN)
		args = append(args, val)
	}
	if f.Status != "" {
		add("status =", f.Status)
	}
	if f.RiskMin != nil {
		add("risk_score >=", *f.RiskMin)
	}
	if f.RiskMax != nil {
		add("risk_score <=", *f.RiskMax)
	}
	if f.Location != "" {
		add("current_location =", f.Location)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	argN++
	query += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d", argN)
	args = append(args, limit)
	argN++
	query += fmt.Sprintf(" OFFSET $%d", argN)
	args = append(args, f.Offset)

	var rows []bagRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, shrderrors.DatabaseError("list bags", err)
	}
	bags := make([]domain.Bag, len(rows))
	for i, r := range rows {
		bags[i] = r.toDomain()
	}
	return bags, nil
}

// RecordReconciliationDebt inserts a debt row after exhausting graph
// projection retries.
func (s *Store) RecordReconciliationDebt(ctx context.Context, eventID, targetStore, reason string, firstFailedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO reconciliation_debts (event_id, target_store, reason, first_failed_at, resolved)
VALUES ($1, $2, $3, $4, false)
ON CONFLICT (event_id, target_store) DO UPDATE SET reason = EXCLUDED.reason`,
		eventID, targetStore, reason, firstFailedAt,
	)
	if err != nil {
		return shrderrors.DatabaseError("record reconciliation debt", err)
	}
	return nil
}

// debtRow is the sqlx scan target for reconciliation_debts.
type debtRow struct {
	EventID       string    `db:"event_id"`
	TargetStore   string    `db:"target_store"`
	Reason        string    `db:"reason"`
	FirstFailedAt time.Time `db:"first_failed_at"`
}

// ListOutstanding implements reconcile.Source: unresolved debts, oldest
// first so a stuck replay doesn't starve the rest of the batch.
func (s *Store) ListOutstanding(ctx context.Context, limit int) ([]reconcile.Debt, error) {
	var rows []debtRow
	err := s.db.SelectContext(ctx, &rows, `
SELECT event_id, target_store, reason, first_failed_at FROM reconciliation_debts
WHERE resolved = false ORDER BY first_failed_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, shrderrors.DatabaseError("list outstanding reconciliation debts", err)
	}
	debts := make([]reconcile.Debt, len(rows))
	for i, r := range rows {
		debts[i] = reconcile.Debt{EventID: r.EventID, TargetStore: r.TargetStore, Reason: r.Reason, FirstFailedAt: r.FirstFailedAt}
	}
	return debts, nil
}

// Resolve implements reconcile.Source.
func (s *Store) Resolve(ctx context.Context, eventID, targetStore string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE reconciliation_debts SET resolved = true WHERE event_id = $1 AND target_store = $2`, eventID, targetStore)
	if err != nil {
		return shrderrors.DatabaseError("resolve reconciliation debt", err)
	}
	return nil
}

// bagRow is the sqlx scan target for the bags table.
type bagRow struct {
	BagTag          string    `db:"bag_tag"`
	Routing         string    `db:"routing"`
	Status          string    `db:"status"`
	CurrentLocation string    `db:"current_location"`
	RiskScore       float64   `db:"risk_score"`
	PassengerRef    string    `db:"passenger_ref"`
	PNR             string    `db:"pnr"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
	Version         int64     `db:"version"`
}

func (r bagRow) toDomain() domain.Bag {
	return domain.Bag{
		BagTag:          r.BagTag,
		Routing:         splitPQStringArray(r.Routing),
		Status:          domain.BagStatus(r.Status),
		CurrentLocation: r.CurrentLocation,
		RiskScore:       r.RiskScore,
		PassengerRef:    r.PassengerRef,
		PNR:             r.PNR,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		Version:         r.Version,
	}
}
