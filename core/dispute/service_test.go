package dispute_test

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/trezcool/hudhurio/core"
	"github.com/trezcool/hudhurio/core/attendance"
	"github.com/trezcool/hudhurio/core/audit"
	"github.com/trezcool/hudhurio/core/dispute"
	"github.com/trezcool/hudhurio/core/geo"
	emailsvc "github.com/trezcool/hudhurio/services/email"
	logsvc "github.com/trezcool/hudhurio/services/logger"
	inmemdb "github.com/trezcool/hudhurio/storage/database/inmem"
)

type testDeps struct {
	svc      *dispute.Service
	repo     dispute.Repository
	attSvc   *attendance.Service
	attRepo  attendance.Repository
	auditSvc *audit.Service
	mailSvc  interface{ SentMessages() []*core.EmailMessage }
}

func setup(t *testing.T, auditRepo ...audit.Repository) testDeps {
	t.Helper()

	db := inmemdb.NewDB()
	repo := inmemdb.NewDisputeRepository(db)
	attRepo := inmemdb.NewAttendanceRepository(db)
	logger := logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	logger.Enable(false)

	var aRepo audit.Repository = inmemdb.NewAuditRepository(db)
	if len(auditRepo) > 0 {
		aRepo = auditRepo[0]
	}
	auditSvc := audit.NewService(aRepo)
	mailSvc := emailsvc.NewConsoleServiceMock()
	conf := &core.Config{AdminEmail: "admin@school.test", FrontendBaseURL: "https://app.school.test"}

	return testDeps{
		svc:      dispute.NewService(repo, attRepo, auditSvc, mailSvc, logger, conf),
		repo:     repo,
		attSvc:   attendance.NewService(attRepo, inmemdb.NewDeviceRepository(db), logger),
		attRepo:  attRepo,
		auditSvc: auditSvc,
		mailSvc:  mailSvc,
	}
}

// unverifiedRecord clocks a subject in from outside the fence, yielding a
// record eligible for dispute.
func unverifiedRecord(t *testing.T, deps testDeps) attendance.Record {
	t.Helper()
	ctx := context.Background()

	if _, err := deps.attSvc.SetGeofence(ctx, attendance.Geofence{
		SchoolID:     "sch1",
		Center:       geo.Point{Lat: 6.5250, Lng: 3.3800},
		RadiusMeters: 200,
	}); err != nil {
		t.Fatalf("SetGeofence() error = %v", err)
	}
	rec, err := deps.attSvc.ClockIn(ctx, attendance.ClockEvent{
		SchoolID:  "sch1",
		SubjectID: "stu1",
		Location:  &geo.Point{Lat: 6.6000, Lng: 3.4000},
	})
	if err != nil {
		t.Fatalf("ClockIn() error = %v", err)
	}
	if rec.LocationVerified {
		t.Fatal("ClockIn() record unexpectedly verified")
	}
	return rec
}

func newDispute(rec attendance.Record) dispute.NewDispute {
	return dispute.NewDispute{
		SchoolID:     rec.SchoolID,
		AttendanceID: rec.ID,
		SubjectID:    rec.SubjectID,
		Reason:       "GPS drift indoors, I was in the main hall",
	}
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		deps := setup(t)
		rec := unverifiedRecord(t, deps)

		d, err := deps.svc.Submit(ctx, newDispute(rec))
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if d.Status != dispute.StatusPending {
			t.Errorf("Submit() status = %s, want pending", d.Status)
		}
		if d.DistanceMeters != rec.DistanceMeters {
			t.Errorf("Submit() distance = %v, want %v from the record", d.DistanceMeters, rec.DistanceMeters)
		}

		// the dispute and its audit entry are a pair
		entries, err := deps.auditSvc.Feed(ctx, "sch1", nil)
		if err != nil {
			t.Fatalf("Feed() error = %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("Feed() returned %d entries, want 1", len(entries))
		}
		e := entries[0]
		if e.Action != audit.ActionDisputeSubmitted || e.EntityID != d.ID {
			t.Errorf("Feed() entry = %+v, want DISPUTE_SUBMITTED for %s", e, d.ID)
		}
		if !strings.Contains(e.Details, "away)") {
			t.Errorf("Feed() entry details = %q, want the measured distance", e.Details)
		}

		// the school admin is notified
		if msgs := deps.mailSvc.SentMessages(); len(msgs) != 1 {
			t.Errorf("SentMessages() returned %d messages, want 1", len(msgs))
		}
	})

	t.Run("long reason is excerpted in audit details", func(t *testing.T) {
		deps := setup(t)
		rec := unverifiedRecord(t, deps)

		nd := newDispute(rec)
		nd.Reason = strings.Repeat("x", 200)
		if _, err := deps.svc.Submit(ctx, nd); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}

		entries, _ := deps.auditSvc.Feed(ctx, "sch1", nil)
		if len(entries) != 1 {
			t.Fatalf("Feed() returned %d entries, want 1", len(entries))
		}
		if strings.Contains(entries[0].Details, strings.Repeat("x", 51)) {
			t.Errorf("Feed() entry details carry the full reason: %q", entries[0].Details)
		}
	})

	t.Run("unknown record", func(t *testing.T) {
		deps := setup(t)

		_, err := deps.svc.Submit(ctx, dispute.NewDispute{
			SchoolID:     "sch1",
			AttendanceID: "nope",
			SubjectID:    "stu1",
			Reason:       "GPS drift",
		})
		if _, ok := err.(*core.ValidationError); !ok {
			t.Errorf("Submit() error = %v, want *core.ValidationError", err)
		}
	})

	t.Run("record of another subject", func(t *testing.T) {
		deps := setup(t)
		rec := unverifiedRecord(t, deps)

		nd := newDispute(rec)
		nd.SubjectID = "stu2"
		_, err := deps.svc.Submit(ctx, nd)
		if _, ok := err.(*core.ValidationError); !ok {
			t.Errorf("Submit() error = %v, want *core.ValidationError", err)
		}
	})

	t.Run("verified record cannot be disputed", func(t *testing.T) {
		deps := setup(t)
		rec := unverifiedRecord(t, deps)
		if err := deps.attRepo.MarkRecordVerified(ctx, rec.ID); err != nil {
			t.Fatalf("MarkRecordVerified() error = %v", err)
		}

		_, err := deps.svc.Submit(ctx, newDispute(rec))
		if _, ok := err.(*core.ValidationError); !ok {
			t.Errorf("Submit() error = %v, want *core.ValidationError", err)
		}
	})

	t.Run("one open dispute per record", func(t *testing.T) {
		deps := setup(t)
		rec := unverifiedRecord(t, deps)

		if _, err := deps.svc.Submit(ctx, newDispute(rec)); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		_, err := deps.svc.Submit(ctx, newDispute(rec))
		if _, ok := err.(*core.ValidationError); !ok {
			t.Errorf("Submit() error = %v, want *core.ValidationError", err)
		}
	})

	t.Run("failed audit append rolls the dispute back", func(t *testing.T) {
		deps := setup(t, failingAuditRepo{})
		rec := unverifiedRecord(t, deps)

		if _, err := deps.svc.Submit(ctx, newDispute(rec)); err == nil {
			t.Fatal("Submit() should fail when the audit append fails")
		}

		ds, err := deps.svc.Query(ctx, "sch1", nil)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(ds) != 0 {
			t.Errorf("Query() returned %d disputes, want none left behind", len(ds))
		}
	})
}

func TestService_Review(t *testing.T) {
	ctx := context.Background()

	submit := func(t *testing.T, deps testDeps) (attendance.Record, dispute.Dispute) {
		rec := unverifiedRecord(t, deps)
		d, err := deps.svc.Submit(ctx, newDispute(rec))
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		return rec, d
	}

	t.Run("approve verifies the record", func(t *testing.T) {
		deps := setup(t)
		rec, d := submit(t, deps)

		d, err := deps.svc.Review(ctx, d.ID, dispute.ReviewDispute{
			ReviewerID: "adm1",
			Approve:    true,
			Note:       "security camera confirms presence",
		})
		if err != nil {
			t.Fatalf("Review() error = %v", err)
		}
		if d.Status != dispute.StatusApproved || d.ReviewedBy != "adm1" {
			t.Errorf("Review() = %+v, want approved by adm1", d)
		}

		got, err := deps.attRepo.GetRecordByID(ctx, rec.ID)
		if err != nil {
			t.Fatalf("GetRecordByID() error = %v", err)
		}
		if !got.LocationVerified {
			t.Error("Review() approval did not verify the record")
		}

		entries, _ := deps.auditSvc.Feed(ctx, "sch1", nil)
		var found bool
		for _, e := range entries {
			if e.Action == audit.ActionDisputeApproved && e.EntityID == d.ID {
				found = true
			}
		}
		if !found {
			t.Error("Review() approval missing its audit entry")
		}
	})

	t.Run("reject leaves the record untouched", func(t *testing.T) {
		deps := setup(t)
		rec, d := submit(t, deps)

		d, err := deps.svc.Review(ctx, d.ID, dispute.ReviewDispute{ReviewerID: "adm1", Note: "no supporting evidence"})
		if err != nil {
			t.Fatalf("Review() error = %v", err)
		}
		if d.Status != dispute.StatusRejected {
			t.Errorf("Review() status = %s, want rejected", d.Status)
		}

		got, _ := deps.attRepo.GetRecordByID(ctx, rec.ID)
		if got.LocationVerified {
			t.Error("Review() rejection verified the record")
		}
	})

	t.Run("terminal states are final", func(t *testing.T) {
		deps := setup(t)
		_, d := submit(t, deps)

		if _, err := deps.svc.Review(ctx, d.ID, dispute.ReviewDispute{ReviewerID: "adm1"}); err != nil {
			t.Fatalf("Review() error = %v", err)
		}
		_, err := deps.svc.Review(ctx, d.ID, dispute.ReviewDispute{ReviewerID: "adm2", Approve: true})
		if _, ok := err.(*core.ValidationError); !ok {
			t.Errorf("Review() error = %v, want *core.ValidationError", err)
		}
	})

	t.Run("rejected record can be disputed again", func(t *testing.T) {
		deps := setup(t)
		rec, d := submit(t, deps)

		if _, err := deps.svc.Review(ctx, d.ID, dispute.ReviewDispute{ReviewerID: "adm1"}); err != nil {
			t.Fatalf("Review() error = %v", err)
		}
		if _, err := deps.svc.Submit(ctx, newDispute(rec)); err != nil {
			t.Errorf("Submit() after rejection error = %v", err)
		}
	})

	t.Run("unknown dispute", func(t *testing.T) {
		deps := setup(t)

		_, err := deps.svc.Review(ctx, "nope", dispute.ReviewDispute{ReviewerID: "adm1"})
		if !errors.Is(err, dispute.ErrNotFound) {
			t.Errorf("Review() error = %v, want ErrNotFound", err)
		}
	})
}

// failingAuditRepo refuses every append; used to exercise compensation.
type failingAuditRepo struct{}

func (failingAuditRepo) CreateEntry(context.Context, audit.Entry, ...core.DBExecutor) (audit.Entry, error) {
	return audit.Entry{}, errors.New("audit store down")
}

func (failingAuditRepo) QueryEntries(context.Context, string, *audit.QueryFilter, ...core.DBExecutor) ([]audit.Entry, error) {
	return nil, nil
}
