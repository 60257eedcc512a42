package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/hudhurio/core/audit"
	inmemdb "github.com/trezcool/hudhurio/storage/database/inmem"
)

func TestService_Log(t *testing.T) {
	ctx := context.Background()
	svc := audit.NewService(inmemdb.NewAuditRepository(inmemdb.NewDB()))

	t.Run("missing fields", func(t *testing.T) {
		if _, err := svc.Log(ctx, audit.Entry{SchoolID: "sch1"}); err != audit.ErrMissingFields {
			t.Errorf("Log() error = %v, want ErrMissingFields", err)
		}
	})

	t.Run("stamps created at", func(t *testing.T) {
		e, err := svc.Log(ctx, audit.Entry{
			SchoolID: "sch1",
			ActorID:  "adm1",
			Action:   audit.ActionGeofenceUpdated,
			Category: audit.CategorySettings,
		})
		if err != nil {
			t.Fatalf("Log() error = %v", err)
		}
		if e.ID == "" || e.CreatedAt.IsZero() {
			t.Errorf("Log() entry = %+v, want id and timestamp set", e)
		}
	})
}

func TestService_Feed(t *testing.T) {
	ctx := context.Background()
	svc := audit.NewService(inmemdb.NewAuditRepository(inmemdb.NewDB()))

	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	seed := []audit.Entry{
		{SchoolID: "sch1", ActorID: "adm1", Action: audit.ActionGeofenceUpdated, Category: audit.CategorySettings, CreatedAt: base},
		{SchoolID: "sch1", ActorID: "stu1", Action: audit.ActionDisputeSubmitted, Category: audit.CategorySecurity, CreatedAt: base.Add(time.Hour)},
		{SchoolID: "sch2", ActorID: "adm9", Action: audit.ActionGeofenceUpdated, Category: audit.CategorySettings, CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, e := range seed {
		if _, err := svc.Log(ctx, e); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}

	t.Run("scoped to school, most recent first", func(t *testing.T) {
		entries, err := svc.Feed(ctx, "sch1", nil)
		if err != nil {
			t.Fatalf("Feed() error = %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("Feed() returned %d entries, want 2", len(entries))
		}
		if entries[0].Action != audit.ActionDisputeSubmitted {
			t.Errorf("Feed() first entry = %s, want the most recent", entries[0].Action)
		}
	})

	t.Run("filter by category", func(t *testing.T) {
		entries, err := svc.Feed(ctx, "sch1", &audit.QueryFilter{Category: audit.CategorySecurity})
		if err != nil {
			t.Fatalf("Feed() error = %v", err)
		}
		if len(entries) != 1 || entries[0].Category != audit.CategorySecurity {
			t.Errorf("Feed() = %+v, want only Security entries", entries)
		}
	})
}
