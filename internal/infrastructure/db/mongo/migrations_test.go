package mongo

import (
	"testing"
)

func TestMigrationsAreOrderedAndUnique(t *testing.T) {
	seen := map[string]bool{}
	prev := ""
	for _, m := range Migrations() {
		if seen[m.Version] {
			t.Fatalf("duplicate migration version %s", m.Version)
		}
		seen[m.Version] = true
		if m.Version <= prev {
			t.Fatalf("migration %s out of order after %s", m.Version, prev)
		}
		if m.Up == nil || m.Down == nil {
			t.Fatalf("migration %s must be reversible", m.Version)
		}
		prev = m.Version
	}
}

func TestPendingSkipsApplied(t *testing.T) {
	all := Migrations()
	done := map[string]bool{all[0].Version: true}

	got := pending(all, done)
	if len(got) != len(all)-1 {
		t.Fatalf("expected %d pending, got %d", len(all)-1, len(got))
	}
	if got[0].Version != all[1].Version {
		t.Fatalf("expected %s first, got %s", all[1].Version, got[0].Version)
	}
}

func TestRollbackNewestFirst(t *testing.T) {
	all := Migrations()
	done := map[string]bool{}
	for _, m := range all {
		done[m.Version] = true
	}

	got := rollback(all, done, 1)
	if len(got) != 1 || got[0].Version != "20240706175445_drop_final_transcript_from_protocols" {
		t.Fatalf("unexpected rollback set: %+v", got)
	}

	got = rollback(all, done, 10)
	if len(got) != len(all) {
		t.Fatalf("expected every migration reverted, got %d", len(got))
	}
	if got[len(got)-1].Version != all[0].Version {
		t.Fatalf("expected oldest reverted last")
	}
}

func TestRollbackIgnoresUnapplied(t *testing.T) {
	all := Migrations()
	done := map[string]bool{all[0].Version: true}

	got := rollback(all, done, 2)
	if len(got) != 1 || got[0].Version != all[0].Version {
		t.Fatalf("unexpected rollback set: %+v", got)
	}
}
