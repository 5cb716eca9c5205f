package audit

import (
	"strings"
	"testing"
)

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("reading embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no embedded migration files")
	}

	ups := 0
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".up.sql") {
			ups++
			data, err := migrationsFS.ReadFile("migrations/" + name)
			if err != nil {
				t.Fatalf("reading %s: %v", name, err)
			}
			if !strings.Contains(string(data), "moderation_decisions") {
				t.Errorf("%s does not touch moderation_decisions", name)
			}
		}
		// golang-migrate requires every up migration to have a down pair.
		if strings.HasSuffix(name, ".up.sql") {
			down := strings.TrimSuffix(name, ".up.sql") + ".down.sql"
			if _, err := migrationsFS.ReadFile("migrations/" + down); err != nil {
				t.Errorf("missing down migration %s", down)
			}
		}
	}
	if ups == 0 {
		t.Error("no .up.sql migrations embedded")
	}
}

func TestNullIfEmpty(t *testing.T) {
	if v := nullIfEmpty(""); v.Valid {
		t.Error("empty string should map to NULL")
	}
	if v := nullIfEmpty("No spam allowed"); !v.Valid || v.String != "No spam allowed" {
		t.Errorf("non-empty string mapped to %+v", v)
	}
}
