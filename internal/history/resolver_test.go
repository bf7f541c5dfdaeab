package history

import (
	"strings"
	"testing"
	"time"
)

func resolverFixture(t *testing.T) *Resolver {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	oldest := sampleRecord("id-oldest", "Go generics question", now.Add(-48*time.Hour))
	recent := sampleRecord("id-recent", "Rust lifetimes", now.Add(-24*time.Hour))
	recent.UpdatedAt = now.Add(time.Hour)
	middle := sampleRecord("id-middle", "Go channels", now)

	store := &memStore{records: []Record{middle, recent, oldest}}
	h, err := New(store)
	if err != nil {
		t.Fatal(err)
	}
	return NewResolver(h)
}

func TestResolver_Resolve(t *testing.T) {
	r := resolverFixture(t)

	tests := []struct {
		ref     string
		want    int
		wantErr string
	}{
		{"@last", 1, ""},
		{"@LAST", 1, ""},
		{"@first", 2, ""},
		{"1", 0, ""},
		{"3", 2, ""},
		{"0", -1, "out of range"},
		{"4", -1, "out of range"},
		{"id-oldest", 2, ""},
		{"rust", 1, ""},
		{"go", -1, "multiple conversations"},
		{"python", -1, "no conversation matching"},
		{"  ", -1, "empty reference"},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := r.Resolve(tt.ref)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Resolve(%q) error = %v, want containing %q", tt.ref, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.ref, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %d, want %d", tt.ref, got, tt.want)
			}
		})
	}
}

func TestResolver_NoConversations(t *testing.T) {
	h, err := New(&memStore{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewResolver(h).Resolve("@last"); err == nil {
		t.Error("Resolve() expected error with no conversations")
	}
}

func TestListAliases(t *testing.T) {
	out := ListAliases()
	for _, want := range []string{"@last", "@first", "1, 2, 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("ListAliases() missing %q", want)
		}
	}
}
