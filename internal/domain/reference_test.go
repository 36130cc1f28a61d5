package domain

import (
	"regexp"
	"testing"
	"time"
)

var referencePattern = regexp.MustCompile(`^PAY-\d+-[A-Z0-9]{6}$`)

func TestReferenceGenerator_Unique(t *testing.T) {
	gen := NewReferenceGenerator()
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		ref, err := gen.Next()
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if !referencePattern.MatchString(ref) {
			t.Fatalf("unexpected reference shape %q", ref)
		}
		if _, dup := seen[ref]; dup {
			t.Fatalf("duplicate reference %q after %d", ref, i)
		}
		seen[ref] = struct{}{}
	}
}

func TestReferenceGenerator_FrozenClockStillUnique(t *testing.T) {
	gen := NewReferenceGenerator()
	fixed := time.UnixMilli(1_700_000_000_000)
	gen.now = func() time.Time { return fixed }

	seen := make(map[string]struct{})
	for i := 0; i < 2000; i++ {
		ref, err := gen.Next()
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if _, dup := seen[ref]; dup {
			t.Fatalf("duplicate reference %q", ref)
		}
		seen[ref] = struct{}{}
	}
}

func TestReferenceGenerator_Reserve(t *testing.T) {
	gen := NewReferenceGenerator()
	gen.now = func() time.Time { return time.UnixMilli(1) }
	if !gen.Reserve("PAY-1-ABCDEF") {
		t.Fatal("expected first reserve to succeed")
	}
	if gen.Reserve("PAY-1-ABCDEF") {
		t.Fatal("expected second reserve to fail")
	}
}

func TestReferenceGenerator_KeepsOnlyCurrentWindow(t *testing.T) {
	gen := NewReferenceGenerator()
	clock := time.UnixMilli(1_700_000_000_000)
	gen.now = func() time.Time { return clock }

	for i := 0; i < 50; i++ {
		if _, err := gen.Next(); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if gen.Size() != 50 {
		t.Fatalf("expected 50 references in the window, got %d", gen.Size())
	}

	clock = clock.Add(time.Millisecond)
	ref, err := gen.Next()
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if gen.Size() != 1 {
		t.Fatalf("expected older window to be dropped, got %d", gen.Size())
	}

	// A clock that steps back keeps stamping the newest window.
	clock = clock.Add(-time.Second)
	back, err := gen.Next()
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if back[:len("PAY-1700000000001")] != ref[:len("PAY-1700000000001")] {
		t.Fatalf("expected timestamp not to go backwards, got %q after %q", back, ref)
	}
}

func TestValidReference(t *testing.T) {
	valid := []string{"PAY-1700000000000-AB12CD", "order_42", "abc"}
	invalid := []string{"", "ab", "has space", "semi;colon", "PAY-<script>"}
	for _, ref := range valid {
		if !ValidReference(ref) {
			t.Fatalf("expected %q to be valid", ref)
		}
	}
	for _, ref := range invalid {
		if ValidReference(ref) {
			t.Fatalf("expected %q to be invalid", ref)
		}
	}
}
