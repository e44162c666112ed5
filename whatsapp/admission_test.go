package whatsapp

import "testing"

func TestAdmissionBound(t *testing.T) {
	a := NewAdmission(2)

	if !a.TryAdmit() || !a.TryAdmit() {
		t.Fatal("expected two admissions within the bound")
	}
	if a.TryAdmit() {
		t.Fatal("admitted past the bound")
	}
	if a.InFlight() != 2 {
		t.Fatalf("InFlight() = %d, want 2", a.InFlight())
	}

	a.Release()
	if !a.TryAdmit() {
		t.Fatal("slot not reusable after release")
	}
}

func TestAdmissionReleaseWithoutAdmit(t *testing.T) {
	a := NewAdmission(1)
	a.Release() // must not panic or underflow
	if !a.TryAdmit() {
		t.Fatal("expected admission after spurious release")
	}
	if a.TryAdmit() {
		t.Fatal("spurious release grew the bound")
	}
}

func TestAdmissionMinimumOne(t *testing.T) {
	a := NewAdmission(0)
	if !a.TryAdmit() {
		t.Fatal("expected at least one slot")
	}
	if a.TryAdmit() {
		t.Fatal("zero bound should clamp to one slot")
	}
}
