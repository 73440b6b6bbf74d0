package wizard

import "testing"

func TestPositiveInt(t *testing.T) {
	if err := positiveInt("5"); err != nil {
		t.Fatalf("expected 5 to be valid: %v", err)
	}
	if err := positiveInt("0"); err == nil {
		t.Fatal("expected 0 to be rejected")
	}
	if err := positiveInt("abc"); err == nil {
		t.Fatal("expected non-numeric input to be rejected")
	}
}

func TestNonNegativeInt(t *testing.T) {
	if err := nonNegativeInt("0"); err != nil {
		t.Fatalf("expected 0 to be valid: %v", err)
	}
	if err := nonNegativeInt("-1"); err == nil {
		t.Fatal("expected negative input to be rejected")
	}
}

func TestMaxInt(t *testing.T) {
	if got := maxInt(3, 7); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := maxInt(9, 2); got != 9 {
		t.Fatalf("expected 9, got %d", got)
	}
}
