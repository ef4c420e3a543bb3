package tokens

import "testing"

func TestEstimate(t *testing.T) {
	if Estimate("") != 0 {
		t.Fatalf("empty text must be zero tokens")
	}
	if Estimate("hi") != 1 {
		t.Fatalf("short text must round up to one token")
	}
	if got := Estimate("abcdefghijklmnop"); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
}

func TestCountIsMonotonicInText(t *testing.T) {
	short := Count("hello world")
	long := Count("hello world, this is a considerably longer sentence about testing")
	if short <= 0 {
		t.Fatalf("expected positive count")
	}
	if long <= short {
		t.Fatalf("longer text must count more tokens: %d vs %d", short, long)
	}
}
