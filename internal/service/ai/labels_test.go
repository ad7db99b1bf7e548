package ai

import "testing"

func TestClassLabel(t *testing.T) {
	tests := map[int]string{
		1:  "person",
		17: "cat",
		18: "dog",
		12: "unknown12",
	}
	for id, want := range tests {
		if got := ClassLabel(id); got != want {
			t.Errorf("ClassLabel(%d) = %q, want %q", id, got, want)
		}
	}
}

func TestKnownClass(t *testing.T) {
	if !KnownClass("person") {
		t.Error("person should be known")
	}
	if KnownClass("osoba") {
		t.Error("osoba should not be known")
	}
}
