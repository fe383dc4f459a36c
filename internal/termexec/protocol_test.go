package termexec

import "testing"

func TestParseCancelFrame(t *testing.T) {
	cases := []struct {
		msg      string
		wantStep string
		wantOK   bool
	}{
		{"__CANCEL__", "", true},
		{"__CANCEL__:encode", "encode", true},
		{"hello", "", false},
		{"", "", false},
		{"__CANCEL__:", "", true},
	}
	for _, c := range cases {
		step, ok := parseCancelFrame(c.msg)
		if ok != c.wantOK || step != c.wantStep {
			t.Errorf("parseCancelFrame(%q) = (%q, %v), want (%q, %v)", c.msg, step, ok, c.wantStep, c.wantOK)
		}
	}
}

func TestOutputTag(t *testing.T) {
	got := string(outputTag("encode"))
	want := "[OUTPUT:encode]"
	if got != want {
		t.Errorf("outputTag() = %q, want %q", got, want)
	}
}
