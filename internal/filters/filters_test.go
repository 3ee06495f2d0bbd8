package filters_test

import (
	"testing"

	"github.com/snehjoshi/replayconsole/internal/filters"
	"github.com/snehjoshi/replayconsole/internal/types"
)

func TestDefault_ShowsEverything(t *testing.T) {
	fs := filters.Default()
	for _, lvl := range []types.Level{types.LevelError, types.LevelWarn, types.LevelInfo, types.LevelDebug, types.LevelLog} {
		if !filters.LevelEnabled(fs, lvl) {
			t.Errorf("level %s disabled by default", lvl)
		}
	}
	if fs.Text != "" {
		t.Errorf("default text = %q, want empty", fs.Text)
	}
	if !fs.NodeModules {
		t.Error("nodemodules hidden by default")
	}
	if filters.LevelEnabled(fs, "verbose") {
		t.Error("unknown level must not be enabled")
	}
}

func TestReduce_Toggle(t *testing.T) {
	fs := filters.Reduce(filters.Default(), types.ToggleFilter(types.FilterWarn))
	if fs.Warn {
		t.Fatal("warn still enabled after toggle")
	}
	fs = filters.Reduce(fs, types.ToggleFilter(types.FilterWarn))
	if !fs.Warn {
		t.Fatal("warn disabled after second toggle")
	}

	before := fs
	fs = filters.Reduce(fs, types.ToggleFilter("bogus"))
	if fs != before {
		t.Fatalf("unknown filter changed state: %+v", fs)
	}
}

func TestReduce_ClearAndReset(t *testing.T) {
	fs := filters.Default()
	fs = filters.Reduce(fs, types.ToggleFilter(types.FilterLog))
	fs = filters.Reduce(fs, types.SetFilterText("hello"))

	reset := filters.Reduce(fs, types.ResetDefaultFilters())
	if !reset.Log {
		t.Error("reset did not restore log filter")
	}
	if reset.Text != "hello" {
		t.Errorf("reset dropped text: %q", reset.Text)
	}

	cleared := filters.Reduce(fs, types.ClearFilters())
	if cleared != filters.Default() {
		t.Errorf("clear = %+v, want defaults", cleared)
	}
}

func TestReduce_IgnoresOtherActions(t *testing.T) {
	fs := filters.Reduce(filters.Default(), types.ToggleFilter(types.FilterError))
	got := filters.Reduce(fs, types.ClearMessages())
	if got != fs {
		t.Fatalf("non-filter action changed filters: %+v", got)
	}
}

func TestMatcher(t *testing.T) {
	cases := []struct {
		text    string
		subject string
		pass    bool
	}{
		{"", "anything", true},
		{"foo", "a FOO b", true},
		{"foo", "bar", false},
		{"-foo", "a foo b", false},
		{"-foo", "bar", true},
		{"/^fo+$/", "FOOO", true},
		{"/^fo+$/", "xfoo", false},
		{"  Foo  ", "foo", true},
		// Lookahead is not supported; the term falls back to a substring match.
		{"/(?=x)/", "has /(?=x)/ in it", true},
		{"/(?=x)/", "x", false},
	}
	for _, c := range cases {
		m := filters.NewMatcher(c.text)
		if got := m.Pass(m.Match(c.subject)); got != c.pass {
			t.Errorf("text %q subject %q: pass = %v, want %v", c.text, c.subject, got, c.pass)
		}
	}
}
