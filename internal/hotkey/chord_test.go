package hotkey

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"
)

func TestParseChord(t *testing.T) {
	cases := []struct {
		in   string
		want Chord
	}{
		{"ctrl_r+alt_gr", Chord{"ctrl_r", "alt_gr"}},
		{"Ctrl + Shift + Space", Chord{"ctrl", "shift", "space"}},
		{"cmd+option+r", Chord{"win", "alt", "r"}},
		{"altgr+F9", Chord{"alt_gr", "f9"}},
		{"kp5", Chord{"numpad5"}},
		{"ctrl+ctrl+a", Chord{"ctrl", "a"}},
		{"escape", Chord{"esc"}},
	}
	for _, tc := range cases {
		got, err := ParseChord(tc.in)
		if err != nil {
			t.Fatalf("ParseChord(%q): %v", tc.in, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("ParseChord(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseChordRejects(t *testing.T) {
	for _, in := range []string{"", "ctrl+", "ctrl+hyper", "f25", "numpad12"} {
		if _, err := ParseChord(in); err == nil {
			t.Fatalf("ParseChord(%q) accepted", in)
		}
	}
}

func TestKeyMatches(t *testing.T) {
	cases := []struct {
		chord, physical Key
		want            bool
	}{
		{"ctrl", "ctrl_l", true},
		{"ctrl", "ctrl_r", true},
		{"ctrl_r", "ctrl_l", false},
		{"alt_r", "alt_gr", true},
		{"alt_gr", "alt_r", true},
		{"alt", "alt_gr", true},
		{"shift", "ctrl_l", false},
		{"a", "a", true},
	}
	for _, tc := range cases {
		if got := tc.chord.Matches(tc.physical); got != tc.want {
			t.Errorf("%s.Matches(%s) = %v", tc.chord, tc.physical, got)
		}
	}
}

func TestSplit(t *testing.T) {
	c, _ := ParseChord("ctrl+shift+space")
	mods, main, err := c.Split()
	if err != nil || main != "space" || len(mods) != 2 {
		t.Fatalf("mods=%v main=%s err=%v", mods, main, err)
	}
	c, _ = ParseChord("ctrl_r+alt_gr")
	if _, main, _ := c.Split(); main != "" {
		t.Fatalf("main = %s", main)
	}
	c, _ = ParseChord("a+b")
	if _, _, err := c.Split(); err == nil {
		t.Fatal("two main keys accepted")
	}
}

// The machine must load on hosts without a display, so this package stays
// free of OS hotkey backends.
func TestNoHotkeyBackendImports(t *testing.T) {
	files, err := filepath.Glob("*.go")
	if err != nil {
		t.Fatal(err)
	}
	fset := token.NewFileSet()
	for _, name := range files {
		if strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, name, nil, parser.ImportsOnly)
		if err != nil {
			t.Fatal(err)
		}
		for _, imp := range f.Imports {
			path, _ := strconv.Unquote(imp.Path.Value)
			if strings.HasPrefix(path, "golang.design/x/hotkey") || strings.HasSuffix(path, "/hotkey/listener") {
				t.Errorf("%s imports %s", name, path)
			}
		}
	}
}
