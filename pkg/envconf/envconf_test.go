package envconf_test

import (
	"slices"
	"testing"

	"github.com/JaimeStill/mentor/pkg/envconf"
)

func TestOverrides(t *testing.T) {
	t.Setenv("TEST_ENVCONF_STRING", "redis:6379")
	t.Setenv("TEST_ENVCONF_INT", "42")
	t.Setenv("TEST_ENVCONF_BAD_INT", "forty-two")
	t.Setenv("TEST_ENVCONF_BOOL", "true")
	t.Setenv("TEST_ENVCONF_FLOAT", "0.25")
	t.Setenv("TEST_ENVCONF_LIST", "a, b,, c ")

	s := "localhost:6379"
	envconf.String(&s, "TEST_ENVCONF_STRING")
	if s != "redis:6379" {
		t.Errorf("String = %q", s)
	}

	n := 7
	envconf.Int(&n, "TEST_ENVCONF_INT")
	if n != 42 {
		t.Errorf("Int = %d, want 42", n)
	}
	envconf.Int(&n, "TEST_ENVCONF_BAD_INT")
	if n != 42 {
		t.Errorf("unparseable value should be ignored, got %d", n)
	}

	var b bool
	envconf.Bool(&b, "TEST_ENVCONF_BOOL")
	if !b {
		t.Error("Bool should be true")
	}

	var f float64
	envconf.Float(&f, "TEST_ENVCONF_FLOAT")
	if f != 0.25 {
		t.Errorf("Float = %v", f)
	}

	var list []string
	envconf.List(&list, "TEST_ENVCONF_LIST")
	if !slices.Equal(list, []string{"a", "b", "c"}) {
		t.Errorf("List = %v", list)
	}
}

func TestUnsetAndUnnamed(t *testing.T) {
	s := "keep"
	envconf.String(&s, "")
	envconf.String(&s, "TEST_ENVCONF_NEVER_SET")
	if s != "keep" {
		t.Errorf("String = %q, want keep", s)
	}
}

func TestMerge(t *testing.T) {
	s := "base"
	envconf.Merge(&s, "")
	if s != "base" {
		t.Errorf("zero overlay should not apply, got %q", s)
	}
	envconf.Merge(&s, "overlay")
	if s != "overlay" {
		t.Errorf("Merge = %q, want overlay", s)
	}

	n := 3
	envconf.Merge(&n, 0)
	if n != 3 {
		t.Errorf("zero overlay should not apply, got %d", n)
	}
}
