package canonical

import (
	"strings"
	"testing"
)

func TestJSONSortsKeysRecursively(t *testing.T) {
	type inner struct {
		Zebra string `json:"zebra"`
		Apple string `json:"apple"`
	}
	type outer struct {
		Beta  inner  `json:"beta"`
		Alpha string `json:"alpha"`
	}

	v := outer{Beta: inner{Zebra: "z", Apple: "a"}, Alpha: "hello"}

	out, err := JSON(v)
	if err != nil {
		t.Fatalf("JSON() error: %v", err)
	}

	s := string(out)
	if !strings.HasSuffix(s, "\n") || strings.HasSuffix(s, "\n\n") {
		t.Fatalf("expected exactly one trailing newline, got %q", s)
	}
	if strings.Index(s, `"alpha"`) > strings.Index(s, `"beta"`) {
		t.Fatalf("expected alpha before beta in %q", s)
	}
	if strings.Index(s, `"apple"`) > strings.Index(s, `"zebra"`) {
		t.Fatalf("expected apple before zebra in %q", s)
	}
}

func TestJSONDeterministic(t *testing.T) {
	v := map[string]interface{}{"c": 1, "a": 2, "b": 3}
	a, err := JSON(v)
	if err != nil {
		t.Fatalf("JSON() error: %v", err)
	}
	b, err := JSON(v)
	if err != nil {
		t.Fatalf("JSON() error: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("expected repeated calls to be byte-identical:\n%s\nvs\n%s", a, b)
	}
}

func TestSHA256ConcatOrderMatters(t *testing.T) {
	a := SHA256Concat("aa", "bb")
	b := SHA256Concat("bb", "aa")
	if a == b {
		t.Fatalf("expected order-sensitive hash, got equal digests")
	}
}

func TestSHA256HexKnownValue(t *testing.T) {
	// sha256("") is a well-known constant.
	got := SHA256Hex([]byte(""))
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got != want {
		t.Fatalf("SHA256Hex(\"\") = %s, want %s", got, want)
	}
}
