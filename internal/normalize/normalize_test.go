package normalize

import "testing"

func TestNormalizeCode(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain", raw: "CANR054", want: "CANR054"},
		{name: "lowercase", raw: "canr054", want: "CANR054"},
		{name: "underscores stripped", raw: "CANR_TISL24_054", want: "CANRTISL24054"},
		{name: "hyphens and spaces stripped", raw: "canr-tisl24 054", want: "CANRTISL24054"},
		{name: "surrounding whitespace", raw: "  B-12 \t", want: "B12"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.raw, FieldCode)
			if got.IsEmpty() {
				t.Fatalf("Normalize(%q) returned Empty", tc.raw)
			}
			if got.String() != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.raw, got.String(), tc.want)
			}
		})
	}
}

func TestNormalizeText(t *testing.T) {
	got := Normalize("  Rhinolophus   affinis ", FieldText)
	want := "rhinolophus affinis"
	if got.String() != want {
		t.Fatalf("Normalize text = %q, want %q", got.String(), want)
	}
}

func TestNormalizeBlankIsEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t\n"} {
		if key := Normalize(raw, FieldCode); !key.IsEmpty() {
			t.Fatalf("Normalize(%q) = %q, want Empty", raw, key.String())
		}
		if key := Normalize(raw, FieldText); !key.IsEmpty() {
			t.Fatalf("Normalize(%q, text) = %q, want Empty", raw, key.String())
		}
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	a := Normalize("CANR_TISL24_054", FieldCode)
	b := Normalize("canr tisl24-054", FieldCode)
	if a != b {
		t.Fatalf("equivalent raw values produced distinct keys: %q vs %q", a.String(), b.String())
	}
}

func TestJoin(t *testing.T) {
	src := Normalize("R0123", FieldCode)
	typ := Normalize("bat", FieldText)
	joined := Join(src, typ)
	if joined.IsEmpty() {
		t.Fatal("Join of non-empty parts returned Empty")
	}
	if joined == src || joined == typ {
		t.Fatal("composite key must differ from its parts")
	}
	if again := Join(src, typ); again != joined {
		t.Fatalf("Join not deterministic: %q vs %q", joined.String(), again.String())
	}
}

func TestJoinPartialIsEmpty(t *testing.T) {
	src := Normalize("R0123", FieldCode)
	if key := Join(src, Empty); !key.IsEmpty() {
		t.Fatalf("Join with empty part = %q, want Empty", key.String())
	}
	if key := Join(); !key.IsEmpty() {
		t.Fatal("Join of nothing must be Empty")
	}
}

func TestEmptyNeverMatchesEmpty(t *testing.T) {
	a := Normalize("", FieldCode)
	b := Normalize("   ", FieldCode)
	if !a.IsEmpty() || !b.IsEmpty() {
		t.Fatal("blank input must normalize to Empty")
	}
	// Both are the sentinel; the resolver skips Empty keys entirely, so
	// equality of two Empty values never implies an entity match.
}
