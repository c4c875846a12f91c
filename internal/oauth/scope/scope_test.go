package scope

import "testing"

func TestParse_Valid(t *testing.T) {
	valids := []string{
		"a",
		"profile",
		"profile:read",
		"email:read:e2e123",
		"a_b-c.d:scope2",
		"profile#staging",
		"orders:read#eu-west",
	}
	for _, v := range valids {
		s, err := Parse(v)
		if err != nil {
			t.Fatalf("expected valid: %q: %v", v, err)
		}
		if s.String() != v {
			t.Fatalf("round trip: got %q, want %q", s.String(), v)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	invalids := []string{
		"",
		":lead",
		"trail:",
		"bad space",
		"UPPER",
		"semicolon;hack",
		"a::b",     // segmento vacío
		"profile#", // modificador vacío
		"a#b#c",    // doble modificador
		"a#b:c",    // ':' dentro del modificador
		mkLen(65),  // segmento > 64
	}
	for _, v := range invalids {
		if _, err := Parse(v); err == nil {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}

func TestAllows_PrefixHierarchy(t *testing.T) {
	cases := []struct {
		holder, candidate string
		want              bool
	}{
		{"profile", "profile", true},
		{"profile", "profile:read", true},
		{"profile", "profile:read:deep", true},
		{"profile:read", "profile", false}, // más largo no cubre más corto
		{"profile", "email", false},
		{"profile", "profiles", false}, // prefijo de string no es prefijo de segmentos
		{"orders:read", "orders:read", true},
		{"orders:read", "orders:write", false},
	}
	for _, c := range cases {
		got := MustParse(c.holder).Allows(MustParse(c.candidate))
		if got != c.want {
			t.Fatalf("Allows(%q, %q) = %v, want %v", c.holder, c.candidate, got, c.want)
		}
	}
}

func TestAllows_Modifier(t *testing.T) {
	cases := []struct {
		holder, candidate string
		want              bool
	}{
		// sin modificador => no restringe
		{"profile", "profile#staging", true},
		{"profile", "profile:read#x", true},
		// con modificador => candidato debe tener el mismo
		{"profile#staging", "profile#staging", true},
		{"profile#staging", "profile:read#staging", true},
		{"profile#staging", "profile", false},
		{"profile#staging", "profile#prod", false},
	}
	for _, c := range cases {
		got := MustParse(c.holder).Allows(MustParse(c.candidate))
		if got != c.want {
			t.Fatalf("Allows(%q, %q) = %v, want %v", c.holder, c.candidate, got, c.want)
		}
	}
}

func TestIsSubsetOrEqual_InverseOfAllows(t *testing.T) {
	a := MustParse("profile:read")
	b := MustParse("profile")
	if !a.IsSubsetOrEqual(b) {
		t.Fatalf("profile:read debería ser subset de profile")
	}
	if b.IsSubsetOrEqual(a) {
		t.Fatalf("profile no es subset de profile:read")
	}
	if !a.IsSubsetOrEqual(a) {
		t.Fatalf("un scope es subset de sí mismo")
	}
}

func TestSet_Any(t *testing.T) {
	if !Any.IsAny() {
		t.Fatalf("Any.IsAny() = false")
	}
	empty := NewSet()
	if empty.IsAny() {
		t.Fatalf("set vacío no es Any")
	}
	if !Any.Allows(MustParse("profile:read#x")) {
		t.Fatalf("Any debe permitir cualquier scope")
	}
	if empty.Allows(MustParse("profile")) {
		t.Fatalf("set vacío no permite nada")
	}
}

func TestSet_AllowsAll(t *testing.T) {
	set, err := ParseSet([]string{"profile", "orders:read"})
	if err != nil {
		t.Fatalf("ParseSet: %v", err)
	}
	ok := set.AllowsAll([]Scope{MustParse("profile:read"), MustParse("orders:read")})
	if !ok {
		t.Fatalf("esperaba cobertura completa")
	}
	ok = set.AllowsAll([]Scope{MustParse("profile:read"), MustParse("orders:write")})
	if ok {
		t.Fatalf("orders:write no está cubierto")
	}
}

func TestSet_ContainsSubsetOf(t *testing.T) {
	set, _ := ParseSet([]string{"profile"})
	if !set.ContainsSubsetOf(MustParse("profile:read")) {
		t.Fatalf("profile:read es subset de profile")
	}
	if set.ContainsSubsetOf(MustParse("orders")) {
		t.Fatalf("orders no es subset de profile")
	}
	if !Any.ContainsSubsetOf(MustParse("orders")) {
		t.Fatalf("Any contiene cualquier subset")
	}
}

func mkLen(total int) string {
	out := make([]byte, total)
	for i := range out {
		out[i] = 'a'
	}
	return string(out)
}
