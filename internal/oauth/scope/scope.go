// Package scope implementa el modelo de permisos jerárquicos.
//
// Un scope es una ruta ordenada de segmentos separados por ':' con un
// modificador opcional después de '#':
//
//	profile
//	profile:read
//	photos:albums#own
//
// Un scope más corto cubre a los más largos bajo su prefijo: "profile"
// permite "profile:read" pero no al revés. Un scope sin modificador no
// restringe el modificador del candidato; con modificador, solo permite
// candidatos con el mismo modificador.
package scope

import (
	"fmt"
	"regexp"
	"strings"
)

// Reglas de nombre por segmento (ver también el modificador):
// - Minúsculas, empieza y termina en [a-z0-9].
// - Caracteres intermedios [a-z0-9_.-].
// - Largo 1..64.
var segmentRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9_\.-]{0,62}[a-z0-9])?$`)

// Scope es un valor inmutable: segmentos + modificador opcional.
type Scope struct {
	segments []string
	modifier string
}

// Parse interpreta un scope string. Falla con formato inválido.
func Parse(s string) (Scope, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Scope{}, fmt.Errorf("scope: empty scope string")
	}

	var mod string
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		mod = raw[i+1:]
		raw = raw[:i]
		if mod == "" || strings.ContainsAny(mod, ":#") || !segmentRe.MatchString(mod) {
			return Scope{}, fmt.Errorf("scope: invalid modifier %q", s)
		}
	}

	parts := strings.Split(raw, ":")
	for _, p := range parts {
		if !segmentRe.MatchString(p) {
			return Scope{}, fmt.Errorf("scope: invalid segment %q in %q", p, s)
		}
	}
	return Scope{segments: parts, modifier: mod}, nil
}

// MustParse es Parse con panic; solo para literales en tests y seeds.
func MustParse(s string) Scope {
	sc, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return sc
}

// ParseAll interpreta una lista de scope strings.
func ParseAll(ss []string) ([]Scope, error) {
	if len(ss) == 0 {
		return nil, nil
	}
	out := make([]Scope, 0, len(ss))
	for _, s := range ss {
		sc, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// String reconstruye la forma canónica del scope.
func (s Scope) String() string {
	out := strings.Join(s.segments, ":")
	if s.modifier != "" {
		out += "#" + s.modifier
	}
	return out
}

// Segments devuelve una copia de los segmentos.
func (s Scope) Segments() []string {
	out := make([]string, len(s.segments))
	copy(out, s.segments)
	return out
}

// Modifier devuelve el modificador ("" si no hay).
func (s Scope) Modifier() string { return s.modifier }

// Equal compara por valor (case-sensitive).
func (s Scope) Equal(o Scope) bool {
	if s.modifier != o.modifier || len(s.segments) != len(o.segments) {
		return false
	}
	for i := range s.segments {
		if s.segments[i] != o.segments[i] {
			return false
		}
	}
	return true
}

// Allows reporta si este scope es lo bastante amplio para cubrir candidate:
// los segmentos de s son prefijo exacto de los de candidate, y si s tiene
// modificador, candidate debe tener el mismo.
func (s Scope) Allows(candidate Scope) bool {
	if len(s.segments) > len(candidate.segments) {
		return false
	}
	for i := range s.segments {
		if s.segments[i] != candidate.segments[i] {
			return false
		}
	}
	if s.modifier != "" && s.modifier != candidate.modifier {
		return false
	}
	return true
}

// IsSubsetOrEqual reporta si este scope es igual o más estrecho que other.
// Es la relación inversa de Allows; se usa al estrechar scopes en refresh.
func (s Scope) IsSubsetOrEqual(other Scope) bool {
	return other.Allows(s)
}

// Set es una colección de scopes. El valor distinguido Any significa
// "sin restricción" y no es comparable por contenido con un Set vacío.
type Set struct {
	all    bool
	scopes []Scope
}

// Any es el sentinel "cualquier scope permitido".
var Any = Set{all: true}

// NewSet construye un Set a partir de scopes ya parseados.
func NewSet(scopes ...Scope) Set {
	out := make([]Scope, len(scopes))
	copy(out, scopes)
	return Set{scopes: out}
}

// ParseSet construye un Set desde strings.
func ParseSet(ss []string) (Set, error) {
	scopes, err := ParseAll(ss)
	if err != nil {
		return Set{}, err
	}
	return Set{scopes: scopes}, nil
}

// IsAny reporta si el set es el sentinel sin restricción.
func (st Set) IsAny() bool { return st.all }

// Len devuelve la cantidad de scopes (0 para Any).
func (st Set) Len() int { return len(st.scopes) }

// Scopes devuelve una copia de los miembros.
func (st Set) Scopes() []Scope {
	out := make([]Scope, len(st.scopes))
	copy(out, st.scopes)
	return out
}

// Strings devuelve los miembros en forma string.
func (st Set) Strings() []string {
	if len(st.scopes) == 0 {
		return nil
	}
	out := make([]string, len(st.scopes))
	for i, s := range st.scopes {
		out[i] = s.String()
	}
	return out
}

// Allows reporta si algún miembro del set cubre a candidate.
// Any cubre todo.
func (st Set) Allows(candidate Scope) bool {
	if st.all {
		return true
	}
	for _, s := range st.scopes {
		if s.Allows(candidate) {
			return true
		}
	}
	return false
}

// AllowsAll reporta si cada required está cubierto por algún miembro.
func (st Set) AllowsAll(required []Scope) bool {
	for _, r := range required {
		if !st.Allows(r) {
			return false
		}
	}
	return true
}

// ContainsSubsetOf reporta si candidate es subset-or-equal de algún miembro.
func (st Set) ContainsSubsetOf(candidate Scope) bool {
	if st.all {
		return true
	}
	for _, s := range st.scopes {
		if candidate.IsSubsetOrEqual(s) {
			return true
		}
	}
	return false
}
