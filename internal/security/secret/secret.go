// Package secret implementa el hashing PBKDF2 de passwords y client secrets.
// Determinista: mismos (secreto, salt, params) producen siempre el mismo hash,
// que se compara byte a byte en tiempo constante contra el valor almacenado.
package secret

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// Params parametriza el derivador.
type Params struct {
	Rounds int              // iteraciones PBKDF2
	KeyLen int              // largo de salida en bytes
	Digest func() hash.Hash // digest subyacente
}

// Default son los parámetros por omisión del engine.
var Default = Params{Rounds: 1000, KeyLen: 32, Digest: sha256.New}

// Hash deriva el secreto con el salt dado y devuelve hex de largo fijo
// (2*KeyLen caracteres). Función pura, sin efectos.
func Hash(p Params, plain, salt string) string {
	if p.Rounds <= 0 {
		p.Rounds = Default.Rounds
	}
	if p.KeyLen <= 0 {
		p.KeyLen = Default.KeyLen
	}
	digest := p.Digest
	if digest == nil {
		digest = Default.Digest
	}
	dk := pbkdf2.Key([]byte(plain), []byte(salt), p.Rounds, p.KeyLen, digest)
	return hex.EncodeToString(dk)
}

// Equal compara dos hashes en tiempo constante.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// DigestByName resuelve el digest configurado por nombre.
// Se resuelve una sola vez al construir el engine, no por llamada.
func DigestByName(name string) (func() hash.Hash, error) {
	switch name {
	case "", "sha256":
		return sha256.New, nil
	case "sha1":
		return sha1.New, nil
	case "sha512":
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("secret: unknown digest %q", name)
	}
}
