package core

import "time"

// Client es una aplicación registrada. Inmutable salvo revocación explícita;
// el engine solo lee copias (posiblemente cacheadas).
type Client struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	SecretHash  *string    `json:"secret_hash,omitempty"` // nil => cliente público
	SecretSalt  string     `json:"secret_salt,omitempty"`
	RedirectURI *string    `json:"redirect_uri,omitempty"`
	Scopes      []string   `json:"scopes,omitempty"` // vacío => scoping no soportado
	CreatedAt   time.Time  `json:"created_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

// IsPublic reporta si el cliente no puede custodiar un secreto
// (apps nativas/móviles). No tiene hash almacenado.
func (c *Client) IsPublic() bool { return c.SecretHash == nil }

// SupportsScoping reporta si el cliente declara scopes permitidos.
func (c *Client) SupportsScoping() bool { return len(c.Scopes) > 0 }

// Owner es el resource owner autenticable. El engine nunca lo muta.
type Owner struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Salt         string    `json:"salt"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Token es la credencial bearer emitida. No se muta in place: un refresh
// produce un registro nuevo que comparte el refresh token y el linaje.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken *string   `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"` // "bearer"
	ClientID     string    `json:"client_id"`
	OwnerID      *string   `json:"owner_id,omitempty"` // nil en grants solo-cliente
	Scopes       []string  `json:"scopes,omitempty"`   // nil => sin scoping
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reporta si el token venció respecto de now.
func (t *Token) Expired(now time.Time) bool { return !now.Before(t.ExpiresAt) }

// Lifetime devuelve la duración original de emisión.
// El refresh recalcula la expiración como now + Lifetime (renovación,
// no extensión desde la emisión original).
func (t *Token) Lifetime() time.Duration { return t.ExpiresAt.Sub(t.IssuedAt) }

// AuthorizationCode es la credencial intermedia de un solo uso.
type AuthorizationCode struct {
	Code        string    `json:"code"`
	ClientID    string    `json:"client_id"`
	OwnerID     string    `json:"owner_id"`
	Scopes      []string  `json:"scopes,omitempty"`
	RedirectURI string    `json:"redirect_uri"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Exchanged   bool      `json:"exchanged"` // true una vez emitido un token desde el code
}

// Expired reporta si el code venció respecto de now.
func (c *AuthorizationCode) Expired(now time.Time) bool { return !now.Before(c.ExpiresAt) }
