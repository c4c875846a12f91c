// Package cache provee un KV con TTL y soporte multi-backend.
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (distribuido, para producción)
//
// grantd lo usa como backend del CredentialStore kv (registros JSON de
// clients, owners, tokens y codes).
package cache

import (
	"context"
	"time"
)

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL opcional.
	// Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key.
	Delete(ctx context.Context, key string) error

	// Exists verifica si una key existe.
	Exists(ctx context.Context, key string) (bool, error)

	// Apply ejecuta un batch de escrituras como una unidad: en Redis van
	// dentro de un MULTI/EXEC, en memoria bajo un solo lock. Ningún lector
	// observa el batch a medias.
	Apply(ctx context.Context, ops []Op) error

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error
}

// Op es una escritura dentro de un Apply. Con Delete en true, Value y TTL
// se ignoran.
type Op struct {
	Key    string
	Value  string
	TTL    time.Duration
	Delete bool
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string // Prefijo para todas las keys
}

// Errores de cache.
var (
	ErrNotFound = errNotFound{}
)

type errNotFound struct{}

func (e errNotFound) Error() string { return "cache: key not found" }

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New crea un cliente de cache según la configuración.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	case "memory", "":
		return NewMemory(cfg.Prefix), nil
	default:
		return NewMemory(cfg.Prefix), nil
	}
}
