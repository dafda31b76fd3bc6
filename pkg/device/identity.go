package device

import (
	"github.com/backkem/sesame/pkg/session"
	"github.com/google/uuid"
)

// PublicKeySize is the length of the lock's raw P-256 public key (X || Y).
const PublicKeySize = 64

// Identity is what the client knows about one lock.
type Identity struct {
	// UUID identifies the lock; it is advertised over BLE.
	UUID uuid.UUID

	// PublicKey is the lock's public key, used only by registration.
	PublicKey [PublicKeySize]byte

	// Secret is the 16-byte device secret shared at registration.
	// Empty means the lock is not registered with this client.
	Secret []byte
}

// HasSecret reports whether the identity carries a device secret.
func (id Identity) HasSecret() bool {
	return len(id.Secret) > 0
}

// Validate checks the identity. An empty secret is allowed.
func (id Identity) Validate() error {
	if len(id.Secret) != 0 && len(id.Secret) != session.SecretSize {
		return ErrInvalidSecret
	}
	return nil
}
