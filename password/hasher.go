package password

import (
	"errors"
	"strings"
)

var (
	// ErrUnsupportedHash is returned when no backend recognises an encoded hash.
	ErrUnsupportedHash = errors.New("unsupported password hash format")
	// ErrMalformedHash is returned for a recognised but corrupt encoding.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrEmptyPassword is returned by Hash for an empty input.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrTooLong is returned when a backend cannot hash the full input.
	ErrTooLong = errors.New("password too long for hasher")
	// ErrInvalidConfig is returned by constructors.
	ErrInvalidConfig = errors.New("invalid password hasher configuration")
)

// Hasher is the password hashing capability.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// Upgrader is implemented by hashers that can tell when a stored hash was
// produced with weaker settings than the current ones.
type Upgrader interface {
	NeedsUpgrade(encoded string) (bool, error)
}

type backend interface {
	Hasher
	Upgrader
	recognises(encoded string) bool
}

// Multi hashes with Primary and verifies with whichever backend recognises the
// stored encoding.
type Multi struct {
	primary  backend
	backends []backend
}

// NewMulti returns a Multi. primary must also be listed implicitly; extra
// backends are tried in order for verification.
func NewMulti(primary Hasher, others ...Hasher) (*Multi, error) {
	p, ok := primary.(backend)
	if !ok {
		return nil, ErrInvalidConfig
	}
	m := &Multi{primary: p, backends: []backend{p}}
	for _, h := range others {
		b, ok := h.(backend)
		if !ok {
			return nil, ErrInvalidConfig
		}
		m.backends = append(m.backends, b)
	}
	return m, nil
}

// Hash uses the primary backend.
func (m *Multi) Hash(password string) (string, error) {
	return m.primary.Hash(password)
}

// Verify dispatches on the hash prefix.
func (m *Multi) Verify(password, encoded string) (bool, error) {
	b, err := m.pick(encoded)
	if err != nil {
		return false, err
	}
	return b.Verify(password, encoded)
}

// NeedsUpgrade is true for hashes from a non-primary backend or with weaker
// primary parameters.
func (m *Multi) NeedsUpgrade(encoded string) (bool, error) {
	b, err := m.pick(encoded)
	if err != nil {
		return false, err
	}
	if b != m.primary {
		return true, nil
	}
	return b.NeedsUpgrade(encoded)
}

func (m *Multi) pick(encoded string) (backend, error) {
	encoded = strings.TrimSpace(encoded)
	for _, b := range m.backends {
		if b.recognises(encoded) {
			return b, nil
		}
	}
	return nil, ErrUnsupportedHash
}
