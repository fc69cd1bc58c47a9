// Package signer holds the platform's trusted Stellar key. It is the only code
// that touches the key; callers get signed transaction envelopes and the signed
// transaction hash back for the audit trail.
package signer

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Network passphrases of the public Stellar networks.
const (
	TestNetworkPassphrase   = "Test SDF Network ; September 2015"
	PublicNetworkPassphrase = "Public Global Stellar Network ; September 2015"
)

// ErrNoKey is returned by FromSeed when no key material is configured.
var ErrNoKey = errors.New("platform signing key is not configured")

// Signed is the outcome of Sign.
type Signed struct {
	// XDR is the envelope with the platform signature appended, ready for relay.
	XDR string
	// Hash is the hex transaction hash the signature covers.
	Hash string
}

// PlatformSigner signs release transactions with the platform key.
type PlatformSigner struct {
	key       ed25519.PrivateKey
	address   string
	networkID [32]byte
}

// FromSeed loads a Stellar secret seed (S...) for the given network.
func FromSeed(seed, passphrase string) (*PlatformSigner, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return nil, ErrNoKey
	}
	raw, err := decodeStrKey(versionSeed, seed)
	if err != nil {
		return nil, fmt.Errorf("invalid platform signing key: %w", err)
	}
	return New(ed25519.NewKeyFromSeed(raw), passphrase), nil
}

// New wraps an existing key.
func New(key ed25519.PrivateKey, passphrase string) *PlatformSigner {
	return &PlatformSigner{
		key:       key,
		address:   encodeStrKey(versionAccountID, key.Public().(ed25519.PublicKey)),
		networkID: NetworkID(passphrase),
	}
}

// Address is the signer's account id (G...).
func (s *PlatformSigner) Address() string {
	return s.address
}

// Sign adds the platform signature to an unsigned (or partially signed) envelope.
func (s *PlatformSigner) Sign(unsignedXDR string) (*Signed, error) {
	if strings.TrimSpace(unsignedXDR) == "" {
		return nil, errors.New("nothing to sign")
	}
	env, err := ParseEnvelope(unsignedXDR)
	if err != nil {
		return nil, err
	}
	if len(env.Signatures) >= maxSignatures {
		return nil, fmt.Errorf("%w: envelope already carries %d signatures", ErrMalformedEnvelope, len(env.Signatures))
	}

	hash := env.Hash(s.networkID)
	env.Signatures = append(env.Signatures, DecoratedSignature{
		Hint:      hint(s.key.Public().(ed25519.PublicKey)),
		Signature: ed25519.Sign(s.key, hash[:]),
	})
	return &Signed{
		XDR:  env.Encode(),
		Hash: hex.EncodeToString(hash[:]),
	}, nil
}

// Verify checks that signedXDR carries a valid signature by address on the network
// identified by passphrase.
func Verify(signedXDR, address, passphrase string) (*Envelope, error) {
	pub, err := decodeStrKey(versionAccountID, address)
	if err != nil {
		return nil, fmt.Errorf("invalid signer address: %w", err)
	}
	env, err := ParseEnvelope(signedXDR)
	if err != nil {
		return nil, err
	}
	hash := env.Hash(NetworkID(passphrase))
	want := hint(pub)
	for _, sig := range env.Signatures {
		if sig.Hint == want && ed25519.Verify(pub, hash[:], sig.Signature) {
			return env, nil
		}
	}
	return nil, fmt.Errorf("no valid signature by %s", address)
}
