package signer

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	envelopeTypeTx = 2
	maxSignatures  = 20
	// hint + length prefix + ed25519 signature
	decoratedSignatureSize = 4 + 4 + ed25519.SignatureSize
)

// ErrMalformedEnvelope is returned for payloads that are not a v1 transaction envelope.
var ErrMalformedEnvelope = errors.New("malformed transaction envelope")

// DecoratedSignature is a signature with the last four bytes of the signer's key.
type DecoratedSignature struct {
	Hint      [4]byte
	Signature []byte
}

// Envelope is a base64 XDR TransactionEnvelope of type ENVELOPE_TYPE_TX, split into
// the opaque transaction body and its signatures. Only ed25519 signatures are
// recognised in the signature list.
type Envelope struct {
	Tx         []byte
	Signatures []DecoratedSignature
}

// ParseEnvelope decodes a base64 XDR envelope.
func ParseEnvelope(encoded string) (*Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if len(raw) < 12 || len(raw)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedEnvelope, len(raw))
	}
	if kind := binary.BigEndian.Uint32(raw); kind != envelopeTypeTx {
		return nil, fmt.Errorf("%w: envelope type %d is not a v1 transaction", ErrMalformedEnvelope, kind)
	}

	// The signature list closes the envelope; find the count that explains the tail.
	body := raw[4:]
	for n := 0; n <= maxSignatures; n++ {
		trailer := 4 + n*decoratedSignatureSize
		if trailer >= len(body) {
			break
		}
		start := len(body) - trailer
		if binary.BigEndian.Uint32(body[start:]) != uint32(n) {
			continue
		}
		sigs, ok := parseSignatures(body[start+4:], n)
		if !ok {
			continue
		}
		return &Envelope{Tx: append([]byte(nil), body[:start]...), Signatures: sigs}, nil
	}
	return nil, fmt.Errorf("%w: signature list not found", ErrMalformedEnvelope)
}

func parseSignatures(b []byte, n int) ([]DecoratedSignature, bool) {
	sigs := make([]DecoratedSignature, 0, n)
	for i := 0; i < n; i++ {
		chunk := b[i*decoratedSignatureSize : (i+1)*decoratedSignatureSize]
		if binary.BigEndian.Uint32(chunk[4:8]) != ed25519.SignatureSize {
			return nil, false
		}
		var sig DecoratedSignature
		copy(sig.Hint[:], chunk[:4])
		sig.Signature = append([]byte(nil), chunk[8:]...)
		sigs = append(sigs, sig)
	}
	return sigs, true
}

// Hash is the transaction hash the network signs: SHA-256 over the network id,
// the envelope type and the transaction body.
func (e *Envelope) Hash(networkID [32]byte) [32]byte {
	payload := make([]byte, 0, len(networkID)+4+len(e.Tx))
	payload = append(payload, networkID[:]...)
	payload = binary.BigEndian.AppendUint32(payload, envelopeTypeTx)
	payload = append(payload, e.Tx...)
	return sha256.Sum256(payload)
}

// Encode renders the envelope back to base64 XDR.
func (e *Envelope) Encode() string {
	out := make([]byte, 0, 8+len(e.Tx)+len(e.Signatures)*decoratedSignatureSize)
	out = binary.BigEndian.AppendUint32(out, envelopeTypeTx)
	out = append(out, e.Tx...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(e.Signatures)))
	for _, sig := range e.Signatures {
		out = append(out, sig.Hint[:]...)
		out = binary.BigEndian.AppendUint32(out, uint32(len(sig.Signature)))
		out = append(out, sig.Signature...)
	}
	return base64.StdEncoding.EncodeToString(out)
}

// NetworkID derives the network id from its passphrase.
func NetworkID(passphrase string) [32]byte {
	return sha256.Sum256([]byte(passphrase))
}

func hint(pub ed25519.PublicKey) [4]byte {
	var h [4]byte
	copy(h[:], pub[len(pub)-4:])
	return h
}
