package signer

import (
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
)

// Stellar strkey version bytes.
const (
	versionAccountID byte = 6 << 3  // G...
	versionSeed      byte = 18 << 3 // S...
)

const strKeyPayloadSize = 32

var (
	errInvalidStrKey = errors.New("invalid strkey")
	strKeyEncoding   = base32.StdEncoding.WithPadding(base32.NoPadding)
)

// encodeStrKey renders payload as version || payload || crc16 in base32.
func encodeStrKey(version byte, payload []byte) string {
	raw := make([]byte, 0, 1+len(payload)+2)
	raw = append(raw, version)
	raw = append(raw, payload...)
	raw = binary.LittleEndian.AppendUint16(raw, crc16(raw))
	return strKeyEncoding.EncodeToString(raw)
}

func decodeStrKey(version byte, s string) ([]byte, error) {
	raw, err := strKeyEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidStrKey, err)
	}
	if len(raw) != 1+strKeyPayloadSize+2 {
		return nil, fmt.Errorf("%w: length %d", errInvalidStrKey, len(raw))
	}
	if raw[0] != version {
		return nil, fmt.Errorf("%w: unexpected version byte", errInvalidStrKey)
	}
	body := raw[:1+strKeyPayloadSize]
	if crc16(body) != binary.LittleEndian.Uint16(raw[1+strKeyPayloadSize:]) {
		return nil, fmt.Errorf("%w: checksum mismatch", errInvalidStrKey)
	}
	return body[1:], nil
}

// crc16 is CRC-16/XMODEM.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
