package domain

import (
	"bytes"
	"math/big"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// ss58Prefix is the context string mixed into every SS58 checksum.
var ss58Prefix = []byte("SS58PRE")

var base58Index = func() [128]int8 {
	var idx [128]int8
	for i := range idx {
		idx[i] = -1
	}
	for i, c := range base58Alphabet {
		idx[c] = int8(i)
	}
	return idx
}()

func base58Decode(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty string")
	}

	n := new(big.Int)
	radix := big.NewInt(58)
	for _, c := range s {
		if c >= 128 || base58Index[c] < 0 {
			return nil, errors.Errorf("invalid base58 character %q", c)
		}
		n.Mul(n, radix)
		n.Add(n, big.NewInt(int64(base58Index[c])))
	}

	// leading '1's encode leading zero bytes
	zeros := 0
	for _, c := range s {
		if c != '1' {
			break
		}
		zeros++
	}

	return append(make([]byte, zeros), n.Bytes()...), nil
}

// DecodeSS58 validates an SS58 account address and returns its 32-byte public
// key. Wraps ErrInvalidAddress on any malformation so planners can report the
// pair-level validation failure without submitting anything.
func DecodeSS58(address string) ([]byte, error) {
	raw, err := base58Decode(address)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidAddress, "%s: %v", address, err)
	}

	// simple-prefix addresses: 1 network byte + 32 key bytes + 2 checksum bytes
	if len(raw) != 35 {
		return nil, errors.Wrapf(ErrInvalidAddress, "%s: unexpected length %d", address, len(raw))
	}

	body, checksum := raw[:33], raw[33:]
	h, err := blake2b.New512(nil)
	if err != nil {
		return nil, errors.Wrap(err, "init blake2b")
	}
	h.Write(ss58Prefix)
	h.Write(body)
	if !bytes.Equal(h.Sum(nil)[:2], checksum) {
		return nil, errors.Wrapf(ErrInvalidAddress, "%s: checksum mismatch", address)
	}

	return body[1:], nil
}

// IsValidSS58 reports whether the address decodes and passes its checksum.
func IsValidSS58(address string) bool {
	_, err := DecodeSS58(address)
	return err == nil
}
