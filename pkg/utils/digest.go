package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

const (
	Sha256Algorithm = HashAlgorithm("sha256")
)

type HashAlgorithm string

func (a HashAlgorithm) newHash() (hash.Hash, error) {
	switch a {
	case Sha256Algorithm:
		return sha256.New(), nil
	}
	return nil, fmt.Errorf("%w: unsupported digest algorithm: %s", ErrBadRequest, a)
}

type Digest struct {
	alg HashAlgorithm
	hex string
}

// HashBytes computes the digest of data.
func HashBytes(algorithm HashAlgorithm, data []byte) (Digest, error) {
	h, err := algorithm.newHash()
	if err != nil {
		return Digest{}, err
	}
	h.Write(data)
	return Digest{alg: algorithm, hex: hex.EncodeToString(h.Sum(nil))}, nil
}

func (d Digest) Hex() string {
	return d.hex
}

func (d Digest) String() string {
	return string(d.alg) + ":" + d.hex
}
