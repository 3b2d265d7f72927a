// Package threshold implements t-of-n Ed25519 signing.  A dealer
// splits one signing key into shares; any t share holders then run
// two rounds (nonce commitments, then signature shares) and the
// coordinator aggregates a signature that verifies against the
// ordinary Ed25519 group public key.
package threshold

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"filippo.io/edwards25519"
	"github.com/pkg/errors"
)

var ErrBadShare = errors.New("threshold: invalid share")

// A Share is one participant's piece of the group signing scalar.
// Index is the participant identifier and is never zero.
type Share struct {
	Index  uint16
	Secret *edwards25519.Scalar
}

// ParseShare parses the "index:hexscalar" form produced by String.
func ParseShare(s string) (Share, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return Share{}, errors.Wrap(ErrBadShare, "missing index")
	}
	idx, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || idx == 0 {
		return Share{}, errors.Wrapf(ErrBadShare, "index %q", parts[0])
	}
	raw, err := hex.DecodeString(parts[1])
	if err != nil {
		return Share{}, errors.Wrap(ErrBadShare, err.Error())
	}
	sc, err := edwards25519.NewScalar().SetCanonicalBytes(raw)
	if err != nil {
		return Share{}, errors.Wrap(ErrBadShare, err.Error())
	}
	return Share{Index: uint16(idx), Secret: sc}, nil
}

func (s Share) String() string {
	return fmt.Sprintf("%d:%x", s.Index, s.Secret.Bytes())
}

// Public returns the share's verifying key, Secret times the base
// point.
func (s Share) Public() *edwards25519.Point {
	return new(edwards25519.Point).ScalarBaseMult(s.Secret)
}

// Output of a dealer split.
type KeySet struct {
	GroupKey  [32]byte
	Threshold int
	Shares    []Share
}

// SecretScalar expands an Ed25519 seed into its signing scalar, as
// RFC 8032 does.
func SecretScalar(seed []byte) (*edwards25519.Scalar, error) {
	h := sha512.Sum512(seed)
	return edwards25519.NewScalar().SetBytesWithClamping(h[:32])
}

func randomScalar() (*edwards25519.Scalar, error) {
	var b [64]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, err
	}
	return edwards25519.NewScalar().SetUniformBytes(b[:])
}

func scalarFromIndex(i uint16) *edwards25519.Scalar {
	var b [32]byte
	b[0], b[1] = byte(i), byte(i>>8)
	s, err := edwards25519.NewScalar().SetCanonicalBytes(b[:])
	if err != nil {
		panic(err)
	}
	return s
}

// Split divides the signing key of an Ed25519 seed into n shares,
// any t of which can sign.  The group key equals the seed's ordinary
// Ed25519 public key.
func Split(seed []byte, t, n int) (*KeySet, error) {
	if t < 1 || n < t || n > 0xffff {
		return nil, fmt.Errorf("threshold: cannot split %d-of-%d", t, n)
	}
	secret, err := SecretScalar(seed)
	if err != nil {
		return nil, err
	}
	coeffs := []*edwards25519.Scalar{secret}
	for i := 1; i < t; i++ {
		c, err := randomScalar()
		if err != nil {
			return nil, err
		}
		coeffs = append(coeffs, c)
	}

	ks := &KeySet{Threshold: t}
	copy(ks.GroupKey[:], new(edwards25519.Point).ScalarBaseMult(secret).Bytes())
	for i := 1; i <= n; i++ {
		x := scalarFromIndex(uint16(i))
		// Horner evaluation of the polynomial at x.
		y := edwards25519.NewScalar().Set(coeffs[t-1])
		for j := t - 2; j >= 0; j-- {
			y.MultiplyAdd(y, x, coeffs[j])
		}
		ks.Shares = append(ks.Shares, Share{Index: uint16(i), Secret: y})
	}
	return ks, nil
}

// Lagrange coefficient at zero for participant i within set.
func lagrange(i uint16, set []uint16) (*edwards25519.Scalar, error) {
	num := scalarFromIndex(1)
	den := scalarFromIndex(1)
	xi := scalarFromIndex(i)
	found := false
	for _, j := range set {
		if j == i {
			found = true
			continue
		}
		xj := scalarFromIndex(j)
		num.Multiply(num, xj)
		den.Multiply(den, new(edwards25519.Scalar).Subtract(xj, xi))
	}
	if !found {
		return nil, fmt.Errorf("threshold: participant %d not in signing set", i)
	}
	return num.Multiply(num, den.Invert(den)), nil
}

// Combine recovers the group secret from at least t shares.  Signing
// never needs this; it exists to check a split.
func Combine(shares []Share) (*edwards25519.Scalar, error) {
	set := make([]uint16, len(shares))
	for i, s := range shares {
		set[i] = s.Index
	}
	acc := edwards25519.NewScalar()
	for _, s := range shares {
		l, err := lagrange(s.Index, set)
		if err != nil {
			return nil, err
		}
		acc.MultiplyAdd(l, s.Secret, acc)
	}
	return acc, nil
}
