package threshold

import (
	"context"
	"crypto/sha512"
	"fmt"
	"sort"
	"sync"

	"filippo.io/edwards25519"
	"github.com/pkg/errors"
)

const contextString = "FROST-ED25519-SHA512-v1"

var ErrNonceReused = errors.New("threshold: commitment unknown or already used")

// Round-one output of a participant: encodings of its hiding and
// binding nonce commitments.
type Commitment struct {
	Index   uint16
	Hiding  [32]byte
	Binding [32]byte
}

// Round-two input: the message and the commitments of every
// participant in the signing set.
type SignRequest struct {
	Message     []byte
	Commitments []Commitment
}

func hashToScalar(parts ...[]byte) *edwards25519.Scalar {
	h := sha512.New()
	for _, p := range parts {
		h.Write(p)
	}
	s, err := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
	if err != nil {
		panic(err)
	}
	return s
}

func hashBytes(label string, msg []byte) []byte {
	h := sha512.New()
	h.Write([]byte(contextString + label))
	h.Write(msg)
	return h.Sum(nil)
}

func sortCommitments(cs []Commitment) ([]Commitment, error) {
	out := append([]Commitment(nil), cs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	for i := range out {
		if out[i].Index == 0 || (i > 0 && out[i].Index == out[i-1].Index) {
			return nil, fmt.Errorf("threshold: bad participant index %d",
				out[i].Index)
		}
	}
	return out, nil
}

func encodeCommitments(cs []Commitment) []byte {
	var out []byte
	for _, c := range cs {
		out = append(out, scalarFromIndex(c.Index).Bytes()...)
		out = append(out, c.Hiding[:]...)
		out = append(out, c.Binding[:]...)
	}
	return out
}

// Per-participant binding factors for a sorted commitment list.
func bindingFactors(groupKey [32]byte, msg []byte,
	cs []Commitment) map[uint16]*edwards25519.Scalar {
	prefix := append([]byte(nil), groupKey[:]...)
	prefix = append(prefix, hashBytes("msg", msg)...)
	prefix = append(prefix, hashBytes("com", encodeCommitments(cs))...)
	ret := make(map[uint16]*edwards25519.Scalar, len(cs))
	for _, c := range cs {
		ret[c.Index] = hashToScalar([]byte(contextString+"rho"), prefix,
			scalarFromIndex(c.Index).Bytes())
	}
	return ret
}

func decodePoint(b [32]byte) (*edwards25519.Point, error) {
	p, err := new(edwards25519.Point).SetBytes(b[:])
	if err != nil {
		return nil, errors.Wrap(err, "threshold: bad commitment")
	}
	return p, nil
}

// Group commitment R and challenge c for a sorted commitment list.
func groupCommitment(groupKey [32]byte, msg []byte, cs []Commitment,
	rho map[uint16]*edwards25519.Scalar) (*edwards25519.Point,
	*edwards25519.Scalar, error) {
	R := edwards25519.NewIdentityPoint()
	for _, c := range cs {
		D, err := decodePoint(c.Hiding)
		if err != nil {
			return nil, nil, err
		}
		E, err := decodePoint(c.Binding)
		if err != nil {
			return nil, nil, err
		}
		R.Add(R, D)
		R.Add(R, new(edwards25519.Point).ScalarMult(rho[c.Index], E))
	}
	chal := hashToScalar(R.Bytes(), groupKey[:], msg)
	return R, chal, nil
}

type nonces struct {
	hiding, binding *edwards25519.Scalar
}

// A participant holding one share in this process.
type LocalParticipant struct {
	Share    Share
	GroupKey [32]byte

	mu      sync.Mutex
	pending map[Commitment]nonces
}

func NewLocalParticipant(share Share, groupKey [32]byte) *LocalParticipant {
	return &LocalParticipant{Share: share, GroupKey: groupKey}
}

func (p *LocalParticipant) Index() uint16 {
	return p.Share.Index
}

// Commit draws a fresh nonce pair and returns its commitments.  The
// nonces are kept until Sign consumes them.
func (p *LocalParticipant) Commit(context.Context) (Commitment, error) {
	d, err := randomScalar()
	if err != nil {
		return Commitment{}, err
	}
	e, err := randomScalar()
	if err != nil {
		return Commitment{}, err
	}
	c := Commitment{Index: p.Share.Index}
	copy(c.Hiding[:], new(edwards25519.Point).ScalarBaseMult(d).Bytes())
	copy(c.Binding[:], new(edwards25519.Point).ScalarBaseMult(e).Bytes())

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		p.pending = make(map[Commitment]nonces)
	}
	p.pending[c] = nonces{d, e}
	return c, nil
}

// Sign returns this participant's signature share.  The nonces behind
// its own commitment in req are deleted first, so a commitment can
// back at most one share.
func (p *LocalParticipant) Sign(_ context.Context,
	req SignRequest) ([32]byte, error) {
	var out [32]byte
	cs, err := sortCommitments(req.Commitments)
	if err != nil {
		return out, err
	}
	var mine *Commitment
	set := make([]uint16, len(cs))
	for i := range cs {
		set[i] = cs[i].Index
		if cs[i].Index == p.Share.Index {
			mine = &cs[i]
		}
	}
	if mine == nil {
		return out, fmt.Errorf("threshold: participant %d not in signing set",
			p.Share.Index)
	}

	p.mu.Lock()
	n, ok := p.pending[*mine]
	delete(p.pending, *mine)
	p.mu.Unlock()
	if !ok {
		return out, ErrNonceReused
	}

	rho := bindingFactors(p.GroupKey, req.Message, cs)
	_, chal, err := groupCommitment(p.GroupKey, req.Message, cs, rho)
	if err != nil {
		return out, err
	}
	lambda, err := lagrange(p.Share.Index, set)
	if err != nil {
		return out, err
	}
	// z = d + e*rho + lambda*s*c
	z := new(edwards25519.Scalar).Multiply(lambda, p.Share.Secret)
	z.Multiply(z, chal)
	z.MultiplyAdd(n.binding, rho[p.Share.Index], z)
	z.Add(z, n.hiding)
	copy(out[:], z.Bytes())
	return out, nil
}

// VerifyShare checks one signature share against the participant's
// verifying key, so a coordinator can name a misbehaving signer.
func VerifyShare(groupKey [32]byte, public *edwards25519.Point,
	req SignRequest, index uint16, share [32]byte) error {
	cs, err := sortCommitments(req.Commitments)
	if err != nil {
		return err
	}
	set := make([]uint16, len(cs))
	var mine *Commitment
	for i := range cs {
		set[i] = cs[i].Index
		if cs[i].Index == index {
			mine = &cs[i]
		}
	}
	if mine == nil {
		return fmt.Errorf("threshold: participant %d not in signing set", index)
	}
	rho := bindingFactors(groupKey, req.Message, cs)
	_, chal, err := groupCommitment(groupKey, req.Message, cs, rho)
	if err != nil {
		return err
	}
	lambda, err := lagrange(index, set)
	if err != nil {
		return err
	}
	z, err := edwards25519.NewScalar().SetCanonicalBytes(share[:])
	if err != nil {
		return errors.Wrapf(err, "threshold: share from %d", index)
	}
	D, err := decodePoint(mine.Hiding)
	if err != nil {
		return err
	}
	E, err := decodePoint(mine.Binding)
	if err != nil {
		return err
	}
	want := new(edwards25519.Point).ScalarMult(rho[index], E)
	want.Add(want, D)
	lc := new(edwards25519.Scalar).Multiply(lambda, chal)
	want.Add(want, new(edwards25519.Point).ScalarMult(lc, public))
	if new(edwards25519.Point).ScalarBaseMult(z).Equal(want) != 1 {
		return fmt.Errorf("threshold: invalid signature share from %d", index)
	}
	return nil
}

// Aggregate sums signature shares into a 64-byte Ed25519 signature.
func Aggregate(groupKey [32]byte, req SignRequest,
	shares map[uint16][32]byte) ([]byte, error) {
	cs, err := sortCommitments(req.Commitments)
	if err != nil {
		return nil, err
	}
	rho := bindingFactors(groupKey, req.Message, cs)
	R, _, err := groupCommitment(groupKey, req.Message, cs, rho)
	if err != nil {
		return nil, err
	}
	z := edwards25519.NewScalar()
	for _, c := range cs {
		raw, ok := shares[c.Index]
		if !ok {
			return nil, fmt.Errorf("threshold: missing share from %d", c.Index)
		}
		zi, err := edwards25519.NewScalar().SetCanonicalBytes(raw[:])
		if err != nil {
			return nil, errors.Wrapf(err, "threshold: share from %d", c.Index)
		}
		z.Add(z, zi)
	}
	return append(R.Bytes(), z.Bytes()...), nil
}
