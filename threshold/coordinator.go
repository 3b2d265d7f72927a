package threshold

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"

	"filippo.io/edwards25519"
	"github.com/pkg/errors"
	"github.com/stellar/go/support/log"
	"github.com/xdrpp/stcsign/stcdetail"
)

var ErrNotEnoughParticipants = errors.New(
	"threshold: fewer participants than the signing threshold")

// A share holder taking part in signing.  Participants may live in
// this process or behind a network connection.
type Participant interface {
	Index() uint16
	Commit(ctx context.Context) (Commitment, error)
	Sign(ctx context.Context, req SignRequest) ([32]byte, error)
}

// Coordinator drives both signing rounds across a set of
// participants and aggregates the result.
type Coordinator struct {
	GroupKey     [32]byte
	Threshold    int
	Participants []Participant

	// Verifying keys by participant index.  When present, each share
	// is checked before aggregation.
	Verifying map[uint16]*edwards25519.Point

	log *log.Entry
}

func NewCoordinator(groupKey [32]byte, t int, parts []Participant,
	logger *log.Entry) *Coordinator {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Coordinator{
		GroupKey:     groupKey,
		Threshold:    t,
		Participants: parts,
		log: logger.WithFields(log.F{"backend": "threshold",
			"group_key": hex.EncodeToString(groupKey[:])}),
	}
}

// Sign produces an Ed25519 signature on msg under the group key
// using the first Threshold participants.  Each round polls the
// participants concurrently.
func (c *Coordinator) Sign(ctx context.Context, msg []byte) ([]byte, error) {
	if c.Threshold < 1 || len(c.Participants) < c.Threshold {
		return nil, errors.Wrapf(ErrNotEnoughParticipants, "%d of %d",
			len(c.Participants), c.Threshold)
	}
	signers := c.Participants[:c.Threshold]

	commits, err := stcdetail.Gather(len(signers),
		func(i int) (Commitment, error) {
			return signers[i].Commit(ctx)
		})
	if err != nil {
		return nil, errors.Wrap(err, "threshold: round 1")
	}
	c.log.WithField("signers", len(signers)).Debug("collected commitments")

	req := SignRequest{Message: msg, Commitments: commits}
	zs, err := stcdetail.Gather(len(signers), func(i int) ([32]byte, error) {
		return signers[i].Sign(ctx, req)
	})
	if err != nil {
		return nil, errors.Wrap(err, "threshold: round 2")
	}

	shares := make(map[uint16][32]byte, len(zs))
	for i, z := range zs {
		idx := signers[i].Index()
		if pub, ok := c.Verifying[idx]; ok {
			if err := VerifyShare(c.GroupKey, pub, req, idx, z); err != nil {
				c.log.WithField("participant", idx).Warn("bad signature share")
				return nil, err
			}
		}
		shares[idx] = z
	}
	sig, err := Aggregate(c.GroupKey, req, shares)
	if err != nil {
		return nil, err
	}
	if !ed25519.Verify(c.GroupKey[:], msg, sig) {
		return nil, errors.New("threshold: aggregate signature does not verify")
	}
	c.log.Debug("aggregated signature")
	return sig, nil
}
