package stcsign

import (
	"context"
	"io"
	"sort"
	"sync"

	"filippo.io/edwards25519"
	"github.com/pkg/errors"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/support/log"
	"github.com/xdrpp/stcsign/keystore"
	"github.com/xdrpp/stcsign/ledger"
	"github.com/xdrpp/stcsign/threshold"
)

// An Opener builds a Signer for an identity served by one backend.
type Opener func(ctx context.Context, id *Identity) (*Signer, error)

// A Registry holds the backends available in this process.  Opening
// an identity whose backend is not registered fails with
// *FeatureNotEnabledError.
type Registry struct {
	Log *log.Entry

	mu      sync.RWMutex
	openers map[Kind]Opener
	closers []io.Closer
}

func NewRegistry(logger *log.Entry) *Registry {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Registry{Log: logger, openers: make(map[Kind]Opener)}
}

func (r *Registry) Register(k Kind, fn Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[k] = fn
}

func (r *Registry) Unregister(k Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.openers, k)
}

func (r *Registry) Enabled(k Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.openers[k]
	return ok
}

// Kinds lists the registered backends in order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]Kind, 0, len(r.openers))
	for k := range r.openers {
		ret = append(ret, k)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}

func (r *Registry) Open(ctx context.Context, id *Identity) (*Signer, error) {
	k, err := id.Kind()
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	fn, ok := r.openers[k]
	r.mu.RUnlock()
	if !ok {
		return nil, &FeatureNotEnabledError{Backend: k}
	}
	s, err := fn(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "identity %s (%s)", id.Name, k)
	}
	if s.Log == nil {
		s.Log = r.Log.WithField("identity", id.Name)
	}
	return s, nil
}

// Close releases device handles opened on behalf of signers.
func (r *Registry) Close() error {
	r.mu.Lock()
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()
	var errs error
	for _, c := range closers {
		if err := c.Close(); err != nil && errs == nil {
			errs = err
		}
	}
	return errs
}

type RegistryOptions struct {
	Log *log.Entry

	// Hardware transport.  If nil, the emulator at EmulatorHost and
	// EmulatorPort is used when EmulatorPort is set, otherwise the
	// first USB device.
	Transport    ledger.Transport
	EmulatorHost string
	EmulatorPort uint16

	// Keyring account; empty means the current OS user.
	KeyringUser string

	// Register the threshold backend.
	Threshold bool
}

// DefaultRegistry registers the local, secure store and plugin
// backends, the hardware backend when a transport can exist on this
// host, and the threshold backend when asked to.
func DefaultRegistry(opts RegistryOptions) *Registry {
	r := NewRegistry(opts.Log)
	r.Register(KindLocal, OpenLocal)
	r.Register(KindSecureStore, func(_ context.Context,
		id *Identity) (*Signer, error) {
		var e *keystore.Entry
		if opts.KeyringUser != "" {
			e = keystore.NewForUser(id.Name, opts.KeyringUser, r.Log)
		} else {
			var err error
			if e, err = keystore.New(id.Name, r.Log); err != nil {
				return nil, err
			}
		}
		e.HDPath = id.HDPath
		return NewSecureStoreSigner(e), nil
	})
	if opts.Transport != nil || opts.EmulatorPort != 0 || ledger.HIDSupported() {
		var once sync.Once
		var t ledger.Transport
		var terr error
		transport := func() (ledger.Transport, error) {
			once.Do(func() {
				switch {
				case opts.Transport != nil:
					t = opts.Transport
				case opts.EmulatorPort != 0:
					t = ledger.NewEmulatorTransport(opts.EmulatorHost,
						opts.EmulatorPort, r.Log)
				default:
					var h *ledger.HIDTransport
					if h, terr = ledger.OpenHID(r.Log); terr == nil {
						t = h
						r.mu.Lock()
						r.closers = append(r.closers, h)
						r.mu.Unlock()
					}
				}
			})
			return t, terr
		}
		r.Register(KindLedger, func(_ context.Context,
			id *Identity) (*Signer, error) {
			t, err := transport()
			if err != nil {
				return nil, err
			}
			k := NewLedgerKey(ledger.NewDevice(t, r.Log), id.HDPath)
			k.ClearSign = id.ClearSign
			return NewLedgerSigner(k), nil
		})
	}
	if opts.Threshold {
		r.Register(KindThreshold, func(_ context.Context,
			id *Identity) (*Signer, error) {
			return OpenThreshold(id, r.Log)
		})
	}
	r.Register(KindPlugin, func(_ context.Context,
		id *Identity) (*Signer, error) {
		addr, err := ParseAddress(id.Plugin.Address)
		if err != nil {
			return nil, err
		}
		p, err := FindPlugin(id.Plugin.Name, addr, id.Plugin.Args, r.Log)
		if err != nil {
			return nil, err
		}
		return NewPluginSigner(p), nil
	})
	return r
}

// OpenLocal loads the in-memory key of a local identity.
func OpenLocal(_ context.Context, id *Identity) (*Signer, error) {
	var k *LocalKey
	var err error
	switch {
	case id.SecretKey != "":
		k, err = ParseLocalKey(id.SecretKey)
	case id.SeedPhrase != "":
		k, err = SeedPhraseKey(id.SeedPhrase, id.HDPath)
	case id.KeyFile != "":
		k, err = LoadKeyFile(id.KeyFile)
	default:
		err = errors.Errorf("identity %s has no local key", id.Name)
	}
	if err != nil {
		return nil, err
	}
	k.Prompt = id.Prompt
	return NewLocalSigner(k), nil
}

// OpenThreshold builds a coordinator over in-process participants,
// one per share in the identity.
func OpenThreshold(id *Identity, logger *log.Entry) (*Signer, error) {
	ti := id.Threshold
	raw, err := strkey.Decode(strkey.VersionByteAccountID, ti.GroupKey)
	if err != nil {
		return nil, errors.Wrap(err, "group key")
	}
	var group [32]byte
	copy(group[:], raw)

	var parts []threshold.Participant
	verifying := make(map[uint16]*edwards25519.Point, len(ti.Shares))
	for _, s := range ti.Shares {
		share, err := threshold.ParseShare(s)
		if err != nil {
			return nil, err
		}
		verifying[share.Index] = share.Public()
		parts = append(parts, threshold.NewLocalParticipant(share, group))
	}
	c := threshold.NewCoordinator(group, ti.Threshold, parts, logger)
	c.Verifying = verifying
	return NewThresholdSigner(&ThresholdKey{Coordinator: c}), nil
}
