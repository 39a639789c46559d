package envelope

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/haveachin/floodgate/pkg/floodgate/identity"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/sha3"
)

// Header prefixes every envelope so that it can be told apart from other
// data proxies put into the server address.
const Header = identity.Magic

// DefaultLeeway is the clock skew Open tolerates unless WithLeeway is given.
const DefaultLeeway = 30 * time.Second

const kdfLabel = "floodgate envelope v1"

var encoding = base64.RawURLEncoding.Strict()

// Envelope is a sealed identity. It is safe to relay through untrusted hops.
type Envelope string

func (e Envelope) String() string {
	return string(e)
}

// IsEnvelope reports whether s looks like an envelope. It does not verify it.
func IsEnvelope(s string) bool {
	return strings.HasPrefix(s, Header) && len(s) > len(Header)
}

type claims struct {
	Data string `json:"dat"`
	jwt.RegisteredClaims
}

type Option func(*options)

type options struct {
	maxAge time.Duration
	leeway time.Duration
	now    func() time.Time
}

// WithMaxAge limits how long a sealed envelope stays valid. Zero disables expiry.
func WithMaxAge(d time.Duration) Option {
	return func(o *options) {
		o.maxAge = d
	}
}

// WithLeeway tolerates clock skew between the sealing and the opening hop.
func WithLeeway(d time.Duration) Option {
	return func(o *options) {
		o.leeway = d
	}
}

func withClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{
		leeway: DefaultLeeway,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// deriveAEAD derives the symmetric key that hides the signed token from
// hops that are not provisioned with the public key.
func deriveAEAD(pub *rsa.PublicKey) (cipher.AEAD, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, len(kdfLabel)+len(der))
	buf = append(buf, kdfLabel...)
	buf = append(buf, der...)
	key := sha3.Sum256(buf)
	return chacha20poly1305.NewX(key[:])
}

// Sealer seals identities with the private key of the originating hop.
type Sealer struct {
	key  *rsa.PrivateKey
	aead cipher.AEAD
	opts options
}

func NewSealer(key *rsa.PrivateKey, opts ...Option) (*Sealer, error) {
	if key == nil {
		return nil, sealErr(errors.New("no private key"))
	}

	aead, err := deriveAEAD(&key.PublicKey)
	if err != nil {
		return nil, sealErr(err)
	}

	return &Sealer{
		key:  key,
		aead: aead,
		opts: newOptions(opts),
	}, nil
}

// Seal signs and encrypts id. It returns no envelope if any step fails.
func (s *Sealer) Seal(id identity.Identity) (Envelope, error) {
	now := s.opts.now()
	c := claims{
		Data: identity.Encode(id),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.opts.maxAge > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(s.opts.maxAge))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, c).SignedString(s.key)
	if err != nil {
		return "", sealErr(err)
	}

	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(signed)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", sealErr(err)
	}

	sealed := s.aead.Seal(nonce, nonce, []byte(signed), []byte(Header))
	return Envelope(Header + encoding.EncodeToString(sealed)), nil
}

// Opener opens envelopes with the public key of the originating hop.
type Opener struct {
	key    *rsa.PublicKey
	aead   cipher.AEAD
	cfg    identity.DeriveConfig
	opts   options
	parser *jwt.Parser
}

func NewOpener(key *rsa.PublicKey, cfg identity.DeriveConfig, opts ...Option) (*Opener, error) {
	if key == nil {
		return nil, openErr(errors.New("no public key"))
	}

	aead, err := deriveAEAD(key)
	if err != nil {
		return nil, openErr(err)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	return &Opener{
		key:    key,
		aead:   aead,
		cfg:    cfg,
		opts:   newOptions(opts),
		parser: parser,
	}, nil
}

// Open decrypts and verifies env and decodes the identity it carries.
func (o *Opener) Open(env Envelope) (identity.Identity, error) {
	if !IsEnvelope(string(env)) {
		return identity.Identity{}, openErr(errors.New("missing header"))
	}

	sealed, err := encoding.DecodeString(string(env[len(Header):]))
	if err != nil {
		return identity.Identity{}, openErr(err)
	}

	ns := o.aead.NonceSize()
	if len(sealed) < ns+o.aead.Overhead() {
		return identity.Identity{}, openErr(errors.New("envelope too short"))
	}

	signed, err := o.aead.Open(nil, sealed[:ns], sealed[ns:], []byte(Header))
	if err != nil {
		return identity.Identity{}, openErr(err)
	}

	var c claims
	if _, err := o.parser.ParseWithClaims(string(signed), &c, o.keyFunc); err != nil {
		return identity.Identity{}, openErr(err)
	}

	if c.ExpiresAt != nil && !c.ExpiresAt.Add(o.opts.leeway).After(o.opts.now()) {
		return identity.Identity{}, openErr(errors.New("envelope expired"))
	}

	id, err := identity.Decode(c.Data, o.cfg)
	if err != nil {
		return identity.Identity{}, openErr(err)
	}

	return id, nil
}

func (o *Opener) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
	}
	return o.key, nil
}
