package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type distinguishes the two credentials in a pair: access tokens are the
// only type accepted by resource endpoints, refresh tokens the only type
// allowed to mint a new pair.
type Type string

const (
	// TypeAccess marks short-lived tokens presented on protected calls.
	TypeAccess Type = "access"
	// TypeRefresh marks longer-lived tokens used solely for rotation.
	TypeRefresh Type = "refresh"
)

// Valid reports whether t is one of the two known token types.
func (t Type) Valid() bool {
	return t == TypeAccess || t == TypeRefresh
}

var (
	// ErrMalformed is returned when the input is not a decodable token.
	ErrMalformed = errors.New("malformed token")
	// ErrBadSignature is returned when the token was tampered with or
	// signed under an unknown key.
	ErrBadSignature = errors.New("bad token signature")
	// ErrExpired is returned when the signature verifies but exp is in the
	// past (beyond the configured leeway).
	ErrExpired = errors.New("token expired")
)

// SigningMethod selects the signature algorithm for a Codec.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Curve25519 (default).
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256 using a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

// Config carries the key material and validation knobs for a Codec. It is
// fixed at construction; rotate keys by building a new Codec with the old
// public key kept in VerifyKeys.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// Payload is the decoded token content. Exactly the fields the service needs:
// subject, type, jti, the security epoch captured at issuance, and the two
// timestamps.
type Payload struct {
	Subject   string
	Type      Type
	JTI       string
	Epoch     uint64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type wireClaims struct {
	TokenType Type   `json:"typ"`
	Epoch     uint64 `json:"epoch"`
	jwt.RegisteredClaims
}

// Codec encodes and decodes signed tokens. Construct with NewCodec.
type Codec struct {
	config Config
}

// NewCodec validates cfg and returns a ready Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return &Codec{config: cfg}, nil
}

// Encode serializes and signs p. It fails only on a malformed payload or
// unusable key material, both programmer errors.
func (c *Codec) Encode(p Payload) (string, error) {
	if p.Subject == "" {
		return "", errors.New("payload missing subject")
	}
	if p.JTI == "" {
		return "", errors.New("payload missing jti")
	}
	if !p.Type.Valid() {
		return "", fmt.Errorf("unknown token type %q", p.Type)
	}
	if !p.ExpiresAt.After(p.IssuedAt) {
		return "", errors.New("payload expiry not after issuance")
	}

	claims := wireClaims{
		TokenType: p.Type,
		Epoch:     p.Epoch,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			ID:        p.JTI,
			IssuedAt:  jwt.NewNumericDate(p.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
			Issuer:    c.config.Issuer,
		},
	}
	if c.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}

	tok := jwt.NewWithClaims(c.getMethod(), claims)
	if c.config.KeyID != "" {
		tok.Header["kid"] = c.config.KeyID
	}

	signKey, err := c.getSignKey()
	if err != nil {
		return "", err
	}

	return tok.SignedString(signKey)
}

// Decode verifies the signature and the registered claims, then returns the
// payload. Failure classes: ErrMalformed, ErrBadSignature, ErrExpired.
func (c *Codec) Decode(tokenStr string) (*Payload, error) {
	claims, err := c.parse(tokenStr, false)
	if err != nil {
		return nil, err
	}
	return c.toPayload(claims)
}

// DecodeExpired verifies the signature but tolerates an elapsed exp. Logout
// uses it: a token being revoked may already be past its TTL, and revoking it
// must still succeed. Malformed or tampered input is rejected as usual.
func (c *Codec) DecodeExpired(tokenStr string) (*Payload, error) {
	claims, err := c.parse(tokenStr, true)
	if err != nil {
		return nil, err
	}
	return c.toPayload(claims)
}

func (c *Codec) parse(tokenStr string, allowExpired bool) (*wireClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.getMethod().Alg()}),
	}
	if allowExpired {
		options = append(options, jwt.WithoutClaimsValidation())
	} else {
		if c.config.Leeway > 0 {
			options = append(options, jwt.WithLeeway(c.config.Leeway))
		}
		if c.config.Issuer != "" {
			options = append(options, jwt.WithIssuer(c.config.Issuer))
		}
		if c.config.Audience != "" {
			options = append(options, jwt.WithAudience(c.config.Audience))
		}
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &wireClaims{}, c.resolveVerifyKey)
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := tok.Claims.(*wireClaims)
	if !ok || !tok.Valid {
		return nil, ErrMalformed
	}
	if claims.IssuedAt != nil && c.config.MaxFutureIAT > 0 {
		if claims.IssuedAt.Time.After(time.Now().Add(c.config.MaxFutureIAT)) {
			return nil, fmt.Errorf("%w: iat too far in the future", ErrMalformed)
		}
	}

	return claims, nil
}

func (c *Codec) toPayload(claims *wireClaims) (*Payload, error) {
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing subject or jti", ErrMalformed)
	}
	if !claims.TokenType.Valid() {
		return nil, fmt.Errorf("%w: unknown token type", ErrMalformed)
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing timestamps", ErrMalformed)
	}

	return &Payload{
		Subject:   claims.Subject,
		Type:      claims.TokenType,
		JTI:       claims.ID,
		Epoch:     claims.Epoch,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (c *Codec) resolveVerifyKey(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != c.getMethod().Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(c.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := c.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return c.keyBytesToVerifyKey(key)
	}

	if c.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != c.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	return c.getVerifyKey()
}

// classifyParseError collapses golang-jwt's joined errors into the codec's
// three classes. Signature problems win over expiry: a tampered token must
// never surface as merely expired.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func (c *Codec) getMethod() jwt.SigningMethod {
	switch c.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (c *Codec) getSignKey() (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return c.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(c.config.PrivateKey)
	}
}

func (c *Codec) getVerifyKey() (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return c.config.PrivateKey, nil
	default:
		return parseEdPublicKey(c.config.PublicKey)
	}
}

func (c *Codec) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
