package tokenward

import (
	"errors"
	"time"
)

// Config groups every tunable of the token engine. Built once, cloned into
// the Service, and treated as immutable afterwards.
type Config struct {
	Token    TokenConfig
	Policy   PolicyConfig
	Registry RegistryConfig
	Store    StoreConfig
	Password PasswordConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig carries the codec's key material and claim settings.
type TokenConfig struct {
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	KeyID         string
	VerifyKeys    map[string][]byte
}

/*
====================================
SESSION POLICY
====================================
*/

// PolicyConfig is the session policy: TTLs, rotation, clock-skew leeway, and
// the optional cap on concurrent refresh tokens per account. Pure data, no
// state machine; the Service reads it at issuance and verification time.
type PolicyConfig struct {
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	RotateRefresh         bool
	Leeway                time.Duration
	MaxSessionsPerAccount int // 0 = unlimited
}

// RegistryConfig namespaces the revocation registry's Redis keys.
type RegistryConfig struct {
	RedisPrefix string
}

// StoreConfig bounds the registry and credential-store round trips. Every
// call carries Timeout; reads that time out are retried RetryAttempts more
// times before the operation fails closed.
type StoreConfig struct {
	Timeout       time.Duration
	RetryAttempts int
}

// PasswordConfig holds the argon2id parameters for the Login digest check.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters and the verify-latency
// histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a Config populated with the library defaults.
// Signing keys are not defaulted and must be set by the caller.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: "ed25519",
		},
		Policy: PolicyConfig{
			AccessTTL:             24 * time.Hour,
			RefreshTTL:            30 * 24 * time.Hour,
			RotateRefresh:         true,
			Leeway:                30 * time.Second,
			MaxSessionsPerAccount: 0,
		},
		Registry: RegistryConfig{
			RedisPrefix: "twr",
		},
		Store: StoreConfig{
			Timeout:       2 * time.Second,
			RetryAttempts: 1,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	if len(cfg.Token.VerifyKeys) > 0 {
		out.Token.VerifyKeys = make(map[string][]byte, len(cfg.Token.VerifyKeys))
		for kid, key := range cfg.Token.VerifyKeys {
			out.Token.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations the engine cannot run safely with.
func (c *Config) Validate() error {
	// Token
	if c.Token.SigningMethod != "ed25519" && c.Token.SigningMethod != "hs256" {
		return errors.New("unsupported token signing method")
	}
	if c.Token.SigningMethod == "ed25519" && len(c.Token.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.Token.SigningMethod == "ed25519" && len(c.Token.PublicKey) == 0 && len(c.Token.VerifyKeys) == 0 {
		return errors.New("ed25519 requires PublicKey or VerifyKeys")
	}
	if c.Token.SigningMethod == "hs256" && len(c.Token.PrivateKey) == 0 {
		return errors.New("hs256 requires PrivateKey")
	}

	// Policy
	if c.Policy.AccessTTL <= 0 {
		return errors.New("Policy AccessTTL must be > 0")
	}
	if c.Policy.RefreshTTL <= 0 {
		return errors.New("Policy RefreshTTL must be > 0")
	}
	if c.Policy.RefreshTTL < c.Policy.AccessTTL {
		return errors.New("Policy RefreshTTL must be >= AccessTTL")
	}
	if c.Policy.Leeway < 0 || c.Policy.Leeway > 2*time.Minute {
		return errors.New("Policy Leeway must be between 0 and 2m")
	}
	if c.Policy.MaxSessionsPerAccount < 0 {
		return errors.New("Policy MaxSessionsPerAccount must be >= 0")
	}

	// Store
	if c.Store.Timeout <= 0 {
		return errors.New("Store Timeout must be > 0")
	}
	if c.Store.RetryAttempts < 0 || c.Store.RetryAttempts > 3 {
		return errors.New("Store RetryAttempts must be between 0 and 3")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
