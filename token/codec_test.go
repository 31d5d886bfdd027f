package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEdCodec(t *testing.T, mutate func(*Config)) *Codec {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	cfg := Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "codec-test",
	}
	if mutate != nil {
		mutate(&cfg)
	}

	codec, err := NewCodec(cfg)
	require.NoError(t, err)
	return codec
}

func validPayload(typ Type) Payload {
	now := time.Now()
	return Payload{
		Subject:   "acc-1",
		Type:      typ,
		JTI:       "jti-1",
		Epoch:     7,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := newEdCodec(t, nil)

	for _, typ := range []Type{TypeAccess, TypeRefresh} {
		in := validPayload(typ)
		raw, err := codec.Encode(in)
		require.NoError(t, err)

		out, err := codec.Decode(raw)
		require.NoError(t, err)

		assert.Equal(t, in.Subject, out.Subject)
		assert.Equal(t, typ, out.Type)
		assert.Equal(t, in.JTI, out.JTI)
		assert.Equal(t, in.Epoch, out.Epoch)
		// JWT timestamps are truncated to seconds on the wire.
		assert.WithinDuration(t, in.ExpiresAt, out.ExpiresAt, time.Second)
	}
}

func TestHS256RoundTrip(t *testing.T) {
	cfg := Config{
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
	}
	codec, err := NewCodec(cfg)
	require.NoError(t, err)

	raw, err := codec.Encode(validPayload(TypeAccess))
	require.NoError(t, err)

	out, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", out.Subject)
}

func TestDecodeRejectsTampering(t *testing.T) {
	codec := newEdCodec(t, nil)

	raw, err := codec.Encode(validPayload(TypeAccess))
	require.NoError(t, err)

	tampered := raw[:len(raw)-4] + "AAAA"
	_, err = codec.Decode(tampered)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestDecodeRejectsForeignKey(t *testing.T) {
	signer := newEdCodec(t, nil)
	verifier := newEdCodec(t, nil)

	raw, err := signer.Encode(validPayload(TypeAccess))
	require.NoError(t, err)

	_, err = verifier.Decode(raw)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	codec := newEdCodec(t, nil)

	for _, input := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		_, err := codec.Decode(input)
		assert.ErrorIs(t, err, ErrMalformed, "input %q", input)
	}
}

func TestDecodeExpiredToken(t *testing.T) {
	codec := newEdCodec(t, nil)

	now := time.Now()
	p := validPayload(TypeAccess)
	p.IssuedAt = now.Add(-2 * time.Hour)
	p.ExpiresAt = now.Add(-time.Hour)

	raw, err := codec.Encode(p)
	require.NoError(t, err)

	_, err = codec.Decode(raw)
	assert.ErrorIs(t, err, ErrExpired)

	// DecodeExpired tolerates the lapsed exp but still verifies everything
	// else, including the signature.
	out, err := codec.DecodeExpired(raw)
	require.NoError(t, err)
	assert.Equal(t, p.JTI, out.JTI)

	tampered := raw[:len(raw)-4] + "AAAA"
	_, err = codec.DecodeExpired(tampered)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestLeewayToleratesRecentExpiry(t *testing.T) {
	codec := newEdCodec(t, func(c *Config) {
		c.Leeway = 30 * time.Second
	})

	now := time.Now()
	p := validPayload(TypeAccess)
	p.IssuedAt = now.Add(-time.Hour)
	p.ExpiresAt = now.Add(-5 * time.Second)

	raw, err := codec.Encode(p)
	require.NoError(t, err)

	_, err = codec.Decode(raw)
	assert.NoError(t, err, "expiry within leeway should pass")
}

func TestDecodeRejectsWrongIssuer(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, err := NewCodec(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "issuer-a",
	})
	require.NoError(t, err)

	verifier, err := NewCodec(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "issuer-b",
	})
	require.NoError(t, err)

	raw, err := signer.Encode(validPayload(TypeAccess))
	require.NoError(t, err)

	_, err = verifier.Decode(raw)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVerifyKeysByKid(t *testing.T) {
	pubA, privA, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pubB, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, err := NewCodec(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    privA,
		KeyID:         "key-a",
		VerifyKeys: map[string][]byte{
			"key-a": pubA,
		},
	})
	require.NoError(t, err)

	raw, err := signer.Encode(validPayload(TypeAccess))
	require.NoError(t, err)

	// A verifier holding both generations resolves by kid.
	verifier, err := NewCodec(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    privA,
		KeyID:         "key-a",
		VerifyKeys: map[string][]byte{
			"key-a": pubA,
			"key-b": pubB,
		},
	})
	require.NoError(t, err)

	out, err := verifier.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", out.Subject)

	// A verifier without the signing generation rejects the token.
	stale, err := NewCodec(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    privA,
		VerifyKeys: map[string][]byte{
			"key-b": pubB,
		},
	})
	require.NoError(t, err)

	_, err = stale.Decode(raw)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestEncodePayloadValidation(t *testing.T) {
	codec := newEdCodec(t, nil)

	cases := []struct {
		name   string
		mutate func(*Payload)
	}{
		{"missing subject", func(p *Payload) { p.Subject = "" }},
		{"missing jti", func(p *Payload) { p.JTI = "" }},
		{"unknown type", func(p *Payload) { p.Type = "session" }},
		{"expiry before issuance", func(p *Payload) { p.ExpiresAt = p.IssuedAt.Add(-time.Minute) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPayload(TypeAccess)
			tc.mutate(&p)
			_, err := codec.Encode(p)
			assert.Error(t, err)
		})
	}
}

func TestNewCodecValidation(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	cases := []struct {
		name string
		cfg  Config
	}{
		{"unsupported method", Config{SigningMethod: "rs256", PrivateKey: priv, PublicKey: pub}},
		{"hs256 without secret", Config{SigningMethod: MethodHS256}},
		{"ed25519 without verify key", Config{SigningMethod: MethodEd25519, PrivateKey: priv}},
		{"negative leeway", Config{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub, Leeway: -time.Second}},
		{"oversized leeway", Config{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub, Leeway: time.Hour}},
		{"kid missing from verify keys", Config{
			SigningMethod: MethodEd25519,
			PrivateKey:    priv,
			KeyID:         "missing",
			VerifyKeys:    map[string][]byte{"other": pub},
		}},
		{"bogus verify key", Config{
			SigningMethod: MethodEd25519,
			PrivateKey:    priv,
			VerifyKeys:    map[string][]byte{"k": []byte("short")},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCodec(tc.cfg)
			assert.Error(t, err)
		})
	}
}

func FuzzDecode(f *testing.F) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		f.Fatal(err)
	}
	codec, err := NewCodec(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		f.Fatal(err)
	}

	valid, err := codec.Encode(validPayload(TypeAccess))
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add(valid[:len(valid)/2])

	f.Fuzz(func(t *testing.T, input string) {
		// Decode must classify every input; only a signed token may pass.
		p, err := codec.Decode(input)
		if err == nil && p == nil {
			t.Fatal("nil payload without error")
		}
		if _, err := codec.DecodeExpired(input); err == nil && input == "" {
			t.Fatal("empty input decoded")
		}
	})
}

func TestTypeValid(t *testing.T) {
	assert.True(t, TypeAccess.Valid())
	assert.True(t, TypeRefresh.Valid())
	assert.False(t, Type("").Valid())
	assert.False(t, Type("session").Valid())
}
