package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignatureRoundTrip(t *testing.T) {
	secret := []byte("wh_secret_1")
	body := []byte(`{"id":"evt-1","type":"payment.updated"}`)
	ts := "1700000000"

	sig := Sign(body, ts, secret)
	assert.True(t, VerifySignature(body, sig, ts, secret))
}

func TestVerifySignatureRejectsMutations(t *testing.T) {
	secret := []byte("wh_secret_1")
	body := []byte(`{"id":"evt-1","type":"payment.updated"}`)
	ts := "1700000000"
	sig := Sign(body, ts, secret)

	t.Run("mutated body", func(t *testing.T) {
		mutated := make([]byte, len(body))
		copy(mutated, body)
		mutated[0] ^= 0x01
		assert.False(t, VerifySignature(mutated, sig, ts, secret))
	})

	t.Run("mutated signature", func(t *testing.T) {
		mutated := []byte(sig)
		mutated[0] ^= 0x01
		assert.False(t, VerifySignature(body, string(mutated), ts, secret))
	})

	t.Run("different timestamp", func(t *testing.T) {
		assert.False(t, VerifySignature(body, sig, "1700000001", secret))
	})

	t.Run("different secret", func(t *testing.T) {
		assert.False(t, VerifySignature(body, sig, ts, []byte("wh_secret_2")))
	})
}

func TestVerifySignatureMissingInputs(t *testing.T) {
	secret := []byte("wh_secret_1")
	body := []byte(`{}`)
	sig := Sign(body, "1700000000", secret)

	assert.False(t, VerifySignature(body, "", "1700000000", secret))
	assert.False(t, VerifySignature(body, sig, "", secret))
	assert.False(t, VerifySignature(body, sig, "1700000000", nil))
}

func TestVerifySignatureEmptyBody(t *testing.T) {
	secret := []byte("wh_secret_1")
	sig := Sign(nil, "1700000000", secret)
	assert.True(t, VerifySignature(nil, sig, "1700000000", secret))
}
