package webhook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core_errors "event-planner-core/pkg/errors"
)

func TestVerifySignature(t *testing.T) {
	secret := []byte("test-secret")
	body := []byte(`{"job_id":"a","status":"completed"}`)

	t.Run("valid signature", func(t *testing.T) {
		sig := Sign(secret, body)
		require.NoError(t, VerifySignature(secret, body, sig))
	})

	t.Run("missing header", func(t *testing.T) {
		err := VerifySignature(secret, body, "")
		assert.ErrorIs(t, err, core_errors.ErrMissingSignature)
	})

	t.Run("tampered body", func(t *testing.T) {
		sig := Sign(secret, body)
		tampered := []byte(strings.Replace(string(body), "completed", "completeX", 1))
		err := VerifySignature(secret, tampered, sig)
		assert.ErrorIs(t, err, core_errors.ErrInvalidSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		sig := Sign([]byte("other-secret"), body)
		err := VerifySignature(secret, body, sig)
		assert.ErrorIs(t, err, core_errors.ErrInvalidSignature)
	})

	t.Run("equal length mismatch", func(t *testing.T) {
		sig := Sign(secret, body)
		flipped := []byte(sig)
		if flipped[0] == 'a' {
			flipped[0] = 'b'
		} else {
			flipped[0] = 'a'
		}
		err := VerifySignature(secret, body, string(flipped))
		assert.ErrorIs(t, err, core_errors.ErrInvalidSignature)
	})

	t.Run("non hex input does not panic", func(t *testing.T) {
		err := VerifySignature(secret, body, "not-hex-at-all!!")
		assert.ErrorIs(t, err, core_errors.ErrInvalidSignature)
	})

	t.Run("truncated signature", func(t *testing.T) {
		sig := Sign(secret, body)
		err := VerifySignature(secret, body, sig[:16])
		assert.ErrorIs(t, err, core_errors.ErrInvalidSignature)
	})
}

func TestSignIsDeterministic(t *testing.T) {
	secret := []byte("s")
	body := []byte("payload")
	assert.Equal(t, Sign(secret, body), Sign(secret, body))
}
