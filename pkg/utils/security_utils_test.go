package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyHMACSHA256(t *testing.T) {
	const secret = "rzp_test_secret"
	payload := []byte("order_9A33XWu170gUtm|pay_29QQoUBi66xm2f")
	signature := SignHMACSHA256(secret, payload)

	assert.Len(t, signature, 64)
	assert.True(t, VerifyHMACSHA256(secret, payload, signature))

	t.Run("single bit mutation of the signature fails", func(t *testing.T) {
		mutated := []byte(signature)
		mutated[10] ^= 0x01
		assert.False(t, VerifyHMACSHA256(secret, payload, string(mutated)))
	})

	t.Run("single bit mutation of the payload fails", func(t *testing.T) {
		mutated := append([]byte(nil), payload...)
		mutated[0] ^= 0x01
		assert.False(t, VerifyHMACSHA256(secret, mutated, signature))
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		assert.False(t, VerifyHMACSHA256("other", payload, signature))
	})

	t.Run("empty secret or signature never verifies", func(t *testing.T) {
		assert.False(t, VerifyHMACSHA256("", payload, SignHMACSHA256("", payload)))
		assert.False(t, VerifyHMACSHA256(secret, payload, ""))
	})
}

func TestSignHMACSHA256_KnownVector(t *testing.T) {
	// RFC 4231 test case 2
	assert.Equal(t,
		"5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843",
		SignHMACSHA256("Jefe", []byte("what do ya want for nothing?")))
}
