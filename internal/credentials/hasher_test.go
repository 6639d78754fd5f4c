package credentials

import (
	"strings"
	"testing"

	"github.com/netsync/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHasher() *Hasher {
	return NewHasher(Params{
		MemoryKiB:   8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
}

func TestHashAndVerify(t *testing.T) {
	h := testHasher()

	encoded, err := h.Hash("Passw0rd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$"))

	assert.True(t, h.Verify("Passw0rd", encoded))
	assert.False(t, h.Verify("passw0rd", encoded))
	assert.False(t, h.Verify("", encoded))
}

func TestHash_Salted(t *testing.T) {
	h := testHasher()

	first, err := h.Hash("123456")
	require.NoError(t, err)
	second, err := h.Hash("123456")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, h.Verify("123456", first))
	assert.True(t, h.Verify("123456", second))
}

func TestVerify_MalformedNeverMatches(t *testing.T) {
	h := testHasher()
	valid, err := h.Hash("Passw0rd")
	require.NoError(t, err)
	parts := strings.Split(valid, "$")

	cases := map[string]string{
		"empty":         "",
		"garbage":       "not-a-hash",
		"bcrypt":        "$2a$10$abcdefghijklmnopqrstuu",
		"wrong version": strings.Replace(valid, "v=19", "v=16", 1),
		"bad params":    strings.Join([]string{"", parts[1], parts[2], "m=x,t=1,p=1", parts[4], parts[5]}, "$"),
		"bad salt":      strings.Join([]string{"", parts[1], parts[2], parts[3], "!!!", parts[5]}, "$"),
		"bad key":       strings.Join([]string{"", parts[1], parts[2], parts[3], parts[4], "!!!"}, "$"),
		"zero memory":   strings.Join([]string{"", parts[1], parts[2], "m=0,t=1,p=1", parts[4], parts[5]}, "$"),
		"huge memory":   strings.Join([]string{"", parts[1], parts[2], "m=4194304,t=1,p=1", parts[4], parts[5]}, "$"),
	}

	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, h.Verify("Passw0rd", encoded))
		})
	}
}

func TestParamsFromConfigDefaults(t *testing.T) {
	p := ParamsFromConfig(config.Argon2Config{})
	assert.Equal(t, DefaultParams(), p)
}

func TestHashAndVerify_HighParallelism(t *testing.T) {
	for _, p := range []uint8{127, 128, 255} {
		h := NewHasher(Params{
			MemoryKiB:   2048,
			Iterations:  1,
			Parallelism: p,
			SaltLength:  16,
			KeyLength:   32,
		})

		encoded, err := h.Hash("Passw0rd")
		require.NoError(t, err)
		assert.True(t, h.Verify("Passw0rd", encoded), "parallelism %d", p)
	}
}

func TestWithinBounds_LargeLimits(t *testing.T) {
	limits := Params{MemoryKiB: 1 << 31, Iterations: 1 << 31, Parallelism: 200, SaltLength: 16, KeyLength: 32}
	assert.True(t, withinBounds(limits, limits))

	nearDouble := limits
	nearDouble.Iterations = 1<<32 - 1
	assert.True(t, withinBounds(nearDouble, limits))

	small := Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	over := small
	over.Parallelism = 3
	assert.False(t, withinBounds(over, small))
}
