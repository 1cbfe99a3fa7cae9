package hashindex

import (
	"fmt"
	"math/bits"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/persist"
)

// Test parameters.
const (
	testAddress = "123 MAIN ST"
	testSource  = "zillow"

	// testRecallSamples is the synthetic dataset size for the recall check.
	testRecallSamples = 2000

	// testMinRecall is the minimum acceptable near-duplicate recall.
	testMinRecall = 0.99

	// testSeed keeps the synthetic dataset reproducible.
	testSeed = 42
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()

	idx, err := New(DefaultBands, DefaultThreshold)
	require.NoError(t, err)

	return idx
}

// flipBits returns hash with n distinct random bits inverted.
func flipBits(rng *rand.Rand, hash uint64, n int) uint64 {
	flipped := hash
	chosen := make(map[int]struct{}, n)

	for len(chosen) < n {
		bit := rng.Intn(HashBits)
		if _, dup := chosen[bit]; dup {
			continue
		}

		chosen[bit] = struct{}{}
		flipped ^= 1 << uint(bit)
	}

	return flipped
}

func TestNew_RejectsUnevenBands(t *testing.T) {
	t.Parallel()

	for _, bands := range []int{0, 3, 7, 12, 64} {
		_, err := New(bands, DefaultThreshold)
		assert.ErrorIs(t, err, ErrInvalidBands, "bands=%d", bands)
	}
}

func TestBandKey_NaturalByteOrder(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)

	// 0x0102030405060708: band 0 is the most significant byte.
	hash := uint64(0x0102030405060708)
	for band := range DefaultBands {
		assert.Equal(t, uint64(band+1), idx.bandKey(hash, band))
	}
}

func TestRegister_ExactDuplicateDetected(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)

	require.NoError(t, idx.Register("img-1", 0xDEADBEEFCAFEF00D, 0x1111, testAddress, testSource))

	id, dup := idx.IsDuplicate(0xDEADBEEFCAFEF00D)
	require.True(t, dup)
	assert.Equal(t, "img-1", id)
}

func TestRegister_IdempotentOnIdenticalID(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)

	require.NoError(t, idx.Register("img-1", 0xAAAA, 0xBBBB, testAddress, testSource))
	require.NoError(t, idx.Register("img-1", 0xAAAA, 0xBBBB, testAddress, testSource))

	assert.Equal(t, 1, idx.Stats().TotalImages)
}

func TestRegister_IDConflictRejected(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)

	require.NoError(t, idx.Register("img-1", 0xAAAA, 0xBBBB, testAddress, testSource))

	err := idx.Register("img-1", 0xCCCC, 0xBBBB, testAddress, testSource)
	assert.ErrorIs(t, err, ErrIDConflict)
}

func TestRegister_IdenticalHashNewIDRejected(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)

	require.NoError(t, idx.Register("img-1", 0xAAAA, 0xBBBB, testAddress, testSource))

	err := idx.Register("img-2", 0xAAAA, 0xBBBB, testAddress, testSource)
	assert.ErrorIs(t, err, ErrHashConflict)
}

func TestIsDuplicate_WithinThreshold(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	rng := rand.New(rand.NewSource(testSeed))

	base := rng.Uint64()
	require.NoError(t, idx.Register("orig", base, 0, testAddress, testSource))

	near := flipBits(rng, base, DefaultThreshold/2)

	id, dup := idx.IsDuplicate(near)
	require.True(t, dup)
	assert.Equal(t, "orig", id)

	far := flipBits(rng, base, HashBits/2)

	_, dup = idx.IsDuplicate(far)
	assert.False(t, dup, "distance %d must not match", bits.OnesCount64(base^far))
}

func TestIsDuplicateForAddress_ScopedLookup(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)

	require.NoError(t, idx.Register("img-a", 0xF0F0F0F0F0F0F0F0, 0, "ADDR A", testSource))
	require.NoError(t, idx.Register("img-b", 0x0F0F0F0F0F0F0F0F, 0, "ADDR B", testSource))

	id, dup := idx.IsDuplicateForAddress(0xF0F0F0F0F0F0F0F0, "ADDR A")
	require.True(t, dup)
	assert.Equal(t, "img-a", id)

	_, dup = idx.IsDuplicateForAddress(0xF0F0F0F0F0F0F0F0, "ADDR B")
	assert.False(t, dup, "scoped query does not see other properties")
}

func TestRemove_NetCountAndBuckets(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	rng := rand.New(rand.NewSource(testSeed))

	const n = 50

	hashes := make([]uint64, n)
	for i := range n {
		hashes[i] = rng.Uint64()
		require.NoError(t, idx.Register(fmt.Sprintf("img-%d", i), hashes[i], 0, testAddress, testSource))
	}

	for i := 0; i < n; i += 2 {
		idx.Remove(fmt.Sprintf("img-%d", i))
	}

	stats := idx.Stats()
	assert.Equal(t, n/2, stats.TotalImages)
	assert.Equal(t, n/2, stats.PerSource[testSource])

	_, dup := idx.IsDuplicate(hashes[0])
	assert.False(t, dup, "removed entries leave no bucket residue")
}

func TestRecall_SyntheticNearDuplicates(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	rng := rand.New(rand.NewSource(testSeed))

	hashes := make([]uint64, testRecallSamples)
	for i := range testRecallSamples {
		hashes[i] = rng.Uint64()

		err := idx.Register(fmt.Sprintf("img-%d", i), hashes[i], 0, testAddress, testSource)
		require.NoError(t, err)
	}

	found := 0

	for i := range testRecallSamples {
		distance := 1 + rng.Intn(DefaultThreshold)
		query := flipBits(rng, hashes[i], distance)

		_, dup := idx.IsDuplicate(query)
		if dup {
			found++
		}
	}

	recall := float64(found) / float64(testRecallSamples)
	assert.GreaterOrEqual(t, recall, testMinRecall, "near-duplicate recall")
}

func TestHashCodec_BigEndianHex(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "deadbeefcafef00d", FormatHash(0xDEADBEEFCAFEF00D))
	assert.Equal(t, "0000000000000001", FormatHash(1))

	v, err := ParseHash("deadbeefcafef00d")
	require.NoError(t, err)
	assert.Equal(t, uint64(0xDEADBEEFCAFEF00D), v)

	_, err = ParseHash("abc")
	require.Error(t, err)
}

func TestSaveLoad_RoundTripAnswers(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	rng := rand.New(rand.NewSource(testSeed))

	const n = 200

	hashes := make([]uint64, n)
	for i := range n {
		hashes[i] = rng.Uint64()
		require.NoError(t, idx.Register(fmt.Sprintf("img-%d", i), hashes[i], rng.Uint64(), testAddress, testSource))
	}

	path := filepath.Join(t.TempDir(), "hash_index.json")
	codec := persist.NewJSONCodec()

	require.NoError(t, idx.Save(path, codec))

	loaded, err := Load(path, codec, DefaultBands, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, n, loaded.Stats().TotalImages)

	// Sampled queries answer identically before and after the round trip.
	for i := 0; i < n; i += 7 {
		query := flipBits(rng, hashes[i], 1+rng.Intn(DefaultThreshold))

		wantID, wantDup := idx.IsDuplicate(query)
		gotID, gotDup := loaded.IsDuplicate(query)

		assert.Equal(t, wantDup, gotDup)
		assert.Equal(t, wantID, gotID)
	}
}

func TestLoad_MissingFileYieldsEmptyIndex(t *testing.T) {
	t.Parallel()

	idx, err := Load(filepath.Join(t.TempDir(), "absent.json"), persist.NewJSONCodec(), DefaultBands, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Stats().TotalImages)
}
