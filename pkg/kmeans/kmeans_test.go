package kmeans

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/moodlens/pkg/colorspace"
)

// repeatColor builds n copies of a single sample
func repeatColor(c colorspace.RGB, n int) []colorspace.RGB {
	out := make([]colorspace.RGB, n)
	for i := range out {
		out[i] = c
	}
	return out
}

func assertWellFormed(t *testing.T, clusters []Cluster, k int) {
	t.Helper()
	assert.LessOrEqual(t, len(clusters), k)
	for i, c := range clusters {
		assert.GreaterOrEqual(t, c.Size, 1, "cluster %d is empty", i)
		for _, v := range c.Centroid {
			assert.GreaterOrEqual(t, v, 0)
			assert.LessOrEqual(t, v, 255)
		}
		if i > 0 {
			assert.GreaterOrEqual(t, clusters[i-1].Size, c.Size, "clusters not sorted by size")
		}
	}
}

func TestClusterEmpty(t *testing.T) {
	c := New(WithSeed(1))
	assert.Empty(t, c.Cluster(nil, 3))
	assert.Empty(t, c.Cluster([]colorspace.RGB{}, 3))
	assert.Empty(t, c.Cluster([]colorspace.RGB{{1, 2, 3}}, 0))
}

func TestClusterSeparatesDistinctGroups(t *testing.T) {
	red := colorspace.RGB{250, 10, 10}
	green := colorspace.RGB{10, 250, 10}
	blue := colorspace.RGB{10, 10, 250}

	var samples []colorspace.RGB
	samples = append(samples, repeatColor(red, 600)...)
	samples = append(samples, repeatColor(green, 300)...)
	samples = append(samples, repeatColor(blue, 100)...)

	for seed := uint64(0); seed < 20; seed++ {
		clusters := New(WithSeed(seed)).Cluster(samples, 3)
		assertWellFormed(t, clusters, 3)
		require.NotEmpty(t, clusters, "seed %d", seed)

		total := 0
		for _, c := range clusters {
			total += c.Size
		}
		assert.Equal(t, len(samples), total, "seed %d", seed)
		// identical samples never split, so the red block stays whole
		assert.GreaterOrEqual(t, clusters[0].Size, 600, "seed %d", seed)

		if len(clusters) == 3 {
			assert.Equal(t, []colorspace.RGB{red, green, blue},
				[]colorspace.RGB{clusters[0].Centroid, clusters[1].Centroid, clusters[2].Centroid}, "seed %d", seed)
		}
	}
}

// Two initial centroids on the same color leave one of them empty; it is not
// reseeded, and the remaining colors share whatever centroids are left.
func TestClusterDuplicateSeedsMerge(t *testing.T) {
	red := colorspace.RGB{250, 10, 10}
	samples := append(repeatColor(red, 600), repeatColor(colorspace.RGB{10, 250, 10}, 300)...)
	samples = append(samples, repeatColor(colorspace.RGB{10, 10, 250}, 100)...)

	merged := false
	for seed := uint64(0); seed < 64; seed++ {
		clusters := New(WithSeed(seed)).Cluster(samples, 3)
		if len(clusters) == 3 {
			continue
		}
		merged = true
		require.Len(t, clusters, 2, "seed %d", seed)
		assert.Equal(t, len(samples), clusters[0].Size+clusters[1].Size, "seed %d", seed)
		assert.GreaterOrEqual(t, clusters[0].Size, 600, "seed %d", seed)
	}
	assert.True(t, merged, "no seed drew two centroids from the same color")
}

func TestClusterFewerSamplesThanK(t *testing.T) {
	samples := []colorspace.RGB{{0, 0, 0}, {255, 255, 255}}
	clusters := New(WithSeed(7)).Cluster(samples, 5)
	require.Len(t, clusters, 2)
	assertWellFormed(t, clusters, 5)
}

func TestClusterIdenticalSamplesCollapse(t *testing.T) {
	samples := repeatColor(colorspace.RGB{40, 80, 120}, 50)
	clusters := New(WithSeed(3)).Cluster(samples, 3)
	require.Len(t, clusters, 1)
	assert.Equal(t, 50, clusters[0].Size)
	assert.Equal(t, colorspace.RGB{40, 80, 120}, clusters[0].Centroid)
}

func TestClusterIsReproducibleWithSeed(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	samples := make([]colorspace.RGB, 2000)
	for i := range samples {
		samples[i] = colorspace.RGB{rng.IntN(256), rng.IntN(256), rng.IntN(256)}
	}

	a := New(WithSeed(42)).Cluster(samples, 4)
	b := New(WithSeed(42)).Cluster(samples, 4)
	assert.Equal(t, a, b)
	assertWellFormed(t, a, 4)
}

func TestParallelAssignmentMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	samples := make([]colorspace.RGB, parallelThreshold*3)
	for i := range samples {
		samples[i] = colorspace.RGB{rng.IntN(256), rng.IntN(256), rng.IntN(256)}
	}

	serial := New(WithSeed(9), WithWorkers(1)).Cluster(samples, 5)
	parallel := New(WithSeed(9), WithWorkers(4)).Cluster(samples, 5)
	assert.Equal(t, serial, parallel)
}

func TestNearestTieBreaksToLowestIndex(t *testing.T) {
	centroids := []colorspace.RGB{{0, 0, 0}, {20, 0, 0}, {10, 0, 0}}
	assert.Equal(t, 2, Nearest(colorspace.RGB{10, 0, 0}, centroids))
	// equidistant from centroid 0 and 1
	assert.Equal(t, 0, Nearest(colorspace.RGB{10, 0, 0}, centroids[:2]))
}

func TestUpdateKeepsEmptyCentroid(t *testing.T) {
	samples := []colorspace.RGB{{10, 10, 10}, {13, 13, 13}}
	centroids := []colorspace.RGB{{0, 0, 0}, {200, 200, 200}}
	update(samples, centroids, []int{0, 0})

	assert.Equal(t, colorspace.RGB{11, 11, 11}, centroids[0], "mean is truncated")
	assert.Equal(t, colorspace.RGB{200, 200, 200}, centroids[1])
}

func BenchmarkCluster(b *testing.B) {
	rng := rand.New(rand.NewPCG(1, 2))
	samples := make([]colorspace.RGB, 200*200)
	for i := range samples {
		samples[i] = colorspace.RGB{rng.IntN(256), rng.IntN(256), rng.IntN(256)}
	}
	c := New(WithSeed(1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Cluster(samples, DefaultK)
	}
}
