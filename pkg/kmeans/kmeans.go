// Package kmeans finds the dominant colors of a sample population.
//
// The clusterer runs a fixed number of Lloyd iterations instead of iterating to
// convergence. k is small and the data is three dimensional, so ten passes are
// enough in practice, and the fixed budget bounds latency for interactive use.
package kmeans

import (
	"math/rand/v2"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/menta2k/moodlens/pkg/colorspace"
)

// Iterations is the fixed number of assign/update passes
const Iterations = 10

// DefaultK is the number of clusters used by the pipeline
const DefaultK = 3

// parallelThreshold is the sample count above which assignment is split across goroutines
const parallelThreshold = 8192

// Cluster is a final centroid and the number of samples assigned to it
type Cluster struct {
	Centroid colorspace.RGB
	Size     int
}

// Clusterer partitions RGB samples with k-means
type Clusterer struct {
	rng     *rand.Rand
	workers int
}

// Option configures a Clusterer
type Option func(*Clusterer)

// WithSeed makes centroid initialization reproducible
func WithSeed(seed uint64) Option {
	return func(c *Clusterer) {
		c.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithRand injects the random source used to pick initial centroids
func WithRand(rng *rand.Rand) Option {
	return func(c *Clusterer) {
		c.rng = rng
	}
}

// WithWorkers bounds the goroutines used for the assignment step. 1 disables parallelism.
func WithWorkers(n int) Option {
	return func(c *Clusterer) {
		if n > 0 {
			c.workers = n
		}
	}
}

// New creates a Clusterer seeded from the wall clock unless an option overrides it
func New(opts ...Option) *Clusterer {
	seed := uint64(time.Now().UnixNano())
	c := &Clusterer{
		rng:     rand.New(rand.NewPCG(seed, seed>>1)),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cluster partitions samples into at most k clusters, most populous first.
// Empty input or k < 1 yields no clusters.
func (c *Clusterer) Cluster(samples []colorspace.RGB, k int) []Cluster {
	if len(samples) == 0 || k < 1 {
		return nil
	}

	centroids := c.initialCentroids(samples, k)
	assignments := make([]int, len(samples))

	for iter := 0; iter < Iterations; iter++ {
		c.assign(samples, centroids, assignments)
		update(samples, centroids, assignments)
	}

	c.assign(samples, centroids, assignments)
	counts := make([]int, len(centroids))
	for _, a := range assignments {
		counts[a]++
	}

	clusters := make([]Cluster, 0, len(centroids))
	for i, centroid := range centroids {
		if counts[i] == 0 {
			continue
		}
		clusters = append(clusters, Cluster{Centroid: colorspace.Clamp(centroid), Size: counts[i]})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Size > clusters[j].Size
	})
	return clusters
}

// initialCentroids picks min(k, len(samples)) distinct sample indices uniformly at random
func (c *Clusterer) initialCentroids(samples []colorspace.RGB, k int) []colorspace.RGB {
	n := len(samples)
	if k > n {
		k = n
	}

	// partial Fisher-Yates over the index space
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	centroids := make([]colorspace.RGB, k)
	for i := 0; i < k; i++ {
		j := i + c.rng.IntN(n-i)
		indices[i], indices[j] = indices[j], indices[i]
		centroids[i] = samples[indices[i]]
	}
	return centroids
}

// assign writes the index of the nearest centroid for every sample.
// Each sample depends only on the current centroids, so chunks run independently.
func (c *Clusterer) assign(samples, centroids []colorspace.RGB, assignments []int) {
	if c.workers <= 1 || len(samples) < parallelThreshold {
		assignRange(samples, centroids, assignments, 0, len(samples))
		return
	}

	chunk := (len(samples) + c.workers - 1) / c.workers
	var g errgroup.Group
	g.SetLimit(c.workers)
	for start := 0; start < len(samples); start += chunk {
		start, end := start, min(start+chunk, len(samples))
		g.Go(func() error {
			assignRange(samples, centroids, assignments, start, end)
			return nil
		})
	}
	_ = g.Wait()
}

func assignRange(samples, centroids []colorspace.RGB, assignments []int, start, end int) {
	for i := start; i < end; i++ {
		assignments[i] = Nearest(samples[i], centroids)
	}
}

// Nearest returns the index of the closest centroid; ties go to the lowest index.
func Nearest(sample colorspace.RGB, centroids []colorspace.RGB) int {
	best := 0
	bestDist := -1
	for j, centroid := range centroids {
		d := colorspace.DistanceSquared(sample, centroid)
		if bestDist < 0 || d < bestDist {
			best = j
			bestDist = d
		}
	}
	return best
}

// update moves each centroid to the truncated mean of its members.
// A centroid without members keeps its previous position.
func update(samples, centroids []colorspace.RGB, assignments []int) {
	sums := make([]colorspace.RGB, len(centroids))
	counts := make([]int, len(centroids))
	for i, a := range assignments {
		sums[a][0] += samples[i][0]
		sums[a][1] += samples[i][1]
		sums[a][2] += samples[i][2]
		counts[a]++
	}
	for j := range centroids {
		if counts[j] == 0 {
			continue
		}
		centroids[j] = colorspace.RGB{sums[j][0] / counts[j], sums[j][1] / counts[j], sums[j][2] / counts[j]}
	}
}
