package hashindex

// Stats summarizes index health. Average bucket sizes of 2-10 and a max
// below 50 indicate a well-tuned band count.
type Stats struct {
	TotalImages   int            `json:"total_images"`
	Bands         int            `json:"bands"`
	Threshold     int            `json:"threshold"`
	PerSource     map[string]int `json:"per_source"`
	BucketCount   int            `json:"bucket_count"`
	AvgBucketSize float64        `json:"avg_bucket_size"`
	MaxBucketSize int            `json:"max_bucket_size"`
}

// Stats returns a consistent snapshot of index health counters.
func (x *Index) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()

	stats := Stats{
		TotalImages: len(x.entries),
		Bands:       x.bands,
		Threshold:   x.threshold,
		PerSource:   make(map[string]int, len(x.bySource)),
	}

	for source, count := range x.bySource {
		stats.PerSource[source] = count
	}

	var members int

	for band := range x.bands {
		for _, bucket := range x.buckets[band] {
			stats.BucketCount++
			members += len(bucket)

			if len(bucket) > stats.MaxBucketSize {
				stats.MaxBucketSize = len(bucket)
			}
		}
	}

	if stats.BucketCount > 0 {
		stats.AvgBucketSize = float64(members) / float64(stats.BucketCount)
	}

	return stats
}
