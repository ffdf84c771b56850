package generate

// Shard returns the dataset indices assigned to one device: every i in
// [0, n) with i % workers == device, ascending. The shards over all devices
// partition the index range; they are pairwise disjoint and their union is
// the full range.
func Shard(n, workers, device int) []int {
	if n <= 0 || workers <= 0 || device < 0 || device >= workers {
		return nil
	}
	idxs := make([]int, 0, (n-device+workers-1)/workers)
	for i := device; i < n; i += workers {
		idxs = append(idxs, i)
	}
	return idxs
}
