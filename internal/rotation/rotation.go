// Package rotation implements bounded, wrap-around batch selection over source
// lists and the persisted cursor that drives it between runs.
package rotation

// Normalize maps any index, including negative ones, into [0, length).
// It returns 0 for an empty list.
func Normalize(index, length int) int {
	if length <= 0 {
		return 0
	}
	index %= length
	if index < 0 {
		index += length
	}
	return index
}

// SelectBatch returns up to batchSize elements of list starting at
// startIndex mod len(list), wrapping to the front. An element never appears
// twice in one batch, so the batch holds min(batchSize, len(list)) elements.
func SelectBatch[T any](list []T, startIndex, batchSize int) []T {
	n := len(list)
	if n == 0 || batchSize <= 0 {
		return []T{}
	}
	count := min(batchSize, n)
	start := Normalize(startIndex, n)
	batch := make([]T, 0, count)
	for i := 0; i < count; i++ {
		batch = append(batch, list[(start+i)%n])
	}
	return batch
}

// AdvanceIndex returns the next start index after consuming consumed elements.
func AdvanceIndex(startIndex, consumed, length int) int {
	if length <= 0 {
		return 0
	}
	return Normalize(startIndex+consumed, length)
}
