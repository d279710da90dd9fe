package utils

func BoolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// DedupInt64 drops duplicate ids while preserving first-seen order.
func DedupInt64(in []int64) []int64 {
	seen := map[int64]bool{}
	out := make([]int64, 0, len(in))
	for _, id := range in {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
