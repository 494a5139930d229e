package render

// LabelIndices picks which of total lane labels to draw: every stride-th label with a
// stride that keeps the count near target, plus the last one.
func LabelIndices(total, target int) []int {
	if total <= 0 {
		return nil
	}
	if target <= 0 {
		target = 1
	}
	stride := (total + target - 1) / target
	out := make([]int, 0, total/stride+2)
	for i := 0; i < total; i += stride {
		out = append(out, i)
	}
	if out[len(out)-1] != total-1 {
		out = append(out, total-1)
	}
	return out
}
