package pulse

// SortByOriginY orders pulses by descending origin Y using an iterative
// bottom-up merge. Pulses with equal Y keep their insertion order.
func (m *Manager) SortByOriginY() {
	n := len(m.pulses)
	if n < 2 {
		return
	}
	src := m.pulses
	dst := make([]*Pulse, n)
	for width := 1; width < n; width *= 2 {
		for lo := 0; lo < n; lo += 2 * width {
			mid := min(lo+width, n)
			hi := min(lo+2*width, n)
			mergeDescendingY(dst[lo:hi], src[lo:mid], src[mid:hi])
		}
		src, dst = dst, src
	}
	m.pulses = src
	m.reindex()
}

func mergeDescendingY(out, left, right []*Pulse) {
	i, j, k := 0, 0, 0
	for i < len(left) && j < len(right) {
		if left[i].Origin.Y >= right[j].Origin.Y {
			out[k] = left[i]
			i++
		} else {
			out[k] = right[j]
			j++
		}
		k++
	}
	k += copy(out[k:], left[i:])
	copy(out[k:], right[j:])
}
