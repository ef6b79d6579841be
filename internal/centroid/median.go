package centroid

import "sort"

// medianDenoise3 applies a 3×3 median filter to a row-major w×h grid,
// clamping the window at the edges. Counterpart of the reference pipeline's
// denoising pass before thresholding.
func medianDenoise3(pix []float64, w, h int) []float64 {
	out := make([]float64, len(pix))
	var window [9]float64

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					xx := x + dx
					if xx < 0 || xx >= w {
						continue
					}
					window[n] = pix[yy*w+xx]
					n++
				}
			}

			vals := window[:n]
			sort.Float64s(vals)
			out[y*w+x] = vals[n/2]
		}
	}
	return out
}
