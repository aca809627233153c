package toy

import "math/rand"

// Mat is a dense row-major float32 matrix.
type Mat struct {
	R, C int
	Data []float32
}

// NewMat allocates a zeroed r x c matrix.
func NewMat(r, c int) Mat {
	if r < 0 || c < 0 {
		panic("negative dimension for matrix")
	}
	return Mat{R: r, C: c, Data: make([]float32, r*c)}
}

// Row returns row i as a slice aliasing the matrix data.
func (m Mat) Row(i int) []float32 {
	return m.Data[i*m.C : (i+1)*m.C]
}

// FillRand fills m with values drawn uniformly from (-scale/2, scale/2).
func FillRand(m *Mat, seed int64, scale float32) {
	rng := rand.New(rand.NewSource(seed))
	for i := range m.Data {
		m.Data[i] = (rng.Float32() - 0.5) * scale
	}
}

// MatVec computes dst = w·x. dst must hold w.R values and x w.C values.
func MatVec(dst []float32, w *Mat, x []float32) {
	if len(dst) < w.R || len(x) < w.C {
		panic("matvec shape mismatch")
	}
	for r := 0; r < w.R; r++ {
		row := w.Row(r)
		var sum float32
		for c, v := range row {
			sum += v * x[c]
		}
		dst[r] = sum
	}
}
