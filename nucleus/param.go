package nucleus

import "math"

// Param is one learnable matrix with its gradient accumulator. Both slices
// are guarded by the owning Engine's update lock.
type Param struct {
	Name string
	Rows int
	Cols int
	Data []float64
	Grad []float64
}

func newParam(name string, rows, cols int) *Param {
	return &Param{
		Name: name,
		Rows: rows,
		Cols: cols,
		Data: make([]float64, rows*cols),
		Grad: make([]float64, rows*cols),
	}
}

func (p *Param) at(row, col int) float64 {
	return p.Data[row*p.Cols+col]
}

func (p *Param) zeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// clipGradNorm scales all gradients down so their global L2 norm does not
// exceed maxNorm.
func clipGradNorm(params []*Param, maxNorm float64) float64 {
	var sumSq float64
	for _, p := range params {
		for _, g := range p.Grad {
			sumSq += g * g
		}
	}
	norm := math.Sqrt(sumSq)
	if norm > maxNorm && norm > 0 {
		scale := maxNorm / norm
		for _, p := range params {
			for i := range p.Grad {
				p.Grad[i] *= scale
			}
		}
	}
	return norm
}
