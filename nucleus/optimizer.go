package nucleus

// SGD is a momentum optimizer over a fixed parameter list. The learning
// rate is mutable: the scheduler rescales it before every update depending
// on how many remote gradients arrived during the epoch.
type SGD struct {
	LR       float64
	Momentum float64

	velocity [][]float64
}

func NewSGD(lr, momentum float64, params []*Param) *SGD {
	velocity := make([][]float64, len(params))
	for i, p := range params {
		velocity[i] = make([]float64, len(p.Data))
	}
	return &SGD{LR: lr, Momentum: momentum, velocity: velocity}
}

// Step applies one update from the accumulated gradients. It does not zero
// them; the caller pairs it with ZeroGrad inside the same critical section.
func (s *SGD) Step(params []*Param) {
	for i, p := range params {
		vel := s.velocity[i]
		for j := range p.Data {
			vel[j] = s.Momentum*vel[j] + p.Grad[j]
			p.Data[j] -= s.LR * vel[j]
		}
	}
}

func (s *SGD) ZeroGrad(params []*Param) {
	for _, p := range params {
		p.zeroGrad()
	}
}
