// Package skill implements the Gaussian skill model used for matchmaking:
// a TrueSkill style 1v1 update, match quality and win probability.
package skill

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// normal is the standard Gaussian behind the truncated-update factors.
var normal = distuv.UnitNormal

// Default model parameters. They match the classic TrueSkill environment.
const (
	DefaultMu              = 25.0
	DefaultSigma           = DefaultMu / 3
	DefaultBeta            = DefaultSigma / 2
	DefaultTau             = DefaultSigma / 100
	DefaultDrawProbability = 0.10
	DefaultSigmaFloor      = 1e-3

	// minDenominator guards truncated Gaussian ratios when a CDF underflows.
	minDenominator = 2.222758749e-162
)

// Rating is a Gaussian belief about an entity's skill.
type Rating struct {
	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"`
}

// Model holds the fixed parameters of the skill model.
type Model struct {
	mu              float64
	sigma           float64
	beta            float64
	tau             float64
	drawProbability float64
	sigmaFloor      float64

	// drawMargin is derived from drawProbability and beta.
	drawMargin float64
}

// NewModel creates a model with the classic TrueSkill defaults, adjusted by opts.
func NewModel(opts ...Option) *Model {
	m := &Model{
		mu:              DefaultMu,
		sigma:           DefaultSigma,
		beta:            DefaultBeta,
		tau:             DefaultTau,
		drawProbability: DefaultDrawProbability,
		sigmaFloor:      DefaultSigmaFloor,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.drawMargin = normal.Quantile((m.drawProbability+1)/2) * math.Sqrt2 * m.beta
	return m
}

// Initial returns the prior rating for a new entity.
func (m *Model) Initial() Rating {
	return Rating{Mu: m.mu, Sigma: m.sigma}
}

// Beta returns the performance standard deviation.
func (m *Model) Beta() float64 { return m.beta }

// SigmaFloor returns the smallest σ the model will ever produce.
func (m *Model) SigmaFloor() float64 { return m.sigmaFloor }

// DrawMargin returns the performance gap under which a game counts as drawn.
func (m *Model) DrawMargin() float64 { return m.drawMargin }

// UpdatePair returns the revised ratings of r1 and r2 after a game whose
// outcome is given from r1's point of view.
func (m *Model) UpdatePair(r1, r2 Rating, outcome Outcome) (Rating, Rating) {
	switch outcome {
	case Win:
		return m.rate(r1, r2, false)
	case Loss:
		w, l := m.rate(r2, r1, false)
		return l, w
	default:
		return m.rate(r1, r2, true)
	}
}

// rate applies the 1v1 update where r1 beat r2, or drew with it.
func (m *Model) rate(r1, r2 Rating, drawn bool) (Rating, Rating) {
	s1 := r1.Sigma*r1.Sigma + m.tau*m.tau
	s2 := r2.Sigma*r2.Sigma + m.tau*m.tau

	c2 := 2*m.beta*m.beta + (s1 + s2)
	c := math.Sqrt(c2)

	t := (r1.Mu - r2.Mu) / c
	e := m.drawMargin / c

	var v, w float64
	if drawn {
		v, w = vDraw(t, e), wDraw(t, e)
	} else {
		v, w = vWin(t, e), wWin(t, e)
	}

	n1 := Rating{
		Mu:    r1.Mu + s1/c*v,
		Sigma: m.floor(math.Sqrt(s1 * (1 - s1/c2*w))),
	}
	n2 := Rating{
		Mu:    r2.Mu - s2/c*v,
		Sigma: m.floor(math.Sqrt(s2 * (1 - s2/c2*w))),
	}
	return n1, n2
}

// MatchQuality estimates the probability that r1 and r2 draw. It is highest
// when the means are close and the uncertainties are large.
func (m *Model) MatchQuality(r1, r2 Rating) float64 {
	b2 := 2 * m.beta * m.beta
	c2 := b2 + (r1.Sigma*r1.Sigma + r2.Sigma*r2.Sigma)
	d := r1.Mu - r2.Mu
	q := math.Sqrt(b2/c2) * math.Exp(-(d*d)/(2*c2))
	return clamp01(q)
}

// WinProbability returns the probability that r1 outperforms r2.
func (m *Model) WinProbability(r1, r2 Rating) float64 {
	c := math.Sqrt(2*m.beta*m.beta + (r1.Sigma*r1.Sigma + r2.Sigma*r2.Sigma))
	return clamp01(normal.CDF((r1.Mu - r2.Mu) / c))
}

// Conservative returns μ-3σ, the usual leaderboard estimate.
func (r Rating) Conservative() float64 {
	return r.Mu - 3*r.Sigma
}

func (m *Model) floor(sigma float64) float64 {
	if math.IsNaN(sigma) || sigma < m.sigmaFloor {
		return m.sigmaFloor
	}
	return sigma
}

func vWin(t, e float64) float64 {
	x := t - e
	denom := normal.CDF(x)
	if denom < minDenominator {
		return -x
	}
	return normal.Prob(x) / denom
}

func wWin(t, e float64) float64 {
	x := t - e
	if normal.CDF(x) < minDenominator {
		return 1
	}
	v := vWin(t, e)
	return clamp01(v * (v + x))
}

func vDraw(t, e float64) float64 {
	abs := math.Abs(t)
	a, b := e-abs, -e-abs
	denom := normal.CDF(a) - normal.CDF(b)

	v := a
	if denom >= minDenominator {
		v = (normal.Prob(b) - normal.Prob(a)) / denom
	}
	if t < 0 {
		return -v
	}
	return v
}

func wDraw(t, e float64) float64 {
	abs := math.Abs(t)
	a, b := e-abs, -e-abs
	denom := normal.CDF(a) - normal.CDF(b)
	if denom < minDenominator {
		return 1
	}
	v := vDraw(abs, e)
	return clamp01(v*v + (a*normal.Prob(a)-b*normal.Prob(b))/denom)
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
