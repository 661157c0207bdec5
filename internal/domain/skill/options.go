package skill

// Option applies a configuration option to the Model.
type Option func(*Model)

// WithInitial sets the prior rating handed to new entities.
func WithInitial(mu, sigma float64) Option {
	return func(m *Model) {
		if sigma > 0 {
			m.mu = mu
			m.sigma = sigma
		}
	}
}

// WithBeta sets the performance standard deviation.
func WithBeta(beta float64) Option {
	return func(m *Model) {
		if beta > 0 {
			m.beta = beta
		}
	}
}

// WithTau sets the dynamics factor added to σ² before every update.
func WithTau(tau float64) Option {
	return func(m *Model) {
		if tau >= 0 {
			m.tau = tau
		}
	}
}

// WithDrawProbability sets the prior probability of a draw between equals.
func WithDrawProbability(p float64) Option {
	return func(m *Model) {
		if p >= 0 && p < 1 {
			m.drawProbability = p
		}
	}
}

// WithSigmaFloor sets the minimum σ produced by an update.
func WithSigmaFloor(floor float64) Option {
	return func(m *Model) {
		if floor > 0 {
			m.sigmaFloor = floor
		}
	}
}
