// Package reward implements the scalar reward calculations used to score
// scanning actions: curiosity rewards that decay over steps, penalty scoring
// over action history and tool output, and a flag-match reward. All functions
// are pure: thresholds and constants come from explicit parameter values, and
// no function touches the ingestion pipeline's state.
package reward

// Params holds the curiosity reward constants.
type Params struct {
	BaseReward       float64
	DecayRate        float64
	PenaltyRedundant float64
	PenaltyError     float64
}

// DefaultParams returns the standard curiosity constants.
func DefaultParams() Params {
	return Params{
		BaseReward:       1.0,
		DecayRate:        0.005,
		PenaltyRedundant: 0.3,
		PenaltyError:     0.5,
	}
}

// CuriosityDecay returns the curiosity reward at the given step:
// base * (1 - decay*step), floored at zero. Early steps earn close to the
// base reward; late steps approach nothing.
func CuriosityDecay(step int, p Params) float64 {
	reward := p.BaseReward * (1 - p.DecayRate*float64(step))
	if reward < 0 {
		return 0
	}
	return reward
}

// CuriosityWithPenalty combines step decay with negative rewards for
// redundant or error-producing actions. The result is floored at -1.
func CuriosityWithPenalty(step int, redundant, causedError bool, p Params) float64 {
	reward := CuriosityDecay(step, p)
	if redundant {
		reward -= p.PenaltyRedundant
	}
	if causedError {
		reward -= p.PenaltyError
	}
	if reward < -1.0 {
		return -1.0
	}
	return reward
}
