package synth

type envStage uint8

const (
	envIdle envStage = iota
	envAttack
	envDecay
	envSustain
	envRelease
)

func (s envStage) String() string {
	switch s {
	case envIdle:
		return "idle"
	case envAttack:
		return "attack"
	case envDecay:
		return "decay"
	case envSustain:
		return "sustain"
	case envRelease:
		return "release"
	}
	return "invalid"
}

// stepEnvelope advances the ADSR state machine by one sample period (step,
// in seconds). Zero-length stages complete within the same step.
//
//	            gate on             level=1           level=sustain
//	       Idle -------> Attack -----------> Decay ---------------> Sustain
//	                       ^                                           |
//	                       |  gate on (from any stage, keeps level)    | gate off
//	                       +---------------- Release <----------------+
//	                                            | level=0
//	                                            v
//	                                          Idle
func (v *voice) stepEnvelope(step float32) {
	a := v.AttackMS / 1000
	d := v.DecayMS / 1000
	r := v.ReleaseMS / 1000
	s := v.SustainLvl

	// Gate edges. A rising edge re-enters attack from the current level,
	// even mid-release: retriggering a decaying note is legato, it never
	// snaps the level down first.
	if v.Gate && !v.gatePrev {
		v.envStage = envAttack
		if a <= 0 {
			v.envLevel = 1
			v.envStage = envDecay
		}
	} else if !v.Gate && v.gatePrev {
		v.envStage = envRelease
		if r <= 0 {
			v.envLevel = 0
			v.envStage = envIdle
		}
	}
	v.gatePrev = v.Gate

	switch v.envStage {
	case envAttack:
		if a > 0 {
			v.envLevel += step / a
		} else {
			v.envLevel = 1
		}
		if v.envLevel >= 1 {
			v.envLevel = 1
			v.envStage = envDecay
		}
	case envDecay:
		if d > 0 {
			v.envLevel -= (step / d) * max(1-s, 0)
		} else {
			v.envLevel = s
		}
		if v.envLevel <= s {
			v.envLevel = s
			v.envStage = envSustain
		}
	case envSustain:
		v.envLevel = s
		// Covers decay completing after the gate already dropped.
		if !v.Gate {
			v.envStage = envRelease
		}
	case envRelease:
		if r > 0 {
			// Proportional to the current level, so the tail decays
			// exponentially.
			v.envLevel -= (step / r) * max(v.envLevel, 0)
		} else {
			v.envLevel = 0
		}
		if v.envLevel <= 0 {
			v.envLevel = 0
			v.envStage = envIdle
		}
	default:
		// Idle self-corrects from whatever the gate says.
		if v.Gate {
			v.envLevel = 1
		} else {
			v.envLevel = 0
		}
	}
}
