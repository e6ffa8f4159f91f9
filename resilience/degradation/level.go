package degradation

// Level is the coarse availability tier governing which fallback strategies
// are eligible. Higher values mean healthier.
type Level int

const (
	LevelEmergency Level = iota + 1
	LevelLimited
	LevelDegraded
	LevelFull
)

// String returns the string representation of a service level.
func (l Level) String() string {
	switch l {
	case LevelEmergency:
		return "emergency"
	case LevelLimited:
		return "limited"
	case LevelDegraded:
		return "degraded"
	case LevelFull:
		return "full"
	default:
		return "unknown"
	}
}

// next returns the level one rank upward, capped at full.
func (l Level) next() Level {
	if l >= LevelFull {
		return LevelFull
	}

	return l + 1
}
