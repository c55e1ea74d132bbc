package catalog

// Level is a difficulty tier. The set is closed.
type Level string

const (
	Beginner     Level = "Beginner"
	Intermediate Level = "Intermediate"
	Advanced     Level = "Advanced"
)

var levels = [...]Level{Beginner, Intermediate, Advanced}

// Levels returns the fixed tiers in teaching order.
func Levels() []Level {
	out := make([]Level, len(levels))
	copy(out, levels[:])
	return out
}

// LevelNames is Levels as strings.
func LevelNames() []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = string(l)
	}
	return out
}

// Valid reports whether l is one of the fixed tiers. Comparison is exact.
func (l Level) Valid() bool {
	for _, v := range levels {
		if l == v {
			return true
		}
	}
	return false
}
