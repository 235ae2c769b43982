package onset

type Config struct {
	// EpsilonSeconds is the width of the glow window ahead of the impact line.
	EpsilonSeconds float64 `json:"epsilonSeconds"`
	GlowSeconds    float64 `json:"glowSeconds"`
	// MaxCatchUpSeconds is the largest forward step between two ticks that
	// still fires the onsets it skipped. Anything larger is treated as a seek.
	MaxCatchUpSeconds float64 `json:"maxCatchUpSeconds"`
}

func DefaultConfig() Config {
	return Config{
		EpsilonSeconds:    0.05,
		GlowSeconds:       0.25,
		MaxCatchUpSeconds: 0.5,
	}
}

type GlowEntry struct {
	Pitch     uint8   `json:"pitch"`
	ExpiresAt float64 `json:"expiresAt"`
}

type Result struct {
	ActivePitches []uint8 `json:"activePitches"`
	GlowPitches   []uint8 `json:"glowPitches"`
}
