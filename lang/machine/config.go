package machine

import "github.com/caarlos0/env/v6"

// Config bounds how much work a Thread will do before giving up, the same
// way the teacher's Thread.steps/maxSteps guards a runaway script — Arbor
// has no infinite-loop construct of its own (no while/goto), but an
// unbounded `reduce`/`map` over a self-referential iterator could still
// spin forever, so the limits exist as a backstop rather than a language
// feature. The zero-value Config{} still runs programs: every field of 0
// means "unbounded".
type Config struct {
	// MaxSteps caps the number of bytecode instructions a single Interpret
	// call may execute. 0 means unbounded.
	MaxSteps uint64 `env:"ARBOR_MAX_STEPS" envDefault:"0"`

	// MaxCallDepth caps Arbor call nesting (recursion). 0 means unbounded.
	MaxCallDepth int `env:"ARBOR_MAX_CALL_DEPTH" envDefault:"0"`
}

// LoadConfig reads Config fields from the environment, falling back to
// their defaults (spec's zero-value-still-runs contract) for anything
// unset.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
