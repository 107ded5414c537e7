package cooc

import (
	"fmt"

	"github.com/tensorplex-labs/novelty/internal/config"
)

// ParseMode maps a configured mode name to a Mode.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "", config.ModeCombinatorial:
		return ModeCombinatorial, nil
	case config.ModeBinarizedDot:
		return ModeBinarizedDot, nil
	}
	return 0, fmt.Errorf("unknown co-occurrence mode %q", name)
}

// OptionsFromConfig builds builder options from an indicator's matrix policy.
func OptionsFromConfig(c config.MatrixConfig) (Options, error) {
	mode, err := ParseMode(c.Mode)
	if err != nil {
		return Options{}, err
	}
	return Options{Mode: mode, Weighted: c.Weighted, KeepDiag: c.KeepDiag}, nil
}
