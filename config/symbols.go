package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SymbolUniverses groups the ticker lists each view fetches. Summary is the
// small set the summary-stats view aggregates, Universe the wide net the
// top-movers view casts, LongDated the liquid names scanned for far-dated
// trades and ScreenerDefault the fallback when a screen request names no
// symbols.
type SymbolUniverses struct {
	Summary         []string `yaml:"summary"`
	Universe        []string `yaml:"universe"`
	LongDated       []string `yaml:"long_dated"`
	ScreenerDefault []string `yaml:"screener_default"`
}

// LoadSymbols loads the symbol universe configuration from the given path.
// Tickers are normalized to upper case.
func LoadSymbols(path string) (*SymbolUniverses, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols file: %w", err)
	}
	var universes SymbolUniverses
	if err := yaml.Unmarshal(data, &universes); err != nil {
		return nil, fmt.Errorf("failed to parse symbols file: %w", err)
	}

	normalize := func(symbols []string) []string {
		out := make([]string, 0, len(symbols))
		for _, s := range symbols {
			s = strings.ToUpper(strings.TrimSpace(s))
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	universes.Summary = normalize(universes.Summary)
	universes.Universe = normalize(universes.Universe)
	universes.LongDated = normalize(universes.LongDated)
	universes.ScreenerDefault = normalize(universes.ScreenerDefault)

	if len(universes.Summary) == 0 {
		return nil, fmt.Errorf("symbols file defines no summary universe")
	}
	if len(universes.Universe) == 0 {
		return nil, fmt.Errorf("symbols file defines no top-movers universe")
	}
	if len(universes.LongDated) == 0 {
		return nil, fmt.Errorf("symbols file defines no long-dated universe")
	}
	if len(universes.ScreenerDefault) == 0 {
		universes.ScreenerDefault = []string{"SPY", "QQQ"}
	}

	return &universes, nil
}
