package types

import "fmt"

// Strategy selects the per-attempt timeout policy for an experiment run.
// It is a closed set: adding a strategy means extending the constants, the
// name table below, and the timeout lookup in the engine.
type Strategy uint8

const (
	StrategyAggressive Strategy = iota
	StrategyPatient
)

var strategyNames = map[Strategy]string{
	StrategyAggressive: "aggressive",
	StrategyPatient:    "patient",
}

// Strategies returns every known strategy in the order runs execute.
func Strategies() []Strategy {
	return []Strategy{StrategyAggressive, StrategyPatient}
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", uint8(s))
}

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	_, ok := strategyNames[s]
	return ok
}

// ParseStrategy maps a configuration name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown timeout strategy %q", name)
}

func (s Strategy) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal unknown strategy %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalYAML keeps YAML exports aligned with the JSON contract.
func (s Strategy) MarshalYAML() (any, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal unknown strategy %d", uint8(s))
	}
	return s.String(), nil
}

func (s *Strategy) UnmarshalYAML(unmarshal func(any) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	return s.UnmarshalText([]byte(name))
}
