package extracthtml

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadRuleFile loads and validates a JSON template file.
func LoadRuleFile(path string) (*RuleFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRuleFile(b)
}

// ParseRuleFile decodes a template and rejects one without rules.
func ParseRuleFile(b []byte) (*RuleFile, error) {
	var rf RuleFile
	if err := json.Unmarshal(b, &rf); err != nil {
		return nil, fmt.Errorf("parse rules json: %w", err)
	}
	if len(rf.Rules) == 0 {
		return nil, fmt.Errorf("rules file has no selectors: %w", ErrNoSelectors)
	}
	for i, r := range rf.Rules {
		if err := validType(r.Type); err != nil {
			return nil, fmt.Errorf("selector %d (%q): %w", i, r.Name, err)
		}
	}
	return &rf, nil
}

func validType(t ValueType) error {
	switch t {
	case "", TypeAuto, TypeText, TypeHTML, TypeAttribute:
		return nil
	}
	return fmt.Errorf("unknown type %q", t)
}
