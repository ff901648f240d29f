package types

import "fmt"

// scenarioKey identifies a catalog entry for inheritance deduplication
func scenarioKey(s ScenarioConfig) string {
	key := s.Input + ":" + s.Format
	if s.Name != "" {
		key = s.Name
	}
	return key
}

// ResolveInherited merges scenarios from the suites listed in Inherits into s.
//
// Inheritance is recursive and depth-first. The suite's own scenarios come
// first and win over inherited ones with the same key (name, or input:format
// when unnamed). Inherited inputs resolve against the inheriting suite's
// image_dir.
func (s *SuiteConfig) ResolveInherited(suites map[string]SuiteConfig) error {
	processed := make(map[string]bool)
	return s.resolveInheritedRecursive(suites, processed)
}

func (s *SuiteConfig) resolveInheritedRecursive(suites map[string]SuiteConfig, processed map[string]bool) error {
	if len(s.Inherits) == 0 {
		return nil
	}

	var merged []ScenarioConfig
	seen := make(map[string]bool)
	for _, sc := range s.Scenarios {
		key := scenarioKey(sc)
		if !seen[key] {
			merged = append(merged, sc)
			seen[key] = true
		}
	}

	for _, inheritFrom := range s.Inherits {
		if processed[inheritFrom] {
			return fmt.Errorf("circular inheritance detected for suite %q", inheritFrom)
		}

		parent, ok := suites[inheritFrom]
		if !ok {
			return fmt.Errorf("suite %q inherits from non-existent suite %q", s.ID, inheritFrom)
		}

		processed[inheritFrom] = true
		if err := parent.resolveInheritedRecursive(suites, processed); err != nil {
			return fmt.Errorf("resolving inheritance for parent suite %q: %w", inheritFrom, err)
		}

		for _, sc := range parent.Scenarios {
			key := scenarioKey(sc)
			if seen[key] {
				continue
			}
			merged = append(merged, sc)
			seen[key] = true
		}
		processed[inheritFrom] = false
	}

	s.Scenarios = merged
	return nil
}
