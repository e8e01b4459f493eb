package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kernox/agent/internal/logging"
	"github.com/kernox/agent/internal/metrics"
)

// LoadDir loads every *.yml/*.yaml file in dir, one rule per file
// (SPEC_FULL.md §4.6). Parse or validation errors are logged and the
// specific file is skipped, never aborting the load. Files are processed
// in sorted filename order, which becomes the rules' evaluation order
// (SPEC_FULL.md §4.6: "rules are evaluated in load order").
func LoadDir(dir string, log *logging.Logger, counters *metrics.Counters) ([]Rule, error) {
	if err := extractBundleIfPresent(dir, log); err != nil {
		log.LogRuleEvent("rule_bundle_extract_error", "dir", dir, "error", err.Error())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.LogRuleEvent("rules_dir_missing", "dir", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("rules: read dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yml" || ext == ".yaml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	var loaded []Rule
	for _, path := range files {
		rule, err := loadRuleFile(path)
		if err != nil {
			counters.IncRuleParseErrors()
			log.LogRuleEvent("rule_parse_error", "file", path, "error", err.Error())
			continue
		}
		loaded = append(loaded, rule)
	}

	log.LogRuleEvent("rules_loaded", "count", len(loaded), "dir", dir)
	return loaded, nil
}

func loadRuleFile(path string) (Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rule{}, fmt.Errorf("read file: %w", err)
	}

	var rule Rule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return Rule{}, fmt.Errorf("parse YAML: %w", err)
	}

	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	rule.SourceFile = path
	return rule, nil
}
