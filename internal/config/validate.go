package config

import (
	"fmt"
	"strings"
)

// ConfigError lists every missing or invalid option found at startup.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks the options the selected sink, source and strategy need.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.Categories) == 0 {
		add("categories: at least one category is required")
	}
	seen := map[string]bool{}
	for i, cat := range c.Categories {
		name := strings.TrimSpace(cat.Name)
		if name == "" {
			add("categories[%d]: name is required", i)
			continue
		}
		if seen[name] {
			add("categories[%d]: duplicate name %q", i, name)
		}
		seen[name] = true
		if len(cat.Keywords) == 0 {
			add("categories[%d] %q: at least one keyword is required", i, name)
		}
	}
	if seen[c.Settings.UncategorizedLabel] {
		add("settings.uncategorized_label %q collides with a category name", c.Settings.UncategorizedLabel)
	}

	s := c.Settings
	if s.CategorizationThreshold < 0 || s.CategorizationThreshold > 1 {
		add("settings.categorization_threshold must be within [0,1]")
	}
	if s.DescriptionMaxLength < 10 {
		add("settings.description_max_length must be at least 10")
	}
	if s.BatchSaveCount < 1 {
		add("settings.batch_save_count must be positive")
	}
	if s.HistoryDays < 0 {
		add("settings.history_days must be non-negative")
	}
	if s.MaxOtherCategories < 0 {
		add("settings.max_other_categories must be non-negative")
	}

	if c.LLM.Enabled {
		if c.LLM.APIKey == "" {
			add("%s is required when %s is true", openAIKeyEnv, useLLMEnv)
		}
		if c.LLM.Model == "" {
			add("%s is required when %s is true", openAIModelEnv, useLLMEnv)
		}
		if c.LLM.RequestsPerMinute < 1 {
			add("%s must be positive", openAIRPMEnv)
		}
	}

	switch c.Sink.Kind {
	case "notion":
		if c.Notion.Token == "" {
			add("%s is required for the notion sink", notionTokenEnv)
		}
		if c.Notion.DatabaseID == "" {
			add("%s is required for the notion sink", notionDBEnv)
		}
	case "sql":
		if c.Sink.Driver != "postgres" && c.Sink.Driver != "sqlite" {
			add("sink.driver must be postgres or sqlite")
		}
		if c.Sink.DSN == "" {
			add("sink.dsn is required for the sql sink")
		}
	case "stdout":
	default:
		add("sink.kind %q is not supported", c.Sink.Kind)
	}

	if c.Source.Kind != "mailbox" {
		add("source.kind %q is not supported", c.Source.Kind)
	} else if c.Source.Dir == "" {
		add("%s is required for the mailbox source", mailboxDirEnv)
	}

	switch c.Ledger.Kind {
	case "", "file":
		if c.Ledger.Path == "" {
			add("%s is required for the file ledger", ledgerPathEnv)
		}
	case "sql":
		if c.Ledger.Driver != "postgres" && c.Ledger.Driver != "sqlite" {
			add("ledger.driver must be postgres or sqlite")
		}
		if c.Ledger.DSN == "" {
			add("ledger.dsn is required for the sql ledger")
		}
	default:
		add("ledger.kind %q is not supported", c.Ledger.Kind)
	}
	if c.Ledger.MaxIDs < 0 {
		add("ledger.max_ids must be non-negative")
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}
