package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvString returns the trimmed value of key and whether it was set to something non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s=%q: %w", key, value, err)
	}
	return parsed, true, nil
}

// EnvBool parses key as a boolean.
func EnvBool(key string) (bool, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("%s=%q: %w", key, value, err)
	}
	return parsed, true, nil
}

// ApplyEnv overlays the SCRAPER_* and TRANSLATOR_* environment variables onto c.
func ApplyEnv(c *Config) error {
	if value, ok, err := EnvInt("SCRAPER_PAGES"); err != nil {
		return err
	} else if ok {
		c.MaxPages = value
	}
	if value, ok, err := EnvBool("SCRAPER_HEADLESS"); err != nil {
		return err
	} else if ok {
		c.Headless = value
	}
	overrides := []struct {
		key    string
		target *string
	}{
		{"SCRAPER_SITE", &c.Site},
		{"SCRAPER_BASE_URL", &c.BaseURL},
		{"SCRAPER_OUTPUT", &c.OutputFile},
		{"SCRAPER_METRICS_ADDR", &c.MetricsAddr},
		{"TRANSLATOR_API_URL", &c.Translator.APIURL},
		{"TRANSLATOR_API_KEY", &c.Translator.APIKey},
		{"TRANSLATOR_MODEL", &c.Translator.Model},
	}
	for _, s := range overrides {
		if value, ok := EnvString(s.key); ok {
			*s.target = value
		}
	}
	return nil
}
