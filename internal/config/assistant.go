package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// AssistantConfig is the tuning read from config.yaml. These knobs are
// behavior-level rather than deployment-level, so they live in a file
// that ships with the service.
type AssistantConfig struct {
	Assistant struct {
		CatalogPath      string `yaml:"catalog_path"`
		MaxSummaryChars  int    `yaml:"max_summary_chars"`
		MaxFollowUps     int    `yaml:"max_followups"`
		VacationMaxRecs  int    `yaml:"vacation_max_recs"`
		StylingMinSlots  int    `yaml:"styling_min_slots"`
		WelcomeMessage   string `yaml:"welcome_message"`
		FallbackMessage  string `yaml:"fallback_message"`
		GenderPromptText string `yaml:"gender_prompt_text"`
	} `yaml:"assistant"`
}

// LoadAssistantConfig parses config.yaml, applying defaults for any
// knob the file omits.
func LoadAssistantConfig(filepath string) (*AssistantConfig, error) {
	var config AssistantConfig
	applyAssistantDefaults(&config)

	data, err := os.ReadFile(filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return &config, nil
		}
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing YAML: %v", err)
	}
	applyAssistantDefaults(&config)

	return &config, nil
}

func applyAssistantDefaults(c *AssistantConfig) {
	a := &c.Assistant
	if a.CatalogPath == "" {
		a.CatalogPath = "data/catalog.json"
	}
	if a.MaxSummaryChars == 0 {
		a.MaxSummaryChars = 2000
	}
	if a.MaxFollowUps == 0 {
		a.MaxFollowUps = 3
	}
	if a.VacationMaxRecs == 0 {
		a.VacationMaxRecs = 5
	}
	if a.StylingMinSlots == 0 {
		a.StylingMinSlots = 2
	}
	if a.WelcomeMessage == "" {
		a.WelcomeMessage = "Hi! I'm your personal fashion assistant. Tell me what you're shopping for and I'll help you put a look together."
	}
	if a.FallbackMessage == "" {
		a.FallbackMessage = "I'm having a little trouble right now, but I'd still love to help. Could you tell me a bit more about what you're looking for?"
	}
	if a.GenderPromptText == "" {
		a.GenderPromptText = "To get you the right fits, who are we shopping for?"
	}
}
