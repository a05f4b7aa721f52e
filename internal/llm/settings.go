package llm

import (
	"errors"
	"fmt"
	"os"

	"github.com/eugenenazirov/lithium/internal/config"
)

// APIKeyEnv is consulted when the `model` section carries no api_key.
const APIKeyEnv = "OPENAI_API_KEY"

// ErrMissingAPIKey is returned when neither the configuration nor the environment provides a key.
var ErrMissingAPIKey = errors.New("model api_key is not configured")

// Settings holds the parameters used when calling a chat-completion API.
type Settings struct {
	APIKey           string
	APIBase          string
	Model            string
	Temperature      float64
	TopP             float64
	N                int
	MaxTokens        int
	PresencePenalty  float64
	FrequencyPenalty float64
	Stream           bool
	Stop             []string
}

// Source is the part of the configuration store Settings are read from.
type Source interface {
	Sub(key string) config.Section
}

// FromStore reads the `model` section of the current snapshot.
func FromStore(store Source) (Settings, error) {
	return FromSection(store.Sub("model"), os.LookupEnv)
}

// FromSection decodes and validates settings. lookupEnv supplies the API key fallback.
func FromSection(section config.Section, lookupEnv func(string) (string, bool)) (Settings, error) {
	s := Settings{
		APIKey:           section.GetString("api_key", ""),
		APIBase:          section.GetString("api_base", ""),
		Model:            section.GetString("model", "gpt-3.5-turbo"),
		Temperature:      section.GetFloat("temperature", 0.7),
		TopP:             section.GetFloat("top_p", 1.0),
		N:                section.GetInt("n", 1),
		MaxTokens:        section.GetInt("max_tokens", 0),
		PresencePenalty:  section.GetFloat("presence_penalty", 0),
		FrequencyPenalty: section.GetFloat("frequency_penalty", 0),
		Stream:           section.GetBool("stream", false),
		Stop:             section.GetStrings("stop", nil),
	}

	if s.APIKey == "" && lookupEnv != nil {
		if key, ok := lookupEnv(APIKeyEnv); ok {
			s.APIKey = key
		}
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks that every parameter is inside the range the API accepts.
func (s Settings) Validate() error {
	if s.APIKey == "" {
		return ErrMissingAPIKey
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("model temperature must be within [0, 2], got %v", s.Temperature)
	}
	if s.TopP < 0 || s.TopP > 1 {
		return fmt.Errorf("model top_p must be within [0, 1], got %v", s.TopP)
	}
	if s.N < 1 {
		return fmt.Errorf("model n must be >= 1, got %d", s.N)
	}
	if s.MaxTokens < 0 {
		return fmt.Errorf("model max_tokens must be >= 0, got %d", s.MaxTokens)
	}
	if s.PresencePenalty < -2 || s.PresencePenalty > 2 {
		return fmt.Errorf("model presence_penalty must be within [-2, 2], got %v", s.PresencePenalty)
	}
	if s.FrequencyPenalty < -2 || s.FrequencyPenalty > 2 {
		return fmt.Errorf("model frequency_penalty must be within [-2, 2], got %v", s.FrequencyPenalty)
	}
	return nil
}
