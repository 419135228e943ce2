// Package credentials resolves API keys from an ordered chain of providers.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

var ErrMissingCredential = errors.New("credential not found")

// Provider looks up a named secret. A provider that cannot be read reports
// the value as absent instead of failing.
type Provider interface {
	Name() string
	Lookup(key string) (string, bool)
}

// Resolve returns the first non-empty value for key, walking providers in order.
func Resolve(key string, providers ...Provider) (string, error) {
	for _, p := range providers {
		value, ok := p.Lookup(key)
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		log.Debug().Str("provider", p.Name()).Str("key", key).Msg("Resolved credential")
		return value, nil
	}
	return "", fmt.Errorf("%w: %s", ErrMissingCredential, key)
}

// EnvProvider reads the process environment.
type EnvProvider struct{}

func (EnvProvider) Name() string { return "env" }

func (EnvProvider) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// SecretsFileProvider reads a flat yaml map of secrets, e.g.
//
//	OPENAI_API_KEY: "sk-..."
type SecretsFileProvider struct {
	Path string
}

func (p SecretsFileProvider) Name() string { return "secrets:" + p.Path }

func (p SecretsFileProvider) Lookup(key string) (string, bool) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		log.Debug().Err(err).Str("path", p.Path).Msg("Secrets file unavailable")
		return "", false
	}
	var secrets map[string]string
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		log.Debug().Err(err).Str("path", p.Path).Msg("Secrets file unreadable")
		return "", false
	}
	value, ok := secrets[key]
	return value, ok
}

// MissingKeyMessage is shown to the user when no provider yields the key.
func MissingKeyMessage(key, secretsPath string) string {
	return fmt.Sprintf("%s not found.\nSet %s in a .env file or the environment for local runs, or in %s.", key, key, secretsPath)
}
