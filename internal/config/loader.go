package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"tourscan/internal/model"
)

// providersFile - формат файла переопределений политики провайдеров
//
//	providers:
//	  yandex:
//	    accept_403: false
//	    extra_hosts:
//	      - domain: yandex.kz
//	        path_prefix: /maps
type providersFile struct {
	Providers map[string]providerEntry `yaml:"providers"`
}

type providerEntry struct {
	Accept302  *bool       `yaml:"accept_302"`
	Accept403  *bool       `yaml:"accept_403"`
	ExtraHosts []hostEntry `yaml:"extra_hosts"`
}

type hostEntry struct {
	Domain     string `yaml:"domain"`
	PathPrefix string `yaml:"path_prefix"`
}

// ProviderLoader загружает переопределения политики провайдеров
type ProviderLoader struct {
	logger *zap.Logger
}

// NewProviderLoader создает новый загрузчик политики провайдеров
func NewProviderLoader(logger *zap.Logger) *ProviderLoader {
	return &ProviderLoader{logger: logger}
}

// LoadProviderTable возвращает таблицу провайдеров с примененным файлом политики.
// Пустой путь означает таблицу по умолчанию.
func (l *ProviderLoader) LoadProviderTable(path string) (*model.ProviderTable, error) {
	table := model.DefaultProviderTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}

	policies, err := ParseProviderPolicies(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse providers file %s: %w", path, err)
	}

	for provider, policy := range policies {
		l.logger.Info("Applying provider policy override",
			zap.String("provider", string(provider)),
			zap.Any("accept_302", policy.Accept302),
			zap.Any("accept_403", policy.Accept403),
			zap.Int("extra_hosts", len(policy.ExtraHosts)))
	}

	return table.WithPolicies(policies), nil
}

// ParseProviderPolicies разбирает YAML с переопределениями политики
func ParseProviderPolicies(data []byte) (map[model.TourProvider]model.ProviderPolicy, error) {
	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	policies := make(map[model.TourProvider]model.ProviderPolicy, len(file.Providers))
	for name, entry := range file.Providers {
		provider, err := model.ParseProvider(name)
		if err != nil {
			return nil, err
		}

		policy := model.ProviderPolicy{
			Accept302: entry.Accept302,
			Accept403: entry.Accept403,
		}
		for _, h := range entry.ExtraHosts {
			domain := strings.ToLower(strings.TrimSpace(h.Domain))
			if domain == "" {
				return nil, fmt.Errorf("provider %s: extra host domain is required", name)
			}
			policy.ExtraHosts = append(policy.ExtraHosts, model.HostRule{Domain: domain, PathPrefix: h.PathPrefix})
		}
		policies[provider] = policy
	}

	return policies, nil
}
