package main

import (
	"strings"

	"github.com/Laisky/errors/v2"

	cfg "github.com/ierezell/ml-infra/common/config"
)

const defaultAPIBase = "http://localhost:3000"

// config captures the smoke run configuration.
type config struct {
	APIBase  string
	Variants []requestVariant
}

// loadConfig reads API_BASE and SMOKE_VARIANTS through the shared config package.
func loadConfig() (config, error) {
	base := strings.TrimSpace(cfg.SmokeAPIBase)
	if base == "" {
		base = defaultAPIBase
	}

	variants, err := parseVariants(cfg.SmokeVariants)
	if err != nil {
		return config{}, errors.Wrap(err, "parse variants")
	}

	return config{
		APIBase:  strings.TrimSuffix(base, "/"),
		Variants: variants,
	}, nil
}

// splitList tokenizes a comma, semicolon, newline or space separated list.
func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	normalized := raw
	for _, sep := range []string{",", ";", "\n", "\r"} {
		normalized = strings.ReplaceAll(normalized, sep, ",")
	}
	parts := strings.Split(normalized, ",")
	if len(parts) == 1 && !strings.ContainsAny(raw, ",;\n") {
		parts = strings.Fields(raw)
	}

	var out []string
	for _, part := range parts {
		if candidate := strings.TrimSpace(part); candidate != "" {
			out = append(out, candidate)
		}
	}
	return out
}

// parseVariants resolves SMOKE_VARIANTS into the subset of variants to execute.
// An empty value selects every variant.
func parseVariants(raw string) ([]requestVariant, error) {
	parts := splitList(raw)
	if len(parts) == 0 {
		return requestVariants, nil
	}

	selected := make([]requestVariant, 0, len(requestVariants))
	seen := make(map[string]bool, len(requestVariants))
	for _, candidate := range parts {
		variant, ok := lookupVariant(candidate)
		if !ok {
			return nil, errors.Errorf("unknown variant %q", candidate)
		}
		if !seen[variant.Key] {
			selected = append(selected, variant)
			seen[variant.Key] = true
		}
	}
	return selected, nil
}

func lookupVariant(name string) (requestVariant, bool) {
	for _, variant := range requestVariants {
		if strings.EqualFold(name, variant.Key) || strings.EqualFold(name, variant.Header) {
			return variant, true
		}
		for _, alias := range variant.Aliases {
			if strings.EqualFold(name, alias) {
				return variant, true
			}
		}
	}
	return requestVariant{}, false
}
