package config

import "strings"

type ChainId uint

const (
	ChainId_BaseMainnet ChainId = 8453
	ChainId_BaseSepolia ChainId = 84532
)

var (
	SupportedChainIds = []ChainId{
		ChainId_BaseMainnet,
		ChainId_BaseSepolia,
	}

	chainNames = map[ChainId]string{
		ChainId_BaseMainnet: "Base",
		ChainId_BaseSepolia: "Base Sepolia",
	}

	explorerBaseUrls = map[ChainId]string{
		ChainId_BaseMainnet: "https://basescan.org",
		ChainId_BaseSepolia: "https://sepolia.basescan.org",
	}
)

func (c ChainId) Name() string {
	if name, ok := chainNames[c]; ok {
		return name
	}
	return "unknown"
}

// ExplorerBaseUrl returns the block explorer root for the chain, or an
// empty string when no explorer is known.
func (c ChainId) ExplorerBaseUrl() string {
	return explorerBaseUrls[c]
}

func IsSupportedChainId(c ChainId) bool {
	for _, id := range SupportedChainIds {
		if id == c {
			return true
		}
	}
	return false
}

// KebabToSnakeCase converts a kebab-case flag name to the snake_case key
// viper expects.
func KebabToSnakeCase(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}

func NormalizeFlagName(s string) string {
	return KebabToSnakeCase(s)
}
