package marketplaceConfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csschan/agent-a2a-marketplace/pkg/config"
)

const validYaml = `
debug: true
chain:
  name: "Base Sepolia"
  chainId: 84532
  rpcUrl: "https://sepolia.base.org"
contracts:
  marketplace: "0x833F8f973786c040698509F203866029026CEfF6"
  usdc: "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
server_config:
  port: 3000
signer:
  privateKey: "abc123"
`

func TestNewMarketplaceConfigFromYamlBytes(t *testing.T) {
	cfg, err := NewMarketplaceConfigFromYamlBytes([]byte(validYaml))
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, config.ChainId_BaseSepolia, cfg.Chain.ChainId)
	assert.Equal(t, 3000, cfg.ServerConfig.Port)
	assert.NoError(t, cfg.Validate())
}

func TestNewMarketplaceConfigFromJsonBytes(t *testing.T) {
	jsonConfig := `{
		"chain": {"chainId": 84532, "rpcUrl": "https://sepolia.base.org"},
		"contracts": {
			"marketplace": "0x833F8f973786c040698509F203866029026CEfF6",
			"usdc": "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
		},
		"server_config": {"port": 3000},
		"signer": {"privateKey": "abc123"}
	}`
	cfg, err := NewMarketplaceConfigFromJsonBytes([]byte(jsonConfig))
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MarketplaceConfig)
	}{
		{name: "missing chainId", mutate: func(c *MarketplaceConfig) { c.Chain.ChainId = 0 }},
		{name: "unsupported chainId", mutate: func(c *MarketplaceConfig) { c.Chain.ChainId = 1 }},
		{name: "missing rpcUrl", mutate: func(c *MarketplaceConfig) { c.Chain.RpcUrl = "" }},
		{name: "bad marketplace address", mutate: func(c *MarketplaceConfig) { c.Contracts.Marketplace = "nope" }},
		{name: "bad usdc address", mutate: func(c *MarketplaceConfig) { c.Contracts.Usdc = "" }},
		{name: "bad port", mutate: func(c *MarketplaceConfig) { c.ServerConfig.Port = 0 }},
		{name: "missing private key", mutate: func(c *MarketplaceConfig) { c.Signer.PrivateKey = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewMarketplaceConfigFromYamlBytes([]byte(validYaml))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestInvalidYamlRejected(t *testing.T) {
	_, err := NewMarketplaceConfigFromYamlBytes([]byte("debug: [not: valid"))
	assert.Error(t, err)
}
