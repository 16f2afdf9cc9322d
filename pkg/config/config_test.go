package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChainIdName(t *testing.T) {
	assert.Equal(t, "Base", ChainId_BaseMainnet.Name())
	assert.Equal(t, "Base Sepolia", ChainId_BaseSepolia.Name())
}

func TestIsSupportedChainId(t *testing.T) {
	assert.True(t, IsSupportedChainId(ChainId_BaseMainnet))
	assert.True(t, IsSupportedChainId(ChainId_BaseSepolia))
	assert.False(t, IsSupportedChainId(ChainId(1)))
}

func TestExplorerBaseUrl(t *testing.T) {
	assert.Equal(t, "https://sepolia.basescan.org", ChainId_BaseSepolia.ExplorerBaseUrl())
}

func TestKebabToSnakeCase(t *testing.T) {
	assert.Equal(t, "rpc_url", KebabToSnakeCase("rpc-url"))
	assert.Equal(t, "port", KebabToSnakeCase("port"))
}
