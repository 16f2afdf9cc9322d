package marketplaceConfig

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"sigs.k8s.io/yaml"

	"github.com/csschan/agent-a2a-marketplace/pkg/config"
)

const (
	EnvPrefix = "MARKETPLACE_"

	Debug = "debug"
)

type Chain struct {
	Name    string         `json:"name" yaml:"name"`
	ChainId config.ChainId `json:"chainId" yaml:"chainId"`
	RpcUrl  string         `json:"rpcUrl" yaml:"rpcUrl"`
}

func (c *Chain) Validate() field.ErrorList {
	var allErrors field.ErrorList
	if c.ChainId == 0 {
		allErrors = append(allErrors, field.Required(field.NewPath("chainId"), "chainId is required"))
	}
	if !config.IsSupportedChainId(c.ChainId) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("chainId"), c.ChainId, "unsupported chainId"))
	}
	if c.RpcUrl == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("rpcUrl"), "rpcUrl is required"))
	}
	return allErrors
}

type ContractsConfig struct {
	Marketplace string `json:"marketplace" yaml:"marketplace"`
	Usdc        string `json:"usdc" yaml:"usdc"`
}

func (cc *ContractsConfig) Validate() field.ErrorList {
	var allErrors field.ErrorList
	if !common.IsHexAddress(cc.Marketplace) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("marketplace"), cc.Marketplace, "not a valid contract address"))
	}
	if !common.IsHexAddress(cc.Usdc) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("usdc"), cc.Usdc, "not a valid contract address"))
	}
	return allErrors
}

type ServerConfig struct {
	Port int `json:"port" yaml:"port"`
}

type SignerConfig struct {
	PrivateKey string `json:"privateKey" yaml:"privateKey"`
}

type MarketplaceConfig struct {
	Debug        bool            `json:"debug" yaml:"debug"`
	Chain        Chain           `json:"chain" yaml:"chain"`
	Contracts    ContractsConfig `json:"contracts" yaml:"contracts"`
	ServerConfig ServerConfig    `json:"server_config" yaml:"server_config"`
	Signer       SignerConfig    `json:"signer" yaml:"signer"`
}

func (mc *MarketplaceConfig) Validate() error {
	var allErrors field.ErrorList
	if chainErrors := mc.Chain.Validate(); len(chainErrors) > 0 {
		allErrors = append(allErrors, chainErrors...)
	}
	if contractErrors := mc.Contracts.Validate(); len(contractErrors) > 0 {
		allErrors = append(allErrors, contractErrors...)
	}
	if mc.ServerConfig.Port <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("server_config", "port"), mc.ServerConfig.Port, "port must be positive"))
	}
	if mc.Signer.PrivateKey == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("signer", "privateKey"), "privateKey is required"))
	}
	return allErrors.ToAggregate()
}

func NewMarketplaceConfigFromJsonBytes(data []byte) (*MarketplaceConfig, error) {
	var c MarketplaceConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal MarketplaceConfig from JSON")
	}
	return &c, nil
}

func NewMarketplaceConfigFromYamlBytes(data []byte) (*MarketplaceConfig, error) {
	var c MarketplaceConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal MarketplaceConfig from YAML")
	}
	return &c, nil
}

// NewMarketplaceConfig builds a config from viper-bound flags and
// environment, with Base Sepolia defaults matching the deployed contract.
func NewMarketplaceConfig() *MarketplaceConfig {
	return &MarketplaceConfig{
		Debug: viper.GetBool(config.NormalizeFlagName(Debug)),
		Chain: Chain{
			Name:    config.ChainId_BaseSepolia.Name(),
			ChainId: config.ChainId_BaseSepolia,
			RpcUrl:  withDefault(viper.GetString("rpc_url"), "https://sepolia.base.org"),
		},
		Contracts: ContractsConfig{
			Marketplace: withDefault(viper.GetString("marketplace_address"), "0x833F8f973786c040698509F203866029026CEfF6"),
			Usdc:        withDefault(viper.GetString("usdc_address"), "0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
		},
		ServerConfig: ServerConfig{
			Port: withDefaultInt(viper.GetInt("port"), 3000),
		},
		Signer: SignerConfig{
			PrivateKey: viper.GetString("private_key"),
		},
	}
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func withDefaultInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}
