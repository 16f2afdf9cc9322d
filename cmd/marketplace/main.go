package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/csschan/agent-a2a-marketplace/pkg/marketplaceConfig"
)

var rootCmd = &cobra.Command{
	Use:   "marketplace",
	Short: "Agent task marketplace API with x402 payment gating",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var configFile string
var Config *marketplaceConfig.MarketplaceConfig

func init() {
	cobra.OnInitialize(initConfigIfPresent)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	rootCmd.PersistentFlags().Bool(marketplaceConfig.Debug, false, `"true" or "false"`)
	rootCmd.PersistentFlags().String("rpc-url", "", "ethereum rpc endpoint")
	rootCmd.PersistentFlags().String("marketplace-address", "", "marketplace contract address")
	rootCmd.PersistentFlags().String("usdc-address", "", "usdc token contract address")
	rootCmd.PersistentFlags().String("private-key", "", "operator wallet private key")
	rootCmd.PersistentFlags().Int("port", 0, "http listen port")

	viper.SetEnvPrefix(marketplaceConfig.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(runCmd)
}

func initConfigIfPresent() {
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			panic(err)
		}
		config, err := marketplaceConfig.NewMarketplaceConfigFromYamlBytes(data)
		if err != nil {
			panic(err)
		}
		Config = config
	} else {
		Config = marketplaceConfig.NewMarketplaceConfig()
	}
}

func main() {
	Execute()
}
