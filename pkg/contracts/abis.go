package contracts

import (
	"embed"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed abi/*.abi.json
var abis embed.FS

const (
	ContractName_AgentMarketplace = "AgentMarketplace"
	ContractName_ERC20            = "ERC20"
)

// GetContractAbi loads and parses an embedded contract ABI by name.
func GetContractAbi(contractName string) (*abi.ABI, error) {
	abiFile := fmt.Sprintf("abi/%s.abi.json", contractName)
	abiBytes, err := abis.ReadFile(abiFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded ABI file %s: %w", abiFile, err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(string(abiBytes)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return &parsedABI, nil
}
