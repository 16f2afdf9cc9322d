// Package x402 implements the HTTP 402 payment gating protocol: premium
// operations are charged against an agent's prepaid on-ledger balance, and
// an underfunded request is answered with a structured payment-required
// outcome rather than an opaque error.
package x402

import (
	"math/big"

	"github.com/pkg/errors"
)

// PriceClass names an operation class with a fixed price.
type PriceClass string

const (
	PriceClassPremiumTaskAccess PriceClass = "premiumTaskAccess"
	PriceClassApiCall           PriceClass = "apiCall"
	PriceClassTaskDetails       PriceClass = "taskDetails"
	PriceClassBulkQuery         PriceClass = "bulkQuery"
)

// PricingTable maps operation classes to raw 6-decimal USDC prices. It is
// immutable for the process lifetime; the ledger's configurable fee values
// remain the source of truth and are reported alongside it by the pricing
// endpoint.
type PricingTable map[PriceClass]*big.Int

// DefaultPricingTable returns the standard tier prices.
func DefaultPricingTable() PricingTable {
	return PricingTable{
		PriceClassPremiumTaskAccess: big.NewInt(100000), // 0.1 USDC
		PriceClassApiCall:           big.NewInt(10000),  // 0.01 USDC
		PriceClassTaskDetails:       big.NewInt(50000),  // 0.05 USDC
		PriceClassBulkQuery:         big.NewInt(200000), // 0.2 USDC
	}
}

// PriceFor resolves the price of an operation class.
func (pt PricingTable) PriceFor(class PriceClass) (*big.Int, error) {
	price, ok := pt[class]
	if !ok {
		return nil, errors.Errorf("unknown price class %q", class)
	}
	return price, nil
}
