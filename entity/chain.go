package entity

import (
	"errors"
	"fmt"
)

// Chain is one of the supported relay target chains.
type Chain string

const (
	ChainPolygon  Chain = "polygon"
	ChainArbitrum Chain = "arbitrum"
	ChainOptimism Chain = "optimism"
)

var ErrUnsupportedChain = errors.New("unsupported target chain")

func SupportedChains() []Chain {
	return []Chain{ChainPolygon, ChainArbitrum, ChainOptimism}
}

func ParseChain(name string) (Chain, error) {
	switch c := Chain(name); c {
	case ChainPolygon, ChainArbitrum, ChainOptimism:
		return c, nil
	}
	return "", fmt.Errorf("chain %q is not one of %v: %w", name, SupportedChains(), ErrUnsupportedChain)
}
