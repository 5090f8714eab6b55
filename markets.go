package vtoken_ledger

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Markets resolves the market handle of a vToken.
type Markets interface {
	Wrapper(vToken common.Address) (*VPoolWrapper, error)
	VTokens() []common.Address
}

// MarketSet is the in-memory Markets of a clearing house.
type MarketSet map[common.Address]*VPoolWrapper

func (m MarketSet) Wrapper(vToken common.Address) (*VPoolWrapper, error) {
	w, ok := m[vToken]
	if !ok {
		return nil, fmt.Errorf("market %s: %w", vToken, UNSUPPORTED_TOKEN)
	}
	return w, nil
}

func (m MarketSet) VTokens() []common.Address {
	tokens := make([]common.Address, 0, len(m))
	for t := range m {
		tokens = append(tokens, t)
	}
	sortAddresses(tokens)
	return tokens
}

func sortAddresses(addrs []common.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i].Bytes(), addrs[j].Bytes()) < 0
	})
}

func bytesLess(a, b common.Address) bool {
	return bytes.Compare(a.Bytes(), b.Bytes()) < 0
}

// marketSnapshot maps live market handles to clones taken before an operation.
type marketSnapshot map[*VPoolWrapper]*VPoolWrapper

func snapshotMarkets(markets Markets) (marketSnapshot, error) {
	s := marketSnapshot{}
	for _, vToken := range markets.VTokens() {
		w, err := markets.Wrapper(vToken)
		if err != nil {
			return nil, err
		}
		s[w] = w.Clone()
	}
	return s, nil
}

func (s marketSnapshot) restore() error {
	for live, backup := range s {
		if err := live.restore(backup); err != nil {
			return fmt.Errorf("restore market %s: %w", live.VToken(), err)
		}
	}
	return nil
}
