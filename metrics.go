package vtoken_ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts ledger activity. A nil *Metrics records nothing.
type Metrics struct {
	Trades       *prometheus.CounterVec
	TickCrosses  *prometheus.CounterVec
	Liquidations *prometheus.CounterVec
	Rollbacks    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vtoken_ledger",
			Name:      "trades_total",
			Help:      "Swaps executed against a market.",
		}, []string{"market", "mode"}),
		TickCrosses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vtoken_ledger",
			Name:      "tick_crosses_total",
			Help:      "Initialized ticks crossed by swaps.",
		}, []string{"market"}),
		Liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vtoken_ledger",
			Name:      "liquidations_total",
			Help:      "Liquidations executed.",
		}, []string{"kind"}),
		Rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vtoken_ledger",
			Name:      "rollbacks_total",
			Help:      "Operations rolled back on error.",
		}, []string{"op"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.Trades, m.TickCrosses, m.Liquidations, m.Rollbacks} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) TradeRegistered(market common.Address, isNotional bool) {
	if m == nil {
		return
	}
	mode := "token"
	if isNotional {
		mode = "notional"
	}
	m.Trades.WithLabelValues(market.Hex(), mode).Inc()
}

func (m *Metrics) TickCrossed(market common.Address) {
	if m == nil {
		return
	}
	m.TickCrosses.WithLabelValues(market.Hex()).Inc()
}

func (m *Metrics) Liquidated(kind string) {
	if m == nil {
		return
	}
	m.Liquidations.WithLabelValues(kind).Inc()
}

func (m *Metrics) RolledBack(op string) {
	if m == nil {
		return
	}
	m.Rollbacks.WithLabelValues(op).Inc()
}
