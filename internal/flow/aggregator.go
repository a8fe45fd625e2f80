package flow

import (
	"time"

	"flowmap/internal/domain"
	"flowmap/internal/units"

	"gitlab.com/nevasik7/alerting/logger"
)

// Aggregator folds transfer events into the directed wallet/protocol flow
// graph. One instance is safe to share across periods: Aggregate keeps all
// state on its own stack.
type Aggregator struct {
	log      logger.Logger
	decimals int
}

func New(log logger.Logger, decimals int) *Aggregator {
	if decimals <= 0 {
		decimals = 18
	}
	return &Aggregator{log: log, decimals: decimals}
}

// Aggregate classifies every event against the reverse index and sums
// volume per ordered (source, target) pair:
//
//	wallet   -> protocol  edge ("Wallets", P)
//	protocol -> wallet    edge (P, "Wallets")
//	protocol -> protocol  edge (P1, P2) when P1 != P2
//	anything else         dropped (wallet-to-wallet, intra-protocol)
//
// Edges come out in first-encountered order. The total is summed once at
// the end; float addition order makes its last digits iteration-dependent,
// which we accept.
func (a *Aggregator) Aggregate(events []domain.TransferEvent, reverseIndex map[string]string, period domain.Period) *domain.FlowReport {
	edges := make(map[[2]string]*domain.FlowEdge)
	order := make([]*domain.FlowEdge, 0)

	dropped := 0
	for _, ev := range events {
		source, target, ok := classify(ev, reverseIndex)
		if !ok {
			dropped++
			continue
		}

		volume := units.RawToDecimal(ev.RawAmount, a.decimals)
		if volume <= 0 {
			dropped++
			continue
		}

		key := [2]string{source, target}
		edge, exists := edges[key]
		if !exists {
			edge = &domain.FlowEdge{Source: source, Target: target}
			edges[key] = edge
			order = append(order, edge)
		}
		edge.Volume += volume
	}

	var total float64
	for _, edge := range order {
		total += edge.Volume
	}

	a.log.Debugf("Aggregated %s: %d events -> %d edges (%d dropped)", period, len(events), len(order), dropped)

	return &domain.FlowReport{
		Period:      period,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		TotalVolume: total,
		Flows:       order,
	}
}

// classify resolves both endpoints; exactly one of the four outcomes
// applies to any event.
func classify(ev domain.TransferEvent, reverseIndex map[string]string) (source, target string, ok bool) {
	fromProto, fromMapped := reverseIndex[ev.From]
	toProto, toMapped := reverseIndex[ev.To]

	switch {
	case !fromMapped && toMapped:
		return domain.WalletsLabel, toProto, true
	case fromMapped && !toMapped:
		return fromProto, domain.WalletsLabel, true
	case fromMapped && toMapped && fromProto != toProto:
		return fromProto, toProto, true
	default:
		return "", "", false
	}
}
