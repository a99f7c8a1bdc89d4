// Package match implements internal match detection: finding properties where
// the brokerage represents both an open sell cycle and one or more open
// purchase cycles, so a deal could close entirely in-house.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/estatedesk/brokercycle/internal/domain"
	"github.com/estatedesk/brokercycle/internal/metrics"
)

// Live statuses: a cycle only participates in matching while a deal could
// still be struck on it.
func sellLive(s domain.SellCycleStatus) bool {
	switch s {
	case domain.SellStatusListed, domain.SellStatusOfferReceived, domain.SellStatusNegotiation:
		return true
	}
	return false
}

func purchaseLive(s domain.PurchaseCycleStatus) bool {
	switch s {
	case domain.PurchaseStatusOfferMade, domain.PurchaseStatusNegotiation, domain.PurchaseStatusAccepted:
		return true
	}
	return false
}

// Detector derives internal matches from the current store state. Matches are
// never persisted; every call recomputes them so a cancelled cycle disappears
// from the results immediately.
type Detector struct {
	properties domain.PropertyStore
	sells      domain.SellCycleStore
	purchases  domain.PurchaseCycleStore
	logger     *slog.Logger

	// maxGapPercentage drops candidates whose offer trails asking by more
	// than this percentage. Zero disables the filter.
	maxGapPercentage float64
}

// NewDetector creates a Detector with all required dependencies.
func NewDetector(
	properties domain.PropertyStore,
	sells domain.SellCycleStore,
	purchases domain.PurchaseCycleStore,
	logger *slog.Logger,
	maxGapPercentage float64,
) *Detector {
	return &Detector{
		properties:       properties,
		sells:            sells,
		purchases:        purchases,
		logger:           logger.With(slog.String("component", "match_detector")),
		maxGapPercentage: maxGapPercentage,
	}
}

// Opts filters a detection run. AgentID restricts results to matches the
// given agent participates in; Side narrows which side of the match the agent
// must be on ("sell", "purchase", or empty for either).
type Opts struct {
	AgentID string
	Side    string
}

// Detect scans every property carrying both an open sell cycle and an open
// purchase cycle and builds the match list, sorted by how close the best
// offer is to asking (smallest absolute gap first).
func (d *Detector) Detect(ctx context.Context, opts Opts) ([]domain.InternalMatch, error) {
	start := time.Now()
	defer func() {
		metrics.MatchSweepDuration.Observe(time.Since(start).Seconds())
	}()

	props, err := d.properties.ListWithOpenSellAndPurchase(ctx)
	if err != nil {
		return nil, fmt.Errorf("match: list candidates: %w", err)
	}

	var matches []domain.InternalMatch
	for _, p := range props {
		m, ok, err := d.matchForProperty(ctx, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if !matchVisible(m, opts) {
			continue
		}
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool {
		return math.Abs(matches[i].Gap) < math.Abs(matches[j].Gap)
	})

	metrics.MatchesDetected.Add(float64(len(matches)))
	d.logger.DebugContext(ctx, "match sweep finished",
		slog.Int("properties_scanned", len(props)),
		slog.Int("matches", len(matches)),
		slog.Duration("took", time.Since(start)),
	)
	return matches, nil
}

// matchForProperty builds the match for one property. The oldest live sell
// cycle is the primary listing; every live purchase cycle becomes a candidate.
func (d *Detector) matchForProperty(ctx context.Context, p domain.Property) (domain.InternalMatch, bool, error) {
	sells, err := d.sells.GetByProperty(ctx, p.ID)
	if err != nil {
		return domain.InternalMatch{}, false, fmt.Errorf("match: sell cycles for %s: %w", p.ID, err)
	}

	var sell *domain.SellCycle
	for i := len(sells) - 1; i >= 0; i-- { // GetByProperty is newest-first
		c := sells[i]
		if domain.ContainsID(p.ActiveSellCycleIDs, c.ID) && sellLive(c.Status) {
			sell = &c
			break
		}
	}
	if sell == nil {
		return domain.InternalMatch{}, false, nil
	}

	purchases, err := d.purchases.GetByProperty(ctx, p.ID)
	if err != nil {
		return domain.InternalMatch{}, false, fmt.Errorf("match: purchase cycles for %s: %w", p.ID, err)
	}

	m := domain.InternalMatch{
		PropertyID:      p.ID,
		PropertyAddress: p.Address,
		SellCycleID:     sell.ID,
		SellAgentID:     sell.AgentID,
		AskingPrice:     sell.AskingPrice,
		SellCommission:  sell.Commission(sell.AskingPrice),
	}

	for _, c := range purchases {
		if !domain.ContainsID(p.ActivePurchaseCycleIDs, c.ID) || !purchaseLive(c.Status) {
			continue
		}
		if d.maxGapPercentage > 0 && sell.AskingPrice > 0 {
			gapPct := (sell.AskingPrice - c.OfferAmount) / sell.AskingPrice * 100
			if gapPct > d.maxGapPercentage {
				continue
			}
		}
		cand := domain.MatchCandidate{
			PurchaseCycleID: c.ID,
			AgentID:         c.AgentID,
			AgentName:       c.AgentName,
			PurchaserType:   c.PurchaserType,
			OfferAmount:     c.OfferAmount,
			Commission:      c.Commission(c.OfferAmount),
			IsDualRep:       c.AgentID != "" && c.AgentID == sell.AgentID,
		}
		m.Candidates = append(m.Candidates, cand)
		if cand.IsDualRep {
			m.HasDualRep = true
		}
	}
	if len(m.Candidates) == 0 {
		return domain.InternalMatch{}, false, nil
	}

	m.PotentialRevenue = m.SellCommission
	best := m.Candidates[0]
	for _, cand := range m.Candidates {
		m.PotentialRevenue += cand.Commission
		if cand.OfferAmount > best.OfferAmount {
			best = cand
		}
	}
	m.BestOffer = best.OfferAmount
	m.Gap = m.AskingPrice - m.BestOffer
	if m.AskingPrice > 0 {
		m.GapPercentage = m.Gap / m.AskingPrice * 100
	}

	return m, true, nil
}

// matchVisible applies the agent/side filter.
func matchVisible(m domain.InternalMatch, opts Opts) bool {
	if opts.AgentID == "" {
		return true
	}
	onSellSide := m.SellAgentID == opts.AgentID
	onPurchaseSide := false
	for _, c := range m.Candidates {
		if c.AgentID == opts.AgentID {
			onPurchaseSide = true
			break
		}
	}
	switch opts.Side {
	case "sell":
		return onSellSide
	case "purchase":
		return onPurchaseSide
	default:
		return onSellSide || onPurchaseSide
	}
}
