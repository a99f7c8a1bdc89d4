package domain

// MatchCandidate is one active purchase cycle paired against the primary sell
// cycle of an internal match.
type MatchCandidate struct {
	PurchaseCycleID string
	AgentID         string
	AgentName       string
	PurchaserType   PurchaserType
	OfferAmount     float64
	Commission      float64

	// IsDualRep is set when the same agent holds both the sell side and this
	// purchase side.
	IsDualRep bool
}

// InternalMatch is the derived pairing of one active sell cycle with the
// active purchase cycles on the same property. It is computed from live cycle
// data at call time and never stored.
type InternalMatch struct {
	PropertyID      string
	PropertyAddress string

	SellCycleID    string
	SellAgentID    string
	AskingPrice    float64
	SellCommission float64

	Candidates []MatchCandidate

	// PotentialRevenue is the sell commission plus the commission
	// contribution of every candidate.
	PotentialRevenue float64

	// BestOffer is the maximum offer among candidates; Gap and GapPercentage
	// measure how far it sits below (positive) or above (negative) asking.
	BestOffer     float64
	Gap           float64
	GapPercentage float64

	// HasDualRep is set when any candidate shares the sell cycle's agent.
	HasDualRep bool
}
