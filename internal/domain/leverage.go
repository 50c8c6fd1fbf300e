package domain

// LeverageSide is the direction of a leveraged-token position.
type LeverageSide string

const (
	LeverageBull LeverageSide = "bull"
	LeverageBear LeverageSide = "bear"
)

// LeveragedPosition is the projection of a spot holding onto a leveraged
// token. It has no lifecycle of its own beyond the conversion that produced
// it; the exchange tracks the actual token balance.
type LeveragedPosition struct {
	Underlying Asset
	Token      string // leveraged token symbol, e.g. "BTCUP"
	Side       LeverageSide
	Notional   float64 // value preserved at the moment of conversion
}
