// Package arbitrage detects cross-venue spreads between a maker venue and a
// taker venue and gates how often they may be acted on.
package arbitrage

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// DetectorConfig holds the thresholds and position bound.
type DetectorConfig struct {
	Symbol         string
	LongThreshold  decimal.Decimal
	ShortThreshold decimal.Decimal
	Size           decimal.Decimal
	MaxPosition    decimal.Decimal
}

// Detector evaluates two order book snapshots. It holds no mutable state.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector creates a Detector.
func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Evaluation is the outcome of one scan. Opportunity is nil when neither
// direction qualified.
type Evaluation struct {
	SpreadLong  decimal.Decimal
	SpreadShort decimal.Decimal
	// BoundRejected is set when a spread cleared its threshold but the
	// resulting position would exceed the bound.
	BoundRejected bool
	Opportunity   *domain.Opportunity
}

// Evaluate computes both spreads and returns at most one opportunity.
//
//	spreadLong  = bestBid(taker) - bestAsk(maker)
//	spreadShort = bestBid(maker) - bestAsk(taker)
//
// LONG is checked first. SHORT is only checked when LONG did not qualify, so
// a scan where both directions clear their thresholds yields LONG.
//
// An unusable snapshot returns an *domain.InsufficientDataError.
func (d *Detector) Evaluate(maker, taker domain.OrderBookSnapshot, netPosition decimal.Decimal, now time.Time) (Evaluation, error) {
	if err := maker.Validate(); err != nil {
		return Evaluation{}, err
	}
	if err := taker.Validate(); err != nil {
		return Evaluation{}, err
	}

	makerBid, _ := maker.BestBid()
	makerAsk, _ := maker.BestAsk()
	takerBid, _ := taker.BestBid()
	takerAsk, _ := taker.BestAsk()

	ev := Evaluation{
		SpreadLong:  takerBid.Sub(makerAsk),
		SpreadShort: makerBid.Sub(takerAsk),
	}

	if ev.SpreadLong.GreaterThanOrEqual(d.cfg.LongThreshold) {
		if d.withinBound(netPosition.Sub(d.cfg.Size)) {
			ev.Opportunity = &domain.Opportunity{
				Direction:     domain.DirectionLong,
				Symbol:        d.cfg.Symbol,
				Spread:        ev.SpreadLong,
				LegMakerPrice: makerAsk,
				LegTakerPrice: takerBid,
				Size:          d.cfg.Size,
				DetectedAt:    now,
			}
			return ev, nil
		}
		ev.BoundRejected = true
	}

	if ev.SpreadShort.GreaterThanOrEqual(d.cfg.ShortThreshold) {
		if d.withinBound(netPosition.Add(d.cfg.Size)) {
			ev.Opportunity = &domain.Opportunity{
				Direction:     domain.DirectionShort,
				Symbol:        d.cfg.Symbol,
				Spread:        ev.SpreadShort,
				LegMakerPrice: makerBid,
				LegTakerPrice: takerAsk,
				Size:          d.cfg.Size,
				DetectedAt:    now,
			}
			return ev, nil
		}
		ev.BoundRejected = true
	}

	return ev, nil
}

// Detect is Evaluate without the diagnostic spreads.
func (d *Detector) Detect(maker, taker domain.OrderBookSnapshot, netPosition decimal.Decimal, now time.Time) (*domain.Opportunity, error) {
	ev, err := d.Evaluate(maker, taker, netPosition, now)
	if err != nil {
		return nil, err
	}
	return ev.Opportunity, nil
}

func (d *Detector) withinBound(post decimal.Decimal) bool {
	return post.Abs().LessThanOrEqual(d.cfg.MaxPosition)
}
