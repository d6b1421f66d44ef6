package broker

import (
	"sort"
	"time"

	"github.com/newthinker/swingsim/internal/core"
	"github.com/shopspring/decimal"
)

// Position is one entry event and everything that happens to it afterwards.
// It is created by Ledger.Open and mutated only through the Ledger.
type Position struct {
	Key        int             `json:"key" yaml:"key"`
	Ticker     string          `json:"ticker" yaml:"ticker"`
	EntryPrice decimal.Decimal `json:"entry_price" yaml:"entry_price"`
	EntryDate  time.Time       `json:"entry_date" yaml:"entry_date"`
	ShareCount int64           `json:"share_count" yaml:"share_count"`

	FirstStopLoss     decimal.Decimal `json:"first_stop_loss" yaml:"first_stop_loss"`
	FirstProfitTarget decimal.Decimal `json:"first_profit_target" yaml:"first_profit_target"`

	PartialSaleDone       bool            `json:"partial_sale_done" yaml:"partial_sale_done"`
	PartialSaleDate       time.Time       `json:"partial_sale_date,omitempty" yaml:"partial_sale_date,omitempty"`
	PartialSalePrice      decimal.Decimal `json:"partial_sale_price" yaml:"partial_sale_price"`
	PartialSaleShareCount int64           `json:"partial_sale_share_count" yaml:"partial_sale_share_count"`
	RemainingShareCount   int64           `json:"remaining_share_count" yaml:"remaining_share_count"`

	SecondStopLoss     decimal.Decimal `json:"second_stop_loss" yaml:"second_stop_loss"`
	SecondProfitTarget decimal.Decimal `json:"second_profit_target" yaml:"second_profit_target"`

	AdjustedStopLoss     decimal.Decimal `json:"adjusted_stop_loss" yaml:"adjusted_stop_loss"`
	AdjustedProfitTarget decimal.Decimal `json:"adjusted_profit_target" yaml:"adjusted_profit_target"`
	Adjustments          []Adjustment    `json:"adjustments" yaml:"adjustments"`

	CloseReason CloseReason     `json:"close_reason" yaml:"close_reason"`
	CloseDate   time.Time       `json:"close_date,omitempty" yaml:"close_date,omitempty"`
	ClosePrice  decimal.Decimal `json:"close_price" yaml:"close_price"`
}

// IsOpen reports whether the position has not been closed yet.
func (p *Position) IsOpen() bool {
	return p.CloseReason == CloseNone
}

// Stage returns the life-cycle phase used to tag adjustments.
func (p *Position) Stage() Stage {
	if p.PartialSaleDone {
		return StagePartial
	}
	return StageEntry
}

// EntryCost is the cash paid at entry.
func (p *Position) EntryCost() decimal.Decimal {
	return p.EntryPrice.Mul(decimal.NewFromInt(p.ShareCount))
}

// PartialProceeds is the cash received from the partial sale, zero if none.
func (p *Position) PartialProceeds() decimal.Decimal {
	if !p.PartialSaleDone {
		return decimal.Zero
	}
	return p.PartialSalePrice.Mul(decimal.NewFromInt(p.PartialSaleShareCount))
}

// FinalProceeds is the cash received when the remainder was closed.
func (p *Position) FinalProceeds() decimal.Decimal {
	if p.IsOpen() {
		return decimal.Zero
	}
	return p.ClosePrice.Mul(decimal.NewFromInt(p.RemainingShareCount))
}

// OpenShares is the number of shares still held.
func (p *Position) OpenShares() int64 {
	if p.PartialSaleDone {
		return p.RemainingShareCount
	}
	return p.ShareCount
}

// raise lifts the adjusted levels to sl/pt when they are higher.
func (p *Position) raise(sl, pt decimal.Decimal) {
	if p.AdjustedStopLoss.IsZero() || p.AdjustedStopLoss.LessThan(sl) {
		p.AdjustedStopLoss = sl
	}
	if p.AdjustedProfitTarget.IsZero() || p.AdjustedProfitTarget.LessThan(pt) {
		p.AdjustedProfitTarget = pt
	}
}

// Ledger owns every position of a run. Positions live in an arena indexed by
// key-1; the open set and the per-ticker index hold keys of open positions
// only. A Ledger is not safe for concurrent use.
type Ledger struct {
	params    Params
	positions []*Position
	open      map[int]struct{}
	byTicker  map[string][]int
}

// NewLedger creates an empty ledger using the level percentages of p.
func NewLedger(p Params) *Ledger {
	return &Ledger{
		params:   p,
		open:     make(map[int]struct{}),
		byTicker: make(map[string][]int),
	}
}

// Open allocates a new position at price, sets its first-stage levels and
// runs the ratchet for its ticker group.
func (l *Ledger) Open(ticker string, date time.Time, price decimal.Decimal, shares int64) *Position {
	key := len(l.positions) + 1
	pos := &Position{
		Key:               key,
		Ticker:            ticker,
		EntryPrice:        price,
		EntryDate:         date,
		ShareCount:        shares,
		FirstStopLoss:     l.params.StopBelow(price),
		FirstProfitTarget: l.params.TargetAbove(price),
	}
	pos.raise(pos.FirstStopLoss, pos.FirstProfitTarget)

	l.positions = append(l.positions, pos)
	l.open[key] = struct{}{}
	l.byTicker[ticker] = append(l.byTicker[ticker], key)

	l.Ratchet(ticker, date)
	return pos
}

// Ratchet synchronizes every open position of ticker to the highest adjusted
// stop and the highest adjusted target in the group, and logs one adjustment
// per position. Levels never move down.
func (l *Ledger) Ratchet(ticker string, date time.Time) {
	keys := l.byTicker[ticker]
	if len(keys) == 0 {
		return
	}

	var highSL, highPT decimal.Decimal
	for i, k := range keys {
		p := l.positions[k-1]
		if i == 0 || p.AdjustedStopLoss.GreaterThan(highSL) {
			highSL = p.AdjustedStopLoss
		}
		if i == 0 || p.AdjustedProfitTarget.GreaterThan(highPT) {
			highPT = p.AdjustedProfitTarget
		}
	}

	for _, k := range keys {
		p := l.positions[k-1]
		p.AdjustedStopLoss = highSL
		p.AdjustedProfitTarget = highPT
		p.Adjustments = append(p.Adjustments, Adjustment{
			Date:         date,
			StopLoss:     highSL,
			ProfitTarget: highPT,
			Stage:        p.Stage(),
		})
	}
}

// PartialSale sells PartialSalePct of the position at price. The second-stage
// levels are derived from the profit target that was just hit, the adjusted
// levels are raised to them and the ticker group is ratcheted. day is the
// daily session date used for the adjustment log. It returns the number of
// shares sold.
func (l *Ledger) PartialSale(key int, when time.Time, price decimal.Decimal, day time.Time) (int64, error) {
	p, err := l.openPosition(key)
	if err != nil {
		return 0, err
	}
	if p.PartialSaleDone {
		return 0, core.Errorf(core.ErrInvalidParameters, "position %d already had its partial sale", key)
	}

	sold := decimal.NewFromInt(p.ShareCount).Mul(l.params.PartialSalePct).Div(hundred).Floor().IntPart()

	hit := p.AdjustedProfitTarget
	p.PartialSaleDone = true
	p.PartialSaleDate = when
	p.PartialSalePrice = price
	p.PartialSaleShareCount = sold
	p.RemainingShareCount = p.ShareCount - sold
	p.SecondStopLoss = l.params.StopBelow(hit)
	p.SecondProfitTarget = l.params.TargetAbove(hit)
	p.raise(p.SecondStopLoss, p.SecondProfitTarget)

	l.Ratchet(p.Ticker, day)
	return sold, nil
}

// Close closes the remaining shares of a position and removes it from the
// open set. It returns the shares sold.
func (l *Ledger) Close(key int, reason CloseReason, when time.Time, price decimal.Decimal) (int64, error) {
	p, err := l.openPosition(key)
	if err != nil {
		return 0, err
	}
	if reason == CloseNone {
		return 0, core.Errorf(core.ErrInvalidParameters, "close reason required for position %d", key)
	}

	if !p.PartialSaleDone {
		p.RemainingShareCount = p.ShareCount
	}
	p.CloseReason = reason
	p.CloseDate = when
	p.ClosePrice = price

	delete(l.open, key)
	keys := l.byTicker[p.Ticker]
	for i, k := range keys {
		if k == key {
			l.byTicker[p.Ticker] = append(keys[:i:i], keys[i+1:]...)
			break
		}
	}
	if len(l.byTicker[p.Ticker]) == 0 {
		delete(l.byTicker, p.Ticker)
	}

	return p.RemainingShareCount, nil
}

// Get returns the position with key.
func (l *Ledger) Get(key int) (*Position, bool) {
	if key < 1 || key > len(l.positions) {
		return nil, false
	}
	return l.positions[key-1], true
}

// OpenPositions returns the open positions ordered by key.
func (l *Ledger) OpenPositions() []*Position {
	keys := make([]int, 0, len(l.open))
	for k := range l.open {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	result := make([]*Position, 0, len(keys))
	for _, k := range keys {
		result = append(result, l.positions[k-1])
	}
	return result
}

// OpenCount returns the number of open positions.
func (l *Ledger) OpenCount() int {
	return len(l.open)
}

// All returns every position ever opened, ordered by key.
func (l *Ledger) All() []*Position {
	result := make([]*Position, len(l.positions))
	copy(result, l.positions)
	return result
}

func (l *Ledger) openPosition(key int) (*Position, error) {
	p, ok := l.Get(key)
	if !ok {
		return nil, core.Errorf(core.ErrUnknownPosition, "key %d", key)
	}
	if _, open := l.open[key]; !open {
		return nil, core.Errorf(core.ErrPositionClosed, "key %d", key)
	}
	return p, nil
}
