// Package replay drives a Router from a recorded JSONL event stream.
// It supplements the teacher's OHLCV backtest engine: where that
// engine replays bars through a portfolio simulator, this one replays
// the exact six market-data entry points (spec §6) through a single
// router instance, the thin harness the determinism property in §8
// ("replaying the same event stream twice produces identical signal
// sequences") is exercised against.
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/shopspring/decimal"
)

// Kind names one of the six inbound event shapes from spec §6, plus
// the wall-clock tick.
type Kind string

const (
	KindTrade      Kind = "trade"
	KindDepth      Kind = "depth"
	KindBbo        Kind = "bbo"
	KindMBOInsert  Kind = "mbo_insert"
	KindMBOReplace Kind = "mbo_replace"
	KindMBOCancel  Kind = "mbo_cancel"
	KindTick       Kind = "tick"
)

// Event is one line of a replay JSONL stream.
type Event struct {
	Type Kind      `json:"type"`
	TS   time.Time `json:"ts"`

	OrderID string          `json:"orderId,omitempty"`
	Side    flowtypes.OrderSide `json:"side,omitempty"`
	Price   decimal.Decimal `json:"price,omitempty"`
	Size    int64           `json:"size,omitempty"`

	BestBid decimal.Decimal `json:"bestBid,omitempty"`
	BestAsk decimal.Decimal `json:"bestAsk,omitempty"`

	Aggressor flowtypes.OrderSide `json:"aggressor,omitempty"`
}

// Router is the subset of *router.Router a Driver needs. Accepting an
// interface instead of the concrete type keeps this package free of a
// dependency cycle risk and lets tests use a recording stand-in.
type Router interface {
	OnTrade(price decimal.Decimal, size int64, aggressor flowtypes.OrderSide, ts time.Time)
	OnDepth(side flowtypes.OrderSide, price decimal.Decimal, size int64, ts time.Time)
	OnBbo(bestBid, bestAsk decimal.Decimal, ts time.Time)
	OnMBOInsert(id flowtypes.OrderID, side flowtypes.OrderSide, price decimal.Decimal, size int64, ts time.Time)
	OnMBOReplace(id flowtypes.OrderID, newSize int64, ts time.Time)
	OnMBOCancel(id flowtypes.OrderID, ts time.Time)
	OnTick(ts time.Time)
}

// Driver feeds a decoded JSONL stream through a Router event by event,
// in file order.
type Driver struct {
	router Router
}

// New returns a Driver targeting router.
func New(router Router) *Driver {
	return &Driver{router: router}
}

// Run decodes newline-delimited JSON events from r and dispatches each
// to the appropriate router entry point, stopping at EOF. It returns
// the count of events dispatched.
func (d *Driver) Run(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	count := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return count, fmt.Errorf("replay: decode event %d: %w", count+1, err)
		}
		d.dispatch(ev)
		count++
	}
	return count, scanner.Err()
}

func (d *Driver) dispatch(ev Event) {
	switch ev.Type {
	case KindTrade:
		d.router.OnTrade(ev.Price, ev.Size, ev.Aggressor, ev.TS)
	case KindDepth:
		d.router.OnDepth(ev.Side, ev.Price, ev.Size, ev.TS)
	case KindBbo:
		d.router.OnBbo(ev.BestBid, ev.BestAsk, ev.TS)
	case KindMBOInsert:
		d.router.OnMBOInsert(flowtypes.OrderID(ev.OrderID), ev.Side, ev.Price, ev.Size, ev.TS)
	case KindMBOReplace:
		d.router.OnMBOReplace(flowtypes.OrderID(ev.OrderID), ev.Size, ev.TS)
	case KindMBOCancel:
		d.router.OnMBOCancel(flowtypes.OrderID(ev.OrderID), ev.TS)
	case KindTick:
		d.router.OnTick(ev.TS)
	}
}
