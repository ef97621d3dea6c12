// Package advisor implements the context bundler and advisor adapter
// (spec §4.8): it encodes an admitted Signal into a bounded query for
// the advisor collaborator and decodes the structured decision that
// comes back. It does not interpret market semantics.
package advisor

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
)

// maxBundleBytes is the §6 wire budget for the outbound query.
const maxBundleBytes = 8 * 1024

// Bundle is the UTF-8 JSON payload sent to the advisor collaborator on
// every gate-admitted signal.
type Bundle struct {
	Direction string         `json:"direction"`
	Detection string         `json:"detection"`
	Price     int64          `json:"price"`
	Score     int            `json:"score"`
	Breakdown map[string]int `json:"breakdown"`
	Context   bundleContext  `json:"context"`
	Threshold int            `json:"threshold"`
	Query     string         `json:"query"`
}

type bundleContext struct {
	CVD        int64             `json:"cvd"`
	CVDTrend   string            `json:"cvdTrend"`
	VWAP       string            `json:"vwap"`
	POC        int64             `json:"poc,omitempty"`
	ValueLow   int64             `json:"valueLow,omitempty"`
	ValueHigh  int64             `json:"valueHigh,omitempty"`
	EMAs       map[string]string `json:"emas,omitempty"`
	Support    int64             `json:"support,omitempty"`
	Resistance int64             `json:"resistance,omitempty"`
	Phase      string            `json:"phase"`
}

// Build assembles the bundle for one admitted signal, ready for Encode.
func Build(sig flowtypes.Signal) Bundle {
	breakdown := make(map[string]int, len(sig.Breakdown))
	for factor, v := range sig.Breakdown {
		breakdown[string(factor)] = v
	}

	ctx := bundleContext{
		CVD:      sig.Context.CVD.Value,
		CVDTrend: string(sig.Context.CVD.Trend),
		VWAP:     string(sig.Context.VWAP.Classification),
		Phase:    string(sig.Context.Phase),
	}
	if sig.Context.Profile.Available {
		ctx.POC = sig.Context.Profile.POC
		ctx.ValueLow = sig.Context.Profile.ValueLow
		ctx.ValueHigh = sig.Context.Profile.ValueHigh
	}
	if sig.Context.DOM.Available {
		ctx.Support = sig.Context.DOM.Support
		ctx.Resistance = sig.Context.DOM.Resistance
	}
	for _, ema := range sig.Context.EMAs {
		if !ema.Available {
			continue
		}
		if ctx.EMAs == nil {
			ctx.EMAs = make(map[string]string, len(sig.Context.EMAs))
		}
		ctx.EMAs[strconv.Itoa(ema.Period)] = ema.Value.String()
	}

	return Bundle{
		Direction: string(sig.Direction),
		Detection: string(sig.Detection.Kind),
		Price:     sig.Price,
		Score:     sig.Score,
		Breakdown: breakdown,
		Context:   ctx,
		Threshold: sig.Threshold,
		Query:     queryFor(sig),
	}
}

func queryFor(sig flowtypes.Signal) string {
	return fmt.Sprintf("%s %s pattern at price %d, confluence score %d/%d, phase %s",
		sig.Detection.Kind, sig.Direction, sig.Price, sig.Score, sig.Threshold, sig.Context.Phase)
}

// Encode renders the bundle as compact UTF-8 JSON, halving the
// free-text query field (down to empty if need be) for as long as the
// encoded bundle exceeds the 8 KiB wire budget.
func Encode(b Bundle) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	for len(data) > maxBundleBytes && len(b.Query) > 0 {
		b.Query = b.Query[:len(b.Query)/2]
		if data, err = json.Marshal(b); err != nil {
			return nil, err
		}
	}
	return data, nil
}
