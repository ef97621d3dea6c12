// Package utils provides small shared helpers for the order-flow engine.
package utils

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerateID generates a unique ID with an optional prefix.
func GenerateID(prefix string) string {
	id := uuid.New().String()
	if prefix != "" {
		return fmt.Sprintf("%s_%s", prefix, id)
	}
	return id
}

// GenerateSignalID generates a unique signal ID.
func GenerateSignalID() string { return GenerateID("sig") }

// GeneratePlanID generates a unique trade-plan ID.
func GeneratePlanID() string { return GenerateID("plan") }

// TicksOnGrid reports whether price is an exact multiple of tickSize.
func TicksOnGrid(price, tickSize decimal.Decimal) bool {
	if tickSize.Sign() <= 0 {
		return false
	}
	ratio := price.Div(tickSize)
	return ratio.Equal(ratio.Round(0))
}

// AbsInt64 returns the absolute value of an int64.
func AbsInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
