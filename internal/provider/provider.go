// Package provider defines the market-data fetch boundary.
// Providers do network I/O only; caching lives in internal/cache.
package provider

import (
	"context"
	"fmt"
	"regexp"

	"github.com/pwelter/hindcast/internal/core"
)

// Provider fetches raw OHLCV bars for a symbol over an enumerated
// period/interval pair. Failures map to the typed core errors
// SYMBOL_NOT_FOUND, RATE_LIMITED and FETCH_TIMEOUT; providers never retry
// internally.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbol string, period core.Period, interval core.Interval) ([]core.PriceBar, error)
}

// validSymbol matches stock symbols like AAPL, MSFT, 600519.SH, 0700.HK
var validSymbol = regexp.MustCompile(`^[A-Za-z0-9\-]{1,10}(\.[A-Za-z]{1,4})?$`)

// ValidateSymbol checks if a symbol has valid format.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("symbol cannot be empty"))
	}
	if !validSymbol.MatchString(symbol) {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("invalid symbol format: %s", symbol))
	}
	return nil
}
