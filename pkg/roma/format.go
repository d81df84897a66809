package roma

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatUSD renders a dollar amount with thousands separators. Sub-dollar
// prices keep six decimals.
func FormatUSD(v float64) string {
	switch {
	case v <= 0:
		return "N/A"
	case v < 1:
		return "$" + strconv.FormatFloat(v, 'f', 6, 64)
	default:
		return "$" + humanize.FormatFloat("#,###.##", v)
	}
}

// FormatQuote renders a price quote as markdown.
func FormatQuote(q PriceQuote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s (%s)**\n", q.Name, q.Symbol)
	fmt.Fprintf(&b, "Current Price: %s\n", FormatUSD(q.Price))
	fmt.Fprintf(&b, "24h Change: %+.2f%%\n", q.Change24h)
	fmt.Fprintf(&b, "Market Cap: %s\n", FormatUSD(q.MarketCap))
	fmt.Fprintf(&b, "24h Volume: %s", FormatUSD(q.Volume))
	return b.String()
}
