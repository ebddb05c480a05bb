package batch

import (
	"fmt"
	"sort"
	"strings"
)

// NDX is the Nasdaq-100 constituent list the batch CLI evaluates with --ndx.
var NDX = []string{
	"ATVI", "ADBE", "AKAM", "ALXN", "GOOG", "GOOGL", "AMZN", "AAL", "AMGN", "ADI",
	"AAPL", "AMAT", "ADSK", "ADP", "BIDU", "BIIB", "BMRN", "AVGO", "CA", "CELG",
	"CERN", "CHTR", "CHKP", "CTAS", "CSCO", "CTXS", "CTSH", "CMCSA", "COST", "CSX",
	"CTRP", "XRAY", "DISCA", "DISCK", "DISH", "DLTR", "EBAY", "EA", "EXPE", "ESRX",
	"FB", "FAST", "FISV", "GILD", "HAS", "HSIC", "HOLX", "ILMN", "INCY", "INTC",
	"INTU", "ISRG", "JD", "KLAC", "LRCX", "LBTYA", "LBTYK", "LILA", "LILAK", "LVNTA",
	"QVCA", "MAR", "MAT", "MXIM", "MCHP", "MU", "MSFT", "MDLZ", "MNST", "MYL",
	"NTES", "NFLX", "NCLH", "NVDA", "NXPI", "ORLY", "PCAR", "PAYX", "PYPL", "QCOM",
	"REGN", "ROST", "SBAC", "STX", "SHPG", "SIRI", "SWKS", "SBUX", "SYMC", "TMUS",
	"TSLA", "TXN", "KHC", "PCLN", "TSCO", "TRIP", "FOX", "FOXA", "ULTA", "VRSK",
	"VRTX", "VIAB", "VOD", "WBA", "WDC", "XLNX",
}

// Favorites is the default watch list.
var Favorites = []string{
	"TWTR", "MOBL", "GLD", "LUV", "T", "SNAP", "RACE", "VSAT", "DATA", "YELP",
	"TWLO", "TEAM", "WMT", "SHAK", "ANET", "DXY",
}

// DefaultTicker is evaluated when no tickers are given.
const DefaultTicker = "GLD"

var universes = map[string][]string{
	"ndx":       NDX,
	"favorites": Favorites,
}

// Universe returns a copy of the named ticker list.
func Universe(name string) ([]string, error) {
	list, ok := universes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		names := make([]string, 0, len(universes))
		for n := range universes {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown universe %q (want one of %s)", name, strings.Join(names, ", "))
	}
	return append([]string(nil), list...), nil
}

// ParseTickers splits a comma or space separated list, upper-cases it and
// drops duplicates while keeping the first-seen order.
func ParseTickers(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' || r == '\n' })
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.ToUpper(strings.TrimSpace(f))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
