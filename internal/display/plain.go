package display

import (
	"context"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	swap "ridgeline/titan-swap"
	"ridgeline/titan-swap/internal/quotes"
)

// Plain is the non-TTY Display implementation (§4.5): no in-place redraw,
// just a single final summary table emitted once a winner is known, the
// same table.Writer + SetOutputMirror pattern used for the legacy swap
// result summary.
type Plain struct {
	InputSymbol    string
	OutputSymbol   string
	InputDecimals  uint8
	OutputDecimals uint8

	// Print receives the rendered summary once a winner is confirmed.
	// Defaults to nil, meaning the caller reads Watch's return value
	// instead of relying on a side-printed table.
	Print func(string)
}

// SetTokenInfo implements swap.TokenAware.
func (p *Plain) SetTokenInfo(inputSymbol, outputSymbol string, inputDecimals, outputDecimals uint8) {
	p.InputSymbol = inputSymbol
	p.OutputSymbol = outputSymbol
	p.InputDecimals = inputDecimals
	p.OutputDecimals = outputDecimals
}

// Watch drains updates until stream end (there is no interactive
// confirmation without a TTY; the most recent winning quote observed is
// taken), then renders and (if Print is set) prints the summary.
func (p *Plain) Watch(ctx context.Context, updates <-chan quotes.Update, streamErrs <-chan error) (*quotes.WinningQuote, error) {
	var latest *quotes.WinningQuote
	for {
		select {
		case <-ctx.Done():
			return nil, swap.NewError(swap.KindUserCancelled, "swap cancelled", ctx.Err())

		case err := <-streamErrs:
			if err != nil {
				return nil, err
			}

		case upd, ok := <-updates:
			if !ok {
				if latest == nil {
					return nil, swap.NewError(swap.KindNoQuotes, "quote stream ended with no usable quote", nil)
				}
				if p.Print != nil {
					p.Print(p.renderSummary(latest))
				}
				return latest, nil
			}
			if upd.Winning != nil {
				latest = upd.Winning
			}
		}
	}
}

func (p *Plain) renderSummary(win *quotes.WinningQuote) string {
	builder := &strings.Builder{}
	t := table.NewWriter()
	t.SetOutputMirror(builder)
	t.SetTitle("Best Quote")
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"Provider", win.Quote.ProviderID})
	t.AppendRow(table.Row{"Route", strings.Join(win.Quote.RouteDesc, " > ")})
	t.AppendRow(table.Row{"In", swap.FormatAmount(bigFromUint64(win.Quote.InAmount), p.InputDecimals) + " " + p.InputSymbol})
	t.AppendRow(table.Row{"Out", swap.FormatAmount(bigFromUint64(win.Quote.OutAmount), p.OutputDecimals) + " " + p.OutputSymbol})
	t.AppendRow(table.Row{"Price impact", swap.FormatBps(win.Quote.PriceImpactBps)})
	t.AppendRow(table.Row{"Platform fee", swap.FormatBps(win.Quote.PlatformFeeBps)})
	t.Render()
	return builder.String()
}
