// Package display implements the live display (C5): a fixed-geometry quote
// table redrawn in place as batches arrive, with a degraded non-TTY path in
// plain.go. The TUI in this file is the terminal-attached implementation,
// adapted from a single-intent confirm-and-edit loop into a ranked
// multi-row table with the same event-loop/ticker/spinner shape.
package display

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/nsf/termbox-go"

	swap "ridgeline/titan-swap"
	"ridgeline/titan-swap/internal/quotes"
	"ridgeline/titan-swap/internal/wire"
)

type uiMode uint8

const (
	modeWaiting uiMode = iota
	modeAwaitDecision
)

var spinnerFrames = []rune{'|', '/', '-', '\\'}

// TUI is the terminal-attached Display implementation (§4.5).
type TUI struct {
	InputSymbol    string
	OutputSymbol   string
	InputDecimals  uint8
	OutputDecimals uint8

	mode            uiMode
	batch           wire.QuoteBatch
	winning         *quotes.WinningQuote
	tableLines      []string
	spinnerFrame    int
	statusMessage   string
	tableFlashUntil time.Time
}

// SetTokenInfo implements swap.TokenAware.
func (ui *TUI) SetTokenInfo(inputSymbol, outputSymbol string, inputDecimals, outputDecimals uint8) {
	ui.InputSymbol = inputSymbol
	ui.OutputSymbol = outputSymbol
	ui.InputDecimals = inputDecimals
	ui.OutputDecimals = outputDecimals
}

// Watch implements swap.Display. It runs the terminal event loop until the
// user presses Enter (confirm) or Ctrl+C (cancel), or the stream ends/errs.
func (ui *TUI) Watch(ctx context.Context, updates <-chan quotes.Update, streamErrs <-chan error) (*quotes.WinningQuote, error) {
	if err := termbox.Init(); err != nil {
		return nil, fmt.Errorf("initializing terminal: %w", err)
	}
	defer termbox.Close()

	eventCh := make(chan termbox.Event)
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		for {
			ev := termbox.PollEvent()
			select {
			case eventCh <- ev:
			case <-pollDone:
				return
			}
			if ev.Type == termbox.EventError {
				return
			}
		}
	}()

	ticker := time.NewTicker(120 * time.Millisecond)
	defer ticker.Stop()

	ui.mode = modeWaiting
	ui.statusMessage = "waiting for quotes..."

	for {
		ui.draw()
		select {
		case <-ctx.Done():
			return nil, swap.NewError(swap.KindUserCancelled, "swap cancelled", ctx.Err())

		case err := <-streamErrs:
			if err != nil {
				return nil, err
			}

		case upd, ok := <-updates:
			if !ok {
				if ui.winning == nil {
					return nil, swap.NewError(swap.KindNoQuotes, "quote stream ended with no usable quote", nil)
				}
				return ui.winning, nil
			}
			ui.batch = upd.Batch
			if upd.Winning != nil {
				ui.winning = upd.Winning
			}
			ui.tableLines = ui.renderTable()
			ui.tableFlashUntil = time.Now().Add(350 * time.Millisecond)
			ui.mode = modeAwaitDecision
			ui.statusMessage = "Press Enter to confirm the starred quote, Ctrl+C to cancel."

		case ev := <-eventCh:
			switch ev.Type {
			case termbox.EventError:
				return nil, fmt.Errorf("terminal event error: %w", ev.Err)
			case termbox.EventResize:
				continue
			case termbox.EventKey:
				switch {
				case ev.Key == termbox.KeyCtrlC:
					return nil, swap.NewError(swap.KindUserCancelled, "swap cancelled by user", nil)
				case ev.Key == termbox.KeyEnter:
					if ui.winning != nil {
						return ui.winning, nil
					}
				}
			}

		case <-ticker.C:
			if ui.mode == modeWaiting {
				ui.spinnerFrame = (ui.spinnerFrame + 1) % len(spinnerFrames)
			}
		}
	}
}

func (ui *TUI) renderTable() []string {
	lines := make([]string, 0, len(ui.batch.Quotes)+2)
	lines = append(lines, fmt.Sprintf("%-10s %-24s %14s %14s %10s", "PROVIDER", "ROUTE", "IN", "OUT", "RATE"))
	for _, q := range ui.batch.Quotes {
		star := " "
		if ui.winning != nil && q.ProviderID == ui.winning.Quote.ProviderID && q.OutAmount == ui.winning.Quote.OutAmount {
			star = "*"
		}
		in := swap.FormatAmount(bigFromUint64(q.InAmount), ui.InputDecimals)
		out := swap.FormatAmount(bigFromUint64(q.OutAmount), ui.OutputDecimals)
		rate := rateString(q.InAmount, q.OutAmount, ui.InputDecimals, ui.OutputDecimals)
		route := strings.Join(q.RouteDesc, ">")
		lines = append(lines, fmt.Sprintf("%s%-9s %-24s %14s %14s %10s", star, q.ProviderID, route, in, out, rate))
	}
	return lines
}

func (ui *TUI) draw() {
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	width, height := termbox.Size()
	tableArea := height - 2
	if tableArea < 0 {
		tableArea = 0
	}
	linesToShow := len(ui.tableLines)
	if linesToShow > tableArea {
		linesToShow = tableArea
	}
	flashing := time.Now().Before(ui.tableFlashUntil)
	for i := 0; i < linesToShow; i++ {
		// The starred (winning) row is drawn bold, and flashes for a moment
		// after each update; every other row uses default colours.
		fg, bg := termbox.ColorDefault, termbox.ColorDefault
		if strings.HasPrefix(ui.tableLines[i], "*") {
			fg = termbox.ColorDefault | termbox.AttrBold
			if flashing {
				fg = termbox.ColorWhite | termbox.AttrBold
				bg = termbox.ColorGreen
			}
		}
		drawText(0, i, width, ui.tableLines[i], fg, bg)
	}
	if height >= 2 {
		drawText(0, height-2, width, ui.statusLine(), termbox.ColorDefault, termbox.ColorDefault)
	}
	if height >= 1 {
		drawText(0, height-1, width, fmt.Sprintf("%s -> %s", ui.InputSymbol, ui.OutputSymbol), termbox.ColorDefault, termbox.ColorDefault)
	}
	termbox.Flush()
}

func (ui *TUI) statusLine() string {
	if ui.mode == modeWaiting {
		return fmt.Sprintf("%c %s", spinnerFrames[ui.spinnerFrame], ui.statusMessage)
	}
	return ui.statusMessage
}

func drawText(x, y, width int, text string, fg, bg termbox.Attribute) {
	if y < 0 {
		return
	}
	col := 0
	for _, ch := range text {
		if col >= width {
			break
		}
		termbox.SetCell(x+col, y, ch, fg, bg)
		col++
	}
}

func bigFromUint64(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

// rateString renders out_amount/in_amount in human units (§4.5), via
// big.Rat so a tiny-decimal token's rate isn't distorted by float64 rounding.
func rateString(in, out uint64, inDecimals, outDecimals uint8) string {
	if in == 0 {
		return "n/a"
	}
	inHuman := new(big.Rat).SetFrac(bigFromUint64(in), pow10Rat(inDecimals))
	outHuman := new(big.Rat).SetFrac(bigFromUint64(out), pow10Rat(outDecimals))
	rate := new(big.Rat).Quo(outHuman, inHuman)
	return rate.FloatString(6)
}

func pow10Rat(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
