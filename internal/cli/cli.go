// Package cli implements the interactive operator console: a thin
// line-reading loop over stdin that only calls the order book keeper's
// public methods, matching spec.md §6's command surface.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"depthpipe/internal/model"
	"depthpipe/internal/orderbook"
)

// allowedTickSizes lists the grid in ascending order for the `l` command.
var allowedTickSizes = []float64{0.001, 0.01, 0.1, 1, 10, 100}

// Console reads commands from in and writes output to out, operating on
// keeper. autoPrint and showImbalance are toggled by commands;
// showImbalance controls whether `d` prints imbalance, and autoPrint only
// changes what AutoPrint reports. Console itself performs no polling or
// periodic printing.
type Console struct {
	keeper *orderbook.Keeper
	in     *bufio.Scanner
	out    io.Writer

	autoPrint      atomic.Bool
	showImbalance  atomic.Bool
}

// New builds a Console over keeper, reading from in and writing to out.
func New(keeper *orderbook.Keeper, in io.Reader, out io.Writer) *Console {
	c := &Console{keeper: keeper, in: bufio.NewScanner(in), out: out}
	c.showImbalance.Store(true)
	return c
}

// AutoPrint reports whether the `p` command has toggled auto-print on.
func (c *Console) AutoPrint() bool { return c.autoPrint.Load() }

// ShowImbalance reports whether imbalance is included in displays.
func (c *Console) ShowImbalance() bool { return c.showImbalance.Load() }

// Run reads commands until EOF or the `q` command, returning the process
// exit code spec.md §6 specifies: 0 on clean quit, 1 if the input stream
// errors.
func (c *Console) Run() int {
	c.printHelp()
	for c.in.Scan() {
		line := strings.TrimSpace(c.in.Text())
		if line == "" {
			continue
		}
		if c.handle(line) {
			return 0
		}
	}
	if err := c.in.Err(); err != nil {
		fmt.Fprintf(c.out, "input error: %v\n", err)
		return 1
	}
	return 0
}

// handle processes one command line, returning true if it was `q`.
func (c *Console) handle(line string) bool {
	fields := strings.Fields(line)
	cmd := fields[0]

	switch cmd {
	case "t":
		c.cmdSetTick(fields)
	case "i":
		c.showImbalance.Store(!c.showImbalance.Load())
		fmt.Fprintf(c.out, "imbalance display: %v\n", c.showImbalance.Load())
	case "p":
		c.autoPrint.Store(!c.autoPrint.Load())
		fmt.Fprintf(c.out, "auto-print: %v\n", c.autoPrint.Load())
	case "d":
		c.display()
	case "s":
		c.cmdSpread()
	case "m":
		c.cmdMetrics()
	case "l":
		c.cmdListTicks()
	case "q":
		fmt.Fprintln(c.out, "shutting down")
		return true
	default:
		c.printHelp()
	}
	return false
}

func (c *Console) cmdSetTick(fields []string) {
	if len(fields) < 2 {
		fmt.Fprintln(c.out, "usage: t <size>")
		return
	}
	tick, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		fmt.Fprintf(c.out, "invalid tick size %q\n", fields[1])
		return
	}
	if err := c.keeper.SetTickSize(tick); err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "tick size set to %v\n", tick)
}

func (c *Console) cmdSpread() {
	m := c.keeper.Metrics()
	fmt.Fprintf(c.out, "bid=%.8f ask=%.8f spread=%.8f\n", m.BestBid, m.BestAsk, m.Spread)
}

func (c *Console) cmdMetrics() {
	m := c.keeper.Metrics()
	fmt.Fprintf(c.out, "best_bid=%.8f best_ask=%.8f spread=%.8f\n", m.BestBid, m.BestAsk, m.Spread)
	fmt.Fprintf(c.out, "imbalance[2]=%.4f imbalance[10]=%.4f imbalance[20]=%.4f imbalance[all]=%.4f (%s)\n",
		m.Imbalance2, m.Imbalance10, m.Imbalance20, m.ImbalanceAll, model.ImbalanceInterpretation(m.ImbalanceAll))
	fmt.Fprintf(c.out, "total_bid_usd=%.2f total_ask_usd=%.2f\n", m.TotalBidUSD, m.TotalAskUSD)
}

func (c *Console) cmdListTicks() {
	fmt.Fprint(c.out, "allowed tick sizes:")
	for _, t := range allowedTickSizes {
		fmt.Fprintf(c.out, " %v", t)
	}
	fmt.Fprintln(c.out)
}

func (c *Console) display() {
	bids, asks := c.keeper.Depth(10)
	fmt.Fprintln(c.out, "--- bids ---")
	for _, l := range bids {
		fmt.Fprintf(c.out, "%.8f\t%.8f\n", l.Price, l.Quantity)
	}
	fmt.Fprintln(c.out, "--- asks ---")
	for _, l := range asks {
		fmt.Fprintf(c.out, "%.8f\t%.8f\n", l.Price, l.Quantity)
	}
	if c.showImbalance.Load() {
		m := c.keeper.Metrics()
		fmt.Fprintf(c.out, "imbalance[all]=%.4f (%s)\n", m.ImbalanceAll, model.ImbalanceInterpretation(m.ImbalanceAll))
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, "commands: t <size> | i | p | d | s | m | l | q")
}
