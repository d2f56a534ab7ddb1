// Command jgrants searches Jグランツ subsidies from the terminal and runs
// the Telegram bot.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/kitbuilder587/jgrants-search/internal/output"
)

// set at build time via ldflags
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := Execute(ctx)
	stop()
	if err == nil {
		return
	}

	p := printer
	if p == nil {
		p = output.NewPrinter(output.PrinterOptions{ColorMode: output.ColorAuto})
	}
	var cliErr *output.CLIError
	if !errors.As(err, &cliErr) {
		cliErr = &output.CLIError{Summary: err.Error(), ExitCode: output.ExitGeneral, Err: err}
	}
	p.FormatError(cliErr, debug)
	os.Exit(cliErr.ExitCode)
}
