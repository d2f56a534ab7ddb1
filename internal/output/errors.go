package output

import (
	"errors"
	"fmt"

	"github.com/fatih/color"

	"github.com/kitbuilder587/jgrants-search/internal/domain"
)

const (
	ExitSuccess    = 0
	ExitGeneral    = 1
	ExitUsageError = 2
	ExitUpstream   = 3
	ExitConfig     = 4
	ExitTimeout    = 5
)

// CLIError carries a user-facing summary and the process exit code.
type CLIError struct {
	Summary    string
	Detail     string
	Suggestion string
	ExitCode   int
	Err        error
}

func (e *CLIError) Error() string {
	return e.Summary
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// FromSearchError maps a search failure onto a CLIError. Errors that are
// not *domain.ClientError end up as ExitGeneral.
func FromSearchError(err error) *CLIError {
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}

	e := &CLIError{Detail: err.Error(), ExitCode: ExitUpstream, Err: err}
	switch {
	case errors.Is(err, domain.ErrKeywordTooShort), errors.Is(err, domain.ErrEmptyKeyword):
		e.Summary = "keyword too short"
		e.Suggestion = fmt.Sprintf("Use at least %d characters", domain.MinKeywordLength)
		e.ExitCode = ExitUsageError
	case errors.Is(err, domain.ErrValidation):
		e.Summary = "invalid search query"
		e.Suggestion = "Run 'jgrants search --help' for the accepted filter values"
		e.ExitCode = ExitUsageError
	case errors.Is(err, domain.ErrBadRequest):
		e.Summary = "request rejected by the upstream"
		e.Suggestion = "Check the filters; bad requests are not retried"
		e.ExitCode = ExitUsageError
	case errors.Is(err, domain.ErrTimeout):
		e.Summary = "upstream timed out"
		e.Suggestion = "Retry later or raise --timeout"
		e.ExitCode = ExitTimeout
	case errors.Is(err, domain.ErrNetwork):
		e.Summary = "could not reach the upstream"
		e.Suggestion = "Check connectivity and JGRANTS_BASE_URL"
	case errors.Is(err, domain.ErrServerError):
		e.Summary = "upstream server error"
		e.Suggestion = "Retry later"
	case errors.Is(err, domain.ErrUnexpected):
		e.Summary = "unexpected upstream response"
	default:
		e.Summary = "search failed"
		e.ExitCode = ExitGeneral
	}
	return e
}

// FormatError prints e to stderr. With debug set, the attempt count of a
// failed search is included.
func (p *Printer) FormatError(e *CLIError, debug bool) {
	if p.useColors {
		p.paint(color.FgRed, color.Bold).Fprintf(p.err, "Error: %s\n", e.Summary)
	} else {
		fmt.Fprintf(p.err, "[ERROR] %s\n", e.Summary)
	}
	if e.Detail != "" {
		fmt.Fprintf(p.err, "  Cause: %s\n", e.Detail)
	}
	var cerr *domain.ClientError
	if debug && errors.As(e.Err, &cerr) && cerr.Attempts > 0 {
		fmt.Fprintf(p.err, "  Attempts: %d\n", cerr.Attempts)
	}
	if e.Suggestion != "" {
		p.paint(color.FgCyan).Fprintf(p.err, "  Suggestion: %s\n", e.Suggestion)
	}
}
