package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/invoicedash/errors"
)

// ErrorHandler prints an error with a hint for the codes a user can act on.
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr.
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle prints err and returns it unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	coded, _ := errors.As(err)

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "Error: %v\n", err)
		fmt.Fprintf(h.Out, "Create invoicedash.yml or pass --config. Run 'invoicedash config show' to see the defaults.\n")

	case errors.ErrCodeConfigInvalid:
		fmt.Fprintf(h.Out, "Error: %v\n", err)
		fmt.Fprintf(h.Out, "Run 'invoicedash config schema' to see the accepted keys.\n")

	case errors.ErrCodeConnectionFailed:
		fmt.Fprintf(h.Out, "Error: could not reach %v after %v attempts\n", coded.Details["url"], coded.Details["attempts"])
		fmt.Fprintf(h.Out, "Start the event server with 'invoicedash mock-server start'.\n")

	case errors.ErrCodeNotConnected:
		fmt.Fprintf(h.Out, "Error: %v\n", err)
		fmt.Fprintf(h.Out, "The socket dropped before the event was sent. Try again once reconnected.\n")

	case errors.ErrCodeAckTimeout:
		fmt.Fprintf(h.Out, "Error: %v\n", err)
		fmt.Fprintf(h.Out, "The server did not answer in time. Raise client.ack_timeout_ms if it is slow.\n")

	case errors.ErrCodeAlreadyRunning:
		fmt.Fprintf(h.Out, "Error: %v\n", err)
		fmt.Fprintf(h.Out, "Stop it with 'invoicedash mock-server stop'.\n")

	case errors.ErrCodeUnauthenticated:
		fmt.Fprintf(h.Out, "Error: %v\n", err)
		fmt.Fprintf(h.Out, "Sign in at %v, or set the identity token environment variable.\n", coded.Details["redirect"])

	default:
		fmt.Fprintf(h.Out, "Error: %v\n", err)
	}

	if h.Verbose && coded != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", coded.ToJSON())
	}
	return err
}
