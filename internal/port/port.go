// Package port declares the outbound interfaces the services depend on.
// Concrete adapters live next to the infrastructure they wrap; services
// accept these interfaces so tests can substitute fakes.
package port

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// EmailSender delivers a single message. Implementations are best-effort
// from the caller's point of view; a send failure never rolls back the
// business operation that triggered it.
type EmailSender interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) error
}

// ExchangeRate is one currency pair's rate on a civil date.
type ExchangeRate struct {
	Base  string
	Quote string
	Rate  decimal.Decimal
	Date  time.Time
}

// ExchangeRateProvider resolves the rate for a currency pair on a date.
// Display-only: stored amounts never pass through a rate conversion.
type ExchangeRateProvider interface {
	Rate(ctx context.Context, base, quote string, date time.Time) (*ExchangeRate, error)
}

// PDFRenderer renders a named report template with data into a PDF stream.
type PDFRenderer interface {
	Render(ctx context.Context, template string, data any, out io.Writer) error
}

// FileSource lists and opens the JSON export files an import job consumes.
// Adapters exist for a local directory and an S3 bucket prefix.
type FileSource interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}
