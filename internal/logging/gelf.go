package logging

import (
	"fmt"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGELFHandler returns a handler that ships records to a Graylog GELF UDP input.
// The returned closer must be called on shutdown.
func NewGELFHandler(address, level string) (slog.Handler, func() error, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GELF writer for %s: %w", address, err)
	}
	w.Facility = ServiceName

	return slog.NewJSONHandler(w, handlerOptions(level)), w.Close, nil
}
