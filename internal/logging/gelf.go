package logging

import (
	"fmt"

	"github.com/Graylog2/go-gelf/gelf"
)

// OpenGELF connects a GELF UDP writer for Graylog. Pass it to Setup.
func OpenGELF(addr, facility string) (*gelf.Writer, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create GELF writer: %w", err)
	}
	w.Facility = facility
	return w, nil
}
