package mock

import "github.com/fwojciec/modharvest"

var _ modharvest.Converter = (*Converter)(nil)

// Converter is a mock implementation of modharvest.Converter.
type Converter struct {
	ConvertFn func(html string) (string, error)
}

func (c *Converter) Convert(html string) (string, error) {
	return c.ConvertFn(html)
}
