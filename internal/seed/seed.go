// Package seed holds the sample invoice dataset used by the initial load.
package seed

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/grovetools/invoicedash/pkg/models"
	"gopkg.in/yaml.v3"
)

//go:embed invoices.yml
var invoicesYAML []byte

type dataset struct {
	Invoices []models.Invoice `yaml:"invoices"`
}

// Invoices returns a fresh copy of the sample dataset. It satisfies
// store.SeedFunc.
func Invoices(ctx context.Context) ([]models.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Parse(invoicesYAML)
}

// Parse decodes a dataset document.
func Parse(data []byte) ([]models.Invoice, error) {
	var ds dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse invoice dataset: %w", err)
	}
	for i, inv := range ds.Invoices {
		if !inv.Status.Valid() {
			return nil, fmt.Errorf("invoice %d has unknown status %q", inv.ID, inv.Status)
		}
		if inv.Items == nil {
			ds.Invoices[i].Items = []models.InvoiceItem{}
		}
	}
	return ds.Invoices, nil
}
