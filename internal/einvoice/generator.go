package einvoice

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"taxkit/pkg/models"
)

// Generator renders a Model into one structured invoice syntax. Output is a
// pure function of the model and the generator's metadata.
type Generator interface {
	Format() models.EInvoiceFormat
	Standard() models.Standard
	Generate(m *Model) ([]byte, error)
}

var (
	_ Generator = (*ZUGFeRDGenerator)(nil)
	_ Generator = (*XRechnungGenerator)(nil)
)

// NewGenerator returns the generator selected by opts.Format.
func NewGenerator(opts FormatOptions) (Generator, error) {
	const op = "NewGenerator"

	switch opts.Format {
	case models.FormatZUGFeRD:
		meta := opts.ZUGFeRD
		if meta.ConformanceLevel == "" {
			meta.ConformanceLevel = models.LevelComfort
		}
		if meta.Guideline == "" && meta.SpecificationID == "" {
			meta = DefaultZUGFeRDMetadata(meta.ConformanceLevel)
		}
		g, err := NewZUGFeRDGenerator(meta)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return g, nil
	case models.FormatXRechnung:
		g, err := NewXRechnungGenerator(opts.XRechnung)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("%s: %w: %q", op, ErrUnsupportedFormat, opts.Format)
	}
}

func render(op string, doc any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrGenerationFailed, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrGenerationFailed, err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func percent(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func quantity(d decimal.Decimal) string {
	return d.StringFixed(4)
}

func lineID(i int) string {
	return strconv.Itoa(i + 1)
}
