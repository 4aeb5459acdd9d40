package einvoice

import (
	"fmt"

	"taxkit/pkg/models"
)

// Specification identifiers written into the document context.
const (
	// XRechnungSpecificationID is the CustomizationID of XRechnung 3.0 (EN16931 CIUS).
	XRechnungSpecificationID = "urn:cen.eu:en16931:2017#compliant#urn:xeinkauf.de:kosit:xrechnung_3.0"

	// PeppolBillingProcess is the default ProfileID for XRechnung documents.
	PeppolBillingProcess = "urn:fdc:peppol.eu:2017:poacc:billing:01:1.0"

	// EN16931SpecificationID identifies the European core invoice model.
	EN16931SpecificationID = "urn:cen.eu:en16931:2017"

	guidelineBasic    = "urn:cen.eu:en16931:2017#compliant#urn:factur-x.eu:1p0:basic"
	guidelineComfort  = EN16931SpecificationID
	guidelineExtended = "urn:cen.eu:en16931:2017#conformant#urn:factur-x.eu:1p0:extended"
)

// ZUGFeRDMetadata configures the ZUGFeRD generator.
type ZUGFeRDMetadata struct {
	ConformanceLevel models.ConformanceLevel `json:"conformanceLevel"`
	Guideline        string                  `json:"guideline"`
	SpecificationID  string                  `json:"specificationId"`
}

// DefaultZUGFeRDMetadata returns the guideline and specification identifiers
// belonging to level.
func DefaultZUGFeRDMetadata(level models.ConformanceLevel) ZUGFeRDMetadata {
	meta := ZUGFeRDMetadata{
		ConformanceLevel: level,
		SpecificationID:  EN16931SpecificationID,
	}
	switch level {
	case models.LevelBasic:
		meta.Guideline = guidelineBasic
	case models.LevelExtended:
		meta.Guideline = guidelineExtended
	default:
		meta.Guideline = guidelineComfort
	}
	return meta
}

func (m ZUGFeRDMetadata) validate() error {
	if !m.ConformanceLevel.Valid() {
		return fmt.Errorf("%w: conformance level %q", ErrInvalidMetadata, m.ConformanceLevel)
	}
	if m.Guideline == "" {
		return fmt.Errorf("%w: guideline is required", ErrInvalidMetadata)
	}
	if m.SpecificationID == "" {
		return fmt.Errorf("%w: specification id is required", ErrInvalidMetadata)
	}
	return nil
}

// XRechnungMetadata configures the XRechnung generator. The CustomizationID is
// always XRechnungSpecificationID. BuyerReference and LeitwegID override the
// values carried by the model's buyer.
type XRechnungMetadata struct {
	BusinessProcessType string `json:"businessProcessType"`
	BuyerReference      string `json:"buyerReference,omitempty"`
	LeitwegID           string `json:"leitwegId,omitempty"`
	ProcessingNote      string `json:"processingNote,omitempty"`
}

// DefaultXRechnungMetadata returns metadata for the PEPPOL billing process.
func DefaultXRechnungMetadata() XRechnungMetadata {
	return XRechnungMetadata{BusinessProcessType: PeppolBillingProcess}
}

func (m XRechnungMetadata) validate() error {
	if m.BusinessProcessType == "" {
		return fmt.Errorf("%w: business process type is required", ErrInvalidMetadata)
	}
	return nil
}

// FormatOptions selects a format and carries its metadata. Only the metadata
// of the selected format is used.
type FormatOptions struct {
	Format    models.EInvoiceFormat `json:"format"`
	ZUGFeRD   ZUGFeRDMetadata       `json:"zugferd"`
	XRechnung XRechnungMetadata     `json:"xrechnung"`
}

// OptionsFromSettings builds the default options of a company.
func OptionsFromSettings(s models.EInvoiceSettings) FormatOptions {
	format := s.DefaultFormat
	if format == "" {
		format = models.FormatZUGFeRD
	}
	level := s.ZUGFeRDLevel
	if level == "" {
		level = models.LevelComfort
	}

	xr := DefaultXRechnungMetadata()
	xr.BuyerReference = s.DefaultBuyerRef
	xr.LeitwegID = s.DefaultLeitwegID
	xr.ProcessingNote = s.ProcessingNote

	return FormatOptions{
		Format:    format,
		ZUGFeRD:   DefaultZUGFeRDMetadata(level),
		XRechnung: xr,
	}
}

// Overrides are per request changes to a company's default options. Empty
// fields keep the default.
type Overrides struct {
	Format         models.EInvoiceFormat   `json:"format,omitempty"`
	Level          models.ConformanceLevel `json:"conformanceLevel,omitempty"`
	BuyerReference string                  `json:"buyerReference,omitempty"`
	LeitwegID      string                  `json:"leitwegId,omitempty"`
	ProcessingNote string                  `json:"processingNote,omitempty"`
}

// Apply returns o with ov applied. A new level also replaces the guideline.
func (o FormatOptions) Apply(ov Overrides) FormatOptions {
	if ov.Format != "" {
		o.Format = ov.Format
	}
	if ov.Level != "" {
		o.ZUGFeRD = DefaultZUGFeRDMetadata(ov.Level)
	}
	if ov.BuyerReference != "" {
		o.XRechnung.BuyerReference = ov.BuyerReference
	}
	if ov.LeitwegID != "" {
		o.XRechnung.LeitwegID = ov.LeitwegID
	}
	if ov.ProcessingNote != "" {
		o.XRechnung.ProcessingNote = ov.ProcessingNote
	}
	return o
}
