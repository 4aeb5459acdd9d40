package ustva

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"taxkit/pkg/models"
)

// as defined by Elster
const elsterHeader = `<?xml version="1.0" encoding="ISO-8859-15" standalone="no"?>` + "\n"

// ErrElsterExport is returned when a report cannot be rendered for ELSTER.
var ErrElsterExport = errors.New("elster export failed")

// Kennziffern reported in whole euros, rounded down.
var wholeEuroKz = map[int]bool{models.Kz81: true, models.Kz86: true}

type anmeldung struct {
	XMLName        xml.Name
	Version        string         `xml:"version,attr"`
	Date           string         `xml:"Erstellungsdatum"`
	Datenlieferant datenlieferant `xml:"DatenLieferant"`
	Unternehmer    unternehmer    `xml:"Steuerfall>Unternehmer"`
	UStVA          voranmeldung   `xml:"Steuerfall>Umsatzsteuervoranmeldung"`
}

type datenlieferant struct {
	Name    string `xml:"Name"`
	Strasse string `xml:"Strasse"`
	PLZ     string `xml:"PLZ"`
	Ort     string `xml:"Ort"`
	Telefon string `xml:"Telefon,omitempty"`
	Email   string `xml:"Email,omitempty"`
}

type unternehmer struct {
	Bezeichnung string `xml:"Bezeichnung"`
	Strasse     string `xml:"Str"`
	Hausnummer  string `xml:"Hausnummer,omitempty"`
	HNrZusatz   string `xml:"HNrZusatz,omitempty"`
	Ort         string `xml:"Ort"`
	PLZ         string `xml:"PLZ"`
	Telefon     string `xml:"Telefon,omitempty"`
	Email       string `xml:"Email,omitempty"`
}

type voranmeldung struct {
	Jahr         int    `xml:"Jahr"`
	Zeitraum     string `xml:"Zeitraum"`
	Steuernummer string `xml:"Steuernummer"`
	Kennzahlen   kennzahlen
}

type kennzahlen map[int]decimal.Decimal

// MarshalXML writes one KzNN element per figure in ascending order.
func (k kennzahlen) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	keys := lo.Keys(k)
	slices.Sort(keys)

	for _, key := range keys {
		se := xml.StartElement{Name: xml.Name{Local: fmt.Sprintf("Kz%02d", key)}}
		if err := e.EncodeElement(formatKennzahl(key, k[key]), se); err != nil {
			return err
		}
	}
	return nil
}

func formatKennzahl(kz int, v decimal.Decimal) string {
	if wholeEuroKz[kz] {
		return v.Floor().StringFixed(0)
	}
	return v.StringFixed(2)
}

// ElsterZeitraum returns the ELSTER period code of a quarter (41 to 44).
func ElsterZeitraum(quarter int) string {
	return strconv.Itoa(40 + quarter)
}

// WriteElster renders the report as an ELSTER Anmeldungssteuern document in
// ISO-8859-15. Zero figures are omitted except Kz 83, which is always present.
// The creation date is taken from the report so the output is reproducible.
func WriteElster(w io.Writer, report *models.TaxDeclarationReport, company models.CompanyProfile) error {
	const op = "WriteElster"

	if report == nil {
		return fmt.Errorf("%s: %w: report is nil", op, ErrElsterExport)
	}
	if report.Quarter < 1 || report.Quarter > 4 {
		return fmt.Errorf("%s: %w: quarter %d", op, ErrElsterExport, report.Quarter)
	}

	addr := models.ParseAddress(company.Address)
	street, number, suffix := models.SplitStreet(addr.Street)
	yearStr := strconv.Itoa(report.Year)

	kz := kennzahlen{}
	for key, value := range report.Result.Kennziffern() {
		if key == models.Kz83 || !value.IsZero() {
			kz[key] = value
		}
	}

	doc := anmeldung{
		XMLName: xml.Name{
			Local: "Anmeldungssteuern",
			Space: "http://finkonsens.de/elster/elsteranmeldung/ustva/v" + yearStr,
		},
		Version: yearStr,
		Date:    report.CreatedAt.Format("20060102"),
		Datenlieferant: datenlieferant{
			Name:    company.Name,
			Strasse: addr.Street,
			PLZ:     addr.PostCode,
			Ort:     addr.City,
			Telefon: company.Phone,
			Email:   company.Email,
		},
		Unternehmer: unternehmer{
			Bezeichnung: company.Name,
			Strasse:     street,
			Hausnummer:  number,
			HNrZusatz:   suffix,
			Ort:         addr.City,
			PLZ:         addr.PostCode,
			Telefon:     company.Phone,
			Email:       company.Email,
		},
		UStVA: voranmeldung{
			Jahr:         report.Year,
			Zeitraum:     ElsterZeitraum(report.Quarter),
			Steuernummer: company.TaxNumber,
			Kennzahlen:   kz,
		},
	}

	// ISO-8859-15 is requested
	iso := charmap.ISO8859_15.NewEncoder().Writer(w)

	if _, err := io.WriteString(iso, elsterHeader); err != nil {
		return fmt.Errorf("%s: writing header: %w", op, err)
	}

	enc := xml.NewEncoder(iso)
	enc.Indent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("%s: encoding: %w", op, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("%s: flushing: %w", op, err)
	}
	if _, err := io.WriteString(iso, "\n"); err != nil {
		return fmt.Errorf("%s: writing trailer: %w", op, err)
	}
	return nil
}
