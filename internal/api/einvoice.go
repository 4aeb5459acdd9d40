package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"taxkit/internal/einvoice"
	"taxkit/pkg/models"
)

// generateRequest names a stored invoice or carries one inline.
type generateRequest struct {
	InvoiceID string          `json:"invoiceId" binding:"required_without=Invoice"`
	Invoice   *models.Invoice `json:"invoice"`
	einvoice.Overrides
}

type generationView struct {
	Document        *models.EInvoiceDocument `json:"document"`
	Validation      einvoice.Result          `json:"validation"`
	SynthesizedLine bool                     `json:"synthesizedLine"`
}

func (s *Server) generateEInvoice(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Format != "" {
		if _, err := models.ParseEInvoiceFormat(string(req.Format)); err != nil {
			badRequest(c, err)
			return
		}
	}

	opts := einvoice.OptionsFromSettings(s.deps.Company.EInvoice).Apply(req.Overrides)

	var (
		gen *einvoice.Generation
		err error
	)
	if req.Invoice != nil {
		gen, err = s.deps.EInvoices.GenerateFromInvoice(c.Request.Context(), s.deps.Company, req.Invoice, opts)
	} else {
		gen, err = s.deps.EInvoices.Generate(c.Request.Context(), s.deps.Company, req.InvoiceID, opts)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	success(c, http.StatusCreated, generationView{
		Document:        gen.Document,
		Validation:      gen.Result,
		SynthesizedLine: gen.Model.SynthesizedLine,
	})
}

func (s *Server) listEInvoices(c *gin.Context) {
	docs, err := s.deps.EInvoices.List(c.Request.Context(), s.deps.Company.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if docs == nil {
		docs = []*models.EInvoiceDocument{}
	}
	success(c, http.StatusOK, docs)
}

// validateEInvoice checks an uploaded XML document. The format is detected
// from the root element unless ?format= is given.
func (s *Server) validateEInvoice(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}

	format := models.EInvoiceFormat(c.Query("format"))
	if format == "" {
		format, err = einvoice.DetectFormat(data)
	} else {
		_, err = models.ParseEInvoiceFormat(string(format))
	}
	if err != nil {
		badRequest(c, err)
		return
	}

	opts, err := validateQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	success(c, http.StatusOK, einvoice.Validate(data, format, opts...))
}

func (s *Server) checkCompliance(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}
	success(c, http.StatusOK, einvoice.CheckCompliance(data))
}

func (s *Server) downloadEInvoice(c *gin.Context) {
	name, data, err := s.deps.EInvoices.Download(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, models.EInvoiceMIMEType, data)
}

func (s *Server) revalidateEInvoice(c *gin.Context) {
	opts, err := validateQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	result, err := s.deps.EInvoices.Revalidate(c.Request.Context(), c.Param("id"), opts...)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, http.StatusOK, result)
}

// validateQuery reads ?publicSector=true.
func validateQuery(c *gin.Context) ([]einvoice.ValidateOption, error) {
	raw := c.Query("publicSector")
	if raw == "" {
		return nil, nil
	}
	public, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errors.New("publicSector must be a boolean")
	}
	if public {
		return []einvoice.ValidateOption{einvoice.WithPublicSectorBuyer()}, nil
	}
	return nil, nil
}
