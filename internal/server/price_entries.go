package server

import (
	"net/http"
	"strings"
	"time"

	catalogdomain "github.com/buildquote/matchline/internal/catalog/domain"
	"github.com/buildquote/matchline/internal/orgcontext"
	"github.com/gin-gonic/gin"
)

type createPriceEntryRequest struct {
	ClassCode   string   `json:"class_code"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Unit        string   `json:"unit"`
	UnitPrice   float64  `json:"unit_price"`
	Currency    string   `json:"currency"`
	VATRate     float64  `json:"vat_rate"`
	VendorCode  string   `json:"vendor_code"`
	WidthMM     *float64 `json:"width_mm"`
	HeightMM    *float64 `json:"height_mm"`
	DiameterMM  *float64 `json:"diameter_mm"`
	AngleDeg    *float64 `json:"angle_deg"`
	Material    string   `json:"material"`
	ValidFrom   string   `json:"valid_from"`
	ValidTo     string   `json:"valid_to"`
}

func (s *Server) CreatePriceEntry(c *gin.Context) {
	var req createPriceEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		AbortWithError(c, catalogdomain.ErrInvalidOrganization)
		return
	}

	for field, value := range map[string]string{
		"class_code":  req.ClassCode,
		"category":    req.Category,
		"description": req.Description,
		"unit":        req.Unit,
		"currency":    req.Currency,
	} {
		if strings.TrimSpace(value) == "" {
			AbortWithError(c, newValidationError(field, "missing_"+field, field+" is required"))
			return
		}
	}
	if req.UnitPrice <= 0 {
		AbortWithError(c, newValidationError("unit_price", "invalid_unit_price", "unit_price must be positive"))
		return
	}

	validFrom := s.clock.Now()
	if raw := strings.TrimSpace(req.ValidFrom); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("valid_from", "invalid_valid_from", "invalid valid_from"))
			return
		}
		validFrom = parsed
	}

	var validTo *time.Time
	if raw := strings.TrimSpace(req.ValidTo); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("valid_to", "invalid_valid_to", "invalid valid_to"))
			return
		}
		validTo = &parsed
	}

	entry := &catalogdomain.PriceEntry{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		ClassCode:   strings.TrimSpace(req.ClassCode),
		Category:    strings.TrimSpace(req.Category),
		Description: strings.TrimSpace(req.Description),
		Unit:        strings.TrimSpace(req.Unit),
		UnitPrice:   req.UnitPrice,
		Currency:    strings.ToUpper(strings.TrimSpace(req.Currency)),
		VATRate:     req.VATRate,
		VendorCode:  strings.TrimSpace(req.VendorCode),
		WidthMM:     req.WidthMM,
		HeightMM:    req.HeightMM,
		DiameterMM:  req.DiameterMM,
		AngleDeg:    req.AngleDeg,
		Material:    strings.TrimSpace(req.Material),
		ValidFrom:   validFrom,
		ValidTo:     validTo,
		CreatedAt:   s.clock.Now(),
		UpdatedAt:   s.clock.Now(),
	}

	if err := s.catalogRepo.Insert(ctx, s.db, entry); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}
