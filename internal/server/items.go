package server

import (
	"net/http"
	"strings"

	itemdomain "github.com/buildquote/matchline/internal/item/domain"
	"github.com/buildquote/matchline/internal/orgcontext"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type createItemRequest struct {
	ProjectID           string   `json:"project_id"`
	Description         string   `json:"description"`
	CategoryHint        string   `json:"category_hint"`
	Unit                string   `json:"unit"`
	WidthMM             *float64 `json:"width_mm"`
	HeightMM            *float64 `json:"height_mm"`
	DiameterMM          *float64 `json:"diameter_mm"`
	AngleDeg            *float64 `json:"angle_deg"`
	Material            string   `json:"material"`
	ExternalClassCode   string   `json:"external_class_code"`
	ExternalClassSource string   `json:"external_class_source"`
}

func (s *Server) CreateItem(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		AbortWithError(c, itemdomain.ErrInvalidOrganization)
		return
	}

	projectID, err := snowflake.ParseString(strings.TrimSpace(req.ProjectID))
	if err != nil || projectID == 0 {
		AbortWithError(c, newValidationError("project_id", "invalid_project_id", "invalid project_id"))
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		AbortWithError(c, itemdomain.ErrMissingDescription)
		return
	}

	entry := &itemdomain.Item{
		ID:                  s.genID.Generate(),
		OrgID:               orgID,
		ProjectID:           projectID,
		Description:         strings.TrimSpace(req.Description),
		CategoryHint:        strings.TrimSpace(req.CategoryHint),
		Unit:                strings.TrimSpace(req.Unit),
		WidthMM:             req.WidthMM,
		HeightMM:            req.HeightMM,
		DiameterMM:          req.DiameterMM,
		AngleDeg:            req.AngleDeg,
		Material:            strings.TrimSpace(req.Material),
		ExternalClassCode:   strings.TrimSpace(req.ExternalClassCode),
		ExternalClassSource: strings.TrimSpace(req.ExternalClassSource),
		Status:              "PENDING",
		CreatedAt:           s.clock.Now(),
		UpdatedAt:           s.clock.Now(),
	}

	if err := s.itemsRepo.Insert(ctx, s.db, entry); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

func (s *Server) GetItem(c *gin.Context) {
	itemID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_item_id", "invalid item id"))
		return
	}

	ctx := c.Request.Context()
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		AbortWithError(c, itemdomain.ErrInvalidOrganization)
		return
	}

	found, err := s.itemsRepo.FindByID(ctx, s.db, orgID, itemID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, found)
}
