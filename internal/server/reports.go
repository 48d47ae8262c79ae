package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type asOfReportQuery struct {
	ProjectID string `form:"project_id"`
	AsOf      string `form:"as_of"`
}

func (s *Server) GetAsOfReport(c *gin.Context) {
	var query asOfReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	projectID, err := snowflake.ParseString(strings.TrimSpace(query.ProjectID))
	if err != nil || projectID == 0 {
		AbortWithError(c, newValidationError("project_id", "invalid_project_id", "invalid project_id"))
		return
	}

	asOf := s.clock.Now()
	if raw := strings.TrimSpace(query.AsOf); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("as_of", "invalid_as_of", "invalid as_of, expected RFC3339"))
			return
		}
		asOf = parsed
	}

	result, err := s.reportSvc.AsOf(c.Request.Context(), projectID, asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type listMappingsQuery struct {
	Limit string `form:"limit"`
}

func (s *Server) ListActiveMappings(c *gin.Context) {
	var query listMappingsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	limit := 0
	if raw := strings.TrimSpace(query.Limit); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
			return
		}
		limit = parsed
	}

	mappings, err := s.mappingSvc.ListActive(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"mappings": mappings})
}
