package server

import (
	"net/http"
	"strings"

	"github.com/buildquote/matchline/internal/cloudmetrics"
	matchingdomain "github.com/buildquote/matchline/internal/matching/domain"
	"github.com/buildquote/matchline/internal/orgcontext"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type createMatchRunRequest struct {
	ProjectID string `json:"project_id"`
	Limit     int    `json:"limit"`
}

func (s *Server) CreateMatchRun(c *gin.Context) {
	var req createMatchRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	projectID, err := snowflake.ParseString(strings.TrimSpace(req.ProjectID))
	if err != nil || projectID == 0 {
		AbortWithError(c, newValidationError("project_id", "invalid_project_id", "invalid project_id"))
		return
	}

	ctx := c.Request.Context()
	summary, err := s.matchingSvc.Run(ctx, matchingdomain.RunRequest{
		ProjectID: projectID,
		Limit:     req.Limit,
	})
	if err != nil {
		if orgID, ok := orgcontext.OrgIDFromContext(ctx); ok {
			cloudmetrics.RecordEngineError(orgID.String(), "match_run")
		}
		AbortWithError(c, err)
		return
	}

	c.Set("run_id", summary.RunID)
	var org string
	if orgID, ok := orgcontext.OrgIDFromContext(ctx); ok {
		org = orgID.String()
		s.obsMetrics.RecordMatchRun(ctx, org)
		for i := 0; i < summary.FastPathHits; i++ {
			s.obsMetrics.RecordFastPathHit(ctx, org)
		}
	}
	cloudmetrics.RecordMatchRun(org)
	for i := range summary.Results {
		s.obsMetrics.RecordMatchDecision(ctx, string(summary.Results[i].Decision))
		cloudmetrics.RecordMatchDecision(org, string(summary.Results[i].Decision))
	}

	c.JSON(http.StatusOK, summary)
}

func (s *Server) ListRunResults(c *gin.Context) {
	runID := strings.TrimSpace(c.Param("run_id"))
	if runID == "" {
		AbortWithError(c, newValidationError("run_id", "invalid_run_id", "invalid run_id"))
		return
	}

	results, err := s.matchingSvc.ListByRun(c.Request.Context(), runID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) GetMatchResult(c *gin.Context) {
	resultID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_match_result_id", "invalid match result id"))
		return
	}

	result, err := s.matchingSvc.GetResult(c.Request.Context(), resultID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type approveMatchResultRequest struct {
	Actor string `json:"actor"`
}

func (s *Server) ApproveMatchResult(c *gin.Context) {
	resultID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_match_result_id", "invalid match result id"))
		return
	}

	var req approveMatchResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	mapping, err := s.matchingSvc.Approve(c.Request.Context(), resultID, strings.TrimSpace(req.Actor))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, mapping)
}

type rejectMatchResultRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

func (s *Server) RejectMatchResult(c *gin.Context) {
	resultID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_match_result_id", "invalid match result id"))
		return
	}

	var req rejectMatchResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.matchingSvc.Reject(c.Request.Context(), resultID, strings.TrimSpace(req.Actor), strings.TrimSpace(req.Reason)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
