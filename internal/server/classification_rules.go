package server

import (
	"net/http"
	"strings"

	classifierdomain "github.com/buildquote/matchline/internal/classifier/domain"
	"github.com/gin-gonic/gin"
)

type createClassificationRuleRequest struct {
	Kind      string `json:"kind"`
	Pattern   string `json:"pattern"`
	ClassCode string `json:"class_code"`
	Priority  int    `json:"priority"`
}

func (s *Server) CreateClassificationRule(c *gin.Context) {
	var req createClassificationRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rule := &classifierdomain.Rule{
		Kind:      classifierdomain.RuleKind(strings.ToUpper(strings.TrimSpace(req.Kind))),
		Pattern:   strings.TrimSpace(req.Pattern),
		ClassCode: strings.TrimSpace(req.ClassCode),
		Priority:  req.Priority,
	}

	if err := s.classifierSvc.CreateRule(c.Request.Context(), rule); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rule)
}
