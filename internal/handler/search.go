package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"houser/internal/errors"
	"houser/internal/model"
	"houser/internal/utils"
)

const refusalMessage = "Sorry, I can only search for UAE real estate."

// CachedSearcher runs one page of the tiered search through the cache
type CachedSearcher interface {
	SearchCached(ctx context.Context, plan model.SearchPlan, page, pageSize int, exclusions *model.ExclusionSet) (*model.SearchOutcome, bool, error)
}

// SearchHandler handles search-related HTTP requests
type SearchHandler struct {
	search          CachedSearcher
	defaultPageSize int
	maxPageSize     int
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(search CachedSearcher, defaultPageSize, maxPageSize int) *SearchHandler {
	return &SearchHandler{
		search:          search,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// Search handles POST /api/v1/search
func (h *SearchHandler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.ValidationError(c, err)
		return
	}

	if !utils.IsRealEstateQuery(req.Query) {
		c.JSON(http.StatusOK, gin.H{"message": refusalMessage, "results": []model.ResultItem{}})
		return
	}

	// Validate and cap paging
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = h.defaultPageSize
	}
	if req.PageSize > h.maxPageSize {
		req.PageSize = h.maxPageSize
	}

	plan := model.SearchPlan{}
	if req.Filters != nil {
		plan.Primary = *req.Filters
		plan.Primary.City = utils.NormalizeCity(plan.Primary.City)
		plan.Primary.Area = utils.NormalizeArea(plan.Primary.Area)
	}
	if req.Fallback != nil {
		plan.Fallback = *req.Fallback
	}

	started := time.Now()
	outcome, cached, err := h.search.SearchCached(c.Request.Context(), plan, req.Page, req.PageSize, model.NewExclusionSet(req.SeenIDs...))
	if err != nil {
		errors.InternalError(c, "search failed", err)
		return
	}

	summary := fmt.Sprintf("Found %d properties", len(outcome.Results))
	if plan.Primary.City != "" {
		summary += " in " + plan.Primary.City
	}
	if cached {
		summary += " (cached)"
	}

	c.JSON(http.StatusOK, model.SearchResponse{
		Summary:    summary,
		Results:    outcome.Results,
		IsFallback: outcome.IsFallback,
		Page:       req.Page,
		PageSize:   req.PageSize,
		HasMore:    len(outcome.Results) == req.PageSize,
		Cached:     cached,
		Took:       time.Since(started).Milliseconds(),
	})
}

// Intent handles POST /api/v1/intent
func (h *SearchHandler) Intent(c *gin.Context) {
	var req model.IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.ValidationError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.IntentResponse{IsRealEstate: utils.IsRealEstateQuery(req.Query)})
}
