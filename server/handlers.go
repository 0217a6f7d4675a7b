package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Luismorlan/insighthub/apperr"
	"github.com/Luismorlan/insighthub/following"
	"github.com/Luismorlan/insighthub/mention"
	"github.com/Luismorlan/insighthub/pipeline"
	"github.com/Luismorlan/insighthub/server/middlewares"
	. "github.com/Luismorlan/insighthub/utils/log"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	defaultCostDays = 7
	maxCostDays     = 90
)

type handlers struct {
	services Services
}

// respondError writes {"code", "msg"}. Only the error message is exposed.
func respondError(c *gin.Context, err error) {
	status, code := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		Log.WithFields(logrus.Fields{"path": c.FullPath(), "user_id": middlewares.UserId(c)}).Errorf("request failed: %v", err)
	}
	c.JSON(status, gin.H{
		"code": code,
		"msg":  err.Error(),
	})
}

// intQuery parses an optional integer query parameter, returning fallback
// when absent.
func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.InvalidArgumentf("%s must be an integer", key)
	}
	return v, nil
}

func (h *handlers) processContent(c *gin.Context) {
	res, err := h.services.Pipeline.ProcessNewContent(c.Request.Context(), c.Param("content_id"), middlewares.UserId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) processBatch(c *gin.Context) {
	limit, err := intQuery(c, "limit", pipeline.DefaultBatchSize)
	if err != nil {
		respondError(c, err)
		return
	}
	if limit < 1 || limit > pipeline.MaxBatchSize {
		respondError(c, apperr.InvalidArgumentf("limit must be between 1 and %d", pipeline.MaxBatchSize))
		return
	}
	res, err := h.services.Pipeline.ProcessPendingBatch(c.Request.Context(), middlewares.UserId(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) onDemandSummary(c *gin.Context) {
	res, err := h.services.Pipeline.TriggerOnDemandSummary(c.Request.Context(), c.Param("content_id"), middlewares.UserId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) matchContent(c *gin.Context) {
	res := h.services.Matcher.ShouldAutoSummarize(c.Request.Context(), c.Param("content_id"), middlewares.UserId(c))
	c.JSON(http.StatusOK, res)
}

func (h *handlers) dashboard(c *gin.Context) {
	res, err := h.services.Dashboard.Dashboard(c.Request.Context(), middlewares.UserId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) priorityContent(c *gin.Context) {
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.services.Dashboard.PriorityContent(c.Request.Context(), middlewares.UserId(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": res, "count": len(res)})
}

func (h *handlers) recentSummaries(c *gin.Context) {
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := h.services.Dashboard.RecentAutoSummarized(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": res, "count": len(res)})
}

func (h *handlers) listCompanies(c *gin.Context) {
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		respondError(c, err)
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		respondError(c, err)
		return
	}
	companies, err := h.services.Companies.ListCompanies(c.Request.Context(), mention.ListFilter{
		Industry: c.Query("industry"),
		Query:    c.Query("q"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	views, err := toCompanyViews(companies)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": views, "count": len(views)})
}

func (h *handlers) getCompany(c *gin.Context) {
	ctx := c.Request.Context()
	company, err := h.services.Companies.GetCompany(ctx, c.Param("company_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	stats, err := h.services.Companies.CompanyStats(ctx, company.Id)
	if err != nil {
		respondError(c, err)
		return
	}
	view, err := toCompanyView(company)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, CompanyDetailView{CompanyView: view, Stats: stats})
}

type followRequest struct {
	Priority            *int  `json:"priority"`
	NotificationEnabled *bool `json:"notification_enabled"`
	AutoSummarize       *bool `json:"auto_summarize"`
}

func (r followRequest) options() following.FollowOptions {
	opts := following.DefaultFollowOptions()
	if r.Priority != nil {
		opts.Priority = *r.Priority
	}
	if r.NotificationEnabled != nil {
		opts.NotificationEnabled = *r.NotificationEnabled
	}
	if r.AutoSummarize != nil {
		opts.AutoSummarize = *r.AutoSummarize
	}
	return opts
}

func (h *handlers) listFollowing(c *gin.Context) {
	res, err := h.services.Following.ListFollowing(c.Request.Context(), middlewares.UserId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": res, "count": len(res)})
}

func (h *handlers) follow(c *gin.Context) {
	req := followRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperr.InvalidArgumentf("invalid follow request: %v", err))
			return
		}
	}
	companyId := c.Param("company_id")
	res, err := h.services.Following.AddFollowing(c.Request.Context(), middlewares.UserId(c), companyId, req.options())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": res, "company_id": companyId})
}

func (h *handlers) unfollow(c *gin.Context) {
	companyId := c.Param("company_id")
	res, err := h.services.Following.RemoveFollowing(c.Request.Context(), middlewares.UserId(c), companyId)
	if err != nil {
		respondError(c, err)
		return
	}
	if res == following.ResultNotFollowing {
		respondError(c, apperr.NotFoundf("following of company %s", companyId))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": res, "company_id": companyId})
}

func (h *handlers) syncFollowing(c *gin.Context) {
	infos, err := h.services.Following.SyncFromDurable(c.Request.Context(), middlewares.UserId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": len(infos), "items": infos})
}

func (h *handlers) costSummary(c *gin.Context) {
	days, err := intQuery(c, "days", defaultCostDays)
	if err != nil {
		respondError(c, err)
		return
	}
	if days < 1 || days > maxCostDays {
		respondError(c, apperr.InvalidArgumentf("days must be between 1 and %d", maxCostDays))
		return
	}
	report, err := h.services.CostSummary(c.Request.Context(), time.Now().AddDate(0, 0, -days))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}
