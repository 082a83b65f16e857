package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"shortly/internal/entities"
	"shortly/internal/middleware"
	"shortly/internal/models"
	"shortly/internal/service"
)

// URLService is the owner-facing URL API
type URLService interface {
	Create(ctx context.Context, in service.CreateURLInput, principal *entities.Principal) (*entities.URL, error)
	List(ctx context.Context, userID string) ([]*entities.URL, error)
	Get(ctx context.Context, shortCode string, principal *entities.Principal) (*entities.URL, error)
	Update(ctx context.Context, shortCode string, in service.UpdateURLInput, principal *entities.Principal) (*entities.URL, error)
	Delete(ctx context.Context, shortCode string, principal *entities.Principal) error
}

// AccessResolver decides whether a short code may be served
type AccessResolver interface {
	Resolve(ctx context.Context, shortCode string) (*entities.AccessDecision, error)
}

// ClickRecorder counts a served redirect
type ClickRecorder interface {
	Record(ctx context.Context, url *entities.URLSnapshot, meta entities.ClickMeta) (int64, error)
}

const defaultWarningReason = "This link has been flagged for review"

type ShortenerController struct {
	urlService  URLService
	resolver    AccessResolver
	clicks      ClickRecorder
	baseURL     string
	frontendURL string
	logger      *slog.Logger
}

func NewShortenerController(urlService URLService, resolver AccessResolver, clicks ClickRecorder, baseURL, frontendURL string, logger *slog.Logger) *ShortenerController {
	return &ShortenerController{
		urlService:  urlService,
		resolver:    resolver,
		clicks:      clicks,
		baseURL:     baseURL,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// CreateShortURL handles POST /api/v1/shorten
func (sc *ShortenerController) CreateShortURL(c *gin.Context) {
	const op = "controllers.ShortenerController.CreateShortURL"

	var req models.CreateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	url, err := sc.urlService.Create(c.Request.Context(), service.CreateURLInput{
		URL:       req.URL,
		Name:      req.Name,
		ShortCode: req.ShortCode,
	}, middleware.Principal(c))
	if err != nil {
		respondError(c, op, err)
		return
	}

	c.JSON(http.StatusCreated, models.NewURLResponse(url, sc.baseURL))
}

// GetUserURLs handles GET /api/v1/urls - returns all URLs for the authenticated user
func (sc *ShortenerController) GetUserURLs(c *gin.Context) {
	const op = "controllers.ShortenerController.GetUserURLs"

	urls, err := sc.urlService.List(c.Request.Context(), middleware.Principal(c).UserID)
	if err != nil {
		respondError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, models.NewURLListResponse(urls, sc.baseURL))
}

// GetURLStats handles GET /api/v1/url/:shortCode - returns URL statistics
func (sc *ShortenerController) GetURLStats(c *gin.Context) {
	const op = "controllers.ShortenerController.GetURLStats"

	url, err := sc.urlService.Get(c.Request.Context(), c.Param("shortCode"), middleware.Principal(c))
	if err != nil {
		respondError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, models.NewURLResponse(url, sc.baseURL))
}

// UpdateURL handles PATCH /api/v1/url/:shortCode - renames a URL or changes its destination or name
func (sc *ShortenerController) UpdateURL(c *gin.Context) {
	const op = "controllers.ShortenerController.UpdateURL"

	var req models.UpdateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	url, err := sc.urlService.Update(c.Request.Context(), c.Param("shortCode"), service.UpdateURLInput{
		URL:       req.URL,
		Name:      req.Name,
		ShortCode: req.ShortCode,
	}, middleware.Principal(c))
	if err != nil {
		respondError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, models.NewURLResponse(url, sc.baseURL))
}

// DeleteURL handles DELETE /api/v1/url/:shortCode - deletes a URL
func (sc *ShortenerController) DeleteURL(c *gin.Context) {
	const op = "controllers.ShortenerController.DeleteURL"

	if err := sc.urlService.Delete(c.Request.Context(), c.Param("shortCode"), middleware.Principal(c)); err != nil {
		respondError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "URL deleted successfully",
	})
}

// RedirectToURL handles GET /:shortCode. Every hit goes through the resolver
// and answers 302 so moderation changes apply to browsers that saw the link before.
func (sc *ShortenerController) RedirectToURL(c *gin.Context) {
	const op = "controllers.ShortenerController.RedirectToURL"

	decision, err := sc.resolver.Resolve(c.Request.Context(), c.Param("shortCode"))
	if err != nil {
		respondError(c, op, err)
		return
	}

	switch decision.Outcome() {
	case entities.OutcomeNotFound:
		c.Redirect(http.StatusFound, sc.frontendURL+"/not-found")
	case entities.OutcomeBlocked:
		c.Redirect(http.StatusFound, sc.frontendURL+"/blocked?"+url.Values{"reason": {string(decision.Reason)}}.Encode())
	case entities.OutcomeThreat:
		c.Redirect(http.StatusFound, sc.frontendURL+"/threat?"+url.Values{"threat": {string(*decision.URL.Threat)}}.Encode())
	case entities.OutcomeWarning:
		sc.recordClick(c, decision.URL)
		c.Redirect(http.StatusFound, sc.frontendURL+"/warning?"+warningQuery(decision.URL).Encode())
	default:
		sc.recordClick(c, decision.URL)
		c.Redirect(http.StatusFound, decision.URL.OriginalURL)
	}
}

// GetOriginalURLPublic handles GET /api/v1/redirect/:shortCode - the redirect decision as JSON (public, no auth)
func (sc *ShortenerController) GetOriginalURLPublic(c *gin.Context) {
	const op = "controllers.ShortenerController.GetOriginalURLPublic"

	decision, err := sc.resolver.Resolve(c.Request.Context(), c.Param("shortCode"))
	if err != nil {
		respondError(c, op, err)
		return
	}

	outcome := decision.Outcome()
	resp := models.RedirectResponse{Outcome: string(outcome)}

	switch outcome {
	case entities.OutcomeNotFound:
		c.JSON(http.StatusNotFound, resp)
		return
	case entities.OutcomeBlocked:
		reason := string(decision.Reason)
		resp.Reason = &reason
		c.JSON(http.StatusForbidden, resp)
		return
	case entities.OutcomeThreat:
		threat := string(*decision.URL.Threat)
		resp.Threat = &threat
		c.JSON(http.StatusOK, resp)
		return
	case entities.OutcomeWarning:
		reason := defaultWarningReason
		if decision.URL.FlagReason != nil {
			reason = *decision.URL.FlagReason
		}
		resp.Reason = &reason
	}

	resp.OriginalURL = &decision.URL.OriginalURL
	if clicks, ok := sc.recordClick(c, decision.URL); ok {
		resp.Clicks = &clicks
	}
	c.JSON(http.StatusOK, resp)
}

// recordClick counts the hit. A failure is logged and never fails the redirect.
func (sc *ShortenerController) recordClick(c *gin.Context, snapshot *entities.URLSnapshot) (int64, bool) {
	meta := service.ParseClickMeta(c.Request.UserAgent(), userID(c))

	clicks, err := sc.clicks.Record(c.Request.Context(), snapshot, meta)
	if err != nil {
		sc.logger.Warn("failed to record click",
			slog.String("short_code", snapshot.ShortCode),
			slog.Any("error", err),
		)
		return 0, false
	}
	return clicks, true
}

func warningQuery(u *entities.URLSnapshot) url.Values {
	reason := defaultWarningReason
	if u.FlagReason != nil {
		reason = *u.FlagReason
	}
	q := url.Values{
		"reason": {reason},
		"url":    {u.OriginalURL},
	}
	if u.Threat != nil {
		q.Set("threat", string(*u.Threat))
	}
	return q
}
