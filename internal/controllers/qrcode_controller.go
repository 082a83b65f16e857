package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

const (
	defaultQRSize = 256
	minQRSize     = 128
	maxQRSize     = 1024
)

type QRCodeController struct {
	resolver AccessResolver
	baseURL  string
}

func NewQRCodeController(resolver AccessResolver, baseURL string) *QRCodeController {
	return &QRCodeController{
		resolver: resolver,
		baseURL:  baseURL,
	}
}

// GenerateQRCode handles GET /api/v1/qrcode/:shortCode - generates QR code for a short URL.
// Only links that would be served (allowed and without a threat) get one.
func (qc *QRCodeController) GenerateQRCode(c *gin.Context) {
	const op = "controllers.QRCodeController.GenerateQRCode"

	shortCode := c.Param("shortCode")

	decision, err := qc.resolver.Resolve(c.Request.Context(), shortCode)
	if err != nil {
		respondError(c, op, err)
		return
	}
	if !decision.Allowed || decision.URL.Threat != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Short URL not found",
		})
		return
	}

	size := defaultQRSize
	if s, err := strconv.Atoi(c.Query("size")); err == nil && s >= minQRSize && s <= maxQRSize {
		size = s
	}

	// Construct the full short URL
	shortURL := qc.baseURL + "/" + shortCode

	qrCode, err := qrcode.New(shortURL, qrcode.Medium)
	if err != nil {
		logError(c, op, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to generate QR code",
		})
		return
	}

	pngData, err := qrCode.PNG(size)
	if err != nil {
		logError(c, op, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to generate QR code image",
		})
		return
	}

	c.Header("Content-Disposition", "inline; filename=qrcode.png")
	c.Data(http.StatusOK, "image/png", pngData)
}
