package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"optionflow/logger"
	"optionflow/models"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": s.cfg.Optionflow.Name,
		"version": s.cfg.Optionflow.Version,
	})
}

func (s *Server) handleSummaryStats(c *gin.Context) {
	resp, err := s.service.SummaryStats(c.Request.Context())
	if err != nil {
		s.serveError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleChain(c *gin.Context) {
	resp, err := s.service.OptionsChain(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		s.serveError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDetails(c *gin.Context) {
	resp, err := s.service.OptionDetails(c.Request.Context(), c.Param("symbol"), c.Param("optionSymbol"))
	if err != nil {
		s.serveError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleExpirations(c *gin.Context) {
	resp, err := s.service.Expirations(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		s.serveError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTopMovers(c *gin.Context) {
	resp, err := s.service.TopMovers(c.Request.Context())
	if err != nil {
		s.serveError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleLongDated(c *gin.Context) {
	resp, err := s.service.LongDated(c.Request.Context())
	if err != nil {
		s.serveError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleLongDatedLarge(c *gin.Context) {
	resp, err := s.service.LongDatedLarge(c.Request.Context())
	if err != nil {
		s.serveError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleScreen(c *gin.Context) {
	resp, err := s.service.Screen(c.Request.Context(), s.screenCriteria(c))
	if err != nil {
		s.serveError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// screenCriteria maps query parameters onto screen criteria. Missing or
// unparsable values fall back to configured defaults instead of rejecting
// the request.
func (s *Server) screenCriteria(c *gin.Context) models.ScreenCriteria {
	screenerCfg := s.cfg.Views.Screener

	criteria := models.ScreenCriteria{
		Symbols:   s.universes.ScreenerDefault,
		MinVolume: screenerCfg.DefaultMinVolume,
		MaxDays:   screenerCfg.DefaultMaxDays,
	}

	if raw := c.Query("symbols"); raw != "" {
		var symbols []string
		for _, sym := range strings.Split(raw, ",") {
			sym = strings.ToUpper(strings.TrimSpace(sym))
			if sym != "" {
				symbols = append(symbols, sym)
			}
		}
		if len(symbols) > 0 {
			criteria.Symbols = symbols
		}
	}

	criteria.MinVolume = queryInt64(c, "minVolume", criteria.MinVolume)
	criteria.MinOpenInterest = queryInt64(c, "minOpenInterest", 0)
	criteria.MinIV = queryFloat(c, "minIV", 0)
	criteria.MaxIV = queryFloat(c, "maxIV", 0)
	criteria.MinPrice = queryFloat(c, "minPrice", 0)
	criteria.MaxPrice = queryFloat(c, "maxPrice", 0)
	criteria.MinDays = queryInt(c, "minDays", 0)
	criteria.MaxDays = queryInt(c, "maxDays", criteria.MaxDays)

	if t := strings.ToLower(c.Query("optionType")); t == models.FilterCalls || t == models.FilterPuts {
		criteria.OptionType = t
	}
	if m := strings.ToLower(c.Query("moneyness")); m == models.FilterITM || m == models.FilterOTM {
		criteria.Moneyness = m
	}

	return criteria
}

func (s *Server) serveError(c *gin.Context, err error) {
	s.log.WithError(err).WithFields(logger.Fields{
		"path": c.Request.URL.Path,
	}).Error("request failed")
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}

func queryInt64(c *gin.Context, name string, fallback int64) int64 {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func queryInt(c *gin.Context, name string, fallback int) int {
	return int(queryInt64(c, name, int64(fallback)))
}

func queryFloat(c *gin.Context, name string, fallback float64) float64 {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
