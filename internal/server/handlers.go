package server

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nutrisync/internal/food"
	"nutrisync/internal/models"
	"nutrisync/internal/nutrition"
	"nutrisync/internal/realtime"
	"nutrisync/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type handlers struct {
	svc      *food.Service
	analyzer Analyzer
	hub      *realtime.Hub
	logger   *logger.Logger
	origins  []string
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"online": h.svc.IsOnline(),
	})
}

type createEntryBody struct {
	Date     string                  `json:"date"`
	MealType string                  `json:"meal_type"`
	Notes    string                  `json:"notes"`
	ImageURL string                  `json:"image_url"`
	Foods    []models.NutritionInput `json:"foods"`
}

func (h *handlers) createEntry(c *gin.Context) {
	var body createEntryBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	meal, err := models.ParseMealType(body.MealType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	foods, err := models.ToNutritionList(body.Foods)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.svc.CreateFoodEntry(c.Request.Context(), currentUser(c), food.CreateFoodEntryRequest{
		Date:     body.Date,
		MealType: meal,
		Notes:    body.Notes,
		ImageURL: body.ImageURL,
	}, foods)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *handlers) listEntries(c *gin.Context) {
	entries, err := h.svc.GetFoodEntries(c.Request.Context(), currentUser(c), c.Query("start"), c.Query("end"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *handlers) searchEntries(c *gin.Context) {
	entries, err := h.svc.SearchFoodEntries(c.Request.Context(), currentUser(c), c.Query("q"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Foods replaces the entry's list when present.
type patchEntryBody struct {
	Date     *string                 `json:"date"`
	MealType *string                 `json:"meal_type"`
	Foods    []models.NutritionInput `json:"foods"`
	Notes    *string                 `json:"notes"`
	ImageURL *string                 `json:"image_url"`
}

func (h *handlers) updateEntry(c *gin.Context) {
	var body patchEntryBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch := models.FoodEntryPatch{
		Date:     body.Date,
		Notes:    body.Notes,
		ImageURL: body.ImageURL,
	}
	if body.Foods != nil {
		foods, err := models.ToNutritionList(body.Foods)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		patch.Foods = foods
	}
	if body.MealType != nil {
		meal, err := models.ParseMealType(*body.MealType)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		patch.MealType = &meal
	}

	entry, err := h.svc.UpdateFoodEntry(c.Request.Context(), currentUser(c), c.Param("id"), patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *handlers) deleteEntry(c *gin.Context) {
	if err := h.svc.DeleteFoodEntry(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type analyzeBody struct {
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Hint        string `json:"hint"`
}

func (h *handlers) analyze(c *gin.Context) {
	if h.analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "food analysis is not configured"})
		return
	}
	var body analyzeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		foods []models.NutritionData
		err   error
	)
	switch {
	case body.ImageURL != "":
		foods, err = h.analyzer.AnalyzePhoto(c.Request.Context(), body.ImageURL, body.Hint)
	case body.Description != "":
		foods, err = h.analyzer.AnalyzeText(c.Request.Context(), body.Description)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "description or image_url is required"})
		return
	}
	if err != nil {
		h.logger.Warnw("analysis failed", "user_id", currentUser(c), "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not analyse the meal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"foods": foods})
}

func (h *handlers) dailyNutrition(c *gin.Context) {
	date := c.Param("date")
	if !models.ValidDate(date) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	daily := h.svc.GetDailyNutrition(c.Request.Context(), currentUser(c), date)
	if c.Query("format") == "legacy" {
		c.JSON(http.StatusOK, nutrition.LegacyView(daily))
		return
	}
	c.JSON(http.StatusOK, daily)
}

func (h *handlers) periodReport(c *gin.Context) {
	period, err := nutrition.ParsePeriod(c.Param("period"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	anchor := time.Now().UTC()
	if raw := c.Query("anchor"); raw != "" {
		anchor, err = time.Parse(models.DateLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "anchor must be YYYY-MM-DD"})
			return
		}
	}

	summary, err := h.svc.GetPeriodReport(c.Request.Context(), currentUser(c), period, anchor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *handlers) getGoals(c *gin.Context) {
	goals, ok := h.svc.GetNutritionGoals(c.Request.Context(), currentUser(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active goals"})
		return
	}
	c.JSON(http.StatusOK, goals)
}

func (h *handlers) setGoals(c *gin.Context) {
	var goals models.NutritionGoals
	if err := c.ShouldBindJSON(&goals); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	saved, err := h.svc.SetNutritionGoals(c.Request.Context(), currentUser(c), goals)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *handlers) listFavorites(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	c.JSON(http.StatusOK, h.svc.GetFavoriteFoods(c.Request.Context(), currentUser(c), limit))
}

func (h *handlers) addFavorite(c *gin.Context) {
	var body models.NutritionInput
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := body.ToNutrition()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fav, err := h.svc.AddToFavorites(c.Request.Context(), currentUser(c), item)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, fav)
}

func (h *handlers) syncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.GetOfflineQueueStatus())
}

func (h *handlers) forceSync(c *gin.Context) {
	res, ran := h.svc.ForceSync(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"ran":       ran,
		"attempted": res.Attempted,
		"succeeded": res.Succeeded,
		"failed":    res.Failed,
		"status":    h.svc.GetOfflineQueueStatus(),
	})
}

func (h *handlers) clearLocalData(c *gin.Context) {
	if err := h.svc.ClearUserData(currentUser(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// originAllowed accepts requests without an Origin header (non-browser
// clients), origins on the allow-list and, when the list is empty, only the
// server's own host.
func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(allowed) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(strings.TrimSuffix(a, "/"), origin) {
			return true
		}
	}
	return false
}

const pingInterval = 25 * time.Second

func (h *handlers) websocket(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime updates are not enabled"})
		return
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return originAllowed(r, h.origins) },
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := realtime.NewClient(currentUser(c), conn)
	h.hub.Register(client)

	done := make(chan struct{})
	defer close(done)

	go func() {
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if err := client.Ping(); err != nil {
					return
				}
			}
		}
	}()

	// The read loop ends when the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.hub.Unregister(client)
			return
		}
	}
}

func (h *handlers) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, food.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, food.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Errorw("request failed", "path", c.FullPath(), "user_id", currentUser(c), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
