package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"nutrisync/internal/connectivity"
	"nutrisync/internal/food"
	"nutrisync/internal/localstore"
	"nutrisync/internal/models"
	"nutrisync/internal/queue"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

var errDown = errors.New("backend down")

// downRemote is a backend that cannot be reached, so every request runs on
// the local store.
type downRemote struct{}

func (downRemote) CreateFoodEntry(context.Context, models.FoodEntry) (models.FoodEntry, error) {
	return models.FoodEntry{}, errDown
}
func (downRemote) GetFoodEntry(context.Context, string, string) (models.FoodEntry, error) {
	return models.FoodEntry{}, errDown
}
func (downRemote) GetFoodEntries(context.Context, string, string, string) ([]models.FoodEntry, error) {
	return nil, errDown
}
func (downRemote) UpdateFoodEntry(context.Context, models.FoodEntry) (models.FoodEntry, error) {
	return models.FoodEntry{}, errDown
}
func (downRemote) DeleteFoodEntry(context.Context, string, string) error { return errDown }
func (downRemote) SetNutritionGoals(context.Context, models.NutritionGoals) (models.NutritionGoals, error) {
	return models.NutritionGoals{}, errDown
}
func (downRemote) GetNutritionGoals(context.Context, string) (models.NutritionGoals, error) {
	return models.NutritionGoals{}, errDown
}
func (downRemote) UpsertFavorite(context.Context, string, models.NutritionData) (models.FavoriteFoodItem, error) {
	return models.FavoriteFoodItem{}, errDown
}
func (downRemote) GetFavoriteFoods(context.Context, string, int) ([]models.FavoriteFoodItem, error) {
	return nil, errDown
}

type stubAnalyzer struct{}

func (stubAnalyzer) AnalyzeText(_ context.Context, description string) ([]models.NutritionData, error) {
	return []models.NutritionData{{FoodName: description, Calories: 250}}, nil
}

func (stubAnalyzer) AnalyzePhoto(context.Context, string, string) ([]models.NutritionData, error) {
	return nil, errors.New("vision unavailable")
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	local := localstore.New(localstore.NewMemoryKV(), nil)
	svc := food.New(food.Deps{
		Remote:  downRemote{},
		Local:   local,
		Queue:   queue.New(local, nil),
		Monitor: connectivity.NewMonitor(false, nil),
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(Collectors()...)

	return NewRouter(RouterDeps{
		Service:   svc,
		Analyzer:  stubAnalyzer{},
		Gatherer:  registry,
		JWTSecret: testSecret,
	})
}

func token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func do(t *testing.T, r http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func ptr(v float64) *float64 { return &v }

// foodInput is a complete food as a client would send it.
func foodInput(name string, kcal, protein float64) models.NutritionInput {
	return models.NutritionInput{
		FoodName: name,
		Calories: ptr(kcal),
		Macronutrients: &models.MacronutrientsInput{
			Protein: ptr(protein), Carbohydrates: ptr(0), Fat: ptr(0), Fiber: ptr(0), Sugar: ptr(0),
		},
	}
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","online":false}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "nutrisync_http_requests_total")
}

func TestAuthMiddleware(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name   string
		bearer string
		want   int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", func() string {
			s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString([]byte("other"))
			return s
		}(), http.StatusUnauthorized},
		{"no subject", token(t, jwt.MapClaims{"email": "a@b.c"}), http.StatusUnauthorized},
		{"sub claim", token(t, jwt.MapClaims{"sub": "u1"}), http.StatusOK},
		{"numeric userId claim", token(t, jwt.MapClaims{"userId": 42}), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodGet, "/api/sync/status", tt.bearer, nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestEntryLifecycleOffline(t *testing.T) {
	r := newTestRouter(t)
	bearer := token(t, jwt.MapClaims{"sub": "u1"})

	w := do(t, r, http.MethodPost, "/api/entries", bearer, createEntryBody{
		Date:     "2024-01-01",
		MealType: "Breakfast",
		Foods:    []models.NutritionInput{foodInput("Apple with peanut butter", 250, 8)},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, false, created["synced"])
	assert.Equal(t, "pending_remote", created["sync_state"])
	id := created["id"].(string)

	w = do(t, r, http.MethodGet, "/api/sync/status", bearer, nil)
	assert.JSONEq(t, `{"count":1,"is_online":false}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/nutrition/daily/2024-01-01", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var daily struct {
		Totals struct {
			Calories float64 `json:"calories"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &daily))
	assert.Equal(t, 250.0, daily.Totals.Calories)

	w = do(t, r, http.MethodGet, "/api/nutrition/daily/2024-01-01?format=legacy", bearer, nil)
	var legacy map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &legacy))
	assert.Equal(t, 250.0, legacy["total_calories"])
	assert.Equal(t, 250.0, legacy["breakfast_calories"])

	w = do(t, r, http.MethodPatch, "/api/entries/"+id, bearer, map[string]string{"notes": "crunchy"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/entries/search?q=CRUNCHY", bearer, nil)
	var found []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	assert.Len(t, found, 1)

	other := token(t, jwt.MapClaims{"sub": "u2"})
	w = do(t, r, http.MethodDelete, "/api/entries/"+id, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodDelete, "/api/entries/"+id, bearer, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodGet, "/api/entries", bearer, nil)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestValidationErrors(t *testing.T) {
	r := newTestRouter(t)
	bearer := token(t, jwt.MapClaims{"sub": "u1"})

	w := do(t, r, http.MethodPost, "/api/entries", bearer, createEntryBody{Date: "2024-01-01", MealType: "brunch"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/entries", bearer, createEntryBody{Date: "2024-01-01", MealType: "lunch"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "no foods")

	w = do(t, r, http.MethodGet, "/api/nutrition/daily/today", bearer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/nutrition/reports/yearly", bearer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPut, "/api/goals", bearer, map[string]any{"daily_calories": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGoalsFavoritesAndReports(t *testing.T) {
	r := newTestRouter(t)
	bearer := token(t, jwt.MapClaims{"sub": "u1"})

	w := do(t, r, http.MethodGet, "/api/goals", bearer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPut, "/api/goals", bearer, map[string]any{"daily_calories": 2000})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodGet, "/api/goals", bearer, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/api/favorites", bearer, models.NutritionData{FoodName: "Oats", Calories: 150})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodGet, "/api/favorites?limit=5", bearer, nil)
	var favs []models.FavoriteFoodItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &favs))
	require.Len(t, favs, 1)
	assert.Equal(t, "Oats", favs[0].FoodName)

	w = do(t, r, http.MethodGet, "/api/nutrition/reports/monthly?anchor=2024-02-10", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "2024-02-01", report["start_date"])
	assert.Contains(t, report, "progress")
}

func TestAnalyze(t *testing.T) {
	r := newTestRouter(t)
	bearer := token(t, jwt.MapClaims{"sub": "u1"})

	w := do(t, r, http.MethodPost, "/api/entries/analyze", bearer, analyzeBody{Description: "toast"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"food_name":"toast"`)

	w = do(t, r, http.MethodPost, "/api/entries/analyze", bearer, analyzeBody{ImageURL: "https://example.com/a.jpg"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = do(t, r, http.MethodPost, "/api/entries/analyze", bearer, analyzeBody{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestForceSyncAndClearLocalData(t *testing.T) {
	r := newTestRouter(t)
	bearer := token(t, jwt.MapClaims{"sub": "u1"})

	w := do(t, r, http.MethodPost, "/api/entries", bearer, createEntryBody{
		Date: "2024-01-01", MealType: "snack",
		Foods: []models.NutritionInput{foodInput("Nuts", 180, 5)},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, r, http.MethodPost, "/api/sync", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, false, res["ran"])

	w = do(t, r, http.MethodDelete, "/api/local-data", bearer, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodGet, "/api/sync/status", bearer, nil)
	assert.JSONEq(t, `{"count":0,"is_online":false}`, w.Body.String())
}

func TestIncompleteFoodsAreRejected(t *testing.T) {
	r := newTestRouter(t)
	bearer := token(t, jwt.MapClaims{"sub": "u1"})

	w := do(t, r, http.MethodPost, "/api/entries", bearer, map[string]any{
		"date": "2024-01-01", "meal_type": "lunch",
		"foods": []map[string]any{{"food_name": "mystery"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "no calories or macros")

	w = do(t, r, http.MethodPost, "/api/entries", bearer, map[string]any{
		"date": "2024-01-01", "meal_type": "lunch",
		"foods": []map[string]any{{
			"food_name": "soup", "calories": 120,
			"macronutrients": map[string]any{"protein": 4, "carbohydrates": 10, "fat": 3},
		}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "fiber and sugar missing")

	w = do(t, r, http.MethodPost, "/api/favorites", bearer, map[string]any{"food_name": "Oats"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/sync/status", bearer, nil)
	assert.JSONEq(t, `{"count":0,"is_online":false}`, w.Body.String(), "nothing was stored")

	w = do(t, r, http.MethodPost, "/api/entries", bearer, createEntryBody{
		Date: "2024-01-01", MealType: "lunch",
		Foods: []models.NutritionInput{foodInput("Rice", 400, 8)},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.FoodEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = do(t, r, http.MethodPatch, "/api/entries/"+created.ID, bearer, map[string]any{
		"foods": []map[string]any{{"food_name": "Rice"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/nutrition/daily/2024-01-01", bearer, nil)
	var daily struct {
		Totals struct {
			Calories float64 `json:"calories"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &daily))
	assert.Equal(t, 400.0, daily.Totals.Calories, "rejected patch left the entry alone")
}

func TestQueryTokenOnlyOnWebsocketRoute(t *testing.T) {
	r := newTestRouter(t)
	valid := token(t, jwt.MapClaims{"sub": "u1"})

	w := do(t, r, http.MethodGet, "/api/sync/status?token="+valid, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Auth passes; the test router has no hub.
	w = do(t, r, http.MethodGet, "/api/ws?token="+valid, "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		allowed []string
		want    bool
	}{
		{"no origin header", "", nil, true},
		{"same host", "https://journal.example", nil, true},
		{"foreign host without list", "https://evil.example", nil, false},
		{"listed origin", "https://app.example", []string{"https://app.example/"}, true},
		{"unlisted origin", "https://evil.example", []string{"https://app.example"}, false},
		{"same host not listed", "https://journal.example", []string{"https://app.example"}, false},
		{"wildcard", "https://anything.example", []string{"*"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "https://journal.example/api/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originAllowed(req, tt.allowed))
		})
	}
}
