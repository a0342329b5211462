package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nutrisync/internal/models"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// PostgresDB is the remote store: the hosted Postgres backend that is the
// source of truth whenever it is reachable. Every method is scoped by userID.
type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(cfg struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}) (*PostgresDB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode, cfg.MaxOpenConns,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DB connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnLifetime
	poolConfig.MaxConnIdleTime = 15 * time.Minute
	// Reachability is tracked by the connectivity monitor, so the pool comes
	// up even when the backend is down.
	poolConfig.LazyConnect = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping checks that the backend is reachable right now.
func (db *PostgresDB) Ping(ctx context.Context) error {
	return wrap("ping", db.pool.Ping(ctx))
}

const entryColumns = `id, user_id, date, meal_type, foods, notes, image_url, created_at, updated_at`

// CreateFoodEntry inserts the entry. An empty ID lets the server assign one;
// a client ID makes the call idempotent, returning the existing row.
func (db *PostgresDB) CreateFoodEntry(ctx context.Context, entry models.FoodEntry) (models.FoodEntry, error) {
	const op = "create_food_entry"

	date, foods, err := encodeEntry(entry)
	if err != nil {
		return models.FoodEntry{}, wrap(op, err)
	}

	query := `
        INSERT INTO food_entries (id, user_id, date, meal_type, foods, notes, image_url)
        VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE SET id = food_entries.id
        RETURNING ` + entryColumns

	row := db.pool.QueryRow(ctx, query,
		entry.ID, entry.UserID, date, string(entry.MealType), foods, entry.Notes, entry.ImageURL,
	)
	created, err := scanEntry(row)
	if err != nil {
		return models.FoodEntry{}, wrap(op, err)
	}
	return created, nil
}

func (db *PostgresDB) GetFoodEntry(ctx context.Context, userID, entryID string) (models.FoodEntry, error) {
	const op = "get_food_entry"

	row := db.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM food_entries WHERE id = $1 AND user_id = $2`,
		entryID, userID,
	)
	entry, err := scanEntry(row)
	if err != nil {
		return models.FoodEntry{}, wrap(op, err)
	}
	return entry, nil
}

// GetFoodEntries returns the user's entries within the inclusive date range,
// newest first. Empty bounds are open.
func (db *PostgresDB) GetFoodEntries(ctx context.Context, userID, startDate, endDate string) ([]models.FoodEntry, error) {
	const op = "get_food_entries"

	query := `
        SELECT ` + entryColumns + `
        FROM food_entries
        WHERE user_id = $1
          AND ($2 = '' OR date >= NULLIF($2, '')::date)
          AND ($3 = '' OR date <= NULLIF($3, '')::date)
        ORDER BY created_at DESC
    `

	rows, err := db.pool.Query(ctx, query, userID, startDate, endDate)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	entries := []models.FoodEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return entries, nil
}

// UpdateFoodEntry overwrites the mutable fields of an existing entry.
func (db *PostgresDB) UpdateFoodEntry(ctx context.Context, entry models.FoodEntry) (models.FoodEntry, error) {
	const op = "update_food_entry"

	date, foods, err := encodeEntry(entry)
	if err != nil {
		return models.FoodEntry{}, wrap(op, err)
	}

	query := `
        UPDATE food_entries
        SET date = $3, meal_type = $4, foods = $5, notes = $6, image_url = $7, updated_at = NOW()
        WHERE id = $1 AND user_id = $2
        RETURNING ` + entryColumns

	row := db.pool.QueryRow(ctx, query,
		entry.ID, entry.UserID, date, string(entry.MealType), foods, entry.Notes, entry.ImageURL,
	)
	updated, err := scanEntry(row)
	if err != nil {
		return models.FoodEntry{}, wrap(op, err)
	}
	return updated, nil
}

func (db *PostgresDB) DeleteFoodEntry(ctx context.Context, userID, entryID string) error {
	const op = "delete_food_entry"

	tag, err := db.pool.Exec(ctx, `DELETE FROM food_entries WHERE id = $1 AND user_id = $2`, entryID, userID)
	if err != nil {
		return wrap(op, err)
	}
	if tag.RowsAffected() == 0 {
		return wrap(op, ErrNotFound)
	}
	return nil
}

// SetNutritionGoals deactivates the user's active goals and inserts the new
// set. The two statements run outside a transaction, so a failure between
// them leaves the user without an active goal until the next set.
func (db *PostgresDB) SetNutritionGoals(ctx context.Context, goals models.NutritionGoals) (models.NutritionGoals, error) {
	const op = "set_nutrition_goals"

	_, err := db.pool.Exec(ctx, `
        UPDATE nutrition_goals
        SET is_active = FALSE, updated_at = NOW()
        WHERE user_id = $1 AND is_active
    `, goals.UserID)
	if err != nil {
		return models.NutritionGoals{}, wrap(op, err)
	}

	macros, err := json.Marshal(goals.Macronutrients)
	if err != nil {
		return models.NutritionGoals{}, wrap(op, err)
	}
	micros, err := json.Marshal(goals.Micronutrients)
	if err != nil {
		return models.NutritionGoals{}, wrap(op, err)
	}

	row := db.pool.QueryRow(ctx, `
        INSERT INTO nutrition_goals (user_id, daily_calories, macronutrients, micronutrients, is_active)
        VALUES ($1, $2, $3, $4, TRUE)
        RETURNING id, user_id, daily_calories, macronutrients, micronutrients, is_active, created_at, updated_at
    `, goals.UserID, goals.DailyCalories, macros, micros)

	saved, err := scanGoals(row)
	if err != nil {
		return models.NutritionGoals{}, wrap(op, err)
	}
	return saved, nil
}

func (db *PostgresDB) GetNutritionGoals(ctx context.Context, userID string) (models.NutritionGoals, error) {
	const op = "get_nutrition_goals"

	row := db.pool.QueryRow(ctx, `
        SELECT id, user_id, daily_calories, macronutrients, micronutrients, is_active, created_at, updated_at
        FROM nutrition_goals
        WHERE user_id = $1 AND is_active
        ORDER BY created_at DESC
        LIMIT 1
    `, userID)

	goals, err := scanGoals(row)
	if err != nil {
		return models.NutritionGoals{}, wrap(op, err)
	}
	return goals, nil
}

// UpsertFavorite finds the user's favorite by case-insensitive name. A hit
// bumps frequency and overwrites the nutrition snapshot; a miss inserts with
// frequency 1.
func (db *PostgresDB) UpsertFavorite(ctx context.Context, userID string, food models.NutritionData) (models.FavoriteFoodItem, error) {
	const op = "upsert_favorite"

	nutrition, err := json.Marshal(food)
	if err != nil {
		return models.FavoriteFoodItem{}, wrap(op, err)
	}

	var id string
	err = db.pool.QueryRow(ctx, `
        SELECT id FROM favorite_foods
        WHERE user_id = $1 AND lower(food_name) = lower($2)
    `, userID, food.FoodName).Scan(&id)

	var row pgx.Row
	switch {
	case err == nil:
		row = db.pool.QueryRow(ctx, `
            UPDATE favorite_foods
            SET frequency = frequency + 1, nutrition = $2, last_used = NOW()
            WHERE id = $1
            RETURNING id, user_id, food_name, nutrition, frequency, last_used
        `, id, nutrition)
	case errors.Is(err, pgx.ErrNoRows):
		row = db.pool.QueryRow(ctx, `
            INSERT INTO favorite_foods (user_id, food_name, nutrition, frequency)
            VALUES ($1, $2, $3, 1)
            RETURNING id, user_id, food_name, nutrition, frequency, last_used
        `, userID, food.FoodName, nutrition)
	default:
		return models.FavoriteFoodItem{}, wrap(op, err)
	}

	fav, err := scanFavorite(row)
	if err != nil {
		return models.FavoriteFoodItem{}, wrap(op, err)
	}
	return fav, nil
}

func (db *PostgresDB) GetFavoriteFoods(ctx context.Context, userID string, limit int) ([]models.FavoriteFoodItem, error) {
	const op = "get_favorite_foods"

	if limit <= 0 {
		limit = 20
	}
	rows, err := db.pool.Query(ctx, `
        SELECT id, user_id, food_name, nutrition, frequency, last_used
        FROM favorite_foods
        WHERE user_id = $1
        ORDER BY frequency DESC, last_used DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	favs := []models.FavoriteFoodItem{}
	for rows.Next() {
		fav, err := scanFavorite(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		favs = append(favs, fav)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return favs, nil
}

func encodeEntry(entry models.FoodEntry) (time.Time, []byte, error) {
	date, err := time.Parse(models.DateLayout, entry.Date)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("invalid entry date %q: %w", entry.Date, err)
	}
	foods := entry.Foods
	if foods == nil {
		foods = []models.NutritionData{}
	}
	raw, err := json.Marshal(foods)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("failed to encode foods: %w", err)
	}
	return date, raw, nil
}

func scanEntry(row pgx.Row) (models.FoodEntry, error) {
	var (
		e        models.FoodEntry
		date     time.Time
		mealType string
		foods    []byte
	)
	err := row.Scan(&e.ID, &e.UserID, &date, &mealType, &foods, &e.Notes, &e.ImageURL, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return models.FoodEntry{}, notFound(err)
	}
	if err := json.Unmarshal(foods, &e.Foods); err != nil {
		return models.FoodEntry{}, fmt.Errorf("failed to decode foods of %s: %w", e.ID, err)
	}
	e.Date = date.Format(models.DateLayout)
	e.MealType = models.MealType(mealType)
	e.SyncState = models.SyncStateSynced
	return e, nil
}

func scanGoals(row pgx.Row) (models.NutritionGoals, error) {
	var (
		g      models.NutritionGoals
		macros []byte
		micros []byte
	)
	err := row.Scan(&g.ID, &g.UserID, &g.DailyCalories, &macros, &micros, &g.IsActive, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return models.NutritionGoals{}, notFound(err)
	}
	if err := json.Unmarshal(macros, &g.Macronutrients); err != nil {
		return models.NutritionGoals{}, fmt.Errorf("failed to decode macro goals: %w", err)
	}
	if err := json.Unmarshal(micros, &g.Micronutrients); err != nil {
		return models.NutritionGoals{}, fmt.Errorf("failed to decode micro goals: %w", err)
	}
	return g, nil
}

func scanFavorite(row pgx.Row) (models.FavoriteFoodItem, error) {
	var (
		f         models.FavoriteFoodItem
		nutrition []byte
	)
	err := row.Scan(&f.ID, &f.UserID, &f.FoodName, &nutrition, &f.Frequency, &f.LastUsed)
	if err != nil {
		return models.FavoriteFoodItem{}, notFound(err)
	}
	if err := json.Unmarshal(nutrition, &f.Nutrition); err != nil {
		return models.FavoriteFoodItem{}, fmt.Errorf("failed to decode favorite nutrition: %w", err)
	}
	return f, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
