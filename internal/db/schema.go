package db

import "context"

const schema = `
CREATE TABLE IF NOT EXISTS food_entries (
    id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
    user_id     TEXT NOT NULL,
    date        DATE NOT NULL,
    meal_type   TEXT NOT NULL,
    foods       JSONB NOT NULL DEFAULT '[]',
    notes       TEXT NOT NULL DEFAULT '',
    image_url   TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS food_entries_user_date ON food_entries (user_id, date);

CREATE TABLE IF NOT EXISTS nutrition_goals (
    id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
    user_id         TEXT NOT NULL,
    daily_calories  DOUBLE PRECISION NOT NULL,
    macronutrients  JSONB NOT NULL DEFAULT '{}',
    micronutrients  JSONB NOT NULL DEFAULT '{}',
    is_active       BOOLEAN NOT NULL DEFAULT TRUE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS nutrition_goals_user_active ON nutrition_goals (user_id) WHERE is_active;

CREATE TABLE IF NOT EXISTS favorite_foods (
    id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
    user_id     TEXT NOT NULL,
    food_name   TEXT NOT NULL,
    nutrition   JSONB NOT NULL,
    frequency   INTEGER NOT NULL DEFAULT 1,
    last_used   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS favorite_foods_user_name ON favorite_foods (user_id, lower(food_name));
`

// Migrate creates the tables the adapter needs. Safe to run repeatedly.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, schema)
	return wrap("migrate", err)
}
