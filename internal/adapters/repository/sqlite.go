package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/breakfast/internal/domain/model"
	"github.com/okian/breakfast/pkg/metrics"
	sqlite "modernc.org/sqlite"
)

// SQLite primary result codes.
const (
	sqliteBusy       = 5
	sqliteLocked     = 6
	sqliteConstraint = 19
)

const recipeColumns = `id, recipe_name, recipe_name_en, category, difficulty, cooking_time,
	source_article, source_author, source_link, thumbnail_url, publish_date, likes_count,
	user_rating, times_drawn, created_at`

// SQLiteStore is a Store backed by a SQLite database file. Write
// transactions start with BEGIN IMMEDIATE so confirmations and rating
// updates are serialized by the database's single-writer lock.
type SQLiteStore struct {
	db  *sql.DB
	cfg settings
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path and runs
// migrations. Use ":memory:" for a private in-memory database.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxConns := cfg.maxOpenConns
	if path == ":memory:" {
		// every connection would otherwise see its own empty database
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	m := &sqliteMigrator{db: db}
	if err := m.run(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	cfg.log.Info(ctx, "sqlite store ready")
	return &SQLiteStore{db: db, cfg: cfg}, nil
}

func sqliteDSN(path string) string {
	pragmas := "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"
	if path == ":memory:" {
		return "file::memory:?" + pragmas
	}
	return "file:" + path + "?" + pragmas + "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

// ListRecipes implements Store.ListRecipes.
func (s *SQLiteStore) ListRecipes(ctx context.Context) (out []model.Recipe, err error) {
	defer observe(driverSQLite, "list_recipes", &err)()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recipeColumns+" FROM recipes ORDER BY COALESCE(user_rating, 3.0) DESC, id ASC")
	if err != nil {
		return nil, unavailable("list recipes", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, unavailable("scan recipe", err)
		}
		out = append(out, r)
	}
	if err = rows.Err(); err != nil {
		return nil, unavailable("list recipes", err)
	}
	return out, nil
}

// GetRecipe implements Store.GetRecipe.
func (s *SQLiteStore) GetRecipe(ctx context.Context, id model.RecipeID) (r model.Recipe, err error) {
	defer observe(driverSQLite, "get_recipe", &err)()

	row := s.db.QueryRowContext(ctx, "SELECT "+recipeColumns+" FROM recipes WHERE id = ?", int64(id))
	r, err = scanRecipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Recipe{}, ErrNotFound
	}
	if err != nil {
		return model.Recipe{}, unavailable("get recipe", err)
	}

	if r.Ingredients, err = s.ingredients(ctx, id); err != nil {
		return model.Recipe{}, err
	}
	if r.Instructions, err = s.instructions(ctx, id); err != nil {
		return model.Recipe{}, err
	}
	if r.Nutrition, err = s.nutrition(ctx, id); err != nil {
		return model.Recipe{}, err
	}
	return r, nil
}

func (s *SQLiteStore) ingredients(ctx context.Context, id model.RecipeID) ([]model.Ingredient, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT ingredient_name, quantity, unit, notes FROM ingredients WHERE recipe_id = ? ORDER BY id", int64(id))
	if err != nil {
		return nil, unavailable("list ingredients", err)
	}
	defer rows.Close()

	var out []model.Ingredient
	for rows.Next() {
		var ing model.Ingredient
		if err := rows.Scan(&ing.Name, &ing.Quantity, &ing.Unit, &ing.Notes); err != nil {
			return nil, unavailable("scan ingredient", err)
		}
		out = append(out, ing)
	}
	return out, unavailable("list ingredients", rows.Err())
}

func (s *SQLiteStore) instructions(ctx context.Context, id model.RecipeID) ([]model.InstructionStep, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT step_number, instruction, tips FROM instructions WHERE recipe_id = ? ORDER BY step_number", int64(id))
	if err != nil {
		return nil, unavailable("list instructions", err)
	}
	defer rows.Close()

	var out []model.InstructionStep
	for rows.Next() {
		var st model.InstructionStep
		if err := rows.Scan(&st.Number, &st.Text, &st.Tips); err != nil {
			return nil, unavailable("scan instruction", err)
		}
		out = append(out, st)
	}
	return out, unavailable("list instructions", rows.Err())
}

func (s *SQLiteStore) nutrition(ctx context.Context, id model.RecipeID) (*model.Nutrition, error) {
	var n model.Nutrition
	err := s.db.QueryRowContext(ctx,
		"SELECT calories, protein, carbohydrate, fat, fiber FROM nutrition WHERE recipe_id = ?", int64(id),
	).Scan(&n.Calories, &n.Protein, &n.Carbohydrate, &n.Fat, &n.Fiber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get nutrition", err)
	}
	return &n, nil
}

// AddRecipe implements Store.AddRecipe.
func (s *SQLiteStore) AddRecipe(ctx context.Context, draft model.RecipeDraft) (r model.Recipe, err error) {
	defer observe(driverSQLite, "add_recipe", &err)()

	if err = validateDraft(draft); err != nil {
		return model.Recipe{}, err
	}
	draft.Normalize()
	created := s.cfg.now().UTC()

	err = s.inTx(ctx, "add recipe", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO recipes (recipe_name, recipe_name_en, category, difficulty, cooking_time,
				source_article, source_author, source_link, thumbnail_url, publish_date, likes_count,
				user_rating, times_drawn, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
			draft.Name, draft.NameEn, draft.Category, draft.Difficulty, draft.CookingTime,
			draft.Source.Article, draft.Source.Author, draft.Source.Link, draft.Source.Thumbnail,
			draft.Source.PublishDate, draft.Source.Likes, model.DefaultRating, created.Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		r.ID = model.RecipeID(id)

		for _, ing := range draft.Ingredients {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO ingredients (recipe_id, ingredient_name, quantity, unit, notes) VALUES (?, ?, ?, ?, ?)",
				id, ing.Name, ing.Quantity, ing.Unit, ing.Notes,
			); err != nil {
				return err
			}
		}
		for _, st := range draft.Instructions {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO instructions (recipe_id, step_number, instruction, tips) VALUES (?, ?, ?, ?)",
				id, st.Number, st.Text, st.Tips,
			); err != nil {
				return err
			}
		}
		if n := draft.Nutrition; n != nil {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO nutrition (recipe_id, calories, protein, carbohydrate, fat, fiber) VALUES (?, ?, ?, ?, ?, ?)",
				id, n.Calories, n.Protein, n.Carbohydrate, n.Fat, n.Fiber,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Recipe{}, err
	}

	if n, cerr := s.CountRecipes(ctx); cerr == nil {
		metrics.UpdateCatalogSize(n)
	}
	return s.GetRecipe(ctx, r.ID)
}

// CountRecipes implements Store.CountRecipes.
func (s *SQLiteStore) CountRecipes(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM recipes").Scan(&n); err != nil {
		return 0, unavailable("count recipes", err)
	}
	return n, nil
}

// FindConfirmed implements Store.FindConfirmed.
func (s *SQLiteStore) FindConfirmed(ctx context.Context, date model.Date) (rec model.DrawRecord, err error) {
	defer observe(driverSQLite, "find_confirmed", &err)()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, recipe_id, draw_date, confirmed, created_at
		FROM draw_history WHERE draw_date = ? AND confirmed = 1
		ORDER BY id DESC LIMIT 1`, date.String())
	rec, err = scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DrawRecord{}, ErrNoConfirmedDraw
	}
	if err != nil {
		return model.DrawRecord{}, unavailable("find confirmed", err)
	}
	return rec, nil
}

// RecordProvisional implements Store.RecordProvisional.
func (s *SQLiteStore) RecordProvisional(ctx context.Context, date model.Date, id model.RecipeID) (rec model.DrawRecord, err error) {
	defer observe(driverSQLite, "record_provisional", &err)()

	err = s.inTx(ctx, "record provisional", func(tx *sql.Tx) error {
		if err := recipeExists(ctx, tx, id); err != nil {
			return err
		}
		var confirmed int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM draw_history WHERE draw_date = ? AND confirmed = 1",
			date.String()).Scan(&confirmed); err != nil {
			return err
		}
		if confirmed > 0 {
			return ErrDateConfirmed
		}
		rec, err = insertRecord(ctx, tx, date, id, false, s.cfg.now().UTC())
		return err
	})
	return rec, err
}

// ConfirmDraw implements Store.ConfirmDraw.
func (s *SQLiteStore) ConfirmDraw(ctx context.Context, date model.Date, id model.RecipeID) (rec model.DrawRecord, err error) {
	defer observe(driverSQLite, "confirm_draw", &err)()

	err = s.inTx(ctx, "confirm draw", func(tx *sql.Tx) error {
		if err := recipeExists(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM draw_history WHERE draw_date = ?", date.String()); err != nil {
			return err
		}
		rec, err = insertRecord(ctx, tx, date, id, true, s.cfg.now().UTC())
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "UPDATE recipes SET times_drawn = times_drawn + 1 WHERE id = ?", int64(id))
		return err
	})
	return rec, err
}

// History implements Store.History.
func (s *SQLiteStore) History(ctx context.Context, limit int) (out []model.HistoryEntry, err error) {
	defer observe(driverSQLite, "history", &err)()

	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT h.id, h.recipe_id, h.draw_date, h.confirmed, h.created_at,
			COALESCE(r.recipe_name, ''), COALESCE(r.recipe_name_en, '')
		FROM draw_history h
		LEFT JOIN recipes r ON r.id = h.recipe_id
		ORDER BY h.draw_date DESC, h.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, unavailable("history", err)
	}
	defer rows.Close()

	out = make([]model.HistoryEntry, 0, limit)
	for rows.Next() {
		var (
			e         model.HistoryEntry
			date      string
			confirmed int
			created   string
		)
		if err := rows.Scan(&e.ID, &e.RecipeID, &date, &confirmed, &created, &e.RecipeName, &e.RecipeNameEn); err != nil {
			return nil, unavailable("scan history", err)
		}
		if e.Date, err = model.ParseDate(date); err != nil {
			return nil, unavailable("scan history", err)
		}
		e.Confirmed = confirmed == 1
		e.CreatedAt = parseStamp(created)
		out = append(out, e)
	}
	if err = rows.Err(); err != nil {
		return nil, unavailable("history", err)
	}
	return out, nil
}

// UpdateRating implements Store.UpdateRating.
func (s *SQLiteStore) UpdateRating(ctx context.Context, id model.RecipeID, fn func(float64) float64) (v float64, err error) {
	defer observe(driverSQLite, "update_rating", &err)()

	err = s.inTx(ctx, "update rating", func(tx *sql.Tx) error {
		var cur sql.NullFloat64
		err := tx.QueryRowContext(ctx, "SELECT user_rating FROM recipes WHERE id = ?", int64(id)).Scan(&cur)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		current := model.Recipe{Rating: cur.Float64}.EffectiveRating()
		v = fn(current)
		_, err = tx.ExecContext(ctx, "UPDATE recipes SET user_rating = ? WHERE id = ?", v, int64(id))
		return err
	})
	return v, err
}

// Ping implements Store.Ping.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return unavailable("ping", s.db.PingContext(ctx))
}

// Close implements Store.Close.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// inTx runs fn in a write transaction and classifies driver errors.
func (s *SQLiteStore) inTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifySQLite(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return classifySQLite(op, err)
	}
	if err := tx.Commit(); err != nil {
		return classifySQLite(op, err)
	}
	return nil
}

func classifySQLite(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidRecipe) || errors.Is(err, ErrDateConfirmed) {
		return err
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqliteBusy, sqliteLocked, sqliteConstraint:
			return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
		}
	}
	return unavailable(op, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecipe(row rowScanner) (model.Recipe, error) {
	var (
		r       model.Recipe
		rating  sql.NullFloat64
		created string
	)
	err := row.Scan(&r.ID, &r.Name, &r.NameEn, &r.Category, &r.Difficulty, &r.CookingTime,
		&r.Source.Article, &r.Source.Author, &r.Source.Link, &r.Source.Thumbnail, &r.Source.PublishDate,
		&r.Source.Likes, &rating, &r.DrawCount, &created)
	if err != nil {
		return model.Recipe{}, err
	}
	r.Rating = rating.Float64
	r.CreatedAt = parseStamp(created)
	return r, nil
}

func scanRecord(row rowScanner) (model.DrawRecord, error) {
	var (
		rec       model.DrawRecord
		date      string
		confirmed int
		created   string
	)
	if err := row.Scan(&rec.ID, &rec.RecipeID, &date, &confirmed, &created); err != nil {
		return model.DrawRecord{}, err
	}
	d, err := model.ParseDate(date)
	if err != nil {
		return model.DrawRecord{}, err
	}
	rec.Date = d
	rec.Confirmed = confirmed == 1
	rec.CreatedAt = parseStamp(created)
	return rec, nil
}

func recipeExists(ctx context.Context, tx *sql.Tx, id model.RecipeID) error {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM recipes WHERE id = ?", int64(id)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func insertRecord(ctx context.Context, tx *sql.Tx, date model.Date, id model.RecipeID, confirmed bool, now time.Time) (model.DrawRecord, error) {
	flag := 0
	if confirmed {
		flag = 1
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO draw_history (recipe_id, draw_date, confirmed, created_at) VALUES (?, ?, ?, ?)",
		int64(id), date.String(), flag, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return model.DrawRecord{}, err
	}
	recID, err := res.LastInsertId()
	if err != nil {
		return model.DrawRecord{}, err
	}
	return model.DrawRecord{ID: recID, RecipeID: id, Date: date, Confirmed: confirmed, CreatedAt: now}, nil
}

func parseStamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
