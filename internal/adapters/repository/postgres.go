package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/okian/breakfast/internal/domain/model"
	"github.com/okian/breakfast/pkg/metrics"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// PostgresStore is a Store backed by PostgreSQL through GORM. Confirmations
// take a transaction-scoped advisory lock keyed by the draw date; rating
// updates lock the recipe row with SELECT ... FOR UPDATE.
type PostgresStore struct {
	db    *gorm.DB
	sqlDB *sql.DB
	cfg   settings
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn, tunes the pool and runs migrations.
func NewPostgresStore(ctx context.Context, dsn string, opts ...Option) (*PostgresStore, error) {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}

	level := gormlogger.Silent
	if cfg.debugSQL {
		level = gormlogger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
		NowFunc:        func() time.Time { return cfg.now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.maxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.maxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.connLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := runPostgresMigrations(db.WithContext(ctx)); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	cfg.log.Info(ctx, "postgres store ready")
	return &PostgresStore{db: db, sqlDB: sqlDB, cfg: cfg}, nil
}

func runPostgresMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_catalog_and_ledger",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&recipeRow{}, &ingredientRow{}, &instructionRow{}, &nutritionRow{}, &drawRow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("draw_history", "nutrition", "instructions", "ingredients", "recipes")
			},
		},
		{
			ID: "002_one_confirmed_per_date",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_draw_history_confirmed
					ON draw_history (draw_date) WHERE confirmed`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_draw_history_confirmed").Error
			},
		},
	})
	return m.Migrate()
}

// ListRecipes implements Store.ListRecipes.
func (s *PostgresStore) ListRecipes(ctx context.Context) (out []model.Recipe, err error) {
	defer observe(driverPostgres, "list_recipes", &err)()

	var rows []recipeRow
	if err = s.db.WithContext(ctx).
		Order("COALESCE(user_rating, 3.0) DESC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, unavailable("list recipes", err)
	}

	out = make([]model.Recipe, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// GetRecipe implements Store.GetRecipe.
func (s *PostgresStore) GetRecipe(ctx context.Context, id model.RecipeID) (r model.Recipe, err error) {
	defer observe(driverPostgres, "get_recipe", &err)()

	var row recipeRow
	err = s.db.WithContext(ctx).
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Instructions", func(db *gorm.DB) *gorm.DB { return db.Order("step_number") }).
		Preload("Nutrition").
		First(&row, int64(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Recipe{}, ErrNotFound
	}
	if err != nil {
		return model.Recipe{}, unavailable("get recipe", err)
	}
	return row.toModel(), nil
}

// AddRecipe implements Store.AddRecipe.
func (s *PostgresStore) AddRecipe(ctx context.Context, draft model.RecipeDraft) (r model.Recipe, err error) {
	defer observe(driverPostgres, "add_recipe", &err)()

	if err = validateDraft(draft); err != nil {
		return model.Recipe{}, err
	}
	draft.Normalize()

	row := recipeRowFromDraft(draft, s.cfg.now().UTC())
	if err = s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Recipe{}, unavailable("add recipe", err)
	}

	if n, cerr := s.CountRecipes(ctx); cerr == nil {
		metrics.UpdateCatalogSize(n)
	}
	return s.GetRecipe(ctx, model.RecipeID(row.ID))
}

// CountRecipes implements Store.CountRecipes.
func (s *PostgresStore) CountRecipes(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&recipeRow{}).Count(&n).Error; err != nil {
		return 0, unavailable("count recipes", err)
	}
	return int(n), nil
}

// FindConfirmed implements Store.FindConfirmed.
func (s *PostgresStore) FindConfirmed(ctx context.Context, date model.Date) (rec model.DrawRecord, err error) {
	defer observe(driverPostgres, "find_confirmed", &err)()

	var row drawRow
	err = s.db.WithContext(ctx).
		Where("draw_date = ? AND confirmed", date.String()).
		Order("id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.DrawRecord{}, ErrNoConfirmedDraw
	}
	if err != nil {
		return model.DrawRecord{}, unavailable("find confirmed", err)
	}
	return row.toModel()
}

// RecordProvisional implements Store.RecordProvisional.
func (s *PostgresStore) RecordProvisional(ctx context.Context, date model.Date, id model.RecipeID) (rec model.DrawRecord, err error) {
	defer observe(driverPostgres, "record_provisional", &err)()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockDate(tx, date); err != nil {
			return err
		}
		if err := lockRecipe(tx, id, nil); err != nil {
			return err
		}
		var confirmed int64
		if err := tx.Model(&drawRow{}).
			Where("draw_date = ? AND confirmed", date.String()).
			Count(&confirmed).Error; err != nil {
			return err
		}
		if confirmed > 0 {
			return ErrDateConfirmed
		}
		row := drawRow{RecipeID: int64(id), DrawDate: date.String(), CreatedAt: s.cfg.now().UTC()}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		var cerr error
		rec, cerr = row.toModel()
		return cerr
	})
	return rec, classifyPostgres("record provisional", err)
}

// ConfirmDraw implements Store.ConfirmDraw.
func (s *PostgresStore) ConfirmDraw(ctx context.Context, date model.Date, id model.RecipeID) (rec model.DrawRecord, err error) {
	defer observe(driverPostgres, "confirm_draw", &err)()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockDate(tx, date); err != nil {
			return err
		}
		if err := lockRecipe(tx, id, nil); err != nil {
			return err
		}
		if err := tx.Where("draw_date = ?", date.String()).Delete(&drawRow{}).Error; err != nil {
			return err
		}
		row := drawRow{RecipeID: int64(id), DrawDate: date.String(), Confirmed: true, CreatedAt: s.cfg.now().UTC()}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if err := tx.Model(&recipeRow{}).
			Where("id = ?", int64(id)).
			UpdateColumn("times_drawn", gorm.Expr("times_drawn + ?", 1)).Error; err != nil {
			return err
		}
		var cerr error
		rec, cerr = row.toModel()
		return cerr
	})
	return rec, classifyPostgres("confirm draw", err)
}

// History implements Store.History.
func (s *PostgresStore) History(ctx context.Context, limit int) (out []model.HistoryEntry, err error) {
	defer observe(driverPostgres, "history", &err)()

	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	var rows []historyRow
	if err = s.db.WithContext(ctx).
		Table("draw_history AS h").
		Select(`h.id, h.recipe_id, h.draw_date, h.confirmed, h.created_at,
			COALESCE(r.recipe_name, '') AS recipe_name, COALESCE(r.recipe_name_en, '') AS recipe_name_en`).
		Joins("LEFT JOIN recipes r ON r.id = h.recipe_id").
		Order("h.draw_date DESC, h.id DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, unavailable("history", err)
	}

	out = make([]model.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		d, err := model.ParseDate(r.DrawDate)
		if err != nil {
			return nil, unavailable("scan history", err)
		}
		out = append(out, model.HistoryEntry{
			DrawRecord: model.DrawRecord{
				ID:        r.ID,
				RecipeID:  model.RecipeID(r.RecipeID),
				Date:      d,
				Confirmed: r.Confirmed,
				CreatedAt: r.CreatedAt.UTC(),
			},
			RecipeName:   r.RecipeName,
			RecipeNameEn: r.RecipeNameEn,
		})
	}
	return out, nil
}

// UpdateRating implements Store.UpdateRating.
func (s *PostgresStore) UpdateRating(ctx context.Context, id model.RecipeID, fn func(float64) float64) (v float64, err error) {
	defer observe(driverPostgres, "update_rating", &err)()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row recipeRow
		if err := lockRecipe(tx, id, &row); err != nil {
			return err
		}
		v = fn(model.Recipe{Rating: row.Rating.Float64}.EffectiveRating())
		return tx.Model(&recipeRow{}).Where("id = ?", int64(id)).UpdateColumn("user_rating", v).Error
	})
	return v, classifyPostgres("update rating", err)
}

// Ping implements Store.Ping.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return unavailable("ping", s.sqlDB.PingContext(ctx))
}

// Close implements Store.Close.
func (s *PostgresStore) Close() error {
	return s.sqlDB.Close()
}

// lockDate serializes writers for one draw date until the transaction ends.
func lockDate(tx *gorm.DB, date model.Date) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "draw:"+date.String()).Error
}

// lockRecipe takes a row lock on the recipe and loads it into dst when set.
func lockRecipe(tx *gorm.DB, id model.RecipeID, dst *recipeRow) error {
	if dst == nil {
		dst = &recipeRow{}
	}
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "user_rating").
		First(dst, int64(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func classifyPostgres(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDateConfirmed):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
	default:
		return unavailable(op, err)
	}
}
