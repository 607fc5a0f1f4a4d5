package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"showroom-popup-builder/internal/generator"
	"showroom-popup-builder/internal/model"
)

// templateRow is the current template of one scene object.
type templateRow struct {
	ID             uint   `gorm:"primaryKey"`
	SpaceSlug      string `gorm:"size:128;not null;uniqueIndex:idx_popup_space_object"`
	ObjectName     string `gorm:"size:191;not null;uniqueIndex:idx_popup_space_object"`
	ZoneSlug       string `gorm:"size:128"`
	ShaderName     string `gorm:"size:191"`
	Format         string `gorm:"size:32"`
	TemplateType   string `gorm:"size:32;not null"`
	TemplateConfig string `gorm:"type:text;not null"`
	GeneratedHTML  string `gorm:"type:text"`
	GeneratedCSS   string `gorm:"type:text"`
	GeneratedJS    string `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (templateRow) TableName() string { return "popup_templates" }

// revisionRow is an append-only history entry written on every save.
type revisionRow struct {
	ID             uint   `gorm:"primaryKey"`
	SpaceSlug      string `gorm:"size:128;not null;index:idx_popup_revision_object"`
	ObjectName     string `gorm:"size:191;not null;index:idx_popup_revision_object"`
	TemplateType   string `gorm:"size:32;not null"`
	TemplateConfig string `gorm:"type:text;not null"`
	SavedAt        time.Time
}

func (revisionRow) TableName() string { return "popup_template_revisions" }

// Revision is one past save of an object.
type Revision struct {
	ID             uint      `json:"id"`
	TemplateType   string    `json:"template_type"`
	TemplateConfig string    `json:"template_config"`
	SavedAt        time.Time `json:"saved_at"`
}

// SQLStore implements Gateway on a relational database through gorm. When a
// publisher is attached the generated script is also written to the publish
// directory on every save.
type SQLStore struct {
	db        *gorm.DB
	publisher *generator.Publisher
	logger    *slog.Logger
}

// OpenSQL connects to driver ("sqlite" or "postgres") and migrates the schema.
func OpenSQL(driver, dsn string, log *slog.Logger) (*SQLStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	return NewSQLStore(db, log)
}

// NewSQLStore wraps an open connection and migrates the schema.
func NewSQLStore(db *gorm.DB, log *slog.Logger) (*SQLStore, error) {
	if err := db.AutoMigrate(&templateRow{}, &revisionRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate popup tables: %w", err)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SQLStore{db: db, logger: log}, nil
}

// Load returns the current template of target.
func (s *SQLStore) Load(ctx context.Context, target model.ObjectTarget) (*model.StoredTemplate, error) {
	var row templateRow
	err := s.db.WithContext(ctx).
		Where("space_slug = ? AND object_name = ?", target.SpaceSlug, target.ID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, target.SpaceSlug, target.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s/%s: %w", target.SpaceSlug, target.ID, err)
	}
	return &model.StoredTemplate{
		TemplateType:   row.TemplateType,
		TemplateConfig: row.TemplateConfig,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}

// LoadArtifact returns the artifact generated on the last save of target.
func (s *SQLStore) LoadArtifact(ctx context.Context, target model.ObjectTarget) (model.Artifact, error) {
	var row templateRow
	err := s.db.WithContext(ctx).
		Select("generated_html", "generated_css", "generated_js").
		Where("space_slug = ? AND object_name = ?", target.SpaceSlug, target.ID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Artifact{}, fmt.Errorf("%w: %s/%s", ErrNotFound, target.SpaceSlug, target.ID)
	}
	if err != nil {
		return model.Artifact{}, fmt.Errorf("failed to load artifact %s/%s: %w", target.SpaceSlug, target.ID, err)
	}
	return model.Artifact{HTML: row.GeneratedHTML, CSS: row.GeneratedCSS, JS: row.GeneratedJS}, nil
}

// Save upserts the current row and appends a revision in one transaction. The
// artifact is published before the transaction commits, so a failed publish
// leaves the previous row in place.
func (s *SQLStore) Save(ctx context.Context, req SaveRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	ts := now()
	row := templateRow{
		SpaceSlug:      req.Target.SpaceSlug,
		ObjectName:     req.Target.ID,
		ZoneSlug:       req.Target.ZoneSlug,
		ShaderName:     req.Target.ShaderName,
		Format:         req.Target.Format,
		TemplateType:   string(req.TemplateType),
		TemplateConfig: req.TemplateConfig,
		GeneratedHTML:  req.Artifact.HTML,
		GeneratedCSS:   req.Artifact.CSS,
		GeneratedJS:    req.Artifact.JS,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "space_slug"}, {Name: "object_name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"zone_slug", "shader_name", "format", "template_type", "template_config",
				"generated_html", "generated_css", "generated_js", "updated_at",
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		if err := tx.Create(&revisionRow{
			SpaceSlug:      row.SpaceSlug,
			ObjectName:     row.ObjectName,
			TemplateType:   row.TemplateType,
			TemplateConfig: row.TemplateConfig,
			SavedAt:        ts,
		}).Error; err != nil {
			return err
		}
		if s.publisher != nil {
			_, err := s.publisher.Publish(req.Target.SpaceSlug, req.Target.ID, req.Target.ID, req.Artifact)
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save template %s/%s: %w", req.Target.SpaceSlug, req.Target.ID, err)
	}
	s.logger.Info("Saved popup template", "space", req.Target.SpaceSlug, "object", req.Target.ID, "type", req.TemplateType)
	return nil
}

// List returns the current records of space ordered by object name. An empty
// space lists every space.
func (s *SQLStore) List(ctx context.Context, space string) ([]Record, error) {
	var rows []templateRow
	q := s.db.WithContext(ctx).Order("space_slug, object_name")
	if space != "" {
		q = q.Where("space_slug = ?", space)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	records := make([]Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return records, nil
}

// Delete removes the object's current row. Its history is kept.
func (s *SQLStore) Delete(ctx context.Context, target model.ObjectTarget) error {
	res := s.db.WithContext(ctx).
		Where("space_slug = ? AND object_name = ?", target.SpaceSlug, target.ID).
		Delete(&templateRow{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete template %s/%s: %w", target.SpaceSlug, target.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, target.SpaceSlug, target.ID)
	}
	return nil
}

// Revisions returns the latest saves of target, newest first.
func (s *SQLStore) Revisions(ctx context.Context, target model.ObjectTarget, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []revisionRow
	err := s.db.WithContext(ctx).
		Where("space_slug = ? AND object_name = ?", target.SpaceSlug, target.ID).
		Order("saved_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions of %s/%s: %w", target.SpaceSlug, target.ID, err)
	}
	out := make([]Revision, 0, len(rows))
	for _, r := range rows {
		out = append(out, Revision{ID: r.ID, TemplateType: r.TemplateType, TemplateConfig: r.TemplateConfig, SavedAt: r.SavedAt})
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r templateRow) record() Record {
	return Record{
		Target: model.ObjectTarget{
			ID:         r.ObjectName,
			SpaceSlug:  r.SpaceSlug,
			ZoneSlug:   r.ZoneSlug,
			ShaderName: r.ShaderName,
			Format:     r.Format,
		},
		Template: model.StoredTemplate{
			TemplateType:   r.TemplateType,
			TemplateConfig: r.TemplateConfig,
			UpdatedAt:      r.UpdatedAt,
		},
		Artifact: model.Artifact{HTML: r.GeneratedHTML, CSS: r.GeneratedCSS, JS: r.GeneratedJS},
	}
}
