package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"clinica-medicos/config"
	"clinica-medicos/monitoring"
)

type Repository interface {
	Create(ctx context.Context, medico *Medico) error
	List(ctx context.Context) ([]Medico, error)
	Find(ctx context.Context, key IdentityKey) ([]Medico, error)
	Delete(ctx context.Context, key IdentityKey) ([]Medico, error)
	DeleteByID(ctx context.Context, id uint) (*Medico, error)
	UpdatePartial(ctx context.Context, key IdentityKey, fields UpdateFields) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

const identityIndexDDL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_medicos_identidad
ON medicos (nombre_clave, apellido_clave, especialidad_clave)`

type GormRepository struct {
	db *gorm.DB
}

// NewRepository opens the store selected by cfg.DBDriver. The caller owns the
// returned repository and must Close it.
func NewRepository(cfg *config.Config) (*GormRepository, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.PostgresDSN())
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.SQLitePath + "?_busy_timeout=5000")
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.DBDriver == config.DriverSQLite {
		// SQLite has a single writer; queueing on one connection avoids
		// "database is locked" under concurrent requests.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := instrument(db); err != nil {
		return nil, fmt.Errorf("failed to register query metrics: %w", err)
	}

	return &GormRepository{db: db}, nil
}

func instrument(db *gorm.DB) error {
	count := func(*gorm.DB) { monitoring.DatabaseQueries.Inc() }
	cb := db.Callback()
	if err := cb.Create().After("gorm:create").Register("metrics:create", count); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("metrics:query", count); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("metrics:update", count); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("metrics:delete", count); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("metrics:row", count); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register("metrics:raw", count)
}

// Migrate creates the medicos table and the identity index, filling the key
// columns of rows written before they existed. Every step is idempotent.
func (r *GormRepository) Migrate() error {
	if err := r.db.AutoMigrate(&Medico{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	if err := r.backfillKeys(); err != nil {
		return err
	}
	if err := r.checkDuplicates(); err != nil {
		return err
	}
	if err := r.db.Exec(identityIndexDDL).Error; err != nil {
		return fmt.Errorf("failed to create identity index: %w", err)
	}
	return nil
}

func (r *GormRepository) backfillKeys() error {
	var stale []Medico
	if err := r.db.Select("id", "nombre_medico", "apellido_medico", "especialidad").
		Where("nombre_clave = '' OR apellido_clave = '' OR especialidad_clave = ''").
		Find(&stale).Error; err != nil {
		return fmt.Errorf("failed to read rows without identity keys: %w", err)
	}
	for i := range stale {
		m := &stale[i]
		m.fillKeys()
		if err := r.db.Model(m).UpdateColumns(map[string]interface{}{
			"nombre_clave":       m.FirstNameKey,
			"apellido_clave":     m.LastNameKey,
			"especialidad_clave": m.SpecialtyKey,
		}).Error; err != nil {
			return fmt.Errorf("failed to backfill identity keys of medico %d: %w", m.ID, err)
		}
	}
	return nil
}

type duplicateIdentity struct {
	FirstName string `gorm:"column:nombre_clave"`
	LastName  string `gorm:"column:apellido_clave"`
	Specialty string `gorm:"column:especialidad_clave"`
	Total     int64  `gorm:"column:total"`
}

// checkDuplicates names the identities that would stop the unique index from
// being built. They have to be merged or removed by hand.
func (r *GormRepository) checkDuplicates() error {
	var dups []duplicateIdentity
	if err := r.db.Model(&Medico{}).
		Select("nombre_clave, apellido_clave, especialidad_clave, COUNT(*) AS total").
		Group("nombre_clave, apellido_clave, especialidad_clave").
		Having("COUNT(*) > 1").
		Order("apellido_clave, nombre_clave, especialidad_clave").
		Scan(&dups).Error; err != nil {
		return fmt.Errorf("failed to look for duplicated medicos: %w", err)
	}
	if len(dups) == 0 {
		return nil
	}

	names := make([]string, 0, len(dups))
	for _, d := range dups {
		key := IdentityKey{FirstName: d.FirstName, LastName: d.LastName, Specialty: d.Specialty}
		names = append(names, fmt.Sprintf("%s x%d", key, d.Total))
	}
	return fmt.Errorf("%w: cannot create identity index, duplicated medicos: %s; delete the extra rows and run migrate again",
		ErrConflict, strings.Join(names, ", "))
}

func matchIdentity(db *gorm.DB, key IdentityKey) *gorm.DB {
	key = key.folded()
	db = db.Where("nombre_clave = ? AND apellido_clave = ?", key.FirstName, key.LastName)
	if key.Specialty != "" {
		db = db.Where("especialidad_clave = ?", key.Specialty)
	}
	return db
}

func observe(operation string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrValidation):
		outcome = "invalid"
	case errors.Is(err, ErrConflict):
		outcome = "conflict"
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	monitoring.ObserveOperation(operation, outcome)
}

func asStorage(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrValidation, ErrConflict, ErrNotFound, ErrStorage} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

func (r *GormRepository) Create(ctx context.Context, medico *Medico) (err error) {
	defer func() { observe("create", err) }()

	if err := medico.Validate(); err != nil {
		return err
	}
	medico.Normalize()
	medico.ID = 0
	if medico.AttendanceDays == nil {
		medico.AttendanceDays = Days{}
	}
	key := IdentityKey{FirstName: medico.FirstName, LastName: medico.LastName, Specialty: medico.Specialty}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var total int64
		if err := matchIdentity(tx.Model(&Medico{}), key).Count(&total).Error; err != nil {
			return fmt.Errorf("%w: failed to check existing medico: %v", ErrStorage, err)
		}
		if total > 0 {
			return fmt.Errorf("%w: %s", ErrConflict, key)
		}
		if err := tx.Create(medico).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s", ErrConflict, key)
			}
			return fmt.Errorf("%w: failed to insert medico: %v", ErrStorage, err)
		}
		return nil
	})
	return asStorage(err)
}

func (r *GormRepository) List(ctx context.Context) (medicos []Medico, err error) {
	defer func() { observe("list", err) }()

	if err := r.db.WithContext(ctx).
		Order("apellido_medico ASC").
		Order("nombre_medico ASC").
		Find(&medicos).Error; err != nil {
		return nil, asStorage(fmt.Errorf("failed to list medicos: %w", err))
	}
	if medicos == nil {
		medicos = []Medico{}
	}
	return medicos, nil
}

func (r *GormRepository) Find(ctx context.Context, key IdentityKey) ([]Medico, error) {
	key = key.trimmed()
	if key.FirstName == "" || key.LastName == "" {
		return nil, fmt.Errorf("%w: nombre_medico and apellido_medico are required", ErrValidation)
	}

	var medicos []Medico
	if err := matchIdentity(r.db.WithContext(ctx), key).
		Order("apellido_medico ASC").
		Order("nombre_medico ASC").
		Find(&medicos).Error; err != nil {
		return nil, asStorage(fmt.Errorf("failed to find medico %s: %w", key, err))
	}
	return medicos, nil
}

// Delete removes the rows matching the full key and returns them as they were
// just before removal.
func (r *GormRepository) Delete(ctx context.Context, key IdentityKey) (deleted []Medico, err error) {
	defer func() { observe("delete", err) }()

	key = key.trimmed()
	if key.FirstName == "" || key.LastName == "" || key.Specialty == "" {
		return nil, fmt.Errorf("%w: nombre_medico, apellido_medico and especialidad are required", ErrValidation)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := matchIdentity(tx, key).Order("id").Find(&deleted).Error; err != nil {
			return err
		}
		if len(deleted) == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		ids := make([]uint, len(deleted))
		for i, m := range deleted {
			ids[i] = m.ID
		}
		return tx.Delete(&Medico{}, ids).Error
	})
	if err != nil {
		return nil, asStorage(err)
	}
	return deleted, nil
}

func (r *GormRepository) DeleteByID(ctx context.Context, id uint) (deleted *Medico, err error) {
	defer func() { observe("delete", err) }()

	var medico Medico
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&medico, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", ErrNotFound, id)
			}
			return err
		}
		return tx.Delete(&Medico{}, id).Error
	})
	if err != nil {
		return nil, asStorage(err)
	}
	return &medico, nil
}

func (r *GormRepository) UpdatePartial(ctx context.Context, key IdentityKey, fields UpdateFields) (affected int64, err error) {
	defer func() { observe("update", err) }()

	key = key.trimmed()
	if key.FirstName == "" || key.LastName == "" {
		return 0, fmt.Errorf("%w: nombre_medico and apellido_medico are required", ErrValidation)
	}
	cols := fields.columns()
	if len(cols) == 0 {
		return 0, fmt.Errorf("%w: no data to update", ErrValidation)
	}

	res := matchIdentity(r.db.WithContext(ctx).Model(&Medico{}), key).Updates(cols)
	if res.Error != nil {
		return 0, asStorage(fmt.Errorf("failed to update medico %s: %w", key, res.Error))
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return res.RowsAffected, nil
}

func (r *GormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

