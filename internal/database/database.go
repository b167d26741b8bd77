package database

import (
	"strings"

	"github.com/pathakanu/assistant/internal/model"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New creates a GORM database connection.
// When databaseURL is provided PostgreSQL is used, otherwise SQLite at sqlitePath.
func New(databaseURL, sqlitePath string, log zerolog.Logger) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	if databaseURL != "" {
		db, err = gorm.Open(postgres.Open(databaseURL), gormConfig)
	} else {
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormConfig)
	}
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logBackend(db, sqlitePath, log)
	return db, nil
}

// Migrate creates or updates the tables the assistant owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.User{})
}

// Column describes one column of a table for the debug structure endpoint.
type Column struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	NotNull bool   `json:"notnull"`
	Default string `json:"default,omitempty"`
	Primary bool   `json:"pk"`
}

// Describe lists every table and its columns.
func Describe(db *gorm.DB) (map[string][]Column, error) {
	migrator := db.Migrator()
	tables, err := migrator.GetTables()
	if err != nil {
		return nil, err
	}

	structure := make(map[string][]Column, len(tables))
	for _, table := range tables {
		columnTypes, err := migrator.ColumnTypes(table)
		if err != nil {
			return nil, err
		}
		columns := make([]Column, 0, len(columnTypes))
		for _, ct := range columnTypes {
			nullable, _ := ct.Nullable()
			primary, _ := ct.PrimaryKey()
			def, _ := ct.DefaultValue()
			columns = append(columns, Column{
				Name:    ct.Name(),
				Type:    ct.DatabaseTypeName(),
				NotNull: !nullable,
				Default: def,
				Primary: primary,
			})
		}
		structure[table] = columns
	}
	return structure, nil
}

func logBackend(db *gorm.DB, sqlitePath string, log zerolog.Logger) {
	dialector := db.Dialector.Name()
	switch strings.ToLower(dialector) {
	case "postgres":
		log.Info().Msg("database: connected to PostgreSQL")
	case "sqlite":
		log.Info().Str("path", sqlitePath).Msg("database: using SQLite")
	default:
		log.Info().Str("dialect", dialector).Msg("database: connected")
	}
}
