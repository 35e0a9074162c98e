package database

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stelae/stelae/internal/infra/database/models"
)

func NewPostgres(dsn string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             300 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger,
	})
	return db, err
}

func MigratePostgres(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Graph{},
		&models.NodeGroup{},
		&models.Node{},
		&models.Card{},
		&models.CardConstraint{},
		&models.CardNodeWidget{},
		&models.Value{},
		&models.DescriptorConfig{},
		&models.ResourceInstance{},
		&models.Tile{},
		&models.EditLog{},
		&models.ResourceXResource{},
	)
}
