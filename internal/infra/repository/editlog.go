package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stelae/stelae/internal/domain"
	"github.com/stelae/stelae/internal/infra/database/models"
)

type EditLogRepository struct {
	db *gorm.DB
}

func NewEditLogRepository(db *gorm.DB) *EditLogRepository {
	return &EditLogRepository{db: db}
}

func (r *EditLogRepository) Append(ctx context.Context, entry *domain.EditLogEntry) error {
	row, err := marshalEditLog(entry)
	if err != nil {
		return err
	}
	return conn(ctx, r.db).Create(&row).Error
}

func (r *EditLogRepository) BulkAppend(ctx context.Context, entries []*domain.EditLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]models.EditLog, 0, len(entries))
	for _, entry := range entries {
		row, err := marshalEditLog(entry)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return conn(ctx, r.db).CreateInBatches(&rows, 500).Error
}

func marshalEditLog(entry *domain.EditLogEntry) (models.EditLog, error) {
	row := models.EditLog{
		EditType:            entry.EditType,
		UserID:              entry.UserID,
		UserEmail:           entry.UserEmail,
		UserFirstName:       entry.UserFirstName,
		UserLastName:        entry.UserLastName,
		Username:            entry.Username,
		ProvisionalUserID:   entry.ProvisionalUserID,
		ProvisionalUsername: entry.ProvisionalUsername,
		ProvisionalEditType: entry.ProvisionalEditType,
		ResourceDisplayName: entry.ResourceDisplayName,
		Note:                entry.Note,
		Timestamp:           entry.Timestamp,
		NodeGroupID:         entry.NodeGroupID,
		TileInstanceID:      entry.TileInstanceID,
	}
	if entry.ResourceClassID != uuid.Nil {
		id := entry.ResourceClassID
		row.ResourceClassID = &id
	}
	if entry.ResourceInstanceID != uuid.Nil {
		id := entry.ResourceInstanceID
		row.ResourceInstanceID = &id
	}
	var err error
	if row.OldValue, err = marshalValue(entry.OldValue); err != nil {
		return models.EditLog{}, err
	}
	if row.NewValue, err = marshalValue(entry.NewValue); err != nil {
		return models.EditLog{}, err
	}
	if row.OldProvisionalValue, err = marshalValue(entry.OldProvisionalValue); err != nil {
		return models.EditLog{}, err
	}
	if row.NewProvisionalValue, err = marshalValue(entry.NewProvisionalValue); err != nil {
		return models.EditLog{}, err
	}
	return row, nil
}

func marshalValue(value map[string]any) (string, error) {
	if value == nil {
		return "", nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
