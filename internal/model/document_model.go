package model

import (
	"docchat-client/internal/constant"

	"gorm.io/datatypes"
)

type Document struct {
	Id       string            `gorm:"column:id;type:uuid;primaryKey"`
	Metadata datatypes.JSONMap `gorm:"column:metadata;type:jsonb"`
}

func (Document) TableName() string {
	return constant.TableDocuments
}
