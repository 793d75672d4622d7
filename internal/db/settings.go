/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"errors"

	"gorm.io/gorm"

	"github.com/friendsincode/segue/internal/models"
)

// LoadPlayerSettings returns the persisted playback preferences, or
// nil when none have been saved yet.
func LoadPlayerSettings(database *gorm.DB) (*models.PlayerSettings, error) {
	var s models.PlayerSettings
	err := database.First(&s, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SavePlayerSettings upserts the single settings row.
func SavePlayerSettings(database *gorm.DB, s *models.PlayerSettings) error {
	s.ID = 1
	return database.Save(s).Error
}
