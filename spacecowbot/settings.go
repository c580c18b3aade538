package spacecowbot

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingDailyTipChannel stores the channel ID that receives
// automatic daily tips.
const SettingDailyTipChannel = "daily_tip_channel"

func (d *database) GetSetting(ctx context.Context, key string) (
	string,
	bool,
	error,
) {
	ctx, cancel := dbContext(ctx)
	defer cancel()

	var setting Setting
	err := d.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("error fetching setting %q: %w", key, err)
	}
	return setting.Value, true, nil
}

// SetSetting writes a setting, overwriting any existing value for
// the key (last write wins).
func (d *database) SetSetting(ctx context.Context, key string, value string) error {
	defer d.lock()()
	ctx, cancel := dbContext(ctx)
	defer cancel()

	rv := d.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		},
	).Create(&Setting{Key: key, Value: value})
	if rv.Error != nil {
		return fmt.Errorf("error saving setting %q: %w", key, rv.Error)
	}
	return nil
}
