package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireTaskPipelineLock serializes pipeline stages per task across instances
// using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will run the stage.
func AcquireTaskPipelineLock(tx *gorm.DB, taskId int) error {
	lockName := fmt.Sprintf("procurement:task:%d", taskId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire pipeline lock for task_id=%d", taskId)
	}
	return nil
}

func ReleaseTaskPipelineLock(tx *gorm.DB, taskId int) {
	lockName := fmt.Sprintf("procurement:task:%d", taskId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
