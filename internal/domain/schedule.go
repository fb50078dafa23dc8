package domain

import "time"

// ScheduleModel is the GORM model for the vet_schedules table. A slot is
// booked by at most one consultation; rejecting or cancelling the
// consultation frees it again.
type ScheduleModel struct {
	ID      int64     `gorm:"column:schedule_id;primaryKey"`
	VetID   int64     `gorm:"column:vet_id;index;not null"`
	SlotAt  time.Time `gorm:"column:slot_at"`
	Booked  bool      `gorm:"column:is_booked;default:false"`
	Updated time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for ScheduleModel.
func (ScheduleModel) TableName() string {
	return "vet_schedules"
}
