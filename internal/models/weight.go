package models

import "time"

type Unit string

const (
	UnitKg  Unit = "kg"
	UnitLbs Unit = "lbs"
)

// WeightEntry is one measurement. Date is a calendar date (midnight UTC),
// Time is the wall-clock time the user entered.
type WeightEntry struct {
	ID     int64     `json:"id" db:"id"`
	UserID string    `json:"user_id" db:"user_id"`
	Weight float64   `json:"weight" db:"weight"`
	Unit   Unit      `json:"unit" db:"unit"`
	Date   time.Time `json:"date" db:"date"`
	Time   string    `json:"time" db:"time"`
	Note   *string   `json:"note" db:"note"`
}

type Goal struct {
	ID           int64      `json:"id" db:"id"`
	UserID       string     `json:"user_id" db:"user_id"`
	StartWeight  float64    `json:"start_weight" db:"start_weight"`
	TargetWeight float64    `json:"target_weight" db:"target_weight"`
	Unit         Unit       `json:"unit" db:"unit"`
	TargetDate   *time.Time `json:"target_date" db:"target_date"`
	Achieved     bool       `json:"achieved" db:"achieved"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}
