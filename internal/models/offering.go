package models

import "time"

// CourseOffering is a scheduled, capacity-bounded instance of a course.
// Its occupied_seats counter is owned by the capacity synchronizer and is
// never written directly by callers.
type CourseOffering struct {
	ID            string    `db:"id" json:"id"`
	CourseCode    string    `db:"course_code" json:"course_code"`
	Title         string    `db:"title" json:"title"`
	MinSeats      int       `db:"min_seats" json:"min_seats"`
	MaxSeats      int       `db:"max_seats" json:"max_seats"`
	OccupiedSeats int       `db:"occupied_seats" json:"occupied_seats"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Occupancy is the read-only seat projection served to capacity displays.
type Occupancy struct {
	OfferingID    string `db:"id" json:"offering_id"`
	OccupiedSeats int    `db:"occupied_seats" json:"occupied_seats"`
	MaxSeats      int    `db:"max_seats" json:"max_seats"`
	MinSeats      int    `db:"min_seats" json:"min_seats"`
}

// Full reports whether the offering has no remaining seats.
func (o Occupancy) Full() bool {
	return o.OccupiedSeats >= o.MaxSeats
}
