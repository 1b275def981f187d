package model

import "time"

// Age bounds accepted for a user. Values outside this range are treated
// as unspecified rather than rejected.
const (
	AgeMin = 0
	AgeMax = 150
)

// User represents a user record. Age is nil when the operator never
// supplied one. ID and CreatedAt are assigned at first persistence and
// never change afterwards.
type User struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Age       *int      `db:"age"`
	CreatedAt time.Time `db:"created_at"`
}

// HasAge reports whether the user has a specified age.
func (u *User) HasAge() bool {
	return u.Age != nil
}

// ValidAge reports whether n is inside the accepted age range.
func ValidAge(n int) bool {
	return n >= AgeMin && n <= AgeMax
}
