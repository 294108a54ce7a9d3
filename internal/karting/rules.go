package karting

import "strconv"

// Age returns the number of whole years between dob and today. The year
// difference is reduced by one while today's month/day is still before the
// birthday.
func Age(dob, today Date) int {
	age := today.Year() - dob.Year()
	if today.Month() < dob.Month() || (today.Month() == dob.Month() && today.Day() < dob.Day()) {
		age--
	}
	return age
}

// IsEligible reports min_age <= age <= max_age for the category.
func IsEligible(c RaceCategory, age int) bool {
	return c.MinAge <= age && age <= c.MaxAge
}

// CleanupMessage is the operator notice for a maintenance run.
func CleanupMessage(deleted int) string {
	if deleted == 0 {
		return "No registrations have been deleted."
	}
	return strconv.Itoa(deleted) + " registrations have been deleted."
}
