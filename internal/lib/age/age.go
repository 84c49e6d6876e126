// Package age считает полный возраст в годах по дате рождения.
package age

import "time"

// Years возвращает количество полных лет между dob и at.
// Для нулевой даты или даты в будущем возвращает 0.
func Years(dob, at time.Time) int {
	if dob.IsZero() || !dob.Before(at) {
		return 0
	}

	years := at.Year() - dob.Year()

	// День рождения в этом году ещё не наступил
	if at.Month() < dob.Month() || (at.Month() == dob.Month() && at.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
