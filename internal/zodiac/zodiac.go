// Package zodiac derives the two astrological classifiers stored on a
// profile from a dd-mm-yyyy birthday.
package zodiac

import (
	"fmt"
	"time"
)

// BirthdayLayout is the accepted birthday format (dd-mm-yyyy).
const BirthdayLayout = "02-01-2006"

// cusps[m-1] is the first day of month m that belongs to signs[m].
var (
	cusps = [12]int{20, 19, 21, 20, 21, 21, 23, 23, 23, 23, 22, 22}
	signs = [13]string{
		"Capricorn", "Aquarius", "Pisces", "Aries", "Taurus", "Gemini",
		"Cancer", "Leo", "Virgo", "Libra", "Scorpio", "Sagittarius", "Capricorn",
	}
	animals = [12]string{
		"Rat", "Ox", "Tiger", "Rabbit", "Dragon", "Snake",
		"Horse", "Goat", "Monkey", "Rooster", "Dog", "Pig",
	}
)

// Horoscope returns the western sign for a day and month, or "" when the
// pair is out of range.
func Horoscope(day int, month time.Month) string {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return ""
	}
	if day < cusps[month-1] {
		return signs[month-1]
	}
	return signs[month]
}

// Chinese returns the Chinese zodiac animal for a year; 1900 is the Rat.
func Chinese(year int) string {
	i := (year - 1900) % 12
	if i < 0 {
		i += 12
	}
	return animals[i]
}

// ParseBirthday parses a dd-mm-yyyy date.
func ParseBirthday(s string) (time.Time, error) {
	t, err := time.Parse(BirthdayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("birthdayDate must be formatted as dd-mm-yyyy: %w", err)
	}
	return t, nil
}

// Derive returns the horoscope and Chinese zodiac for a dd-mm-yyyy birthday.
func Derive(birthday string) (horoscope, chinese string, err error) {
	t, err := ParseBirthday(birthday)
	if err != nil {
		return "", "", err
	}
	return Horoscope(t.Day(), t.Month()), Chinese(t.Year()), nil
}
