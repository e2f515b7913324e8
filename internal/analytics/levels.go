package analytics

import (
	"errors"
	"fmt"

	"attendx/pkg/contracts/domain"
)

var (
	// ErrUnknownLevel is returned for a level of study without a profile
	ErrUnknownLevel = errors.New("unknown level of study")
	// ErrYearOutOfRange is returned for a year of course outside the level's range
	ErrYearOutOfRange = errors.New("year of course out of range")
)

// LevelProfile describes the years of course a level of study spans.
// Every per-level computation is driven by a profile instead of a
// hand-written variant per level.
type LevelProfile struct {
	Level       domain.LevelOfStudy `json:"level_of_study"`
	FirstYear   int                 `json:"first_year"`
	LastYear    int                 `json:"last_year"`
	DefaultYear int                 `json:"default_year"`
}

// Years lists every year of the profile in ascending order
func (p LevelProfile) Years() []int {
	years := make([]int, 0, p.LastYear-p.FirstYear+1)
	for y := p.FirstYear; y <= p.LastYear; y++ {
		years = append(years, y)
	}
	return years
}

// Contains reports whether year is a valid year of course for the level
func (p LevelProfile) Contains(year int) bool {
	return year >= p.FirstYear && year <= p.LastYear
}

var profiles = []LevelProfile{
	{Level: domain.LevelUG, FirstYear: 0, LastYear: 5, DefaultYear: 1},
	{Level: domain.LevelPGT, FirstYear: 1, LastYear: 2, DefaultYear: 1},
}

// Profiles returns the supported level profiles in display order
func Profiles() []LevelProfile {
	out := make([]LevelProfile, len(profiles))
	copy(out, profiles)
	return out
}

// Profile looks up the profile of a level of study
func Profile(level domain.LevelOfStudy) (LevelProfile, error) {
	for _, p := range profiles {
		if p.Level == level {
			return p, nil
		}
	}
	return LevelProfile{}, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
}

// CheckCell validates a (level, year) pair
func CheckCell(level domain.LevelOfStudy, year int) (LevelProfile, error) {
	p, err := Profile(level)
	if err != nil {
		return p, err
	}
	if !p.Contains(year) {
		return p, fmt.Errorf("%w: %s year %d not in %d..%d", ErrYearOutOfRange, level, year, p.FirstYear, p.LastYear)
	}
	return p, nil
}
