// Package srs implements the SM-2 spaced-repetition schedule as pure functions
// over a State value. Persistence and concurrency live in the review service.
package srs

import (
	"fmt"
	"math"
	"time"
)

const (
	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3
	PassGrade         = 3
	MinGrade          = 0
	MaxGrade          = 5

	firstInterval  = 1
	secondInterval = 6
)

type State struct {
	EaseFactor   float64
	Interval     int // days
	Repetitions  int
	DueDate      *time.Time
	LastReviewed *time.Time
	LastGrade    *int
}

// NewState is the schedule of a card that has never been reviewed. A nil
// DueDate means the card is due immediately.
func NewState() State {
	return State{
		EaseFactor:  DefaultEaseFactor,
		Interval:    firstInterval,
		Repetitions: 0,
	}
}

type GradeError struct {
	Grade int
}

func (e *GradeError) Error() string {
	return fmt.Sprintf("grade %d out of range [%d, %d]", e.Grade, MinGrade, MaxGrade)
}

func ValidateGrade(grade int) error {
	if grade < MinGrade || grade > MaxGrade {
		return &GradeError{Grade: grade}
	}
	return nil
}

// UpdateEase applies the SM-2 ease adjustment for any grade, floored at MinEaseFactor.
func UpdateEase(ease float64, grade int) float64 {
	q := float64(MaxGrade - grade)
	next := ease + (0.1 - q*(0.08+q*0.02))
	if next < MinEaseFactor {
		return MinEaseFactor
	}
	return next
}

// Apply records a review at now and returns the next schedule. The input is
// not modified.
func Apply(s State, grade int, now time.Time) (State, error) {
	if err := ValidateGrade(grade); err != nil {
		return s, err
	}

	next := s
	if next.EaseFactor == 0 {
		next.EaseFactor = DefaultEaseFactor
	}
	previousEase := next.EaseFactor

	if grade < PassGrade {
		next.Repetitions = 0
		next.Interval = firstInterval
	} else {
		next.Repetitions++
		switch next.Repetitions {
		case 1:
			next.Interval = firstInterval
		case 2:
			next.Interval = secondInterval
		default:
			next.Interval = int(math.Round(float64(s.Interval) * previousEase))
			if next.Interval < 1 {
				next.Interval = 1
			}
		}
	}

	next.EaseFactor = UpdateEase(previousEase, grade)

	reviewed := now
	due := now.AddDate(0, 0, next.Interval)
	g := grade
	next.LastReviewed = &reviewed
	next.DueDate = &due
	next.LastGrade = &g

	return next, nil
}

// Reset puts the card back to the never-reviewed schedule.
func Reset() State {
	return NewState()
}

// IsDue treats an unset due date as due right away.
func IsDue(s State, now time.Time) bool {
	return s.DueDate == nil || !s.DueDate.After(now)
}

// IsOverdue is strict: a card due exactly now is due, not overdue, and a card
// with no due date is never overdue.
func IsOverdue(s State, now time.Time) bool {
	return s.DueDate != nil && s.DueDate.Before(now)
}
