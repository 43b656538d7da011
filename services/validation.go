package services

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/linesmerrill/pocket-infra-api/models"
)

// Field limits, in characters
const (
	TitleMinLen       = 5
	TitleMaxLen       = 100
	DescriptionMinLen = 10
	DescriptionMaxLen = 1000
	LocationMaxLen    = 200
	AdminNotesMaxLen  = 1000
)

// SubmitInput holds the raw submitted fields. Optional fields are empty when absent.
type SubmitInput struct {
	Title       string
	Description string
	Location    string
	Category    string
	Latitude    string
	Longitude   string
	Anonymous   string
}

// ModerationInput carries the optional fields of a moderation update
type ModerationInput struct {
	Status     *string
	AdminNotes *string
}

// validateSubmission normalizes in into a new pending report
func validateSubmission(in SubmitInput) (models.Report, error) {
	verr := &ValidationError{}
	report := models.Report{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    models.CategoryOther,
		Status:      models.StatusPending,
		Anonymous:   true,
	}

	if n := utf8.RuneCountInString(report.Title); n < TitleMinLen || n > TitleMaxLen {
		verr.add("title", "Title must be 5-100 characters")
	}
	if n := utf8.RuneCountInString(report.Description); n < DescriptionMinLen || n > DescriptionMaxLen {
		verr.add("description", "Description must be 10-1000 characters")
	}

	if loc := strings.TrimSpace(in.Location); loc != "" {
		if utf8.RuneCountInString(loc) > LocationMaxLen {
			verr.add("location", "Location must be less than 200 characters")
		}
		report.Location = &loc
	}

	if c := strings.TrimSpace(in.Category); c != "" {
		report.Category = models.Category(c)
		if !report.Category.Valid() {
			verr.add("category", "Invalid category")
		}
	}

	if lat, ok := parseCoordinate(in.Latitude, 90); !ok {
		verr.add("latitude", "Invalid latitude")
	} else {
		report.Latitude = lat
	}
	if lng, ok := parseCoordinate(in.Longitude, 180); !ok {
		verr.add("longitude", "Invalid longitude")
	} else {
		report.Longitude = lng
	}

	if a := strings.TrimSpace(in.Anonymous); a != "" {
		anonymous, err := strconv.ParseBool(a)
		if err != nil {
			verr.add("anonymous", "Anonymous must be true or false")
		} else {
			report.Anonymous = anonymous
		}
	}

	return report, verr.err()
}

// parseCoordinate returns nil for blank input and false when raw is not a number within ±bound
func parseCoordinate(raw string, bound float64) (*float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || v < -bound || v > bound {
		return nil, false
	}
	return &v, true
}

// validateModeration checks the supplied moderation fields. Blank fields count as absent.
func validateModeration(in ModerationInput) (status *models.Status, notes *string, err error) {
	verr := &ValidationError{}
	if in.Status != nil && strings.TrimSpace(*in.Status) != "" {
		s := models.Status(strings.TrimSpace(*in.Status))
		if !s.Valid() {
			verr.add("status", "Invalid status")
		}
		status = &s
	}
	if in.AdminNotes != nil && strings.TrimSpace(*in.AdminNotes) != "" {
		n := strings.TrimSpace(*in.AdminNotes)
		if utf8.RuneCountInString(n) > AdminNotesMaxLen {
			verr.add("adminNotes", "Admin notes must be less than 1000 characters")
		}
		notes = &n
	}
	return status, notes, verr.err()
}
