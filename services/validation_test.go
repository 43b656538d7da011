package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/pocket-infra-api/models"
)

func TestValidateSubmission_Normalizes(t *testing.T) {
	report, err := validateSubmission(SubmitInput{
		Title:       "Broken streetlight",
		Description: "Light out on 5th Ave since Monday.",
		Location:    "  5th Ave & Pine  ",
		Category:    "safety",
		Latitude:    "47.6101",
		Longitude:   "-122.3421",
		Anonymous:   "false",
	})
	require.NoError(t, err)

	assert.Equal(t, "5th Ave & Pine", *report.Location)
	assert.Equal(t, models.CategorySafety, report.Category)
	assert.InDelta(t, 47.6101, *report.Latitude, 1e-9)
	assert.InDelta(t, -122.3421, *report.Longitude, 1e-9)
	assert.False(t, report.Anonymous)
	assert.Equal(t, models.StatusPending, report.Status)
}

func TestValidateSubmission_Bounds(t *testing.T) {
	base := SubmitInput{Title: "Broken streetlight", Description: "Light out on 5th Ave since Monday."}

	tests := []struct {
		name  string
		edit  func(*SubmitInput)
		field string
	}{
		{"title too long", func(in *SubmitInput) { in.Title = strings.Repeat("a", 101) }, "title"},
		{"description minimum", func(in *SubmitInput) { in.Description = "  0123456789  " }, ""},
		{"description whitespace", func(in *SubmitInput) { in.Description = "  short    " }, "description"},
		{"location too long", func(in *SubmitInput) { in.Location = strings.Repeat("x", 201) }, "location"},
		{"latitude edge", func(in *SubmitInput) { in.Latitude = "-90" }, ""},
		{"latitude out of range", func(in *SubmitInput) { in.Latitude = "-90.01" }, "latitude"},
		{"longitude edge", func(in *SubmitInput) { in.Longitude = "180" }, ""},
		{"longitude NaN", func(in *SubmitInput) { in.Longitude = "NaN" }, "longitude"},
		{"blank location is null", func(in *SubmitInput) { in.Location = "   " }, ""},
		{"title counts runes", func(in *SubmitInput) { in.Title = "ñandú" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.edit(&in)
			report, err := validateSubmission(in)
			if tt.field == "" {
				assert.NoError(t, err)
				if strings.TrimSpace(in.Location) == "" {
					assert.Nil(t, report.Location)
				}
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Errors, 1)
			assert.Equal(t, tt.field, verr.Errors[0].Field)
		})
	}
}

func TestValidateModeration(t *testing.T) {
	status := " in_progress "
	notes := strings.Repeat("n", 1001)

	s, n, err := validateModeration(ModerationInput{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, *s)
	assert.Nil(t, n)

	_, _, err = validateModeration(ModerationInput{AdminNotes: &notes})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "adminNotes", verr.Errors[0].Field)
}

func TestValidationError_Error(t *testing.T) {
	verr := &ValidationError{}
	assert.NoError(t, verr.err())

	verr.add("title", "Title must be 5-100 characters")
	verr.add("category", "Invalid category")
	assert.EqualError(t, verr.err(), "validation failed: title: Title must be 5-100 characters; category: Invalid category")
}
