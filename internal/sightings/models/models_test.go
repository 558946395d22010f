package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "findthem/pkg/domain"
	dErrors "findthem/pkg/domain-errors"
)

var today = id.NewDate(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))

func validSubmission() *SubmitSightingRequest {
	return &SubmitSightingRequest{
		CaseID:           id.NewCaseID().String(),
		ReporterName:     " Musa Ibrahim ",
		ReporterPhone:    "+234 800 111 2222",
		ReporterEmail:    " Musa@Example.org ",
		SightingDate:     "2025-06-14",
		SightingLocation: "Wuse Market, Abuja",
		Description:      "Child matching the photo near the bus stop",
	}
}

func TestBuild(t *testing.T) {
	t.Run("normalizes optional fields", func(t *testing.T) {
		s, err := validSubmission().Build(today)
		require.NoError(t, err)
		assert.Equal(t, "Musa Ibrahim", s.ReporterName)
		require.NotNil(t, s.ReporterEmail)
		assert.Equal(t, "musa@example.org", *s.ReporterEmail)
		assert.Nil(t, s.PhotoURL)
		assert.Equal(t, "2025-06-14", s.SightingDate.String())
	})

	t.Run("email is optional", func(t *testing.T) {
		req := validSubmission()
		req.ReporterEmail = ""
		s, err := req.Build(today)
		require.NoError(t, err)
		assert.Nil(t, s.ReporterEmail)
	})

	t.Run("today is allowed", func(t *testing.T) {
		req := validSubmission()
		req.SightingDate = "2025-06-15"
		_, err := req.Build(today)
		require.NoError(t, err)
	})

	t.Run("reports every invalid field", func(t *testing.T) {
		req := &SubmitSightingRequest{
			CaseID:        "not-a-case",
			ReporterEmail: "musa@",
			SightingDate:  "2025-06-16",
			PhotoURL:      "ftp://example.org/p.jpg",
		}
		_, err := req.Build(today)
		require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.ElementsMatch(t, []string{
			"reporter_name", "reporter_phone", "reporter_email", "sighting_location",
			"description", "photo_url", "case_id", "sighting_date",
		}, dErrors.FieldsOf(err))
	})
}

func TestUpdateStatusRequest(t *testing.T) {
	req := &UpdateStatusRequest{Status: " Verified "}
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, "verified", req.Status)

	req = &UpdateStatusRequest{Status: "archived"}
	assert.Equal(t, []string{"status"}, dErrors.FieldsOf(req.Validate()))
}
