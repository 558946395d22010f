package models

import (
	casemodels "findthem/internal/cases/models"
	sightingmodels "findthem/internal/sightings/models"
)

// RecentLimit is how many cases and sightings the activity panel shows.
const RecentLimit = 5

// Stats summarizes the caller's own cases.
type Stats struct {
	TotalCases     int `json:"total_cases"`
	ActiveCases    int `json:"active_cases"`
	FoundCases     int `json:"found_cases"`
	TotalSightings int `json:"total_sightings"`
}

// Recent is the caller's latest activity: newest own cases and the newest
// sightings filed against any of them.
type Recent struct {
	Cases     []*casemodels.Case         `json:"cases"`
	Sightings []*sightingmodels.Sighting `json:"sightings"`
}
