package services

import (
	"github.com/poofware/homeservices/backend/shared/go-models"
)

// Eligible returns the workers whose skill set contains categoryID. Workers
// with malformed skill strings have an empty set and are simply left out.
func Eligible(workers []models.Worker, categoryID int) []models.Worker {
	out := make([]models.Worker, 0, len(workers))
	for i := range workers {
		if workers[i].HasSkill(categoryID) {
			out = append(out, workers[i])
		}
	}
	return out
}
