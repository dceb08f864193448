// go-models/worker.go

package models

import (
	"strconv"
	"strings"
)

// Worker is a roster entry as served by GET /workers. SkillIDs is the raw
// comma-delimited list of category ids the worker can service.
type Worker struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	PhoneNumber  string  `json:"phone_number"`
	Email        string  `json:"email,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
	SkillIDs     string  `json:"skill_id"`
}

// SkillSet parses SkillIDs. Empty, blank, and non-numeric tokens are dropped,
// so a malformed string simply yields an empty set.
func (w *Worker) SkillSet() map[int]struct{} {
	return ParseSkillSet(w.SkillIDs)
}

// HasSkill reports whether categoryID is a member of the worker's skill set.
func (w *Worker) HasSkill(categoryID int) bool {
	_, ok := w.SkillSet()[categoryID]
	return ok
}

func ParseSkillSet(raw string) map[int]struct{} {
	set := make(map[int]struct{})
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		id, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}
