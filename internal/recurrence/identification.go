package recurrence

import (
	"fmt"
	"strings"
)

// Identification builds the default label of a rule, for example
// "WEEKLY-B101-08H" or "DAILY-LAB3-14H-2025.1" for semester-bound rules.
func Identification(rule Rule, roomCode string) string {
	kind := KindDaily
	if rule.Frequency != nil {
		kind = rule.Frequency.Kind()
	}
	room := strings.ToUpper(strings.Join(strings.Fields(roomCode), ""))
	label := fmt.Sprintf("%s-%s-%02dH", kind, room, rule.StartTime.Hour)
	if rule.Kind == KindSemesterBound && rule.Semester != "" {
		label += "-" + rule.Semester
	}
	return label
}
