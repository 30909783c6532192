package ports

import (
	"fmt"
	"os"
	"strings"
	"toolshed/internal/models"
)

// Conflicts pairs every listening port that has a preference with that
// preference. Mismatch is set when the preference names a process and a
// different one holds the port.
func Conflicts(ports []models.ListeningPort, prefs map[int]models.PortPreference) []models.PortConflict {
	conflicts := []models.PortConflict{}
	for _, p := range ports {
		pref, ok := prefs[p.Port]
		if !ok {
			continue
		}
		conflicts = append(conflicts, models.PortConflict{
			Port:     p.Port,
			Expected: pref,
			Actual:   p,
			Mismatch: pref.Process != "" && !strings.EqualFold(pref.Process, p.Process),
		})
	}
	return conflicts
}

// Kill forcibly stops the process with the given pid.
func Kill(pid int) models.ActionResult {
	if pid <= 0 {
		return models.ActionResult{Success: false, Message: fmt.Sprintf("invalid pid %d", pid)}
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return models.ActionResult{Success: false, Message: err.Error()}
	}
	if err := proc.Kill(); err != nil {
		return models.ActionResult{Success: false, Message: err.Error()}
	}
	return models.ActionResult{Success: true, Message: fmt.Sprintf("Process %d killed", pid)}
}
