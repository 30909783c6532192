package models

type ListeningPort struct {
	Port     int    `json:"port"`
	PID      int    `json:"pid"`
	Process  string `json:"process"`
	User     string `json:"user,omitempty"`
	Protocol string `json:"protocol"`
	State    string `json:"state"`
}

// PortPreference records what the user expects to listen on a port.
type PortPreference struct {
	Name        string `json:"name,omitempty"`
	Process     string `json:"process,omitempty"`
	Description string `json:"description,omitempty"`
	Project     string `json:"project,omitempty"`
}

type PortConflict struct {
	Port     int            `json:"port"`
	Expected PortPreference `json:"expected"`
	Actual   ListeningPort  `json:"actual"`
	Mismatch bool           `json:"mismatch"`
}

type PortRange struct {
	Name  string `json:"name"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
