package models

// Device is a host seen in the ARP table. MAC is always lower-case and
// colon separated.
type Device struct {
	MAC        string  `json:"mac"`
	IP         string  `json:"ip"`
	Hostname   *string `json:"hostname"`
	Vendor     string  `json:"vendor,omitempty"`
	CustomName string  `json:"customName,omitempty"`
	FirstSeen  string  `json:"firstSeen,omitempty"`
	LastSeen   string  `json:"lastSeen,omitempty"`
	IsNew      bool    `json:"isNew"`
}

const AlertNewDevice = "new_device"

type Alert struct {
	Type      string `json:"type"`
	Device    Device `json:"device"`
	Timestamp string `json:"timestamp"`
}

type NetworkStats struct {
	Total        int `json:"total"`
	Online       int `json:"online"`
	Offline      int `json:"offline"`
	New          int `json:"new"`
	RecentAlerts int `json:"recentAlerts"`
}
