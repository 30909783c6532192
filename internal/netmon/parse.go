// Package netmon keeps track of the devices seen in the local ARP table.
package netmon

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"toolshed/internal/models"
)

var ErrUnsupportedPlatform = errors.New("unsupported platform")

var (
	// hostname (192.168.1.1) at aa:bb:cc:dd:ee:ff [ether] on eth0
	arpLine = regexp.MustCompile(`(?i)(\S+)\s+\(([0-9.]+)\)\s+at\s+([0-9a-f:]+)`)
	// 192.168.1.1 dev eth0 lladdr aa:bb:cc:dd:ee:ff REACHABLE
	neighLine = regexp.MustCompile(`(?i)([0-9.]+)\s+dev\s+\S+\s+lladdr\s+([0-9a-f:]+)`)
	// 192.168.1.1           aa-bb-cc-dd-ee-ff     dynamic
	windowsLine = regexp.MustCompile(`(?i)([0-9.]+)\s+([0-9a-f]{2}(?:-[0-9a-f]{2}){5})\s+\w+`)
)

// Parser turns the output of an ARP listing into devices.
type Parser func(output string) []models.Device

// Source is the command listing the ARP table on one platform and the parser
// for its output. Commands are tried in order until one succeeds.
type Source struct {
	Commands [][]string
	Parse    Parser
}

// SourceFor returns the ARP source for goos.
func SourceFor(goos string) (Source, error) {
	switch goos {
	case "linux":
		return Source{
			Commands: [][]string{{"arp", "-a"}, {"ip", "neigh", "show"}},
			Parse:    ParseARP,
		}, nil
	case "darwin":
		return Source{Commands: [][]string{{"arp", "-a"}}, Parse: ParseDarwinARP}, nil
	case "windows":
		return Source{Commands: [][]string{{"arp", "-a"}}, Parse: ParseWindowsARP}, nil
	default:
		return Source{}, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
}

// ParseARP reads `arp -a` output from Linux and the BSDs as well as
// `ip neigh show` output.
func ParseARP(output string) []models.Device {
	var devices []models.Device
	for _, line := range strings.Split(output, "\n") {
		if m := arpLine.FindStringSubmatch(line); m != nil {
			devices = append(devices, newDevice(m[2], m[3], m[1]))
			continue
		}
		if m := neighLine.FindStringSubmatch(line); m != nil {
			devices = append(devices, newDevice(m[1], m[2], "?"))
		}
	}
	return uniqueByMAC(devices)
}

// ParseDarwinARP reads macOS `arp -a` output, which leaves unresolved
// entries as "(incomplete)".
func ParseDarwinARP(output string) []models.Device {
	var devices []models.Device
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "(incomplete)") {
			continue
		}
		if m := arpLine.FindStringSubmatch(line); m != nil {
			devices = append(devices, newDevice(m[2], m[3], m[1]))
		}
	}
	return uniqueByMAC(devices)
}

func ParseWindowsARP(output string) []models.Device {
	var devices []models.Device
	for _, line := range strings.Split(output, "\n") {
		if m := windowsLine.FindStringSubmatch(line); m != nil {
			devices = append(devices, newDevice(m[1], strings.ReplaceAll(m[2], "-", ":"), "?"))
		}
	}
	return uniqueByMAC(devices)
}

func newDevice(ip, mac, hostname string) models.Device {
	d := models.Device{IP: ip, MAC: NormalizeMAC(mac)}
	if hostname != "?" && hostname != "" {
		d.Hostname = &hostname
	}
	return d
}

// NormalizeMAC lower-cases mac and pads each octet to two digits, so the
// "0:1a:2b:3:4:5" form macOS prints matches the other platforms.
func NormalizeMAC(mac string) string {
	parts := strings.Split(strings.ToLower(mac), ":")
	for i, p := range parts {
		if len(p) == 1 {
			parts[i] = "0" + p
		}
	}
	return strings.Join(parts, ":")
}

func uniqueByMAC(devices []models.Device) []models.Device {
	seen := make(map[string]bool, len(devices))
	out := devices[:0]
	for _, d := range devices {
		if seen[d.MAC] {
			continue
		}
		seen[d.MAC] = true
		out = append(out, d)
	}
	return out
}
