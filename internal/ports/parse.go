// Package ports lists the TCP ports in LISTEN state and checks them against
// the user's expectations.
package ports

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"toolshed/internal/models"
)

var ErrUnsupportedPlatform = errors.New("unsupported platform")

var (
	// node  4242 ada  23u  IPv4 0x1  0t0  TCP *:3000 (LISTEN)
	lsofLine = regexp.MustCompile(`^(\S+)\s+(\d+)\s+(\S+).*:(\d+)\s+\(LISTEN\)`)
	// tcp  0  0 0.0.0.0:22  0.0.0.0:*  LISTEN  812/sshd
	netstatLine = regexp.MustCompile(`^tcp6?\s+\d+\s+\d+\s+\S*:(\d+)\s+.*LISTEN\s+(\d+)/(\S+)`)
	// LISTEN 0  128  0.0.0.0:22  0.0.0.0:*  users:(("sshd",pid=812,fd=3))
	ssLine = regexp.MustCompile(`LISTEN\s+\d+\s+\d+\s+\S*:(\d+)\s+.*users:\(\("([^"]+)",pid=(\d+)`)
	//   TCP    0.0.0.0:135    0.0.0.0:0    LISTENING    1044
	windowsLine = regexp.MustCompile(`TCP\s+\S*:(\d+)\s+.*LISTENING\s+(\d+)`)
)

// Parser turns the output of a socket listing into ports.
type Parser func(output string) []models.ListeningPort

// Source is the command listing listening sockets on one platform and the
// parser for its output. Commands are tried in order until one succeeds.
type Source struct {
	Commands [][]string
	Parse    Parser
}

func SourceFor(goos string) (Source, error) {
	switch goos {
	case "linux", "darwin":
		return Source{
			Commands: [][]string{
				{"lsof", "-iTCP", "-sTCP:LISTEN", "-n", "-P"},
				{"netstat", "-tlnp"},
				{"ss", "-tlnp"},
			},
			Parse: ParseUnix,
		}, nil
	case "windows":
		return Source{Commands: [][]string{{"netstat", "-ano"}}, Parse: ParseWindowsNetstat}, nil
	default:
		return Source{}, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
}

type lineParser func(line string) (models.ListeningPort, bool)

func parseLsofLine(line string) (models.ListeningPort, bool) {
	m := lsofLine.FindStringSubmatch(line)
	if m == nil {
		return models.ListeningPort{}, false
	}
	return listening(m[4], m[2], m[1], m[3], "LISTEN")
}

func parseNetstatLine(line string) (models.ListeningPort, bool) {
	m := netstatLine.FindStringSubmatch(line)
	if m == nil {
		return models.ListeningPort{}, false
	}
	return listening(m[1], m[2], m[3], "", "LISTEN")
}

func parseSSLine(line string) (models.ListeningPort, bool) {
	m := ssLine.FindStringSubmatch(line)
	if m == nil {
		return models.ListeningPort{}, false
	}
	return listening(m[1], m[3], m[2], "", "LISTEN")
}

func parseWindowsLine(line string) (models.ListeningPort, bool) {
	m := windowsLine.FindStringSubmatch(line)
	if m == nil {
		return models.ListeningPort{}, false
	}
	return listening(m[1], m[2], "Unknown", "", "LISTENING")
}

func ParseLsof(output string) []models.ListeningPort {
	return parseLines(output, parseLsofLine)
}

func ParseNetstat(output string) []models.ListeningPort {
	return parseLines(output, parseNetstatLine)
}

func ParseSS(output string) []models.ListeningPort {
	return parseLines(output, parseSSLine)
}

// ParseUnix accepts lsof, netstat and ss output alike, trying each format
// on every line.
func ParseUnix(output string) []models.ListeningPort {
	return parseLines(output, parseLsofLine, parseNetstatLine, parseSSLine)
}

// ParseWindowsNetstat reads `netstat -ano`. The process name is not part of
// that output and is reported as "Unknown".
func ParseWindowsNetstat(output string) []models.ListeningPort {
	return parseLines(output, parseWindowsLine)
}

// parseLines applies the first matching parser to each line, drops repeats
// of the same port and pid, and orders the result by port.
func parseLines(output string, parsers ...lineParser) []models.ListeningPort {
	type key struct{ port, pid int }
	seen := make(map[key]bool)
	ports := []models.ListeningPort{}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "COMMAND") || strings.HasPrefix(line, "Proto") {
			continue
		}
		for _, parse := range parsers {
			p, ok := parse(line)
			if !ok {
				continue
			}
			k := key{p.Port, p.PID}
			if !seen[k] {
				seen[k] = true
				ports = append(ports, p)
			}
			break
		}
	}

	slices.SortStableFunc(ports, func(a, b models.ListeningPort) int { return a.Port - b.Port })
	return ports
}

func listening(port, pid, process, user, state string) (models.ListeningPort, bool) {
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return models.ListeningPort{}, false
	}
	pidNum, err := strconv.Atoi(pid)
	if err != nil {
		return models.ListeningPort{}, false
	}
	return models.ListeningPort{
		Port:     portNum,
		PID:      pidNum,
		Process:  process,
		User:     user,
		Protocol: "TCP",
		State:    state,
	}, true
}

// FilterRange keeps the ports within [start, end].
func FilterRange(ports []models.ListeningPort, start, end int) []models.ListeningPort {
	out := []models.ListeningPort{}
	for _, p := range ports {
		if p.Port >= start && p.Port <= end {
			out = append(out, p)
		}
	}
	return out
}
