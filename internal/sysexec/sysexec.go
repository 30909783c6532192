// Package sysexec runs the platform tools the monitors scrape.
package sysexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Func runs name with args and returns its standard output.
type Func func(ctx context.Context, name string, args ...string) (string, error)

// Output is the Func backed by os/exec.
func Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return stdout.String(), fmt.Errorf("%s: %w", commandLine(name, args), err)
		}
		return stdout.String(), fmt.Errorf("%s: %w: %s", commandLine(name, args), err, msg)
	}
	return stdout.String(), nil
}

// FirstOf runs each command in turn and returns the output of the first one
// that succeeds. The last error is returned when none does.
func FirstOf(ctx context.Context, run Func, commands ...[]string) (string, error) {
	if run == nil {
		run = Output
	}

	err := fmt.Errorf("no command to run")
	for _, command := range commands {
		if len(command) == 0 {
			continue
		}
		var out string
		out, err = run(ctx, command[0], command[1:]...)
		if err == nil {
			return out, nil
		}
	}
	return "", err
}

func commandLine(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}
