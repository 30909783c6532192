package ports

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"toolshed/internal/models"
)

func TestParseLsof(t *testing.T) {
	output := `COMMAND   PID USER   FD   TYPE DEVICE SIZE/OFF NODE NAME
node     4242  ada   23u  IPv4 0x1234      0t0  TCP *:3000 (LISTEN)
node     4242  ada   24u  IPv6 0x1235      0t0  TCP [::1]:3000 (LISTEN)
postgres  501  pg     7u  IPv4 0x1236      0t0  TCP 127.0.0.1:5432 (LISTEN)
`
	ports := ParseLsof(output)
	if len(ports) != 2 {
		t.Fatalf("Expected 2 ports, got %+v", ports)
	}
	want := models.ListeningPort{Port: 3000, PID: 4242, Process: "node", User: "ada", Protocol: "TCP", State: "LISTEN"}
	if ports[0] != want {
		t.Errorf("Expected %+v, got %+v", want, ports[0])
	}
	if ports[1].Port != 5432 || ports[1].User != "pg" {
		t.Errorf("unexpected second port %+v", ports[1])
	}
}

func TestParseNetstat(t *testing.T) {
	output := `Proto Recv-Q Send-Q Local Address           Foreign Address         State       PID/Program name
tcp        0      0 0.0.0.0:22              0.0.0.0:*               LISTEN      812/sshd
tcp6       0      0 :::8080                 :::*                    LISTEN      900/java
tcp        0      0 0.0.0.0:631             0.0.0.0:*               LISTEN      -
`
	ports := ParseNetstat(output)
	if len(ports) != 2 {
		t.Fatalf("Expected 2 ports, got %+v", ports)
	}
	if ports[0].Port != 22 || ports[0].PID != 812 || ports[0].Process != "sshd" {
		t.Errorf("unexpected port %+v", ports[0])
	}
	if ports[1].Port != 8080 || ports[1].Process != "java" {
		t.Errorf("unexpected port %+v", ports[1])
	}
}

func TestParseSS(t *testing.T) {
	output := `State  Recv-Q Send-Q Local Address:Port Peer Address:Port Process
LISTEN 0      4096   127.0.0.53%lo:53      0.0.0.0:*     users:(("systemd-resolve",pid=611,fd=14))
LISTEN 0      128    [::]:22               [::]:*        users:(("sshd",pid=812,fd=4))
`
	ports := ParseSS(output)
	if len(ports) != 2 {
		t.Fatalf("Expected 2 ports, got %+v", ports)
	}
	if ports[0].Port != 22 || ports[1].Port != 53 {
		t.Errorf("ports should be ordered, got %+v", ports)
	}
	if ports[1].Process != "systemd-resolve" || ports[1].PID != 611 {
		t.Errorf("unexpected port %+v", ports[1])
	}
}

func TestParseUnixMixed(t *testing.T) {
	output := "node 10 ada 3u IPv4 0x1 0t0 TCP *:9000 (LISTEN)\n" +
		"tcp 0 0 0.0.0.0:80 0.0.0.0:* LISTEN 20/nginx\n" +
		"LISTEN 0 128 0.0.0.0:443 0.0.0.0:* users:((\"nginx\",pid=20,fd=6))\n" +
		"tcp 0 0 0.0.0.0:80 0.0.0.0:* LISTEN 20/nginx\n"

	ports := ParseUnix(output)
	if len(ports) != 3 {
		t.Fatalf("Expected 3 ports, got %+v", ports)
	}
	for i, want := range []int{80, 443, 9000} {
		if ports[i].Port != want {
			t.Errorf("ports[%d] = %d, want %d", i, ports[i].Port, want)
		}
	}
}

func TestParseWindowsNetstat(t *testing.T) {
	output := "  Proto  Local Address          Foreign Address        State           PID\r\n" +
		"  TCP    0.0.0.0:135            0.0.0.0:0              LISTENING       1044\r\n" +
		"  TCP    [::]:445               [::]:0                 LISTENING       4\r\n" +
		"  TCP    10.0.0.5:50000         20.1.1.1:443           ESTABLISHED     777\r\n"

	ports := ParseWindowsNetstat(output)
	if len(ports) != 2 {
		t.Fatalf("Expected 2 ports, got %+v", ports)
	}
	if ports[0].Port != 135 || ports[0].PID != 1044 || ports[0].Process != "Unknown" || ports[0].State != "LISTENING" {
		t.Errorf("unexpected port %+v", ports[0])
	}
}

func TestSourceFor(t *testing.T) {
	unix, err := SourceFor("darwin")
	if err != nil {
		t.Fatal(err)
	}
	if len(unix.Commands) != 3 || unix.Commands[0][0] != "lsof" {
		t.Errorf("unexpected commands %v", unix.Commands)
	}
	if _, err := SourceFor("aix"); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("Expected ErrUnsupportedPlatform, got %v", err)
	}
}

func TestFilterRange(t *testing.T) {
	ports := []models.ListeningPort{{Port: 22}, {Port: 3000}, {Port: 8080}, {Port: 50000}}
	got := FilterRange(ports, 3000, 9999)
	if len(got) != 2 || got[0].Port != 3000 || got[1].Port != 8080 {
		t.Errorf("unexpected filter result %+v", got)
	}
	if got := FilterRange(nil, 1, 10); got == nil || len(got) != 0 {
		t.Errorf("Expected an empty slice, got %v", got)
	}
}

func TestScannerKeepsCacheOnError(t *testing.T) {
	fail := false
	s := &Scanner{
		Source: Source{Commands: [][]string{{"lsof"}}, Parse: ParseUnix},
		Exec: func(ctx context.Context, name string, args ...string) (string, error) {
			if fail {
				return "", errors.New("lsof: not found")
			}
			return "tcp 0 0 0.0.0.0:80 0.0.0.0:* LISTEN 20/nginx\n", nil
		},
	}

	if got := s.Cached(); got == nil || len(got) != 0 {
		t.Errorf("Expected an empty cache, got %v", got)
	}

	ports, err := s.Scan(context.Background())
	if err != nil || len(ports) != 1 {
		t.Fatalf("unexpected scan result %v %v", ports, err)
	}

	fail = true
	ports, err = s.Scan(context.Background())
	if err == nil {
		t.Error("Expected the scan error")
	}
	if len(ports) != 1 || ports[0].Port != 80 {
		t.Errorf("failed scan should return the cache, got %+v", ports)
	}
}

func TestScannerReturnsCacheWhileScanning(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	s := &Scanner{
		Source: Source{Commands: [][]string{{"lsof"}}, Parse: ParseUnix},
		Exec: func(ctx context.Context, name string, args ...string) (string, error) {
			once.Do(func() { close(started) })
			<-release
			return "", nil
		},
	}
	s.cached = []models.ListeningPort{{Port: 1234}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Scan(context.Background())
	}()

	<-started
	ports, err := s.Scan(context.Background())
	if err != nil || len(ports) != 1 || ports[0].Port != 1234 {
		t.Errorf("Expected the cached result, got %v %v", ports, err)
	}
	close(release)
	<-done
}

func TestPreferences(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preferences.json")
	defaults := `{"3000": {"name": "web", "process": "node"}}`
	if err := os.WriteFile(filepath.Join(dir, "preferences.default.json"), []byte(defaults), 0644); err != nil {
		t.Fatal(err)
	}

	prefs, err := OpenPreferences(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := prefs.All()[3000].Name; got != "web" {
		t.Errorf("Expected defaults to load, got %q", got)
	}

	if err := prefs.Set(5432, models.PortPreference{Name: "db", Process: "postgres"}); err != nil {
		t.Fatal(err)
	}
	if err := prefs.Delete(3000); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenPreferences(path)
	if err != nil {
		t.Fatal(err)
	}
	all := reopened.All()
	if len(all) != 1 || all[5432].Process != "postgres" {
		t.Errorf("unexpected preferences %+v", all)
	}

	if err := reopened.Replace(nil); err != nil {
		t.Fatal(err)
	}
	if len(reopened.All()) != 0 {
		t.Error("Replace(nil) should clear preferences")
	}
}

func TestOpenPreferencesMissing(t *testing.T) {
	prefs, err := OpenPreferences(filepath.Join(t.TempDir(), "preferences.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(prefs.All()) != 0 {
		t.Error("Expected no preferences")
	}
}

func TestOpenPreferencesInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenPreferences(path); err == nil {
		t.Error("Expected a decode error")
	}
}

func TestConflicts(t *testing.T) {
	ports := []models.ListeningPort{
		{Port: 3000, PID: 1, Process: "node"},
		{Port: 5432, PID: 2, Process: "python"},
		{Port: 8080, PID: 3, Process: "java"},
	}
	prefs := map[int]models.PortPreference{
		3000: {Name: "web", Process: "Node"},
		5432: {Name: "db", Process: "postgres"},
		9999: {Name: "unused"},
	}

	conflicts := Conflicts(ports, prefs)
	if len(conflicts) != 2 {
		t.Fatalf("Expected 2 conflicts, got %+v", conflicts)
	}
	if conflicts[0].Port != 3000 || conflicts[0].Mismatch {
		t.Errorf("process names should match case-insensitively: %+v", conflicts[0])
	}
	if conflicts[1].Port != 5432 || !conflicts[1].Mismatch {
		t.Errorf("Expected a mismatch on 5432: %+v", conflicts[1])
	}
}

func TestKill(t *testing.T) {
	if res := Kill(0); res.Success {
		t.Error("pid 0 should be rejected")
	}

	if runtime.GOOS == "windows" {
		t.Skip("no sleep binary")
	}
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	cmd := exec.Command(sleep, "30")
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}

	res := Kill(cmd.Process.Pid)
	if !res.Success {
		t.Fatalf("Expected success, got %s", res.Message)
	}
	if err := cmd.Wait(); err == nil {
		t.Error("killed process should exit with an error")
	}
}
