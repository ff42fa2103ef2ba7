package main

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestResolveScanTarget_DefaultLocal(t *testing.T) {
	target, err := resolveScanTarget(nil)
	if err != nil {
		t.Fatalf("resolveScanTarget returned error: %v", err)
	}
	if target.Remote {
		t.Fatal("expected local target")
	}
	if !slices.Equal(target.LocalPaths, []string{"."}) {
		t.Fatalf("unexpected local paths: %q", target.LocalPaths)
	}
}

func TestResolveScanTarget_ExistingLocalPathWins(t *testing.T) {
	root := t.TempDir()
	localPath := filepath.Join(root, "alice@server")
	if err := os.Mkdir(localPath, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	target, err := resolveScanTarget([]string{localPath})
	if err != nil {
		t.Fatalf("resolveScanTarget returned error: %v", err)
	}
	if target.Remote {
		t.Fatal("expected local target")
	}
	if !slices.Equal(target.LocalPaths, []string{localPath}) {
		t.Fatalf("unexpected local paths: %q", target.LocalPaths)
	}
}

func TestResolveScanTarget_SeveralLocalPaths(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	target, err := resolveScanTarget([]string{a, b})
	if err != nil {
		t.Fatalf("resolveScanTarget returned error: %v", err)
	}
	if target.Remote || !slices.Equal(target.LocalPaths, []string{a, b}) {
		t.Fatalf("unexpected target: %+v", target)
	}
}

func TestResolveScanTarget_RemoteDefaultPath(t *testing.T) {
	target, err := resolveScanTarget([]string{"alice@10.0.0.5"})
	if err != nil {
		t.Fatalf("resolveScanTarget returned error: %v", err)
	}
	if !target.Remote {
		t.Fatal("expected remote target")
	}
	if target.SSHDestination != "alice@10.0.0.5" {
		t.Fatalf("unexpected ssh target: %q", target.SSHDestination)
	}
	if target.RemotePath != "." {
		t.Fatalf("unexpected remote path: %q", target.RemotePath)
	}
}

func TestResolveScanTarget_RemoteCustomPath(t *testing.T) {
	target, err := resolveScanTarget([]string{"alice@10.0.0.5", "/var/log"})
	if err != nil {
		t.Fatalf("resolveScanTarget returned error: %v", err)
	}
	if !target.Remote {
		t.Fatal("expected remote target")
	}
	if target.RemotePath != "/var/log" {
		t.Fatalf("unexpected remote path: %q", target.RemotePath)
	}

	if _, err := resolveScanTarget([]string{"alice@10.0.0.5", "/a", "/b"}); err == nil {
		t.Fatal("expected error for extra remote args")
	}
}

func TestResolveScanTarget_RejectsHostPortInTarget(t *testing.T) {
	for _, raw := range []string{"alice@example.com:2222", "alice@[::1]:2222"} {
		_, err := resolveScanTarget([]string{raw})
		if err == nil {
			t.Fatalf("%s: expected error for host:port target", raw)
		}
		if !strings.Contains(err.Error(), "-ssh-port") {
			t.Fatalf("%s: expected ssh-port hint, got: %v", raw, err)
		}
	}
}

func TestResolveScanTarget_BracketedIPv6Remote(t *testing.T) {
	target, err := resolveScanTarget([]string{"alice@[::1]"})
	if err != nil {
		t.Fatalf("resolveScanTarget returned error: %v", err)
	}
	if !target.Remote {
		t.Fatal("expected remote target")
	}
	if target.SSHDestination != "alice@[::1]" {
		t.Fatalf("unexpected ssh target: %q", target.SSHDestination)
	}
}

func TestIsRemoteTarget(t *testing.T) {
	tests := []struct {
		raw    string
		remote bool
		ok     bool
	}{
		{"alice@host", true, true},
		{"@host", true, false},
		{"alice@", true, false},
		{"-oProxy@host", true, false},
		{"alice@[::1", true, false},
		{"alice@[]", true, false},
		{"alice@ho]st", true, false},
		{"dir/alice@host", false, true},
		{"plain", false, true},
		{"a@b@c", false, true},
	}
	for _, tt := range tests {
		remote, err := isRemoteTarget(tt.raw)
		if remote != tt.remote || (err == nil) != tt.ok {
			t.Errorf("isRemoteTarget(%q) = %v, %v; want remote=%v ok=%v", tt.raw, remote, err, tt.remote, tt.ok)
		}
	}
}

func TestSplitComma(t *testing.T) {
	got := splitComma(" a, ,b ,c,")
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitComma = %q", got)
	}
	if got := splitComma(""); got != nil {
		t.Fatalf("splitComma(\"\") = %q, want nil", got)
	}
}
