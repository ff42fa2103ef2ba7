package main

import (
	"fmt"
	"net"
	"os"
	"strings"
)

type scanTarget struct {
	Remote         bool
	LocalPaths     []string
	SSHDestination string
	RemotePath     string
}

// resolveScanTarget interprets the positional arguments: one or more local
// paths, or user@host followed by an optional remote path. An existing
// local path always wins over the remote form.
func resolveScanTarget(args []string) (scanTarget, error) {
	if len(args) == 0 {
		return scanTarget{LocalPaths: []string{"."}}, nil
	}

	first := args[0]
	if pathExists(first) {
		return scanTarget{LocalPaths: args}, nil
	}

	if isRemote, err := isRemoteTarget(first); isRemote {
		if err != nil {
			return scanTarget{}, err
		}
		if len(args) > 2 {
			return scanTarget{}, fmt.Errorf("too many positional arguments for remote scan")
		}

		remotePath := "."
		if len(args) == 2 && strings.TrimSpace(args[1]) != "" {
			remotePath = args[1]
		}

		return scanTarget{
			Remote:         true,
			SSHDestination: first,
			RemotePath:     remotePath,
		}, nil
	}

	return scanTarget{LocalPaths: args}, nil
}

// isRemoteTarget reports whether raw has the user@host form and, if so,
// whether it is well formed. Ports belong in -ssh-port.
func isRemoteTarget(raw string) (bool, error) {
	if strings.ContainsAny(raw, `/\`) || strings.Count(raw, "@") != 1 {
		return false, nil
	}

	user, host, _ := strings.Cut(raw, "@")
	bad := func(reason string) (bool, error) {
		if reason == "" {
			return true, fmt.Errorf("invalid remote target %q", raw)
		}
		return true, fmt.Errorf("invalid remote target %q: %s", raw, reason)
	}
	switch {
	case user == "" || host == "":
		return bad("expected user@host")
	case user[0] == '-' || host[0] == '-':
		return bad("")
	case strings.ContainsAny(raw, " \t\n\r"):
		return bad("spaces are not allowed")
	}

	if _, port, err := net.SplitHostPort(host); err == nil && isAllDigits(port) {
		return true, fmt.Errorf("remote target %q must not include :port; use -ssh-port", raw)
	}
	if inner, ok := strings.CutPrefix(host, "["); ok {
		h, closed := strings.CutSuffix(inner, "]")
		switch {
		case !closed || strings.ContainsAny(h, "[]"):
			return bad("malformed bracketed host")
		case h == "":
			return bad("empty host")
		}
	} else if strings.ContainsAny(host, "[]") {
		return bad("malformed bracketed host")
	}

	return true, nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func splitComma(s string) []string {
	var result []string
	for part := range strings.SplitSeq(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
