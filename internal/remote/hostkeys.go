package remote

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// knownHosts verifies host keys against ~/.ssh/known_hosts, trusting new
// hosts on first use after confirmation.
type knownHosts struct {
	path   string
	prompt func(string) (bool, error)
}

func openKnownHosts() (*knownHosts, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot locate known_hosts: %w", err)
	}
	dir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("cannot create %s: %w", dir, err)
	}

	path := filepath.Join(dir, "known_hosts")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("cannot open known_hosts: %w", err)
	}
	_ = f.Close()
	return &knownHosts{path: path, prompt: confirm}, nil
}

func (k *knownHosts) callback(ep endpoint, batch bool) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		verify, err := knownhosts.New(k.path)
		if err != nil {
			return fmt.Errorf("cannot load known_hosts: %w", err)
		}
		err = verify(hostname, remote, key)
		if err == nil {
			return nil
		}
		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) {
			return fmt.Errorf("host key verification failed: %w", err)
		}
		if len(keyErr.Want) == 0 {
			return k.trustNew(ep, key, batch)
		}
		return k.trustChanged(ep, key, keyErr.Want, batch)
	}
}

func (k *knownHosts) trustNew(ep endpoint, key ssh.PublicKey, batch bool) error {
	addr := hostPattern(ep.host, ep.port)
	fp := ssh.FingerprintSHA256(key)
	if batch {
		return fmt.Errorf("unknown host key for %s (%s); connect once interactively to trust it", addr, fp)
	}
	ok, err := k.prompt(fmt.Sprintf(
		"The authenticity of host '%s' can't be established.\n%s key fingerprint is %s.\nTrust this host and continue connecting (yes/no)? ",
		addr, key.Type(), fp))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("host key for %s was not trusted", addr)
	}
	return k.add(ep, key)
}

func (k *knownHosts) trustChanged(ep endpoint, key ssh.PublicKey, want []knownhosts.KnownKey, batch bool) error {
	addr := hostPattern(ep.host, ep.port)
	expected := make([]string, 0, len(want))
	for _, w := range want {
		expected = append(expected, ssh.FingerprintSHA256(w.Key))
	}
	msg := fmt.Sprintf("host key mismatch for %s: expected %s, presented %s",
		addr, strings.Join(expected, ", "), ssh.FingerprintSHA256(key))
	if batch {
		return errors.New(msg)
	}
	ok, err := k.prompt("WARNING: " + msg + "\nReplace stored key and continue (yes/no)? ")
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(msg)
	}
	return k.replace(ep, key)
}

func (k *knownHosts) add(ep endpoint, key ssh.PublicKey) error {
	f, err := os.OpenFile(k.path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("cannot update known_hosts: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, knownhosts.Line([]string{hostPattern(ep.host, ep.port)}, key)); err != nil {
		return fmt.Errorf("cannot write known_hosts entry: %w", err)
	}
	return nil
}

func (k *knownHosts) replace(ep endpoint, key ssh.PublicKey) error {
	data, err := os.ReadFile(k.path)
	if err != nil {
		return fmt.Errorf("cannot read known_hosts: %w", err)
	}
	lines := dropHostLines(strings.Split(string(data), "\n"), ep.host, ep.port)
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	lines = append(lines, knownhosts.Line([]string{hostPattern(ep.host, ep.port)}, key), "")

	if err := os.WriteFile(k.path, []byte(strings.Join(lines, "\n")), 0o600); err != nil {
		return fmt.Errorf("cannot write known_hosts: %w", err)
	}
	return nil
}

// hostPattern is the known_hosts spelling of host:port.
func hostPattern(host string, port int) string {
	if port == defaultPort {
		return host
	}
	return "[" + host + "]:" + strconv.Itoa(port)
}

// dropHostLines removes entries naming host:port, keeping comments, blank
// lines and entries for other hosts or ports.
func dropHostLines(lines []string, host string, port int) []string {
	names := []string{hostPattern(host, port), "[" + host + "]:" + strconv.Itoa(port)}
	if port == defaultPort {
		names = append(names, host)
	}

	return slices.DeleteFunc(lines, func(line string) bool {
		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			return false
		}
		hostField := fields[0]
		if strings.HasPrefix(hostField, "@") {
			if len(fields) < 2 {
				return false
			}
			hostField = fields[1]
		}
		for _, h := range strings.Split(hostField, ",") {
			if slices.Contains(names, h) {
				return true
			}
		}
		return false
	})
}
