package remote

import (
	"fmt"
	"net"
	"net/url"
	pathpkg "path"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort    = 22
	defaultTimeout = 15 * time.Second
	homePath       = "."
)

// Config describes how to reach a remote host.
type Config struct {
	Target         string // user@host
	Port           int
	BatchMode      bool // never prompt; fail instead
	Timeout        time.Duration
	ScanTimeout    time.Duration
	FollowSymlinks bool
	Concurrency    int
}

// endpoint is a parsed Config target.
type endpoint struct {
	user string
	host string
	port int
}

func parseEndpoint(cfg Config) (endpoint, error) {
	target := strings.TrimSpace(cfg.Target)
	if target == "" {
		return endpoint{}, fmt.Errorf("remote target is required")
	}
	user, host, ok := strings.Cut(target, "@")
	if !ok || user == "" || host == "" {
		return endpoint{}, fmt.Errorf("invalid remote target %q: expected user@host", cfg.Target)
	}

	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	if port < 1 || port > 65535 {
		return endpoint{}, fmt.Errorf("ssh port must be between 1 and 65535")
	}
	return endpoint{user: user, host: host, port: port}, nil
}

func (e endpoint) addr() string {
	return net.JoinHostPort(e.host, strconv.Itoa(e.port))
}

// key identifies a remote directory in the cache. Home-relative paths are
// placed under "~" so they never collide with absolute ones.
func (e endpoint) key(dir string) string {
	p := cleanPath(dir)
	switch {
	case p == homePath:
		p = "/~"
	case !pathpkg.IsAbs(p):
		p = "/~/" + p
	}
	u := url.URL{
		Scheme: "sftp",
		User:   url.User(e.user),
		Host:   e.addr(),
		Path:   p,
	}
	return u.String()
}

// cleanPath normalizes a remote path with POSIX rules. Backslashes are
// treated as separators.
func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return homePath
	}
	return pathpkg.Clean(strings.ReplaceAll(p, "\\", "/"))
}

// isWithin reports whether target is root or below it.
func isWithin(root, target string) bool {
	root = pathpkg.Clean(root)
	target = pathpkg.Clean(target)
	if root == target {
		return true
	}
	return strings.HasPrefix(target, strings.TrimSuffix(root, "/")+"/")
}
