package remote

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/term"
)

var identityFiles = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// authMethods returns agent, key file and, unless batch is set, password
// authentication, in that order.
func authMethods(ep endpoint, batch bool) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if sock := strings.TrimSpace(os.Getenv("SSH_AUTH_SOCK")); sock != "" {
		methods = append(methods, ssh.PublicKeysCallback(agentSigners(sock)))
	}
	if signers := identitySigners(); len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	if !batch {
		p := &passwordPrompt{label: ep.user + "@" + ep.host}
		methods = append(methods,
			ssh.PasswordCallback(p.password),
			ssh.KeyboardInteractive(p.challenge),
		)
	}
	if len(methods) == 0 {
		return nil, errors.New("no SSH auth methods available (start ssh-agent or add a key under ~/.ssh)")
	}
	return methods, nil
}

func agentSigners(sock string) func() ([]ssh.Signer, error) {
	return func() ([]ssh.Signer, error) {
		conn, err := net.Dial("unix", sock)
		if err != nil {
			return nil, err
		}
		defer conn.Close()
		return agent.NewClient(conn).Signers()
	}
}

// identitySigners loads unencrypted default private keys. Keys that need a
// passphrase are left to the agent.
func identitySigners() []ssh.Signer {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	var signers []ssh.Signer
	for _, name := range identityFiles {
		pem, err := os.ReadFile(filepath.Join(home, ".ssh", name))
		if err != nil {
			continue
		}
		if signer, err := ssh.ParsePrivateKey(pem); err == nil {
			signers = append(signers, signer)
		}
	}
	return signers
}

// passwordPrompt asks for the password once and reuses it for both
// password and keyboard-interactive challenges.
type passwordPrompt struct {
	label string

	once sync.Once
	pass string
	err  error
}

func (p *passwordPrompt) password() (string, error) {
	p.once.Do(func() {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			p.err = errors.New("cannot prompt for SSH password: stdin is not a terminal")
			return
		}
		fmt.Fprintf(os.Stderr, "%s's password: ", p.label)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			p.err = fmt.Errorf("password prompt failed: %w", err)
			return
		}
		p.pass = string(b)
	})
	return p.pass, p.err
}

func (p *passwordPrompt) challenge(_, _ string, questions []string, echos []bool) ([]string, error) {
	answers := make([]string, len(questions))
	for i := range questions {
		if i < len(echos) && echos[i] {
			continue
		}
		pass, err := p.password()
		if err != nil {
			return nil, err
		}
		answers[i] = pass
	}
	return answers, nil
}

// confirm asks a yes/no question on the terminal.
func confirm(question string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errors.New("cannot ask for confirmation: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, question)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
