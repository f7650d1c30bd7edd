package remote

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/commandx/backend/internal/infrastructure/resilience"
	"golang.org/x/crypto/ssh"
)

// SSHDialer opens SSH transports over x/crypto/ssh. Host keys are
// accepted without verification; targets here are short-lived tenant
// machines whose keys rotate on every reprovision.
//
// A per-host circuit breaker fails connects fast once a host keeps
// refusing, so a dead machine does not cost every request a full
// handshake timeout.
type SSHDialer struct {
	// Timeout bounds the TCP connect and handshake.
	Timeout time.Duration

	breakers atomic.Pointer[resilience.BreakerSet]
}

func (d *SSHDialer) breakerFor(host string) *resilience.Breaker {
	set := d.breakers.Load()
	if set == nil {
		fresh := resilience.NewBreakerSet(resilience.Settings{})
		if d.breakers.CompareAndSwap(nil, fresh) {
			set = fresh
		} else {
			set = d.breakers.Load()
		}
	}
	return set.Get(host)
}

// Dial connects and authenticates. Failures come back as *ConnError.
func (d *SSHDialer) Dial(ctx context.Context, creds Credentials) (Transport, error) {
	auth, err := authMethods(creds)
	if err != nil {
		return nil, &ConnError{Host: creds.Host, Err: err}
	}

	conf := &ssh.ClientConfig{
		User:            creds.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         d.Timeout,
	}

	var client *ssh.Client
	err = d.breakerFor(creds.Host).Do(func() error {
		var dialErr error
		client, dialErr = ssh.Dial("tcp", creds.Addr(), conf)
		return dialErr
	})
	if err != nil {
		return nil, &ConnError{Host: creds.Host, Err: err}
	}
	return newSSHTransport(client), nil
}

func authMethods(creds Credentials) ([]ssh.AuthMethod, error) {
	if creds.PrivateKey != "" {
		var (
			signer ssh.Signer
			err    error
		)
		if creds.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(creds.PrivateKey), []byte(creds.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey([]byte(creds.PrivateKey))
		}
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	if creds.Password != "" {
		return []ssh.AuthMethod{ssh.Password(creds.Password)}, nil
	}
	return nil, fmt.Errorf("no credentials for %s@%s", creds.User, creds.Host)
}

// sshTransport wraps one *ssh.Client. Each Exec opens its own channel,
// so commands run concurrently over the multiplexed connection.
type sshTransport struct {
	client *ssh.Client
	dead   atomic.Bool
}

func newSSHTransport(client *ssh.Client) *sshTransport {
	t := &sshTransport{client: client}
	// ssh.Client has no non-blocking liveness probe; park a goroutine on
	// Wait and flip a flag when the connection drops.
	go func() {
		_ = client.Wait()
		t.dead.Store(true)
	}()
	return t
}

func (t *sshTransport) Alive() bool { return !t.dead.Load() }

func (t *sshTransport) Close() error { return t.client.Close() }

func (t *sshTransport) Exec(ctx context.Context, command string) (int, string, string, error) {
	sess, err := t.client.NewSession()
	if err != nil {
		return 0, "", "", fmt.Errorf("open channel: %w", err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	if err := sess.Start(command); err != nil {
		return 0, "", "", fmt.Errorf("start command: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- sess.Wait() }()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		return 1, stdout.String(), "command timed out", nil
	case err := <-done:
		switch e := err.(type) {
		case nil:
			return 0, stdout.String(), stderr.String(), nil
		case *ssh.ExitError:
			return e.ExitStatus(), stdout.String(), stderr.String(), nil
		default:
			// ExitMissingError and friends: the channel died before the
			// command reported a status.
			return 0, stdout.String(), stderr.String(), err
		}
	}
}
