package tunnel

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// ErrUnavailable covers every way a tunnel can fail to come up (SSH auth,
// connection refused, listener setup). Callers abort the tenant's cycle and
// let the next scheduled run retry.
var ErrUnavailable = errors.New("tunnel unavailable")

type Config struct {
	SSHHost    string
	SSHPort    int
	User       string
	Password   string
	RemoteHost string
	RemotePort int
	Timeout    time.Duration
}

// Tunnel forwards an ephemeral local TCP listener through an SSH session to
// the tenant's database port. One tunnel serves exactly one sync cycle; it is
// never shared across tenants.
type Tunnel struct {
	client   *ssh.Client
	listener net.Listener
	remote   string

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

func Open(cfg Config) (*Tunnel, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	sshCfg := &ssh.ClientConfig{
		User: cfg.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(cfg.Password),
		},
		// On-prem PBXes use self-provisioned host keys; the customer supplies
		// the endpoint, so there is no pinned key to verify against.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         cfg.Timeout,
	}

	addr := net.JoinHostPort(cfg.SSHHost, strconv.Itoa(cfg.SSHPort))
	client, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: ssh dial %s: %v", ErrUnavailable, addr, err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: local listener: %v", ErrUnavailable, err)
	}

	t := &Tunnel{
		client:   client,
		listener: listener,
		remote:   net.JoinHostPort(cfg.RemoteHost, strconv.Itoa(cfg.RemotePort)),
		closed:   make(chan struct{}),
	}

	t.wg.Add(1)
	go t.acceptLoop()

	return t, nil
}

// Addr is the local endpoint the source reader connects to.
func (t *Tunnel) Addr() string {
	return t.listener.Addr().String()
}

// Client exposes the underlying SSH session for SFTP media transfer over the
// same connection.
func (t *Tunnel) Client() *ssh.Client {
	return t.client
}

func (t *Tunnel) acceptLoop() {
	defer t.wg.Done()
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.closed:
				return
			default:
			}
			return
		}
		t.wg.Add(1)
		go t.forward(conn)
	}
}

func (t *Tunnel) forward(local net.Conn) {
	defer t.wg.Done()
	defer func() { _ = local.Close() }()

	remote, err := t.client.Dial("tcp", t.remote)
	if err != nil {
		return
	}
	defer func() { _ = remote.Close() }()

	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(remote, local)
		close(done)
	}()
	_, _ = io.Copy(local, remote)
	<-done
}

// Close tears down the listener and SSH session. Safe to call more than once
// and on every exit path; the sync driver defers it so file descriptors never
// leak across tenants.
func (t *Tunnel) Close() error {
	if t == nil {
		return nil
	}
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		if t.listener != nil {
			err = t.listener.Close()
		}
		if t.client != nil {
			if cerr := t.client.Close(); err == nil {
				err = cerr
			}
		}
		t.wg.Wait()
	})
	return err
}
