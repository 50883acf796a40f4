// Package transport implements the thin, synchronous-semantics layer
// over Unix-domain datagram sockets that the Janus client and server
// send and receive through.
package transport

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// MaxDatagramSize is the default policy-level payload size limit
// (spec.md §6): 64 KiB.
const MaxDatagramSize = 64 * 1024

// ReplySocketDir is where ephemeral reply sockets are created.
const ReplySocketDir = "/tmp"

// Error codes surfaced by this package, mapped from OS-level send/recv
// failures per spec.md §4.5.
const (
	ErrMessageTooLarge = "MESSAGE_TOO_LARGE"
	ErrSocketNotFound  = "SOCKET_NOT_FOUND"
	ErrPermissionDenied = "SOCKET_PERMISSION_DENIED"
)

// TransportError carries a stable code alongside the underlying OS error.
type TransportError struct {
	Code string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func mapSendError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isErrno(err, syscall.EMSGSIZE):
		return &TransportError{Code: ErrMessageTooLarge, Err: err}
	case isErrno(err, syscall.ENOENT):
		return &TransportError{Code: ErrSocketNotFound, Err: err}
	case isErrno(err, syscall.EACCES):
		return &TransportError{Code: ErrPermissionDenied, Err: err}
	default:
		return err
	}
}

func isErrno(err error, target syscall.Errno) bool {
	var opErr *net.OpError
	if ok := asOpErr(err, &opErr); !ok {
		return errnoEquals(err, target)
	}
	return errnoEquals(opErr.Err, target)
}

func asOpErr(err error, target **net.OpError) bool {
	if opErr, ok := err.(*net.OpError); ok {
		*target = opErr
		return true
	}
	return false
}

func errnoEquals(err error, target syscall.Errno) bool {
	for {
		if errno, ok := err.(syscall.Errno); ok {
			return errno == target
		}
		unwrappable, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrappable.Unwrap()
		if err == nil {
			return false
		}
	}
}

// Send transmits buf to the Unix datagram socket bound at path: one
// fresh socket, one send, one close.
func Send(path string, buf []byte) error {
	if len(buf) > MaxDatagramSize {
		return &TransportError{Code: ErrMessageTooLarge, Err: fmt.Errorf("payload %d bytes exceeds limit %d", len(buf), MaxDatagramSize)}
	}
	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return mapSendError(err)
	}
	defer conn.Close()
	if _, err := conn.Write(buf); err != nil {
		return mapSendError(err)
	}
	return nil
}

// ReplySocket is an ephemeral, scoped Unix datagram socket bound to
// receive exactly one reply. It guarantees unlink-on-every-exit.
type ReplySocket struct {
	Path string
	conn *net.UnixConn
}

// NewEphemeralPath generates a collision-resistant reply-socket path
// under ReplySocketDir, mixing the process id, a wall-clock timestamp,
// and a crypto/rand nonce hashed through xxhash to keep the name short
// and within the 108-byte socket path budget.
func NewEphemeralPath() (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, "generate reply socket nonce")
	}
	mix := fmt.Sprintf("%d-%d-%s", os.Getpid(), time.Now().UnixNano(), hex.EncodeToString(nonce))
	sum := xxhash.Sum64String(mix)
	return fmt.Sprintf("%s/janus_resp_%d_%d_%x.sock", ReplySocketDir, os.Getpid(), time.Now().UnixNano()%1_000_000, sum), nil
}

// Bind creates and binds a fresh reply socket at a freshly generated
// ephemeral path.
func Bind() (*ReplySocket, error) {
	path, err := NewEphemeralPath()
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, mapSendError(err)
	}
	return &ReplySocket{Path: path, conn: conn}, nil
}

// ReceiveOne waits for exactly one datagram, honoring deadline, and
// returns its payload.
func (r *ReplySocket) ReceiveOne(deadline time.Time) ([]byte, error) {
	if err := r.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	buf := make([]byte, MaxDatagramSize)
	n, err := r.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Close closes and unlinks the reply socket. Safe to call multiple times.
func (r *ReplySocket) Close() error {
	var err error
	if r.conn != nil {
		err = r.conn.Close()
		r.conn = nil
	}
	_ = os.Remove(r.Path)
	return err
}

// ServerSocket is the long-lived socket the server binds to its
// configured path.
type ServerSocket struct {
	Path string
	conn *net.UnixConn
}

// BindServer binds a datagram socket to path, optionally unlinking a
// stale file there first when cleanupOnStart is set.
func BindServer(path string, cleanupOnStart bool) (*ServerSocket, error) {
	if cleanupOnStart {
		_ = os.Remove(path)
	}
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, mapSendError(err)
	}
	return &ServerSocket{Path: path, conn: conn}, nil
}

// Receive blocks for the next datagram on the server socket.
func (s *ServerSocket) Receive() ([]byte, error) {
	buf := make([]byte, MaxDatagramSize)
	n, err := s.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Close closes the server socket, optionally unlinking the bound path.
func (s *ServerSocket) Close(cleanupOnShutdown bool) error {
	var err error
	if s.conn != nil {
		err = s.conn.Close()
		s.conn = nil
	}
	if cleanupOnShutdown {
		_ = os.Remove(s.Path)
	}
	return err
}
