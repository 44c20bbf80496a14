// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

const (
	passwordEnv      = "SPORT_PASSWORD"
	dialTimeout      = 10 * time.Second
	closeGracePeriod = time.Second
)

// Connection is a byte stream carrying S.Port telemetry. Reads return an
// error wrapping ErrConnectionClosed once the source is exhausted.
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// ErrConnectionClosed marks the end of a telemetry source. The wrapping error
// names the underlying cause.
var ErrConnectionClosed = errors.New("connection closed")

func closedBy(cause error) error {
	return fmt.Errorf("%w: %v", ErrConnectionClosed, cause)
}

// SerialConnection reads a receiver's S.Port output through a USB serial
// adapter
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
		return n, closedBy(err)
	}
	return n, err
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// WebSocketConnection streams the payload of binary messages as one
// continuous byte stream. Frames may span message boundaries.
type WebSocketConnection struct {
	conn    *websocket.Conn
	message io.Reader
	err     error
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for w.err == nil {
		if w.message == nil {
			messageType, r, err := w.conn.NextReader()
			if err != nil {
				w.err = closedBy(err)
				break
			}
			if messageType != websocket.BinaryMessage {
				continue
			}
			w.message = r
		}

		n, err := w.message.Read(p)
		switch {
		case errors.Is(err, io.EOF):
			w.message = nil
		case err != nil:
			w.message = nil
			w.err = closedBy(err)
		}
		if n > 0 {
			return n, nil
		}
	}
	return 0, w.err
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a normal closure before dropping the socket. Safe to call
// while a Read is blocked.
func (w *WebSocketConnection) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	return w.conn.Close()
}

// FileConnection replays a captured byte stream. Writes are discarded.
type FileConnection struct {
	file *os.File
}

func (f *FileConnection) Read(p []byte) (int, error) {
	n, err := f.file.Read(p)
	if errors.Is(err, io.EOF) {
		return n, closedBy(err)
	}
	return n, err
}

func (f *FileConnection) Write(p []byte) (int, error) {
	return len(p), nil
}

func (f *FileConnection) Close() error {
	return f.file.Close()
}

// TCPConnection reads a raw byte stream from a serial-to-TCP bridge
type TCPConnection struct {
	conn net.Conn
}

func (t *TCPConnection) Read(p []byte) (int, error) {
	n, err := t.conn.Read(p)
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, syscall.ECONNRESET) {
		return n, closedBy(err)
	}
	return n, err
}

func (t *TCPConnection) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

func (t *TCPConnection) Close() error {
	return t.conn.Close()
}

// OpenSerialConnection opens a serial port in 8N1 mode. Receivers emit
// S.Port at 57600 baud; the adapter is expected to handle line inversion.
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection dials a telemetry bridge. Credentials embedded in
// the URL are used when username is empty.
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	if u.User != nil {
		if username == "" {
			username = u.User.Username()
			password, _ = u.User.Password()
		}
		u.User = nil
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: dialTimeout,
	}
	if u.Scheme == "wss" && skipSSLVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	headers := http.Header{}
	if username != "" {
		headers.Set("Authorization", basicAuth(username, password))
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp == nil {
			return nil, fmt.Errorf("WebSocket connection to %s failed: %w", u.Redacted(), err)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("WebSocket connection to %s rejected (HTTP 401): check --username and %s", u.Redacted(), passwordEnv)
		}
		return nil, fmt.Errorf("WebSocket connection to %s failed (HTTP %d): %w", u.Redacted(), resp.StatusCode, err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// OpenTCPConnection connects to a raw TCP telemetry bridge
func OpenTCPConnection(addr string) (Connection, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("TCP connection to %s failed: %w", addr, err)
	}
	return &TCPConnection{conn: conn}, nil
}

// OpenFileConnection opens a capture file for replay
func OpenFileConnection(path string) (Connection, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture %s: %w", path, err)
	}
	return &FileConnection{file: file}, nil
}

// GetPassword returns SPORT_PASSWORD when set, otherwise prompts on stderr.
// Piped stdin is read as a single line.
func GetPassword() (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	defer fmt.Fprintln(os.Stderr)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// OpenConnection opens the telemetry source selected by the connection flags
func OpenConnection() (Connection, string, error) {
	selected := 0
	for _, v := range []string{wsURL, tcpAddr, replayFile, portName} {
		if v != "" {
			selected++
		}
	}
	switch selected {
	case 0:
		return nil, "", fmt.Errorf("one of --port, --url, --tcp or --file must be specified")
	case 1:
	default:
		return nil, "", fmt.Errorf("only one of --port, --url, --tcp or --file may be specified")
	}

	var (
		conn Connection
		info string
		err  error
	)
	switch {
	case wsURL != "":
		password := ""
		if wsUsername != "" {
			if password, err = GetPassword(); err != nil {
				return nil, "", err
			}
		}
		conn, err = OpenWebSocketConnection(wsURL, wsUsername, password, wsNoSSLVerify)
		info = "WebSocket: " + redactURL(wsURL)
	case tcpAddr != "":
		conn, err = OpenTCPConnection(tcpAddr)
		info = "TCP: " + tcpAddr
	case replayFile != "":
		conn, err = OpenFileConnection(replayFile)
		info = "File: " + replayFile
	default:
		conn, err = OpenSerialConnection(portName, baudRate)
		info = fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate)
	}
	if err != nil {
		return nil, "", err
	}
	return conn, info, nil
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
