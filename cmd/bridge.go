// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Thermoquad/sportscope/pkg/sport"
	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	bridgeListen string
	bridgeJSON   bool
	bridgeMQTT   string
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Forward decoded telemetry over WebSocket and MQTT",
	Long: `Decode the telemetry stream and fan every event out to network clients.

WebSocket (--listen):
  Clients connect to ws://<listen>/events and receive one message per event.
  Messages are CBOR maps {0: kind, 1: value, 2: unix ms} sent as binary
  frames, or JSON objects {"kind", "value", "ts_ms"} sent as text frames
  with --json.

MQTT (--mqtt):
  Events are published as JSON to <prefix>/<KIND>, where the prefix is the
  broker URL path, e.g. mqtt://broker:1883/drone1 publishes drone1/VBAT.

Examples:
  sportscope bridge --port /dev/ttyUSB0 --listen :8080
  sportscope bridge --tcp 192.168.4.1:5760 --mqtt mqtt://localhost:1883/fc`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().StringVar(&bridgeListen, "listen", "", "Serve WebSocket events on this address (host:port)")
	bridgeCmd.Flags().BoolVar(&bridgeJSON, "json", false, "Send JSON text messages instead of CBOR")
	bridgeCmd.Flags().StringVar(&bridgeMQTT, "mqtt", "", "Publish events to this MQTT broker URL")
}

func runBridge(cmd *cobra.Command, args []string) error {
	if bridgeListen == "" && bridgeMQTT == "" {
		return fmt.Errorf("at least one of --listen or --mqtt must be specified")
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sportscope - Telemetry Bridge\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)

	hub := NewHub()
	g, ctx := errgroup.WithContext(cmd.Context())

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	if bridgeListen != "" {
		listener, err := net.Listen("tcp", bridgeListen)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", bridgeListen, err)
		}
		fmt.Fprintf(out, "WebSocket: ws://%s/events (%s)\n", listener.Addr(), encodingName(bridgeJSON))

		server := NewEventServer(hub, bridgeJSON)
		g.Go(func() error {
			return server.Serve(ctx, listener)
		})
	}

	if bridgeMQTT != "" {
		publisher, err := NewMQTTPublisher(bridgeMQTT)
		if err != nil {
			return err
		}
		defer publisher.Close()
		fmt.Fprintf(out, "MQTT: %s\n", bridgeMQTT)

		ch := hub.Subscribe()
		g.Go(func() error {
			publisher.Run(ctx, ch)
			return nil
		})
	}

	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	g.Go(func() error {
		processor := sport.NewProcessor(hub)
		err := readLoop(ctx, conn, func(data []byte) {
			processor.Write(data)
		})
		stopHub()
		if err == nil {
			// stop the servers once the source is exhausted
			err = errSourceClosed
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errSourceClosed) {
		return err
	}
	return nil
}

var errSourceClosed = errors.New("source closed")

func encodingName(asJSON bool) string {
	if asJSON {
		return "JSON"
	}
	return "CBOR"
}

// EventServer streams hub events to WebSocket clients on /events
type EventServer struct {
	hub      *Hub
	json     bool
	upgrader websocket.Upgrader
}

// NewEventServer creates a server publishing events from hub
func NewEventServer(hub *Hub, asJSON bool) *EventServer {
	return &EventServer{
		hub:  hub,
		json: asJSON,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}
}

// Handler returns the HTTP handler serving /events
func (s *EventServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	return mux
}

// Serve accepts connections on listener until ctx is done
func (s *EventServer) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// encode renders a record as a WebSocket message
func (s *EventServer) encode(rec sport.EventRecord) (int, []byte, error) {
	if s.json {
		data, err := json.Marshal(rec)
		return websocket.TextMessage, data, err
	}
	data, err := sport.MarshalEvent(rec)
	return websocket.BinaryMessage, data, err
}

func (s *EventServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.V(1).Infof("WebSocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	glog.Infof("Client %s connected", r.RemoteAddr)
	defer glog.Infof("Client %s disconnected", r.RemoteAddr)

	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	// clients never send data; reading detects disconnects
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case rec, ok := <-ch:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "source closed"),
					time.Now().Add(time.Second))
				return
			}
			messageType, data, err := s.encode(rec)
			if err != nil {
				glog.Errorf("Failed to encode event: %v", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(messageType, data); err != nil {
				return
			}
		}
	}
}
