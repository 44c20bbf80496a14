// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"

	"github.com/Thermoquad/sportscope/pkg/sport"
)

// Hub fans decoded events out to any number of subscribers. Slow
// subscribers drop events rather than stalling the decoder.
type Hub struct {
	broadcast  chan sport.EventRecord
	register   chan chan sport.EventRecord
	unregister chan chan sport.EventRecord
	clients    map[chan sport.EventRecord]struct{}
	clientBuf  int
	done       chan struct{}
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithBroadcastBuffer sets the publish queue depth
func WithBroadcastBuffer(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.broadcast = make(chan sport.EventRecord, size)
		}
	}
}

// WithClientBuffer sets the default per-subscriber queue depth
func WithClientBuffer(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.clientBuf = size
		}
	}
}

// NewHub creates a hub. Run must be started before subscribing.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		broadcast:  make(chan sport.EventRecord, 256),
		register:   make(chan chan sport.EventRecord),
		unregister: make(chan chan sport.EventRecord),
		clients:    make(map[chan sport.EventRecord]struct{}),
		clientBuf:  100,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run delivers published events until ctx is done, then closes every
// subscriber channel
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for ch := range h.clients {
				close(ch)
			}
			return
		case ch := <-h.register:
			h.clients[ch] = struct{}{}
		case ch := <-h.unregister:
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
		case rec := <-h.broadcast:
			for ch := range h.clients {
				select {
				case ch <- rec:
				default:
				}
			}
		}
	}
}

// Subscribe registers a subscriber with the default buffer
func (h *Hub) Subscribe() chan sport.EventRecord {
	return h.SubscribeWithBuffer(h.clientBuf)
}

// SubscribeWithBuffer registers a subscriber. The returned channel is
// closed when the hub stops or the subscriber unsubscribes.
func (h *Hub) SubscribeWithBuffer(size int) chan sport.EventRecord {
	if size <= 0 {
		size = h.clientBuf
	}
	ch := make(chan sport.EventRecord, size)
	select {
	case h.register <- ch:
	case <-h.done:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel
func (h *Hub) Unsubscribe(ch chan sport.EventRecord) {
	select {
	case h.unregister <- ch:
	case <-h.done:
	}
}

// Publish queues an event for delivery
func (h *Hub) Publish(rec sport.EventRecord) {
	select {
	case h.broadcast <- rec:
	case <-h.done:
	}
}

// OnEvent implements sport.Sink, stamping each event with the current time
func (h *Hub) OnEvent(e sport.Event) {
	h.Publish(sport.NewEventRecord(e, timeNow()))
}
