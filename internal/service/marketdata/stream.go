package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"SigForge/internal/domain/models"
	applogger "SigForge/pkg/logger"
)

// Stream is a WebSocket client for the upstream market data feed. It
// subscribes to the configured assets and forwards snapshot frames.
type Stream struct {
	url            string
	assets         []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *applogger.Logger

	// mu guards conn and connected; Connect/Close race with the ping
	// and read goroutines.
	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

func NewStream(url string, assets []string, reconnectDelay, pingInterval time.Duration, log *applogger.Logger) *Stream {
	return &Stream{
		url:            url,
		assets:         assets,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
	}
}

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("gateway connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	s.log.Info("gateway connected", applogger.String("url", s.url))
	return nil
}

// current returns the connection under the lock, nil when disconnected.
func (s *Stream) current() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	return s.conn
}

// Subscribe subscribes to the configured assets.
func (s *Stream) Subscribe(ctx context.Context) error {
	conn := s.current()
	if conn == nil {
		return fmt.Errorf("gateway not connected")
	}
	for _, a := range s.assets {
		msg := map[string]string{"type": "subscribe", "asset": a}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", a, err)
		}
	}
	s.log.Info("gateway subscribed", applogger.Strings("assets", s.assets))
	return nil
}

type wsTick struct {
	Asset      string             `json:"asset"`
	Price      float64            `json:"price"`
	Indicators map[string]float64 `json:"indicators"`
	T          int64              `json:"t"` // ms
}

type wsFrame struct {
	Type string   `json:"type"`
	Data []wsTick `json:"data"`
}

// Read streams snapshots and errors until the context is cancelled or
// the connection drops.
func (s *Stream) Read(ctx context.Context) (<-chan *models.Snapshot, <-chan error) {
	snaps := make(chan *models.Snapshot, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if conn := s.current(); conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(snaps)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				conn := s.current()
				if conn == nil {
					errs <- fmt.Errorf("gateway conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("gateway read: %w", err)
					return
				}
				var frame wsFrame
				if err := json.Unmarshal(b, &frame); err != nil {
					// ignore non-data frames
					continue
				}
				if frame.Type != "snapshot" {
					continue
				}
				for _, d := range frame.Data {
					snap := &models.Snapshot{
						Asset:      d.Asset,
						Price:      d.Price,
						Indicators: d.Indicators,
						At:         time.UnixMilli(d.T),
					}
					select {
					case snaps <- snap:
					default:
						// drop on backpressure; the table only needs the latest
					}
				}
			}
		}
	}()

	return snaps, errs
}

// Reconnect closes and reconnects after the configured delay.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	time.Sleep(s.reconnectDelay)
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close closes the connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.connected = false
	s.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Runner pumps the stream into the table and reconnects on failure.
type Runner struct {
	stream *Stream
	table  *Table
	log    *applogger.Logger
}

func NewRunner(stream *Stream, table *Table, log *applogger.Logger) *Runner {
	return &Runner{stream: stream, table: table, log: log}
}

// Run blocks until the context is cancelled.
func (r *Runner) Run(ctx context.Context) {
	for {
		if err := r.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Error("gateway connect failed", applogger.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.stream.reconnectDelay):
			}
			continue
		}

		snaps, errs := r.stream.Read(ctx)
	pump:
		for {
			select {
			case <-ctx.Done():
				_ = r.stream.Close()
				return
			case snap, ok := <-snaps:
				if !ok {
					break pump
				}
				r.table.Update(snap)
			case err, ok := <-errs:
				if ok && err != nil {
					r.log.Warn("gateway stream error", applogger.Error(err))
				}
				break pump
			}
		}
		_ = r.stream.Close()
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.stream.reconnectDelay):
		}
	}
}

func (r *Runner) connect(ctx context.Context) error {
	if err := r.stream.Connect(ctx); err != nil {
		return err
	}
	return r.stream.Subscribe(ctx)
}
