// Package webrtc pushes dashboard frames to browsers over WebRTC data
// channels.
package webrtc

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"

	"github.com/aether-core/dashboard/internal/logger"
	"github.com/aether-core/dashboard/pkg/types"
)

const (
	// ChannelLabel is the data channel the browser opens for frames.
	ChannelLabel = "frames"
	// ChunkSize bounds a single data channel message.
	ChunkSize = 16 * 1024
	// clientBuffer is the number of frames queued per client.
	clientBuffer = 2
)

// ErrTooManyClients is returned when the client limit is reached.
var ErrTooManyClients = errors.New("maximum clients reached")

// frameHeader precedes the binary chunks of each frame.
type frameHeader struct {
	Number uint64 `json:"n"`
	Size   int    `json:"size"`
	Width  int    `json:"w"`
	Height int    `json:"h"`
}

// Client represents a connected WebRTC client
type Client struct {
	id            string
	peerConn      *webrtc.PeerConnection
	frameChan     chan types.Frame
	closeChan     chan struct{}
	closeOnce     sync.Once
	framesSent    atomic.Uint64
	framesDropped atomic.Uint64
}

// Server manages WebRTC connections
type Server struct {
	clients    map[string]*Client
	clientsMu  sync.RWMutex
	config     webrtc.Configuration
	maxClients int
	api        *webrtc.API

	// OnClientsChanged, when set, is called with the client count after a
	// client joins or leaves.
	OnClientsChanged func(int)
}

// NewServer creates a new WebRTC server
func NewServer(stunServers []string, maxClients int) *Server {
	iceServers := make([]webrtc.ICEServer, 0, len(stunServers))
	for _, url := range stunServers {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{url}})
	}
	if len(iceServers) == 0 {
		iceServers = []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}
	}
	if maxClients <= 0 {
		maxClients = 4
	}

	settingsEngine := webrtc.SettingEngine{}
	settingsEngine.SetDTLSRetransmissionInterval(2 * time.Second)
	settingsEngine.SetNetworkTypes([]webrtc.NetworkType{
		webrtc.NetworkTypeUDP4,
		webrtc.NetworkTypeUDP6,
	})

	return &Server{
		clients:    make(map[string]*Client),
		config:     webrtc.Configuration{ICEServers: iceServers},
		maxClients: maxClients,
		api:        webrtc.NewAPI(webrtc.WithSettingEngine(settingsEngine)),
	}
}

// HandleOffer handles a WebRTC offer and returns an answer. The offer must
// carry a data channel labelled ChannelLabel; frames flow once it opens.
func (s *Server) HandleOffer(offerJSON []byte) ([]byte, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(offerJSON, &offer); err != nil {
		return nil, fmt.Errorf("failed to parse offer: %w", err)
	}
	if offer.Type != webrtc.SDPTypeOffer || offer.SDP == "" {
		return nil, fmt.Errorf("failed to parse offer: not an SDP offer")
	}

	if n := s.ClientCount(); n >= s.maxClients {
		return nil, fmt.Errorf("%w (%d)", ErrTooManyClients, s.maxClients)
	}

	peerConn, err := s.api.NewPeerConnection(s.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	client := &Client{
		id:        uuid.NewString(),
		peerConn:  peerConn,
		frameChan: make(chan types.Frame, clientBuffer),
		closeChan: make(chan struct{}),
	}

	peerConn.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != ChannelLabel {
			logger.Debug("WebRTC", "Client %s opened unknown channel %q", client.id, dc.Label())
			return
		}
		dc.OnOpen(func() {
			logger.Info("WebRTC", "Client %s frame channel open", client.id)
			go s.sendFrames(client, dc)
		})
	})

	peerConn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Debug("WebRTC", "Client %s connection state: %s", client.id, state.String())
		if state == webrtc.PeerConnectionStateDisconnected ||
			state == webrtc.PeerConnectionStateFailed ||
			state == webrtc.PeerConnectionStateClosed {
			s.RemoveClient(client.id)
		}
	})

	if err := peerConn.SetRemoteDescription(offer); err != nil {
		peerConn.Close()
		return nil, fmt.Errorf("failed to set remote description: %w", err)
	}

	answer, err := peerConn.CreateAnswer(nil)
	if err != nil {
		peerConn.Close()
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(peerConn)
	if err := peerConn.SetLocalDescription(answer); err != nil {
		peerConn.Close()
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}
	<-gatherComplete

	s.clientsMu.Lock()
	s.clients[client.id] = client
	count := len(s.clients)
	s.clientsMu.Unlock()
	s.notify(count)

	logger.Info("WebRTC", "Client %s connected", client.id)

	localDesc := peerConn.LocalDescription()
	if localDesc == nil {
		s.RemoveClient(client.id)
		return nil, fmt.Errorf("no local description available")
	}
	answerJSON, err := json.Marshal(localDesc)
	if err != nil {
		s.RemoveClient(client.id)
		return nil, fmt.Errorf("failed to marshal answer: %w", err)
	}
	return answerJSON, nil
}

// PublishFrame queues f for every connected client, dropping it for clients
// that are behind.
func (s *Server) PublishFrame(f types.Frame) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, client := range s.clients {
		select {
		case client.frameChan <- f:
		default:
			client.framesDropped.Add(1)
		}
	}
}

// PublishStatus is a no-op; statuses travel over SSE.
func (s *Server) PublishStatus(types.Status) {}

func (s *Server) sendFrames(client *Client, dc *webrtc.DataChannel) {
	for {
		select {
		case <-client.closeChan:
			return
		case frame := <-client.frameChan:
			if err := sendFrame(dc, frame); err != nil {
				logger.Warn("WebRTC", "Error sending frame to client %s: %v", client.id, err)
				s.RemoveClient(client.id)
				return
			}
			client.framesSent.Add(1)
		}
	}
}

func sendFrame(dc *webrtc.DataChannel, f types.Frame) error {
	header, err := json.Marshal(frameHeader{Number: f.Number, Size: len(f.JPEG), Width: f.Width, Height: f.Height})
	if err != nil {
		return err
	}
	if err := dc.SendText(string(header)); err != nil {
		return err
	}
	for _, chunk := range chunks(f.JPEG, ChunkSize) {
		if err := dc.Send(chunk); err != nil {
			return err
		}
	}
	return nil
}

// chunks splits data into slices of at most size bytes.
func chunks(data []byte, size int) [][]byte {
	if size <= 0 || len(data) == 0 {
		return nil
	}
	out := make([][]byte, 0, (len(data)+size-1)/size)
	for len(data) > size {
		out = append(out, data[:size])
		data = data[size:]
	}
	return append(out, data)
}

// RemoveClient removes a client by ID
func (s *Server) RemoveClient(clientID string) {
	s.clientsMu.Lock()
	client, exists := s.clients[clientID]
	if exists {
		delete(s.clients, clientID)
	}
	count := len(s.clients)
	s.clientsMu.Unlock()

	if !exists {
		return
	}
	client.closeOnce.Do(func() {
		close(client.closeChan)
		client.peerConn.Close()
	})
	s.notify(count)

	logger.Info("WebRTC", "Client %s disconnected (sent: %d, dropped: %d)",
		clientID, client.framesSent.Load(), client.framesDropped.Load())
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// ClientStats returns stats for all clients
func (s *Server) ClientStats() map[string]map[string]uint64 {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	stats := make(map[string]map[string]uint64, len(s.clients))
	for id, client := range s.clients {
		stats[id] = map[string]uint64{
			"frames_sent":    client.framesSent.Load(),
			"frames_dropped": client.framesDropped.Load(),
		}
	}
	return stats
}

// Close closes all client connections
func (s *Server) Close() error {
	s.clientsMu.RLock()
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	s.clientsMu.RUnlock()

	for _, id := range ids {
		s.RemoveClient(id)
	}
	return nil
}

func (s *Server) notify(count int) {
	if s.OnClientsChanged != nil {
		s.OnClientsChanged(count)
	}
}
