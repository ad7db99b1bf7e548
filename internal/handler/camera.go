package handler

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/jpeg"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"camwatch/internal/config"
	"camwatch/internal/logger"
	"camwatch/internal/model"
	"camwatch/internal/service/ingest"
)

const cameraReadTimeout = 60 * time.Second

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// FramePublisher accepts frames pushed by cameras.
type FramePublisher interface {
	Publish(streamID string, frame model.Frame) (uint64, error)
}

// frameFromJPEG wraps a pushed JPEG. Dimensions come from the JPEG header so
// stored regions can be related to the frame size.
func frameFromJPEG(data []byte) model.Frame {
	frame := model.Frame{Data: data}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		frame.Width, frame.Height = cfg.Width, cfg.Height
	}
	return frame
}

const (
	// maxFrameSize bounds the bytes buffered for one frame. A camera that
	// never sends a JPEG footer loses its partial frame at this size.
	maxFrameSize = 4 << 20
	// maxWarnedSources bounds the set of unconfigured senders logged once.
	maxWarnedSources = 256
)

// frameAssembler joins the UDP packets of one camera into JPEG frames.
type frameAssembler struct {
	buf bytes.Buffer
	max int
}

func newFrameAssembler(limit int) *frameAssembler {
	return &frameAssembler{max: limit}
}

// Add appends a packet and returns the frame it completes, if any. A packet
// starting with a JPEG header discards what was buffered before it. A packet
// that would grow the frame past max drops the partial frame.
func (a *frameAssembler) Add(packet []byte) ([]byte, bool) {
	if bytes.HasPrefix(packet, jpegHeader) {
		a.buf.Reset()
	}
	if a.buf.Len()+len(packet) > a.max {
		a.buf.Reset()
		return nil, false
	}
	a.buf.Write(packet)

	if !bytes.HasSuffix(packet, jpegFooter) {
		return nil, false
	}
	frame := bytes.Clone(a.buf.Bytes())
	a.buf.Reset()
	return frame, true
}

// udpReceiver routes packets to per-camera assemblers. Only addresses listed
// in CAMERA_NAMES get an assembler.
type udpReceiver struct {
	publisher  FramePublisher
	names      map[string]string
	logger     *logger.Logger
	assemblers map[string]*frameAssembler
	warned     map[string]bool
}

func newUDPReceiver(publisher FramePublisher, names map[string]string, logger *logger.Logger) *udpReceiver {
	return &udpReceiver{
		publisher:  publisher,
		names:      names,
		logger:     logger,
		assemblers: make(map[string]*frameAssembler),
		warned:     make(map[string]bool),
	}
}

func (u *udpReceiver) handle(ip string, packet []byte) {
	streamID, ok := u.names[ip]
	if !ok {
		u.warnOnce(ip, "Dropping packets from %s: address not in CAMERA_NAMES", ip)
		return
	}

	asm, ok := u.assemblers[streamID]
	if !ok {
		asm = newFrameAssembler(maxFrameSize)
		u.assemblers[streamID] = asm
	}
	frame, ok := asm.Add(packet)
	if !ok {
		return
	}

	if _, err := u.publisher.Publish(streamID, frameFromJPEG(frame)); err != nil {
		if errors.Is(err, ingest.ErrUnknownStream) {
			u.warnOnce(ip, "Dropping frames from %s: stream %q is not configured", ip, streamID)
		}
	}
}

func (u *udpReceiver) warnOnce(ip, format string, args ...any) {
	if u.warned[ip] || len(u.warned) >= maxWarnedSources {
		return
	}
	u.warned[ip] = true
	u.logger.Warning(format, args...)
}

// UDPCameraHandler listens for UDP packets from cameras, reassembles JPEG
// frames and publishes complete frames to the stream of the sending camera.
// It returns when ctx is done.
func UDPCameraHandler(ctx context.Context, publisher FramePublisher, cfg *config.Config, logger *logger.Logger) error {
	port := strconv.Itoa(cfg.CamerasPort)

	addr, err := net.ResolveUDPAddr("udp", ":"+port)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	logger.Info("UDP Camera handler started on port %s", port)
	buffer := make([]byte, 65535)
	receiver := newUDPReceiver(publisher, cfg.CameraNames, logger)

	for {
		n, remoteAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("Error reading UDP packet: %v", err)
			continue
		}
		receiver.handle(remoteAddr.IP.String(), buffer[:n])
	}
}

// CameraWebsocketHandler receives JPEG frames pushed over a websocket by the
// camera named in the "id" query parameter.
func CameraWebsocketHandler(publisher FramePublisher, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		camera := r.URL.Query().Get("id")
		if camera == "" {
			http.Error(w, "Camera id required", http.StatusBadRequest)
			return
		}

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()
		connection.SetReadDeadline(time.Now().Add(cameraReadTimeout))
		connection.SetPongHandler(func(string) error {
			connection.SetReadDeadline(time.Now().Add(cameraReadTimeout))
			return nil
		})

		logger.Info("Camera connected: %s", camera)

		for {
			messageType, msg, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Camera %s disconnected", camera)
				} else {
					logger.Warning("Camera %s disconnected: %v", camera, err)
				}
				return
			}
			connection.SetReadDeadline(time.Now().Add(cameraReadTimeout))
			if messageType != websocket.BinaryMessage {
				continue
			}

			if _, err := publisher.Publish(camera, frameFromJPEG(msg)); err != nil {
				logger.Warning("Rejected frame from %s: %v", camera, err)
				connection.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
					time.Now().Add(time.Second))
				return
			}
		}
	}
}
