package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"gocv.io/x/gocv"

	"camwatch/internal/model"
)

const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// CaptureDecoder reads a network stream (RTSP, HTTP MJPEG, file) with OpenCV
// and hands out JPEG encoded frames. A failed read drops the capture; the next
// call reopens it after an exponential backoff.
type CaptureDecoder struct {
	url   string
	clock clock.Clock

	mu       sync.Mutex
	capture  *gocv.VideoCapture
	img      gocv.Mat
	failures int
	closed   bool
}

func NewCaptureDecoder(url string, clk clock.Clock) *CaptureDecoder {
	return &CaptureDecoder{url: url, clock: clk, img: gocv.NewMat()}
}

// Next blocks until a frame was read or the capture failed.
func (d *CaptureDecoder) Next(ctx context.Context) (model.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return model.Frame{}, errors.New("decoder closed")
	}

	if d.capture == nil {
		if err := d.wait(ctx); err != nil {
			return model.Frame{}, err
		}
		capture, err := gocv.OpenVideoCapture(d.url)
		if err != nil || !capture.IsOpened() {
			if capture != nil {
				capture.Close()
			}
			d.failures++
			return model.Frame{}, fmt.Errorf("failed to open %s: %v", d.url, err)
		}
		d.capture = capture
	}

	if ok := d.capture.Read(&d.img); !ok || d.img.Empty() {
		d.capture.Close()
		d.capture = nil
		d.failures++
		return model.Frame{}, fmt.Errorf("failed to read frame from %s", d.url)
	}
	d.failures = 0

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, d.img)
	if err != nil {
		return model.Frame{}, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()
	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())

	return model.Frame{
		Timestamp: d.clock.Now(),
		Width:     d.img.Cols(),
		Height:    d.img.Rows(),
		Data:      data,
	}, nil
}

// wait sleeps before a reconnect attempt, doubling the delay per failure.
func (d *CaptureDecoder) wait(ctx context.Context) error {
	if d.failures == 0 {
		return nil
	}
	delay := reconnectBaseDelay << min(d.failures-1, 5)
	if delay > reconnectMaxDelay {
		delay = reconnectMaxDelay
	}
	timer := d.clock.Timer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close releases the capture device.
func (d *CaptureDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	var err error
	if d.capture != nil {
		err = d.capture.Close()
		d.capture = nil
	}
	if cerr := d.img.Close(); err == nil {
		err = cerr
	}
	return err
}
