package ai

import (
	"errors"
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"camwatch/internal/logger"
	"camwatch/internal/model"
)

// minModelConfidence drops the model's noise floor. Per-class thresholds are
// applied later by the detection filter.
const minModelConfidence = 0.2

// ErrNetworkNotReady is returned by Infer when the model could not be loaded.
var ErrNetworkNotReady = errors.New("detection network not initialized")

// DetectorService runs an SSD MobileNet COCO network on JPEG frames. A
// DetectorService is not safe for concurrent use; create one per worker.
type DetectorService struct {
	net        gocv.Net
	ready      bool
	modelPath  string
	configPath string
	logger     *logger.Logger
}

// NewDetectorService loads the network. A missing or broken model is logged
// and every Infer call then fails with ErrNetworkNotReady.
func NewDetectorService(modelPath, configPath string, logger *logger.Logger) *DetectorService {
	service := &DetectorService{
		modelPath:  modelPath,
		configPath: configPath,
		logger:     logger,
	}

	if err := service.initializeNet(); err != nil {
		service.logger.Warning("Could not initialize detection network: %v", err)
	}
	return service
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}
	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.configPath)
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return fmt.Errorf("failed to set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return fmt.Errorf("failed to set target: %w", err)
	}

	s.net = net
	s.ready = true
	s.logger.Info("Detection network initialized successfully")
	return nil
}

// Infer decodes the frame and returns every object the network reports.
func (s *DetectorService) Infer(frame model.Frame) ([]model.Inference, error) {
	if !s.ready {
		return nil, ErrNetworkNotReady
	}

	mat, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, errors.New("decoded image is empty")
	}

	// SSD COCO input: 300x300, scaled to [-1,1], RGB.
	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	defer output.Close()

	cols, rows := float32(mat.Cols()), float32(mat.Rows())
	bounds := model.Region{Width: mat.Cols(), Height: mat.Rows()}

	// Rows of [batch_id, class_id, confidence, x1, y1, x2, y2], coordinates normalized.
	detections := output.Reshape(1, output.Total()/7)
	defer detections.Close()

	var results []model.Inference
	for i := 0; i < detections.Rows(); i++ {
		confidence := detections.GetFloatAt(i, 2)
		if confidence < minModelConfidence {
			continue
		}
		x1 := int(detections.GetFloatAt(i, 3) * cols)
		y1 := int(detections.GetFloatAt(i, 4) * rows)
		x2 := int(detections.GetFloatAt(i, 5) * cols)
		y2 := int(detections.GetFloatAt(i, 6) * rows)

		region := model.Region{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}.Intersect(bounds)
		if region.Area() == 0 {
			continue
		}
		results = append(results, model.Inference{
			Class:      ClassLabel(int(detections.GetFloatAt(i, 1))),
			Confidence: float64(confidence),
			Region:     region,
		})
	}

	s.logger.Debug("%s #%d: %d objects", frame.StreamID, frame.Seq, len(results))
	return results, nil
}

// Close releases the network.
func (s *DetectorService) Close() error {
	if !s.ready {
		return nil
	}
	s.ready = false
	return s.net.Close()
}
