// Package camera wraps the local capture device behind the recognition
// loop's Source interface using OpenCV.
package camera

import (
	"fmt"

	"github.com/matheuscascao/attendance-registry/config"
	"github.com/matheuscascao/attendance-registry/internal/recognition"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Frame wraps a gocv.Mat as a recognition.Frame.
type Frame struct {
	mat gocv.Mat
}

// Mat exposes the underlying matrix for rendering.
func (f *Frame) Mat() *gocv.Mat {
	return &f.mat
}

// Clone returns an independent copy of the frame.
func (f *Frame) Clone() recognition.Frame {
	return &Frame{mat: f.mat.Clone()}
}

// EncodeJPEG encodes the frame to a JPEG byte buffer.
func (f *Frame) EncodeJPEG() ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, f.mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	// The native buffer is released on Close, so copy out.
	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}

// Close releases the frame's native memory.
func (f *Frame) Close() {
	f.mat.Close()
}

// Device is a local camera opened by index.
type Device struct {
	cfg     config.CameraConfig
	capture *gocv.VideoCapture
}

// NewDevice creates an unopened device for the configured index.
func NewDevice(cfg config.CameraConfig) *Device {
	return &Device{cfg: cfg}
}

// Open acquires the capture device and configures the reduced capture
// resolution for throughput.
func (d *Device) Open() error {
	capture, err := gocv.OpenVideoCapture(d.cfg.DeviceIndex)
	if err != nil {
		return fmt.Errorf("could not open camera %d: %w", d.cfg.DeviceIndex, err)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(d.cfg.FrameWidth))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(d.cfg.FrameHeight))

	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("camera %d is not opened", d.cfg.DeviceIndex)
	}

	d.capture = capture
	log.Infof("Camera %d started at %dx%d", d.cfg.DeviceIndex, d.cfg.FrameWidth, d.cfg.FrameHeight)
	return nil
}

// Grab captures one frame. The caller owns the returned frame.
func (d *Device) Grab() (recognition.Frame, error) {
	if d.capture == nil {
		return nil, fmt.Errorf("camera %d is not open", d.cfg.DeviceIndex)
	}

	mat := gocv.NewMat()
	if ok := d.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("failed to read frame from camera %d", d.cfg.DeviceIndex)
	}

	return &Frame{mat: mat}, nil
}

// Close releases the capture device. Idempotent.
func (d *Device) Close() error {
	if d.capture == nil {
		return nil
	}
	err := d.capture.Close()
	d.capture = nil
	if err != nil {
		return fmt.Errorf("failed to release camera %d: %w", d.cfg.DeviceIndex, err)
	}
	log.Infof("Camera %d released", d.cfg.DeviceIndex)
	return nil
}
