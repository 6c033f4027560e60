// Package display renders the live camera feed with the transient
// recognition overlay in an OpenCV window.
package display

import (
	"fmt"
	"image"
	"image/color"

	"github.com/matheuscascao/attendance-registry/config"
	"github.com/matheuscascao/attendance-registry/internal/camera"
	"github.com/matheuscascao/attendance-registry/internal/recognition"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

var overlayColor = color.RGBA{G: 255}

// Window shows the live feed with an overlay border and text while a
// recent match exists.
type Window struct {
	window *gocv.Window
	title  string
}

// NewWindow opens the display window.
func NewWindow(cfg config.CameraConfig) *Window {
	return &Window{
		window: gocv.NewWindow(cfg.WindowTitle),
		title:  cfg.WindowTitle,
	}
}

// Show renders the frame. A non-empty banner draws a green border
// around the feed and the banner text in the top-left corner.
func (w *Window) Show(frame recognition.Frame, banner string) error {
	if w.window == nil {
		return fmt.Errorf("display window is closed")
	}
	cameraFrame, ok := frame.(*camera.Frame)
	if !ok {
		return fmt.Errorf("display requires camera frames, got %T", frame)
	}
	mat := cameraFrame.Mat()

	if banner != "" {
		size := mat.Size()
		if len(size) >= 2 {
			height, width := size[0], size[1]
			gocv.Rectangle(mat, image.Rect(0, 0, width, height), overlayColor, 2)
		}
		gocv.PutText(mat, banner, image.Pt(10, 30), gocv.FontHersheySimplex, 0.7, overlayColor, 2)
	}

	w.window.IMShow(*mat)
	w.window.WaitKey(1)
	return nil
}

// Close tears the window down. Idempotent.
func (w *Window) Close() error {
	if w.window == nil {
		return nil
	}
	err := w.window.Close()
	w.window = nil
	if err != nil {
		return fmt.Errorf("failed to close display window: %w", err)
	}
	log.Infof("Display window %q closed", w.title)
	return nil
}
