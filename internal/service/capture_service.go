package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/thebookish/proofsnap/internal/config"
	"github.com/thebookish/proofsnap/internal/editor"
	"github.com/thebookish/proofsnap/internal/fingerprint"
	"github.com/thebookish/proofsnap/internal/ids"
)

// Capture failure classes. Each maps to a distinct user-facing message; none
// is retried automatically.
var (
	ErrCaptureNotFound    = errors.New("capture session not found")
	ErrFrameTooLarge      = errors.New("capture frame exceeds size limit")
	ErrFrameDecode        = errors.New("capture frame could not be decoded")
	ErrNoFrame            = errors.New("no capture frame provided")
	ErrCaptureInProgress  = errors.New("capture session already finalized")
	ErrSelectionNotChosen = errors.New("selection mode requires a committed selection")
)

type CaptureMode string

const (
	CaptureModeFull      CaptureMode = "full"
	CaptureModeSelection CaptureMode = "selection"
)

// CaptureSession holds a snapshotted frame and its editing state. The live
// stream is the client's concern and is released as soon as the frame is
// posted; from then on the session owns only the raster.
type CaptureSession struct {
	ID        string
	OwnerID   string
	CreatedAt time.Time

	mu     sync.Mutex
	frame  *image.NRGBA
	editor *editor.Session
	done   bool
}

// CaptureService manages in-flight capture sessions and runs the finalize
// step: blur, then annotations in creation order, then optional crop, then
// PNG encoding and hand-off to the upload pipeline.
type CaptureService struct {
	upload *UploadService
	cfg    config.CaptureConfig
	log    zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*CaptureSession
}

func NewCaptureService(upload *UploadService, cfg config.CaptureConfig, log zerolog.Logger) *CaptureService {
	return &CaptureService{
		upload:   upload,
		cfg:      cfg,
		log:      log,
		sessions: make(map[string]*CaptureSession),
	}
}

// Open decodes a posted frame at the stream's native resolution and starts
// an editing session over it. Decode failure is the stream/canvas failure
// class.
func (s *CaptureService) Open(ownerID string, frameData []byte, displayW, displayH float64) (*CaptureSession, error) {
	if ownerID == "" {
		return nil, ErrNotAuthenticated
	}
	if len(frameData) == 0 {
		return nil, ErrNoFrame
	}
	if s.cfg.MaxFrameSize > 0 && int64(len(frameData)) > s.cfg.MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	decoded, err := imaging.Decode(bytes.NewReader(frameData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameDecode, err)
	}
	frame := imaging.Clone(decoded)

	bounds := frame.Bounds()
	if displayW <= 0 || displayH <= 0 {
		displayW = float64(bounds.Dx())
		displayH = float64(bounds.Dy())
	}

	ed, err := editor.NewSession(displayW, displayH, float64(bounds.Dx()), float64(bounds.Dy()))
	if err != nil {
		return nil, err
	}

	sess := &CaptureSession{
		ID:        ids.New(),
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
		frame:     frame,
		editor:    ed,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess, nil
}

func (s *CaptureService) get(sessionID, ownerID string) (*CaptureSession, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok || sess.OwnerID != ownerID {
		return nil, ErrCaptureNotFound
	}
	return sess, nil
}

// GestureInput is one pointer interaction: down at the first point, sampled
// through the middle points, up at the last. Text has no drag phase and
// carries its content instead.
type GestureInput struct {
	Tool        editor.Tool
	Color       string
	StrokeWidth float64
	Points      []editor.Point
	Text        string
}

func (s *CaptureService) Gesture(sessionID, ownerID string, input GestureInput) error {
	sess, err := s.get(sessionID, ownerID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.done {
		return ErrCaptureInProgress
	}

	ed := sess.editor
	if err := ed.SetTool(input.Tool); err != nil {
		return err
	}
	if input.Color != "" {
		c, err := editor.ParseHexColor(input.Color)
		if err != nil {
			return err
		}
		ed.SetColor(c)
	}
	if input.StrokeWidth > 0 {
		ed.SetStrokeWidth(input.StrokeWidth)
	}

	if input.Tool == editor.ToolText {
		if len(input.Points) == 0 {
			return editor.ErrNotDrawing
		}
		return ed.AddText(input.Points[0], input.Text)
	}

	if len(input.Points) < 2 {
		return editor.ErrNotDrawing
	}
	if err := ed.Begin(input.Points[0]); err != nil {
		return err
	}
	for _, p := range input.Points[1 : len(input.Points)-1] {
		if err := ed.Move(p); err != nil {
			return err
		}
	}
	return ed.End(input.Points[len(input.Points)-1])
}

type FinalizeInput struct {
	Mode    CaptureMode
	Project string
	RawTags string
	Client  fingerprint.ClientContext
}

// Finalize burns the edits into the frame and hands the PNG to the upload
// pipeline. Blur strictly precedes annotation burn-in, which strictly
// precedes the optional crop. The session is removed on success.
func (s *CaptureService) Finalize(ctx context.Context, sessionID, ownerID string, input FinalizeInput) (UploadResult, error) {
	sess, err := s.get(sessionID, ownerID)
	if err != nil {
		return UploadResult{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.done {
		return UploadResult{}, ErrCaptureInProgress
	}

	ed := sess.editor
	img := imaging.Clone(sess.frame)

	editor.ApplyBlur(img, ed.BlurRegions())
	if err := editor.BurnIn(img, ed.Annotations()); err != nil {
		return UploadResult{}, err
	}

	cropped := false
	if input.Mode == CaptureModeSelection {
		sel := ed.Selection()
		if sel == nil {
			return UploadResult{}, ErrSelectionNotChosen
		}
		img = editor.CropSelection(img, *sel)
		cropped = true
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return UploadResult{}, fmt.Errorf("encode capture: %w", err)
	}

	project := input.Project
	if strings.TrimSpace(project) == "" {
		project = "Screen Capture"
	}

	result, err := s.upload.Upload(ctx, UploadInput{
		OwnerID:  ownerID,
		Data:     buf.Bytes(),
		Filename: fmt.Sprintf("screen-capture-%d.png", time.Now().UnixMilli()),
		Project:  project,
		RawTags:  captureTags(input.RawTags, len(ed.BlurRegions()) > 0, len(ed.Annotations()) > 0, cropped),
		Client:   input.Client,
	})
	if err != nil {
		return UploadResult{}, err
	}

	sess.done = true
	sess.frame = nil
	s.remove(sess.ID)
	return result, nil
}

// Cancel discards a session and all accumulated region/annotation state. No
// compensating server-side action is needed because nothing was uploaded.
func (s *CaptureService) Cancel(sessionID, ownerID string) error {
	sess, err := s.get(sessionID, ownerID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.frame = nil
	sess.editor.Reset()
	sess.done = true
	sess.mu.Unlock()
	s.remove(sessionID)
	return nil
}

func (s *CaptureService) remove(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// SweepExpired drops sessions older than the configured TTL and returns the
// number removed.
func (s *CaptureService) SweepExpired() int {
	cutoff := time.Now().Add(-s.cfg.SessionTTL)
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.CreatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("expired capture sessions swept")
	}
	return removed
}

func captureTags(raw string, blurred, annotated, cropped bool) string {
	tags := []string{"screen-capture", "live-capture"}
	if blurred {
		tags = append(tags, "blurred")
	}
	if annotated {
		tags = append(tags, "annotated")
	}
	if cropped {
		tags = append(tags, "cropped")
	} else {
		tags = append(tags, "full-screen")
	}
	synth := strings.Join(tags, ", ")
	if strings.TrimSpace(raw) == "" {
		return synth
	}
	return raw + ", " + synth
}
