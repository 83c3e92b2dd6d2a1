// Package session holds the state of one editing session: the uploaded
// image, the ordered text placements, selection and pending text, the
// click-to-place interaction state, render tokens and the history of
// generated results.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/text-behind-image/pkg/blend"
	"github.com/menta2k/text-behind-image/pkg/codec"
	"github.com/menta2k/text-behind-image/pkg/compositor"
	"github.com/menta2k/text-behind-image/pkg/cropper"
	"github.com/menta2k/text-behind-image/pkg/isolator"
	"github.com/menta2k/text-behind-image/pkg/types"
)

var (
	ErrNoImage          = errors.New("no image uploaded")
	ErrNoPlacements     = errors.New("no text placements")
	ErrStaleRender      = errors.New("render superseded by a newer one")
	ErrUnknownPlacement = errors.New("unknown placement")
	ErrClosed           = errors.New("session closed")
)

// Interaction is the click-to-place state of a session.
type Interaction int

const (
	// Idle means no placement is pending.
	Idle Interaction = iota
	// Armed means pending text waits for a click on the image.
	Armed
	// Placed means the last click created a placement. The next
	// interaction starts from Idle.
	Placed
)

func (i Interaction) String() string {
	switch i {
	case Armed:
		return "armed"
	case Placed:
		return "placed"
	default:
		return "idle"
	}
}

// Options wires a session to its collaborators. Isolator may be nil, in
// which case renders never blur the background.
type Options struct {
	Compositor  *compositor.Compositor
	Isolator    *isolator.Isolator
	Thumbnailer *cropper.Thumbnailer
	Logger      *slog.Logger
	// Now and NewID are overridable for deterministic tests.
	Now   func() time.Time
	NewID func() string
}

// Frame is the output of one render pass.
type Frame struct {
	Token uint64
	Image *image.NRGBA
}

// Session is safe for concurrent use. Renders run outside the lock and are
// discarded if a newer render, upload or Close happened meanwhile.
type Session struct {
	compositor *compositor.Compositor
	isolator   *isolator.Isolator
	thumbs     *cropper.Thumbnailer
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string

	mu          sync.Mutex
	img         image.Image
	imageRef    string
	placements  []types.TextPlacement
	state       types.RenderState
	interaction Interaction
	model       string
	history     []types.ProcessedResult
	last        *Frame
	latest      uint64
	epoch       uint64
	closed      bool
}

// New creates an empty session.
func New(opts Options) *Session {
	s := &Session{
		compositor: opts.Compositor,
		isolator:   opts.Isolator,
		thumbs:     opts.Thumbnailer,
		logger:     opts.Logger,
		now:        opts.Now,
		newID:      opts.NewID,
		model:      DefaultStrategy,
	}
	if s.compositor == nil {
		s.compositor = compositor.New()
	}
	if s.thumbs == nil {
		s.thumbs = cropper.New()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// SetImage replaces the session image. Placements, selection and pending
// text belong to the previous image and are cleared; in-flight renders
// are invalidated. ref is the original image reference recorded on
// history entries, typically a data URI. A nil img clears the image.
func (s *Session) SetImage(img image.Image, ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.img = img
	s.imageRef = ref
	s.placements = nil
	s.state.SelectedID = ""
	s.state.PendingText = ""
	s.interaction = Idle
	s.last = nil
}

// Image returns the current image, or nil.
func (s *Session) Image() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img
}

// HasImage reports whether an image is loaded.
func (s *Session) HasImage() bool {
	return s.Image() != nil
}

// SetPendingText sets the text waiting to be placed. Clearing it while
// armed disarms the session.
func (s *Session) SetPendingText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.PendingText = text
	if s.interaction == Placed || strings.TrimSpace(text) == "" {
		s.interaction = Idle
	}
}

// Arm enters click-to-place mode. It is a no-op returning false when there
// is no pending text or no image.
func (s *Session) Arm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil || strings.TrimSpace(s.state.PendingText) == "" {
		return false
	}
	s.interaction = Armed
	return true
}

// Interaction returns the click-to-place state.
func (s *Session) Interaction() Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interaction
}

// Place commits the pending text at a click on the displayed image.
// (px, py) is relative to the displayed image whose on-screen size is
// displayW×displayH. Clicks while not armed, outside the image or with
// empty pending text are ignored and return false.
func (s *Session) Place(px, py float64, displayW, displayH int) (types.TextPlacement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := strings.TrimSpace(s.state.PendingText)
	if s.interaction != Armed || s.img == nil || text == "" {
		return types.TextPlacement{}, false
	}
	if displayW <= 0 || displayH <= 0 || !(px >= 0 && px <= float64(displayW)) || !(py >= 0 && py <= float64(displayH)) {
		return types.TextPlacement{}, false
	}

	x, y := compositor.ToPercent(px, py, displayW, displayH)
	p := s.newPlacement(text, x, y)
	s.placements = append(s.placements, p)
	s.state.SelectedID = p.ID
	s.state.PendingText = ""
	s.interaction = Placed
	return p, true
}

// Add appends a placement at percentage coordinates with the default
// style and selects it.
func (s *Session) Add(text string, xPct, yPct float64) (types.TextPlacement, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.TextPlacement{}, fmt.Errorf("placement text is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return types.TextPlacement{}, ErrNoImage
	}
	p := s.newPlacement(text, types.ClampPercent(xPct), types.ClampPercent(yPct))
	s.placements = append(s.placements, p)
	s.state.SelectedID = p.ID
	return p, nil
}

// Import appends fully specified placements, for example loaded from a
// file. Missing ids are generated, and positions and font sizes are clamped.
func (s *Session) Import(ps []types.TextPlacement) ([]types.TextPlacement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return nil, ErrNoImage
	}

	mode := s.compositor.Config().FontMode
	out := make([]types.TextPlacement, 0, len(ps))
	for _, p := range ps {
		if strings.TrimSpace(p.Text) == "" {
			return nil, fmt.Errorf("placement %q has empty text", p.ID)
		}
		if p.Color == "" {
			p.Color = types.DefaultColor
		}
		if _, err := blend.ParseHex(p.Color); err != nil {
			return nil, fmt.Errorf("placement %q: %w", p.ID, err)
		}
		if p.FontSize == 0 {
			p.FontSize = types.DefaultFontSize
		}
		if p.ID == "" || s.indexOf(p.ID) >= 0 || containsID(out, p.ID) {
			p.ID = s.newID()
		}
		p.X = types.ClampPercent(p.X)
		p.Y = types.ClampPercent(p.Y)
		p.FontSize = mode.ClampFontSize(p.FontSize)
		out = append(out, p)
	}
	s.placements = append(s.placements, out...)
	return types.ClonePlacements(out), nil
}

func containsID(ps []types.TextPlacement, id string) bool {
	return slices.ContainsFunc(ps, func(p types.TextPlacement) bool { return p.ID == id })
}

func (s *Session) newPlacement(text string, x, y float64) types.TextPlacement {
	return types.TextPlacement{
		ID:           s.newID(),
		Text:         text,
		X:            x,
		Y:            y,
		FontSize:     s.compositor.Config().FontMode.ClampFontSize(types.DefaultFontSize),
		Color:        types.DefaultColor,
		BehindObject: true,
	}
}

// Update merges patch into the placement with the given id.
func (s *Session) Update(id string, patch types.PlacementPatch) (types.TextPlacement, error) {
	if patch.Text != nil && strings.TrimSpace(*patch.Text) == "" {
		return types.TextPlacement{}, fmt.Errorf("placement text is empty")
	}
	if patch.Color != nil {
		if _, err := blend.ParseHex(*patch.Color); err != nil {
			return types.TextPlacement{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return types.TextPlacement{}, fmt.Errorf("%w: %s", ErrUnknownPlacement, id)
	}
	s.placements[i] = patch.Apply(s.placements[i], s.compositor.Config().FontMode)
	return s.placements[i], nil
}

// Delete removes a placement, clearing the selection if it pointed at it.
func (s *Session) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPlacement, id)
	}
	s.placements = slices.Delete(s.placements, i, i+1)
	if s.state.SelectedID == id {
		s.state.SelectedID = ""
	}
	return nil
}

// Select marks a placement as selected. An empty id clears the selection.
func (s *Session) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" && s.indexOf(id) < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPlacement, id)
	}
	s.state.SelectedID = id
	return nil
}

// Selected returns the selected placement.
func (s *Session) Selected() (types.TextPlacement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(s.state.SelectedID); i >= 0 {
		return s.placements[i], true
	}
	return types.TextPlacement{}, false
}

// Placements returns a copy of the placements in render order.
func (s *Session) Placements() []types.TextPlacement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.ClonePlacements(s.placements)
}

func (s *Session) indexOf(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.placements, func(p types.TextPlacement) bool { return p.ID == id })
}

// SetBlurRadius sets the background blur radius in pixels. Negative values
// are treated as zero.
func (s *Session) SetBlurRadius(radius float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.BlurRadius = max(radius, 0)
}

// SetPortrait toggles portrait mode.
func (s *Session) SetPortrait(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Portrait = on
}

// State returns a copy of the transient render state.
func (s *Session) State() types.RenderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetModel selects the strategy recorded on generated results.
func (s *Session) SetModel(id string) error {
	if _, ok := LookupStrategy(id); !ok {
		return fmt.Errorf("unknown strategy %q", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = id
	return nil
}

// Model returns the selected strategy id.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// snapshot captures render inputs and issues a new render token.
type snapshot struct {
	token      uint64
	epoch      uint64
	img        image.Image
	imageRef   string
	placements []types.TextPlacement
	state      types.RenderState
	model      string
}

func (s *Session) begin() (snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return snapshot{}, ErrClosed
	}
	if s.img == nil {
		return snapshot{}, ErrNoImage
	}
	s.latest++
	return snapshot{
		token:      s.latest,
		epoch:      s.epoch,
		img:        s.img,
		imageRef:   s.imageRef,
		placements: types.ClonePlacements(s.placements),
		state:      s.state,
		model:      s.model,
	}, nil
}

// current reports whether snap is still the newest render of the same
// image. Callers hold mu.
func (s *Session) current(snap snapshot) bool {
	return !s.closed && snap.epoch == s.epoch && snap.token == s.latest
}

func (s *Session) draw(ctx context.Context, snap snapshot) (*image.NRGBA, error) {
	bg := snap.img
	if s.isolator != nil && snap.state.BlurRadius > 0 {
		bg = s.isolator.IsolateForeground(ctx, bg, snap.state.BlurRadius, snap.state.Portrait)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.compositor.RenderPlacements(bg, snap.placements)
}

// Render runs a full render pass over the current image and placements.
// If another render, an upload or Close happened while it ran, the result
// is discarded and ErrStaleRender is returned.
func (s *Session) Render(ctx context.Context) (*Frame, error) {
	snap, err := s.begin()
	if err != nil {
		return nil, err
	}

	out, err := s.draw(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("render failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(snap) {
		s.logger.Debug("Discarding stale render",
			slog.Uint64("token", snap.token),
			slog.Uint64("latest", s.latest))
		return nil, ErrStaleRender
	}
	s.last = &Frame{Token: snap.token, Image: out}
	return s.last, nil
}

// LastFrame returns the most recent applied render, if any.
func (s *Session) LastFrame() (*Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.last != nil
}

// Generate renders the final composite and records it in the history.
// It requires an image and at least one placement. The entry stores a
// copy of the placements, which are then removed from the live list.
// Placements added or edited while the render was running are kept, and
// the selection survives only if it still points at one of them.
func (s *Session) Generate(ctx context.Context) (types.ProcessedResult, error) {
	snap, err := s.begin()
	if err != nil {
		return types.ProcessedResult{}, err
	}
	if len(snap.placements) == 0 {
		return types.ProcessedResult{}, ErrNoPlacements
	}

	out, err := s.draw(ctx, snap)
	if err != nil {
		return types.ProcessedResult{}, fmt.Errorf("render failed: %w", err)
	}

	var processed, thumbnail, original string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		processed, err = codec.EncodeDataURL(out)
		return err
	})
	g.Go(func() error {
		res, err := s.thumbs.Square(out)
		if err != nil {
			return err
		}
		if err := gctx.Err(); err != nil {
			return err
		}
		thumbnail, err = codec.EncodeDataURL(res.Image)
		return err
	})
	if snap.imageRef == "" {
		g.Go(func() error {
			var err error
			original, err = codec.EncodeDataURL(snap.img)
			return err
		})
	} else {
		original = snap.imageRef
	}
	if err := g.Wait(); err != nil {
		return types.ProcessedResult{}, fmt.Errorf("export failed: %w", err)
	}

	texts := make([]string, len(snap.placements))
	for i, p := range snap.placements {
		texts[i] = p.Text
	}
	result := types.ProcessedResult{
		ID:             s.newID(),
		OriginalImage:  original,
		ProcessedImage: processed,
		Thumbnail:      thumbnail,
		Prompt:         strings.Join(texts, ", "),
		Model:          snap.model,
		Timestamp:      s.now(),
		Placements:     snap.placements,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || snap.epoch != s.epoch {
		return types.ProcessedResult{}, ErrStaleRender
	}
	s.history = append([]types.ProcessedResult{result}, s.history...)
	s.placements = slices.DeleteFunc(s.placements, func(p types.TextPlacement) bool {
		return slices.Contains(snap.placements, p)
	})
	if s.indexOf(s.state.SelectedID) < 0 {
		s.state.SelectedID = ""
	}
	s.last = &Frame{Token: snap.token, Image: out}

	s.logger.Info("Generated composite",
		slog.String("id", result.ID),
		slog.Int("placements", len(result.Placements)),
		slog.String("model", result.Model))
	return result, nil
}

// History returns generated results, newest first.
func (s *Session) History() []types.ProcessedResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ProcessedResult, len(s.history))
	for i, r := range s.history {
		r.Placements = types.ClonePlacements(r.Placements)
		out[i] = r
	}
	return out
}

// Close ends the session. In-flight renders complete as stale.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.epoch++
}
