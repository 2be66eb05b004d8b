package editor

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// State is the position of a Session in its edit lifecycle.
type State int

const (
	Viewing State = iota
	Editing
	// Replacing is Editing with the replace-image flow open.
	Replacing
)

func (s State) String() string {
	switch s {
	case Viewing:
		return "viewing"
	case Editing:
		return "editing"
	case Replacing:
		return "replacing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithUploader sets the collaborator used by UploadReplacement.
func WithUploader(u Uploader) Option {
	return func(s *Session) { s.uploader = u }
}

// WithKeepMarkers keeps editable containers, image wrappers and replace
// controls in saved output instead of unwrapping them. Output saved this way
// is adopted as-is by the next session.
func WithKeepMarkers(keep bool) Option {
	return func(s *Session) { s.keepMarkers = keep }
}

type replaceFlow struct {
	target  NodeID
	url     string
	gen     uint64
	pending int
	err     error
}

// FlowStatus is a snapshot of the open replace flow.
type FlowStatus struct {
	Target  NodeID
	URL     string
	Pending int
	Err     error
}

// TextRun is one editable text container of the live tree.
type TextRun struct {
	ID   NodeID
	Text string
}

// Image is one image of the live tree.
type Image struct {
	ID  NodeID
	Src string
}

// Session owns a canonical document and, while editing, the live tree built
// from it. All methods are safe for concurrent use. Node identifiers are only
// valid until the session returns to Viewing.
type Session struct {
	mu sync.Mutex

	canonical   string
	onSave      func(string)
	log         *zap.Logger
	uploader    Uploader
	keepMarkers bool

	state  State
	doc    *Document
	epoch  uint64
	lastID NodeID

	flow    *replaceFlow
	flowGen uint64

	uploads   map[UploadID]*upload
	uploadSeq int
}

// New returns a viewing session over canonical. onSave, if not nil, is
// called with the new canonical document after every successful Save.
func New(canonical string, onSave func(string), opts ...Option) *Session {
	s := &Session{
		canonical: canonical,
		onSave:    onSave,
		log:       zap.NewNop(),
		uploads:   map[UploadID]*upload{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Canonical() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canonical
}

// SetCanonical replaces the canonical document. Only allowed while viewing.
func (s *Session) SetCanonical(canonical string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Viewing {
		return fmt.Errorf("set canonical while %s: %w", s.state, ErrInvalidState)
	}
	s.canonical = canonical
	return nil
}

// View renders what a user currently sees: the canonical document while
// viewing, the live tree with its markers while editing.
func (s *Session) View() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Viewing {
		return s.canonical, nil
	}
	return s.doc.Render()
}

// Edit materializes the canonical document into a live tree and prepares it
// for editing. If the document cannot be parsed the session still enters
// Editing, over an empty tree, and the parse error is returned.
func (s *Session) Edit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Viewing {
		return fmt.Errorf("edit while %s: %w", s.state, ErrInvalidState)
	}

	doc, err := Parse(s.canonical)
	doc.nextID = s.lastID
	s.doc = doc
	s.state = Editing
	s.prepare()
	if err != nil {
		s.log.Warn("materializing canonical document", zap.Error(err))
		return fmt.Errorf("materializing canonical document: %w", err)
	}
	return nil
}

// prepare runs the edit transforms over the live tree. Every transform skips
// nodes it already handled, so it runs again after each insertion.
func (s *Session) prepare() {
	links := s.doc.NeutralizeLinks()
	runs := s.doc.MaterializeText()
	s.doc.AssignIDs()
	images := s.doc.WrapImages()
	s.log.Debug("prepared live tree",
		zap.Int("links", links),
		zap.Int("text_runs", len(runs)),
		zap.Int("images", images),
	)
}

// Save reconciles the live tree into a new canonical document, hands it to
// onSave and returns it. An open replace flow is cancelled first.
func (s *Session) Save() (string, error) {
	s.mu.Lock()
	if !s.editing() {
		state := s.state
		s.mu.Unlock()
		return "", fmt.Errorf("save while %s: %w", state, ErrInvalidState)
	}

	if s.flow != nil {
		s.log.Debug("cancelling replace flow on save")
		s.closeFlow()
	}
	s.doc.RestoreLinks()
	if !s.keepMarkers {
		s.doc.StripMarkers()
	}
	out, err := s.doc.Render()
	if err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("serializing live tree: %w", err)
	}
	s.canonical = out
	s.endSession()
	onSave := s.onSave
	s.mu.Unlock()

	if onSave != nil {
		onSave(out)
	}
	return out, nil
}

// Cancel discards the live tree. The canonical document is left unchanged.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editing() {
		return fmt.Errorf("cancel while %s: %w", s.state, ErrInvalidState)
	}
	s.endSession()
	return nil
}

func (s *Session) editing() bool {
	return s.state == Editing || s.state == Replacing
}

func (s *Session) endSession() {
	s.lastID = s.doc.nextID
	s.doc = nil
	s.flow = nil
	s.state = Viewing
	s.epoch++
}

// TextRuns lists the editable text containers of the live tree.
func (s *Session) TextRuns() ([]TextRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editing() {
		return nil, fmt.Errorf("text runs while %s: %w", s.state, ErrInvalidState)
	}
	var runs []TextRun
	for _, n := range s.doc.Marked(MarkEditable) {
		runs = append(runs, TextRun{ID: s.doc.ID(n), Text: s.doc.Text(n)})
	}
	return runs, nil
}

// Images lists the images of the live tree.
func (s *Session) Images() ([]Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editing() {
		return nil, fmt.Errorf("images while %s: %w", s.state, ErrInvalidState)
	}
	var imgs []Image
	for _, id := range s.doc.Images() {
		n, _ := s.doc.Node(id)
		src, _ := getAttr(n, "src")
		imgs = append(imgs, Image{ID: id, Src: src})
	}
	return imgs, nil
}

// SetText replaces the content of one editable text container.
func (s *Session) SetText(id NodeID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Editing {
		return fmt.Errorf("set text while %s: %w", s.state, ErrInvalidState)
	}
	n, ok := s.doc.Node(id)
	if !ok {
		return fmt.Errorf("set text on node %d: %w", id, ErrUnknownNode)
	}
	if !s.doc.hasAny(n, MarkEditable) {
		return fmt.Errorf("set text on node %d: %w", id, ErrNotEditable)
	}
	s.doc.setText(n, text)
	return nil
}

// AppendExtras appends a fragment to the end of the document. While viewing
// it goes into the canonical document; while editing it goes into the live
// tree and the edit transforms run again, so only the new content is
// neutralized, made editable and wrapped.
func (s *Session) AppendExtras(fragment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Viewing:
		out, err := AppendHTML(s.canonical, fragment)
		if err != nil {
			return fmt.Errorf("appending extras: %w", err)
		}
		s.canonical = out
		return nil
	case Editing:
		if _, err := s.doc.AppendFragment(fragment); err != nil {
			return fmt.Errorf("appending extras: %w", err)
		}
		s.prepare()
		return nil
	}
	return fmt.Errorf("append extras while %s: %w", s.state, ErrInvalidState)
}

// Commands returns the command descriptors attached to the live tree's
// controls.
func (s *Session) Commands() ([]Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editing() {
		return nil, fmt.Errorf("commands while %s: %w", s.state, ErrInvalidState)
	}
	return s.doc.Commands(), nil
}

// Dispatch runs a command taken from a control.
func (s *Session) Dispatch(cmd Command) error {
	switch cmd.Action {
	case ActionReplaceImage:
		return s.OpenReplace(cmd.Target)
	}
	return fmt.Errorf("dispatch: unknown action %q", cmd.Action)
}

// OpenReplace opens the replace flow on an image, with the URL field set to
// the image's current source. An already open flow is replaced.
func (s *Session) OpenReplace(id NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editing() {
		return fmt.Errorf("open replace while %s: %w", s.state, ErrInvalidState)
	}
	n, ok := s.doc.Node(id)
	if !ok {
		return fmt.Errorf("open replace on node %d: %w", id, ErrUnknownNode)
	}
	if !isImage(n) {
		return fmt.Errorf("open replace on node %d: %w", id, ErrNotImage)
	}

	src, _ := getAttr(n, "src")
	s.flowGen++
	s.flow = &replaceFlow{target: id, url: src, gen: s.flowGen}
	s.state = Replacing
	return nil
}

// Replacing reports the open replace flow, if any.
func (s *Session) Replacing() (FlowStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flow == nil {
		return FlowStatus{}, false
	}
	return FlowStatus{
		Target:  s.flow.target,
		URL:     s.flow.url,
		Pending: s.flow.pending,
		Err:     s.flow.err,
	}, true
}

// SetReplaceURL sets the URL field of the open flow.
func (s *Session) SetReplaceURL(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flow == nil {
		return ErrNoReplaceFlow
	}
	s.flow.url = url
	return nil
}

// ApplyReplace sets the target image's source to the URL field, if the field
// is not blank, and closes the flow either way.
func (s *Session) ApplyReplace() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flow == nil {
		return ErrNoReplaceFlow
	}

	url := strings.TrimSpace(s.flow.url)
	if img, ok := s.doc.Node(s.flow.target); ok && url != "" {
		setAttr(img, "src", url)
		s.doc.wrapImage(img)
		s.log.Debug("replaced image", zap.Int("node", int(s.flow.target)), zap.String("src", url))
	}
	s.closeFlow()
	return nil
}

// CancelReplace closes the flow without touching the image. Uploads still
// running for it are discarded when they finish.
func (s *Session) CancelReplace() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flow == nil {
		return ErrNoReplaceFlow
	}
	s.closeFlow()
	return nil
}

func (s *Session) closeFlow() {
	s.flow = nil
	s.state = Editing
}
