// Package dnd turns a pointer drag gesture into preview compositions and a
// single committed move.
package dnd

import (
	"fmt"

	"pagecraft/internal/domain"
	"pagecraft/internal/tree"
)

type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Result describes how a gesture ended.
type Result struct {
	Committed bool
	MovedID   string
	Target    domain.Placement
	// Reason is set when a drop that looked valid could not be applied to
	// the composition passed to End.
	Reason error
}

// Controller is the Idle/Dragging state machine of one user's gestures.
// Events must be delivered in the order they were received.
type Controller struct {
	model   *tree.Model
	session *domain.DragSession
}

func NewController(model *tree.Model) *Controller {
	return &Controller{model: model}
}

func (d *Controller) State() State {
	if d.session != nil {
		return Dragging
	}
	return Idle
}

// Session returns a copy of the active session.
func (d *Controller) Session() (domain.DragSession, bool) {
	if d.session == nil {
		return domain.DragSession{}, false
	}
	s := *d.session
	if s.Preview != nil {
		p := *s.Preview
		s.Preview = &p
	}
	return s, true
}

// Start enters Dragging for a placed block and snapshots where it came from.
func (d *Controller) Start(c domain.Composition, id string) error {
	if d.session != nil {
		return fmt.Errorf("start drag %s: %w", id, domain.ErrDragActive)
	}
	at, ok := c.IndexOf(id)
	if !ok {
		return fmt.Errorf("start drag %s: %w", id, domain.ErrNotFound)
	}
	d.session = &domain.DragSession{DraggedID: id, Original: at}
	return nil
}

// Over records a hover over target and reports whether dropping there is
// valid. Only valid targets replace the preview, so an invalid hover keeps
// the last valid one on screen.
func (d *Controller) Over(c domain.Composition, target domain.Placement) bool {
	if d.session == nil {
		return false
	}
	err := d.model.CanMove(c, d.session.DraggedID, target.ParentID, target.Index)
	d.session.Valid = err == nil
	if d.session.Valid {
		t := target
		d.session.Preview = &t
	}
	return d.session.Valid
}

// OverPoint resolves the container under (x, y) from layout and hovers it.
func (d *Controller) OverPoint(c domain.Composition, layout Layout, x, y float64) bool {
	if d.session == nil {
		return false
	}
	target, ok := HitTest(d.model, c, layout, d.session.DraggedID, x, y)
	if !ok {
		d.session.Valid = false
		return false
	}
	return d.Over(c, target)
}

// Preview returns c as it would look if the block were dropped at the
// current preview target. The result is for display only.
func (d *Controller) Preview(c domain.Composition) (domain.Composition, bool) {
	if d.session == nil || d.session.Preview == nil {
		return c, false
	}
	next, err := d.model.Move(c, d.session.DraggedID, d.session.Preview.ParentID, d.session.Preview.Index)
	if err != nil {
		return c, false
	}
	return next, true
}

// End finishes the gesture. A valid drop commits one Move and selects the
// moved block; anything else snaps back and returns c untouched.
func (d *Controller) End(c domain.Composition, sel *domain.Selection) (domain.Composition, Result) {
	s := d.session
	d.session = nil
	if s == nil || !s.Valid || s.Preview == nil {
		return c, Result{}
	}
	next, err := d.model.Move(c, s.DraggedID, s.Preview.ParentID, s.Preview.Index)
	if err != nil {
		return c, Result{Reason: err}
	}
	if sel != nil {
		sel.SelectedID = s.DraggedID
	}
	return next, Result{Committed: true, MovedID: s.DraggedID, Target: *s.Preview}
}

// Cancel drops the session without touching any composition.
func (d *Controller) Cancel() {
	d.session = nil
}
