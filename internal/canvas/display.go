package canvas

import (
	"context"

	"github.com/google/uuid"

	"pin/internal/display"
	"pin/internal/panel"
)

// Display renders canvas id into the panel framebuffer and triggers a full
// refresh, both under the display façade's mutex (spec §4.2 "display").
func (e *Engine) Display(ctx context.Context, svc *display.Service, id string) error {
	c, err := e.Get(id)
	if err != nil {
		return err
	}

	if err := svc.Draw(ctx, func(drv *panel.Driver) error {
		return e.Render(c, drv)
	}); err != nil {
		return err
	}
	return svc.Refresh(ctx, panel.RefreshFull)
}

// NewElementID generates an id for a caller that omitted one, matching
// the ≤31-char element id budget (spec §3) by truncating a random uuid
// string to its first 31 characters.
func NewElementID() string {
	return uuid.New().String()[:31]
}
