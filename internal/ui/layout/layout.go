// Package layout provides the responsive page wrapper that sits below the
// fixed header.
package layout

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"calshell/internal/ui/cn"
)

// Padding tokens. The header is 3.5rem tall and the mobile info bar adds
// 2.5rem below it.
const (
	BaseClasses    = "min-h-screen bg-background"
	DesktopPadding = "pt-14"
	MobilePadding  = "pt-24"
)

// DeviceClassifier reports whether the current render targets a mobile
// viewport.
type DeviceClassifier interface {
	IsMobile(ctx context.Context) bool
}

// DeviceFunc adapts a function to DeviceClassifier.
type DeviceFunc func(ctx context.Context) bool

func (f DeviceFunc) IsMobile(ctx context.Context) bool { return f(ctx) }

// Static is a classifier with a fixed answer.
type Static bool

func (s Static) IsMobile(context.Context) bool { return bool(s) }

// Classes returns the wrapper class string for the given device class.
// extra is merged last so it wins conflicts with the base and padding.
func Classes(mobile bool, extra string) string {
	padding := DesktopPadding
	if mobile {
		padding = MobilePadding
	}
	return cn.Join(BaseClasses, padding, extra)
}

// Wrapper renders a container around the children passed through
// templ.WithChildren. A nil classifier is treated as desktop.
func Wrapper(device DeviceClassifier, className string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		mobile := device != nil && device.IsMobile(ctx)
		if _, err := io.WriteString(w, `<div class="`+templ.EscapeString(Classes(mobile, className))+`">`); err != nil {
			return err
		}
		if err := templ.GetChildren(ctx).Render(templ.ClearChildren(ctx), w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}

// Wrap is Wrapper with explicit content instead of context children.
func Wrap(device DeviceClassifier, className string, content templ.Component) templ.Component {
	if content == nil {
		content = templ.NopComponent
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Wrapper(device, className).Render(templ.WithChildren(ctx, content), w)
	})
}
