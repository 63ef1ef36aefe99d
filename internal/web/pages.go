package web

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"calshell/internal/battery"
	"calshell/internal/model"
	"calshell/internal/ui/cn"
	"calshell/internal/ui/device"
	"calshell/internal/ui/layout"
)

// pageData is everything the calendar page renders.
type pageData struct {
	Title      string
	Start      time.Time
	Days       []model.Day
	DayCount   int
	PrevKey    string
	NextKey    string
	TodayKey   string
	ShowAllDay bool

	Battery *battery.Status
	Updated time.Time
}

// viewportScript reports the viewport width so the next request can pick
// the right layout.
const viewportScript = `<script>document.cookie="` + device.ViewportCookie +
	`="+window.innerWidth+";path=/;max-age=31536000;samesite=lax";</script>`

// out accumulates the first write error so components read top to bottom.
type out struct {
	w   io.Writer
	err error
}

func (o *out) raw(s string) {
	if o.err == nil {
		_, o.err = io.WriteString(o.w, s)
	}
}

func (o *out) text(s string) { o.raw(templ.EscapeString(s)) }

func (o *out) class(c string) { o.raw(` class="` + templ.EscapeString(c) + `"`) }

func (o *out) component(ctx context.Context, c templ.Component) {
	if o.err == nil {
		o.err = c.Render(ctx, o.w)
	}
}

// documentPage is the HTML shell around body.
func documentPage(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := &out{w: w}
		o.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		o.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		o.raw(`<title>`)
		o.text(title)
		o.raw(`</title></head><body`)
		o.class("bg-background text-foreground antialiased")
		o.raw(`>`)
		o.component(ctx, body)
		o.raw(viewportScript)
		o.raw(`</body></html>`)
		return o.err
	})
}

// siteHeader is the fixed 3.5rem header.
func siteHeader(d pageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := &out{w: w}
		o.raw(`<header`)
		o.class("fixed inset-x-0 top-0 z-40 flex h-14 items-center justify-between border-b bg-background px-4")
		o.raw(`><a href="/calendar"`)
		o.class("font-semibold")
		o.raw(`>`)
		o.text(d.Title)
		o.raw(`</a><nav`)
		o.class("flex gap-3 text-sm")
		o.raw(`>`)
		o.raw(`<a rel="prev" href="` + templ.EscapeString(calendarHref(d.PrevKey, d.DayCount)) + `">&larr;</a>`)
		o.raw(`<a href="` + templ.EscapeString(calendarHref(d.TodayKey, d.DayCount)) + `">Today</a>`)
		o.raw(`<a rel="next" href="` + templ.EscapeString(calendarHref(d.NextKey, d.DayCount)) + `">&rarr;</a>`)
		o.raw(`</nav></header>`)
		return o.err
	})
}

// infoBar is the 2.5rem strip below the header on mobile only.
func infoBar(dev layout.DeviceClassifier, d pageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if dev == nil || !dev.IsMobile(ctx) {
			return nil
		}
		o := &out{w: w}
		o.raw(`<div id="info-bar"`)
		o.class("fixed inset-x-0 top-14 z-30 flex h-10 items-center justify-between border-b bg-muted px-4 text-xs")
		o.raw(`><span>`)
		if d.Battery != nil {
			o.text(fmt.Sprintf("Battery %d%%", d.Battery.Percent))
		} else {
			o.text("Battery unknown")
		}
		o.raw(`</span><span>`)
		if d.Updated.IsZero() {
			o.text("Not refreshed yet")
		} else {
			o.text("Updated " + d.Updated.Format("15:04"))
		}
		o.raw(`</span></div>`)
		return o.err
	})
}

func agendaView(d pageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := &out{w: w}
		o.raw(`<section id="agenda"`)
		o.class("mx-auto grid max-w-5xl gap-3 p-4 md:grid-cols-2")
		o.raw(`>`)
		for _, day := range d.Days {
			o.component(ctx, dayCard(day, d.ShowAllDay))
		}
		o.raw(`</section>`)
		return o.err
	})
}

func dayCard(day model.Day, showAllDay bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := &out{w: w}
		o.raw(`<article data-day="` + day.Key + `"`)
		o.class(cn.Merge(
			cn.Literal("rounded-lg border p-3"),
			cn.If(day.Weekend, "bg-muted"),
			cn.If(day.Today, "border-2 border-primary bg-primary/5"),
		))
		o.raw(`><h2`)
		o.class(cn.Merge(cn.Literal("mb-2 text-sm font-medium"), cn.If(day.Today, "font-bold")))
		o.raw(`>`)
		o.text(day.Date.Format("Mon, Jan 2"))
		o.raw(`</h2><ul`)
		o.class("space-y-1 text-sm")
		o.raw(`>`)
		if showAllDay {
			for _, occ := range day.AllDay {
				o.component(ctx, eventRow(occ, "All day"))
			}
		}
		for _, occ := range day.Timed {
			label := occ.Start.Format("15:04")
			if occ.Start.Format("2006-01-02") != day.Key {
				label = "…"
			}
			o.component(ctx, eventRow(occ, label))
		}
		if day.Empty() || (!showAllDay && len(day.Timed) == 0) {
			o.raw(`<li`)
			o.class("text-muted-foreground")
			o.raw(`>No events</li>`)
		}
		o.raw(`</ul></article>`)
		return o.err
	})
}

func eventRow(occ model.Occurrence, label string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := &out{w: w}
		o.raw(`<li`)
		o.class(cn.Merge(
			cn.Literal("flex gap-2 text-foreground"),
			cn.If(occ.AllDay, "font-medium"),
			cn.If(occ.Highlight, "text-red-600 font-semibold"),
		))
		o.raw(`><span`)
		o.class("w-12 shrink-0 tabular-nums text-muted-foreground")
		o.raw(`>`)
		o.text(label)
		o.raw(`</span><span>`)
		o.text(occ.Summary)
		o.raw(`</span></li>`)
		return o.err
	})
}

// calendarPage composes header, info bar and the agenda inside the
// responsive wrapper. data-ready marks completion for the capture job.
func calendarPage(dev layout.DeviceClassifier, d pageData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		o := &out{w: w}
		o.component(ctx, siteHeader(d))
		o.component(ctx, infoBar(dev, d))
		o.raw(`<main data-ready="true">`)
		o.component(ctx, layout.Wrap(dev, "pb-8", agendaView(d)))
		o.raw(`</main>`)
		return o.err
	})
	return documentPage(d.Title, body)
}

func calendarHref(key string, days int) string {
	return "/calendar?date=" + key + "&days=" + strconv.Itoa(days)
}
