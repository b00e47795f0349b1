// Package synth generates deterministic synthetic web log drops: funnel
// traffic from a small user pool with a share of malformed events mixed in.
package synth

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/goccy/go-json"
)

// ErrorRate is the probability that a generated event is preceded by a
// corrupted copy.
const ErrorRate = 0.10

var (
	users     = makeUsers(14)
	devices   = []string{"mobile", "desktop", "tablet"}
	deviceW   = []int{55, 38, 7}
	referrers = []string{"direct", "google", "facebook"}
	referrerW = []int{40, 35, 8}
	lookPaths = []string{"/blog", "/contacto"}

	// nextStep maps a funnel page to the page that follows it.
	nextStep = map[string]string{
		"/":          "/productos",
		"/productos": "/carrito",
		"/carrito":   "/checkout",
	}

	badDevices   = []string{"toaster", "phon3", "desk-top", ""}
	badReferrers = []any{nil, "(not set)", "   ", "file://local", "http://malformed"}
	badPaths     = []string{"productos", "checkout", "//double-slash", ""}
)

// purchaseRate is the percentage of landing sessions that move on to /productos.
const purchaseRate = 30

var keyOrder = []string{"ts", "user_id", "path", "referrer", "device"}

func makeUsers(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("u%03d", i+1)
	}
	return out
}

// event is one generated record. Missing keys are omitted from the line; a nil
// value is written as null.
type event map[string]any

func (e event) clone() event {
	c := make(event, len(e))
	for k, v := range e {
		c[k] = v
	}
	return c
}

// line renders e with keys in canonical order.
func (e event) line() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, k := range keyOrder {
		v, ok := e[k]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, _ := json.Marshal(k)
		val, _ := json.Marshal(v)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.String()
}

type generator struct {
	rng     *rand.Rand
	current time.Time
	// open sessions in creation order
	open []event
}

func (g *generator) advance() {
	g.current = g.current.Add(time.Duration(5+g.rng.Intn(26)) * time.Second)
}

func (g *generator) ts() string {
	return g.current.UTC().Format("2006-01-02T15:04:05Z")
}

func (g *generator) weighted(values []string, weights []int) string {
	total := 0
	for _, w := range weights {
		total += w
	}
	r := g.rng.Intn(total)
	for i, w := range weights {
		if r < w {
			return values[i]
		}
		r -= w
	}
	return values[len(values)-1]
}

func (g *generator) findOpen(user string) int {
	for i, s := range g.open {
		if s["user_id"] == user {
			return i
		}
	}
	return -1
}

func (g *generator) closeAt(i int) {
	g.open = append(g.open[:i], g.open[i+1:]...)
}

// Generate returns n rounds of synthetic NDJSON lines for day. The output
// depends only on its arguments.
func Generate(day time.Time, n int, seed int64) []string {
	g := &generator{rng: rand.New(rand.NewSource(seed))}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	g.current = start.Add(time.Duration(g.rng.Intn(181)) * time.Minute)

	var lines []string
	for i := 0; i < n; i++ {
		g.advance()
		landing := event{
			"ts":       g.ts(),
			"user_id":  users[g.rng.Intn(len(users))],
			"path":     "/",
			"referrer": g.weighted(referrers, referrerW),
			"device":   g.weighted(devices, deviceW),
		}
		if g.rng.Float64() < ErrorRate {
			lines = append(lines, g.corrupt(landing.clone()))
		}

		idx := g.findOpen(landing["user_id"].(string))
		if idx < 0 {
			lines = append(lines, landing.line())
			g.open = append(g.open, landing.clone())
			continue
		}

		sess := g.open[idx]
		if sess["path"] == "/" {
			ev, closed := g.browse(sess)
			if ev != nil {
				lines = append(lines, ev.line())
			}
			if closed {
				g.closeAt(idx)
			} else {
				g.open[idx] = ev
			}
			continue
		}

		ev, finished := g.purchaseStep(sess)
		if g.rng.Float64() < 0.60 {
			lines = append(lines, ev.line())
			if finished {
				g.closeAt(idx)
			} else {
				g.open[idx] = ev
			}
		} else {
			g.closeAt(idx)
		}
	}
	return lines
}

// browse continues a session sitting on the landing page. It returns a nil
// event when the visitor leaves without another page view.
func (g *generator) browse(sess event) (event, bool) {
	g.advance()
	rate := 1 + g.rng.Intn(100)
	switch {
	case rate <= purchaseRate:
		return event{
			"ts": g.ts(), "user_id": sess["user_id"], "path": nextStep["/"],
			"referrer": "/", "device": sess["device"],
		}, false
	case rate > 95:
		return nil, true
	default:
		return event{
			"ts": g.ts(), "user_id": sess["user_id"], "path": lookPaths[g.rng.Intn(len(lookPaths))],
			"referrer": "/", "device": sess["device"],
		}, true
	}
}

// purchaseStep moves a session one page down the funnel.
func (g *generator) purchaseStep(sess event) (event, bool) {
	g.advance()
	path := sess["path"].(string)
	return event{
		"ts": g.ts(), "user_id": sess["user_id"], "path": nextStep[path],
		"referrer": path, "device": sess["device"],
	}, path == "/carrito"
}

// corrupt returns e damaged in one of the ways real drops are.
func (g *generator) corrupt(e event) string {
	switch g.rng.Intn(6) {
	case 0:
		delete(e, []string{"referrer", "device", "path"}[g.rng.Intn(3)])
	case 1:
		e["ts"] = "03-01-2025 10:15:00"
	case 2:
		e["device"] = badDevices[g.rng.Intn(len(badDevices))]
		e["referrer"] = badReferrers[g.rng.Intn(len(badReferrers))]
		e["path"] = badPaths[g.rng.Intn(len(badPaths))]
	case 3:
		return "NOT_JSON_LINE this is a broken log line"
	case 4:
		e["ts"] = "2024-01-04T00:00:00Z"
	case 5:
		e["user_id"] = ""
	}
	return e.line()
}

// WriteLimited writes lines to w, one per line, stopping before the first line
// that would exceed maxBytes. It returns the number of bytes written.
func WriteLimited(w io.Writer, lines []string, maxBytes int) (int, error) {
	written := 0
	for _, l := range lines {
		if written+len(l)+1 > maxBytes {
			break
		}
		n, err := io.WriteString(w, l+"\n")
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
