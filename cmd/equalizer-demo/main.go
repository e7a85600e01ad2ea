// Command equalizer-demo drives a synthetic compound tree across a handful
// of frames, printing the evolving split plan after each one. It exists to
// exercise package equalizer end-to-end outside of a real rendering
// pipeline, which spec.md §1 keeps out of scope for the core.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"

	"github.com/vlequalizer/loadeq/internal/equalizer"
	"github.com/vlequalizer/loadeq/internal/geom"
	"github.com/vlequalizer/loadeq/internal/lbconfig"
	"github.com/vlequalizer/loadeq/internal/logx"
	"github.com/vlequalizer/loadeq/internal/render"
	"github.com/vlequalizer/loadeq/internal/transport"
	"github.com/vlequalizer/loadeq/internal/tree"
)

func main() {
	configPath := flag.String("config", "", "path to a load_equalizer { ... } config file (defaults if empty)")
	children := flag.Int("children", 4, "number of synthetic compounds")
	frames := flag.Int("frames", 5, "number of frames to simulate")
	listen := flag.String("listen", "", "optional addr to accept transport.StatsBatch pushes on, e.g. 127.0.0.1:9090")
	seed := flag.Int64("seed", 1, "RNG seed for synthetic load")
	flag.Parse()

	cfg := lbconfig.Default()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			log.Fatalf("open config: %v", err)
		}
		defer f.Close()
		cfg, err = lbconfig.Parse(bufio.NewReader(f))
		if err != nil {
			log.Fatalf("parse config: %v", err)
		}
	}

	logger := logx.New("equalizer-demo")
	eq := equalizer.New(cfg, logger)

	comps := make([]*demoCompound, *children)
	byName := make(map[string]*demoCompound, *children)
	for i := range comps {
		name := fmt.Sprintf("ch%d", i)
		comps[i] = &demoCompound{
			taskID: uint32(i + 1),
			usage:  1.0,
			chName: name,
			pixels: geom.Size2i{W: 1920, H: 1080},
		}
		byName[name] = comps[i]
	}

	var server *transport.Server
	if *listen != "" {
		server = transport.NewServer(logger, func(channelName string, frameNumber uint32, stats []render.Statistic) {
			c, ok := byName[channelName]
			if !ok {
				return
			}
			eq.NotifyLoadData(c, frameNumber, stats)
		})
		srv, lis, err := transport.Listen(*listen, server, logger)
		if err != nil {
			log.Fatalf("listen: %v", err)
		}
		defer transport.Stop(srv, lis, logger)
	}

	rootChildren := make([]render.Compound, len(comps))
	for i, c := range comps {
		rootChildren[i] = c
	}

	rng := rand.New(rand.NewSource(*seed))

	for frame := uint32(1); frame <= uint32(*frames); frame++ {
		if err := eq.NotifyUpdatePre(rootChildren, true, frame); err != nil {
			log.Fatalf("frame %d: notifyUpdatePre: %v", frame, err)
		}

		fmt.Printf("=== frame %d (state=%s) ===\n", frame, eq.State())
		var buf strings.Builder
		tree.Dump(&buf, eq.Root())
		fmt.Print(buf.String())

		// Simulate rendering: each leaf "measures" a time proportional to
		// its assigned area, jittered by rng, then reports it back through
		// NotifyLoadData exactly as a real rendering pipeline would.
		for _, c := range comps {
			elapsed := syntheticRenderTime(c, rng)
			stats := []render.Statistic{
				{Task: c.taskID, Type: render.ChannelClear, StartTime: 0, EndTime: 1},
				{Task: c.taskID, Type: render.ChannelDraw, StartTime: 1, EndTime: elapsed},
			}
			eq.NotifyLoadData(c, frame, stats)
		}
	}

	if *listen != "" {
		fmt.Printf("listening for stats pushes on %s; Ctrl-C to exit\n", *listen)
		select {}
	}
}

// syntheticRenderTime fakes a render time: area-proportional with jitter,
// so the equalizer has something non-trivial to equalize across frames.
func syntheticRenderTime(c *demoCompound, rng *rand.Rand) int64 {
	area := c.vp.W * c.vp.H
	if !c.vp.HasArea() {
		area = c.rng.Length()
	}
	base := 1000.0 * area
	jitter := 0.9 + 0.2*rng.Float64()
	t := int64(base * jitter)
	if t < 1 {
		t = 1
	}
	return t
}

// demoCompound is a minimal render.Compound/render.Channel for the demo —
// it has no real GPU work, just enough state for the equalizer to plan
// around.
type demoCompound struct {
	taskID uint32
	usage  float64
	chName string
	pixels geom.Size2i

	vp  geom.Viewport
	rng geom.Range

	listeners []render.Listener
}

func (c *demoCompound) Children() []render.Compound { return nil }
func (c *demoCompound) IsRunning() bool             { return true }
func (c *demoCompound) Usage() float64              { return c.usage }
func (c *demoCompound) TaskID() uint32              { return c.taskID }
func (c *demoCompound) Channel() render.Channel      { return c }
func (c *demoCompound) SetViewport(v geom.Viewport)  { c.vp = v }
func (c *demoCompound) SetRange(r geom.Range)        { c.rng = r }

func (c *demoCompound) Name() string              { return c.chName }
func (c *demoCompound) PixelViewport() geom.Size2i { return c.pixels }
func (c *demoCompound) AddListener(l render.Listener) {
	c.listeners = append(c.listeners, l)
}
func (c *demoCompound) RemoveListener(l render.Listener) {
	for i, existing := range c.listeners {
		if existing == l {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return
		}
	}
}
