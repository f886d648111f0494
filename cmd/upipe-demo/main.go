// Command upipe-demo wires modules/pidfilter into a minimal two-stage pipeline: a timer
// watcher synthesizes TS packets cycling through the PIDs of the
// filter's allow-set (so every packet passes), pidfilter forwards the
// allowed ones, and a trivial counting sink logs what got through: a
// runnable demonstration that the
// Input/Control/probe-chain contract and the event loop compose end
// to end.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/upipe-go/upipe/internal/ulog"
	"github.com/upipe-go/upipe/modules/pidfilter"
	"github.com/upipe-go/upipe/ubuf/block"
	"github.com/upipe-go/upipe/upipe"
	"github.com/upipe-go/upipe/upipe/probes"
	"github.com/upipe-go/upipe/upump/upumpunix"
	"github.com/upipe-go/upipe/uref"
)

const tsPacketSize = 188

// countingSink is the demo's sink: every Input increments a counter
// and logs a "packet forwarded" line through the probe chain rather than
// printing directly, so StdoutLogProbe's rendering is exercised too.
type countingSink struct {
	count int
}

func (s *countingSink) Signature() string { return "upipe-demo.sink" }

func (s *countingSink) Alloc(probe upipe.Probe, signature string, args ...any) (*upipe.Pipe, error) {
	return upipe.New(s, probe), nil
}

func (s *countingSink) Input(p *upipe.Pipe, u *uref.Uref, pumpHint any) {
	s.count++
	upipe.Throw(p, upipe.EventLog, upipe.LogRecord(ulog.LevelInfo, "packet forwarded"))
	u.Release()
}

func (s *countingSink) Control(p *upipe.Pipe, cmd upipe.Command, args ...any) error {
	return nil
}

func main() {
	pidsFlag := flag.String("pids", "100,200", "comma-separated PID allow-list")
	packets := flag.Int("packets", 20, "number of synthetic packets to send")
	flag.Parse()

	pids := parsePids(*pidsFlag)

	loop, err := upumpunix.New()
	if err != nil {
		log.Fatalf("upumpunix.New: %v", err)
	}

	logProbe := probes.NewStdoutLogProbe(nil)

	sinkMgr := &countingSink{}
	sink, err := sinkMgr.Alloc(logProbe, sinkMgr.Signature())
	if err != nil {
		log.Fatalf("sink Alloc: %v", err)
	}
	filter, err := pidfilter.New(logProbe, pids)
	if err != nil {
		log.Fatalf("pidfilter.New: %v", err)
	}
	if err := filter.Mgr().Control(filter, upipe.SetOutput, sink); err != nil {
		log.Fatalf("SET-OUTPUT: %v", err)
	}

	var sent int
	watcher, err := loop.AllocTimer(0, 10*time.Millisecond, func() {
		if sent >= *packets {
			loop.StopAll()
			return
		}
		pid := pids[sent%len(pids)]
		filter.Mgr().Input(filter, syntheticPacket(pid), nil)
		sent++
	})
	if err != nil {
		log.Fatalf("AllocTimer: %v", err)
	}
	if err := watcher.Start(); err != nil {
		log.Fatalf("watcher.Start: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := loop.Run(ctx); err != nil {
		log.Fatalf("loop.Run: %v", err)
	}
}

func syntheticPacket(pid uint16) *uref.Uref {
	data := make([]byte, tsPacketSize)
	data[0] = 0x47
	data[1] = byte(pid >> 8 & 0x1f)
	data[2] = byte(pid)
	return uref.FromBuffer(block.NewFromBytes(data))
}

func parsePids(s string) []uint16 {
	var out []uint16
	var cur uint16
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			cur = cur*10 + uint16(r-'0')
		case r == ',':
			out = append(out, cur)
			cur = 0
		}
	}
	out = append(out, cur)
	return out
}
