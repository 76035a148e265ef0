package main

import (
	"flag"
	"log"

	"github.com/Corezcy/record-latency/internal/record"
	"github.com/Corezcy/record-latency/internal/sample"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	def := sample.DefaultOptions()
	var (
		out       = flag.String("out", "sample.record", "record file to write")
		frames    = flag.Int("frames", def.Frames, "number of lidar frames")
		start     = flag.Uint64("start", def.Start, "lidar timestamp of the first frame (ns)")
		period    = flag.Uint64("period", def.Period, "spacing of lidar frames (ns)")
		dropEvery = flag.Int("drop_every", def.DropEvery, "drop the perception message of every n-th frame (0 keeps all)")
		chunk     = flag.Int("chunk_messages", record.DefaultChunkMessages, "messages per chunk")
	)
	flag.Parse()

	w, err := record.Create(*out, record.WithChunkMessages(*chunk))
	if err != nil {
		log.Fatalf("[gen-record] create %s: %v", *out, err)
	}

	opts := sample.Options{
		Frames:    *frames,
		Start:     *start,
		Period:    *period,
		DropEvery: *dropEvery,
	}
	if err := sample.Write(w, opts); err != nil {
		w.Close()
		log.Fatalf("[gen-record] write: %v", err)
	}
	if err := w.Close(); err != nil {
		log.Fatalf("[gen-record] close: %v", err)
	}
	log.Printf("[gen-record] wrote %d frames to %s", *frames, *out)
}
