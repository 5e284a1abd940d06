// Command gbprint develops Game Boy Printer output. It either replays a
// capture of the bytes a game sent to the printer, or serves a printer
// over a websocket link for a remote emulator to print to.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/thelolagemann/gbcore/internal/gameboy"
	"github.com/thelolagemann/gbcore/internal/serial"
	"github.com/thelolagemann/gbcore/internal/serial/accessories"
	"github.com/thelolagemann/gbcore/internal/serial/link"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/log"
	"github.com/thelolagemann/gbcore/pkg/utils"
)

func main() {
	capture := flag.String("capture", "", "The captured serial stream to replay (may be .gz, .xz, .zip or .7z)")
	listen := flag.String("listen", "", "Serve a printer over websocket on this address instead")
	out := flag.String("out", ".", "The directory to write printed images to")
	verbose := flag.Bool("v", false, "Log every packet")
	flag.Parse()

	l := log.New()
	if *verbose {
		l = log.NewWithOutput(os.Stderr)
	}

	var err error
	switch {
	case *listen != "":
		err = serve(*listen, *out, l)
	case *capture != "":
		err = replay(*capture, *out, l)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		l.Errorf("%v", err)
		os.Exit(1)
	}
}

// replay clocks every captured byte into a printer attached to a
// GameBoy, the way the game would.
func replay(capture, out string, l log.Logger) error {
	stream, err := utils.LoadFile(capture)
	if err != nil {
		return err
	}

	printer := accessories.NewPrinter(l)
	gb, err := gameboy.New(gameboy.WithLogger(l), gameboy.WithPeripheral(printer))
	if err != nil {
		return err
	}
	defer gb.Close()

	bus := gb.Bus()
	for _, b := range stream {
		bus.Write(types.SB, b)
		bus.Write(types.SC, 0x81)
		for gb.Serial.Transferring() {
			gb.Step(4)
		}
	}

	files, err := printer.SaveJobs(out)
	for _, f := range files {
		fmt.Println(f)
	}
	if err == nil && len(files) == 0 {
		l.Warnf("%s: nothing was printed", capture)
	}
	return err
}

// serve answers link cable traffic with a printer, one per connection.
func serve(addr, out string, l log.Logger) error {
	http.Handle("/", link.Handler(func(t serial.Transport) {
		defer t.Close()
		printer := accessories.NewPrinter(l)
		ctx := context.Background()

		for {
			m, err := t.Receive(ctx)
			if err != nil {
				return
			}
			if m.Tag != serial.TagData {
				continue
			}
			reply, _ := printer.ReceiveByte(m.Payload)
			if err := t.Send(ctx, serial.Message{Payload: reply, Tag: serial.TagData}); err != nil {
				return
			}

			if printer.HasPrintJob() {
				files, err := printer.SaveJobs(out)
				if err != nil {
					l.Errorf("%v", err)
				}
				for _, f := range files {
					l.Infof("printed %s", f)
				}
			}
		}
	}))

	l.Infof("serving printer on %s", addr)
	return http.ListenAndServe(addr, nil)
}
