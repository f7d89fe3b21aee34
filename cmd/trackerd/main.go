package main

import (
	"flag"
	"log"

	"github.com/rrisinglight/trackerd/app"
	"github.com/rrisinglight/trackerd/config"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	serialDevice := flag.String("serial", "/dev/ttyS0", "half-duplex smart-servo serial device")
	calibrationPath := flag.String("calibration", "/var/lib/trackerd/calibration.json", "path to the persisted calibration record (empty disables persistence)")
	clkPin := flag.String("vtx-clk-pin", "", "vtx bit-bang CLK GPIO pin (empty uses the driver default)")
	dataPin := flag.String("vtx-data-pin", "", "vtx bit-bang DATA GPIO pin (empty uses the driver default)")
	csPin := flag.String("vtx-cs-pin", "", "vtx bit-bang CS GPIO pin (empty uses the driver default)")
	flag.Parse()

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		log.Fatalln(err)
	}

	application, err := app.New(app.Config{
		Tracking:        cfg,
		SerialDevice:    *serialDevice,
		CalibrationPath: *calibrationPath,
		ClkPin:          *clkPin,
		DataPin:         *dataPin,
		CsPin:           *csPin,
	})
	if err != nil {
		log.Fatalln(err)
	}

	if err := application.Start(); err != nil {
		log.Fatalln(err)
	}
}
