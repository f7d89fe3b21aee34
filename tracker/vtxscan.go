package tracker

import "time"

// startVtxScan launches the background VTX band/channel sweep
// (spec.md §4.6 VtxScan). Rejected (invariant 10) if a scan is
// already running. The worker runs on its own goroutine so it does
// not block the 10 Hz control-loop tick; it takes vtxMu for each
// SetChannel call, the same lock Status and applyVtxSet use, so a
// foreground vtx_set command and the scan never race on the driver.
func (t *Core) startVtxScan(settleMsOverride int) {
	t.vtxMu.Lock()
	if t.vtxRunning {
		t.vtxMu.Unlock()
		t.log("tracker: %v\n", ErrVtxScanInProgress)
		return
	}
	t.vtxRunning = true
	t.vtxGrid = NewVtxGrid()
	t.vtxGrid.InProgress = true
	t.vtxMu.Unlock()

	settleMs := t.cfg.VtxScan.SettleMsMin
	if settleMsOverride > settleMs {
		settleMs = settleMsOverride
	}

	go t.sweepVtxBands(time.Duration(settleMs) * time.Millisecond)
}

// sweepVtxBands iterates the canonical band order and channels 1..8,
// recording L+R for each cell and tracking the strictly-greatest as
// best. A VtxDriver error aborts the scan, leaving the partial grid.
func (t *Core) sweepVtxBands(settle time.Duration) {
	defer func() {
		t.vtxMu.Lock()
		t.vtxGrid.InProgress = false
		t.vtxMu.Unlock()
	}()

	bands := []byte{'A', 'B', 'E', 'F', 'R', 'L'}

	var best *VtxCell
	for _, band := range bands {
		var row [8]VtxCell
		for channel := 1; channel <= 8; channel++ {
			t.vtxMu.Lock()
			err := t.vtx.SetChannel(band, channel)
			if err != nil {
				t.vtxGrid.Cells[band] = row
				t.vtxMu.Unlock()
				t.log("tracker: %v: %v\n", ErrVtxSetFailed, err)
				t.finishVtxScan(best)
				return
			}
			t.vtxGrid.Current = &VtxCell{Band: band, Channel: channel}
			t.vtxMu.Unlock()

			t.clock.Sleep(settle)

			left, right, sampleErr := t.sampleVtxRssi()
			if sampleErr != nil {
				t.log("tracker: vtx scan RSSI read failed at %s%d: %v\n", string(band), channel, sampleErr)
			}

			cell := VtxCell{Band: band, Channel: channel, Rssi: left + right, Filled: true}
			row[channel-1] = cell
			if best == nil || cell.Rssi > best.Rssi {
				bestCopy := cell
				best = &bestCopy
			}
		}
		t.vtxMu.Lock()
		t.vtxGrid.Cells[band] = row
		t.vtxMu.Unlock()
	}

	t.finishVtxScan(best)
}

// sampleVtxRssi reads one fresh (L,R) for the currently-selected VTX
// channel, applying the current calibration but bypassing the
// RssiPipeline's moving-average buffers: those belong to Auto's
// position-control signal, and mixing a VTX-scan sample into them
// would corrupt that average with a reading from an unrelated channel.
func (t *Core) sampleVtxRssi() (left, right int, err error) {
	rawLeft, err := t.adc.ReadChannel(t.cfg.ADC.LeftChannel)
	if err != nil {
		return 0, 0, err
	}
	rawRight, err := t.adc.ReadChannel(t.cfg.ADC.RightChannel)
	if err != nil {
		return 0, 0, err
	}

	t.mu.Lock()
	cal := t.calibration
	t.mu.Unlock()

	left, right = cal.Calibrate(rawLeft, rawRight)
	return left, right, nil
}

func (t *Core) finishVtxScan(best *VtxCell) {
	t.vtxMu.Lock()
	t.vtxGrid.Best = best
	t.vtxGrid.Current = nil
	t.vtxRunning = false
	if best != nil {
		if err := t.vtx.SetChannel(best.Band, best.Channel); err != nil {
			t.log("tracker: failed to commit best vtx cell: %v\n", err)
		} else {
			t.vtxState = VtxState{Band: best.Band, Channel: best.Channel, Initialized: true}
		}
	}
	grid := t.vtxGrid
	t.vtxMu.Unlock()

	t.Publish("vtx_scan_complete", grid)
}
