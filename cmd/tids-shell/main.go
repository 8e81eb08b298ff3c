// Interactive host shell for poking the WSEN-TIDS driver against the
// simulator. Useful for exploring the register behaviour without hardware.
//
//	$ go run ./cmd/tids-shell
//	tids> read
//	25.00 C
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/shlex"

	"wsencode-go/drivers/wsentids"
	"wsencode-go/drivers/wsentids/sim"
	"wsencode-go/x/conv"
	"wsencode-go/x/timex"
)

func main() {
	// Simulated temperature, adjustable from the shell via `source`.
	var milliC atomic.Int32
	milliC.Store(25_000)

	sensor := sim.New(wsentids.AddressSAOHigh,
		sim.WithConversionTime(2*time.Millisecond),
		sim.WithSource(func() int16 { return int16(milliC.Load() / 10) }))

	dev := wsentids.New(sensor, wsentids.Config{Mode: wsentids.ModeSingleShot})
	if err := dev.Probe(); err != nil {
		fmt.Fprintln(os.Stderr, "probe:", err)
		os.Exit(1)
	}
	if err := dev.Configure(wsentids.Config{Mode: wsentids.ModeSingleShot}); err != nil {
		fmt.Fprintln(os.Stderr, "configure:", err)
		os.Exit(1)
	}

	fmt.Println("simulated WSEN-TIDS at 0x38, type 'help' for commands")
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("tids> ")
		if !in.Scan() {
			fmt.Println()
			return
		}
		args, err := shlex.Split(in.Text())
		if err != nil {
			fmt.Println("parse error:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			return
		}
		if err := runCmd(dev, &milliC, args); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func runCmd(dev *wsentids.Device, milliC *atomic.Int32, args []string) error {
	switch args[0] {
	case "help":
		fmt.Print(`commands:
  id                  read DEVICE_ID
  read                single-shot measurement (trigger + poll)
  temp                read current temperature registers
  status              read STATUS flags
  snap                full telemetry snapshot
  limits              show threshold registers
  high <mC>           set the high threshold
  low <mC>            set the low threshold
  clear               disable both thresholds
  mode single         single-shot mode
  mode cont [hz]      continuous mode (25/50/100/200 Hz)
  reset               software reset, then reconfigure
  source <mC>         set the simulated temperature
  quit
`)
	case "id":
		id, err := dev.DeviceID()
		if err != nil {
			return err
		}
		fmt.Printf("0x%02X\n", id)
	case "read":
		var s wsentids.Sample
		if err := dev.Read(&s); err != nil {
			return err
		}
		printSample(s)
	case "temp":
		mc, err := dev.Temperature_mC()
		if err != nil {
			return err
		}
		fmt.Printf("%s C\n", conv.MilliString(mc))
	case "status":
		st, err := dev.Status()
		if err != nil {
			return err
		}
		fmt.Printf("busy=%v over_high=%v under_low=%v\n", st.Busy(), st.OverHigh(), st.UnderLow())
	case "snap":
		s := dev.Snapshot()
		fmt.Printf("temp=%s C raw=%d over_high=%v under_low=%v\n",
			conv.MilliString(s.Temp_mC), s.Raw, s.Status.OverHigh(), s.Status.UnderLow())
		printLimit("high", s.HighLimit_mC, s.HighEnabled)
		printLimit("low", s.LowLimit_mC, s.LowEnabled)
	case "limits":
		if mc, en, err := dev.HighLimit_mC(); err != nil {
			return err
		} else {
			printLimit("high", mc, en)
		}
		if mc, en, err := dev.LowLimit_mC(); err != nil {
			return err
		} else {
			printLimit("low", mc, en)
		}
	case "high":
		mc, err := argMilli(args)
		if err != nil {
			return err
		}
		return dev.SetHighLimit_mC(mc)
	case "low":
		mc, err := argMilli(args)
		if err != nil {
			return err
		}
		return dev.SetLowLimit_mC(mc)
	case "clear":
		if err := dev.DisableHighLimit(); err != nil {
			return err
		}
		return dev.DisableLowLimit()
	case "mode":
		if len(args) < 2 {
			return fmt.Errorf("usage: mode single|cont [hz]")
		}
		cfg := wsentids.Config{Mode: wsentids.ModeSingleShot}
		if args[1] == "cont" {
			cfg.Mode = wsentids.ModeContinuous
			if len(args) > 2 {
				hz, err := strconv.Atoi(args[2])
				if err != nil {
					return err
				}
				cfg.Speed = speedFor(hz)
			}
		} else if args[1] != "single" {
			return fmt.Errorf("unknown mode %q", args[1])
		}
		if err := dev.Configure(cfg); err != nil {
			return err
		}
		if cfg.Mode == wsentids.ModeContinuous {
			fmt.Printf("continuous at %d Hz (period %v)\n",
				cfg.Speed.Hz(), timex.PeriodFromHz(cfg.Speed.Hz()))
		}
		return nil
	case "reset":
		if err := dev.Reset(); err != nil {
			return err
		}
		return dev.Configure(wsentids.Config{Mode: wsentids.ModeSingleShot})
	case "source":
		mc, err := argMilli(args)
		if err != nil {
			return err
		}
		milliC.Store(mc)
	default:
		return fmt.Errorf("unknown command %q (try 'help')", args[0])
	}
	return nil
}

func argMilli(args []string) (int32, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("usage: %s <milli-celsius>", args[0])
	}
	v, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

func printSample(s wsentids.Sample) {
	fmt.Printf("%s C", conv.MilliString(s.MilliCelsius()))
	if s.Alarm.OverHigh() {
		fmt.Print("  [OVER HIGH]")
	}
	if s.Alarm.UnderLow() {
		fmt.Print("  [UNDER LOW]")
	}
	fmt.Println()
}

func printLimit(name string, mc int32, enabled bool) {
	if !enabled {
		fmt.Printf("%s limit: disabled\n", name)
		return
	}
	fmt.Printf("%s limit: %s C\n", name, conv.MilliString(mc))
}

func speedFor(hz int) wsentids.Speed {
	switch {
	case hz >= 200:
		return wsentids.Speed200Hz
	case hz >= 100:
		return wsentids.Speed100Hz
	case hz >= 50:
		return wsentids.Speed50Hz
	default:
		return wsentids.Speed25Hz
	}
}
