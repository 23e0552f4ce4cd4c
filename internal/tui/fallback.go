package tui

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/kverlaine/opsdeck/internal/dockerops"
	"github.com/kverlaine/opsdeck/internal/gateway"
	"github.com/kverlaine/opsdeck/internal/sysinfo"
	"github.com/kverlaine/opsdeck/internal/toolkit"
)

// isTerminal returns true if both stdout and stdin are TTYs.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
}

// runSimple prints a one-shot status dump for non-interactive use
// (pipes, cron, CI). It never polls.
func (t *TUI) runSimple() error {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.Gateway.ActionTimeout)
	defer cancel()

	header := color.New(color.FgCyan, color.Bold)
	good := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	dim := color.New(color.Faint)

	header.Println("== system ==")
	res := t.gw.Invoke(ctx, "system.snapshot", nil)
	var snap sysinfo.Snapshot
	if err := gateway.Decode(res, &snap); err != nil {
		bad.Printf("unavailable: %v\n", err)
	} else {
		fmt.Printf("%s  %s  up %s\n", snap.Hostname, snap.Platform, humanUptime(snap.UptimeSec))
		fmt.Printf("cpu %.1f%%  load %.2f %.2f %.2f  mem %s/%s (%.1f%%)\n",
			snap.CPUPercent, snap.Load1, snap.Load5, snap.Load15,
			humanBytes(snap.MemUsed), humanBytes(snap.MemTotal), snap.MemPercent)
		for _, d := range snap.Disks {
			fmt.Printf("disk %s  %s/%s (%.1f%%)\n",
				d.Path, humanBytes(d.Used), humanBytes(d.Total), d.UsedPercent)
		}
	}

	header.Println("== containers ==")
	res = t.gw.Invoke(ctx, "docker.list", nil)
	var containers []dockerops.ContainerInfo
	if err := gateway.Decode(res, &containers); err != nil {
		bad.Printf("unavailable: %v\n", err)
	} else if len(containers) == 0 {
		dim.Println("none")
	} else {
		for _, c := range containers {
			state := bad.Sprint(c.State)
			if c.Running() {
				state = good.Sprint(c.State)
			}
			fmt.Printf("%-24s %-28s %s  %s\n", c.Name, c.Image, state, c.Status)
		}
	}

	header.Println("== tools ==")
	res = t.gw.Invoke(ctx, "tools.list", nil)
	var statuses []toolkit.Status
	if err := gateway.Decode(res, &statuses); err != nil {
		bad.Printf("unavailable: %v\n", err)
	} else {
		for _, st := range statuses {
			if st.Installed {
				fmt.Printf("%-18s %s  %s\n", st.Name, good.Sprint("ok"), dim.Sprint(st.Version))
			} else {
				fmt.Printf("%-18s %s\n", st.Name, bad.Sprint("missing"))
			}
		}
	}

	return nil
}
