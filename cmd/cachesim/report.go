package main

import (
	"io"
	"log"

	"github.com/jeandeaual/go-locale"
	"golang.org/x/text/message"

	"github.com/sarchlab/cachesim/driver"
	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/trace"
)

var printer *message.Printer

func init() {
	locales, err := locale.GetLocales()
	if err != nil {
		log.Printf("cachesim: locale: %v", err)
	}

	if len(locales) == 0 {
		locales = []string{"en-US"}
	}

	printer = message.NewPrinter(message.MatchLanguage(locales...))
}

// printReport writes the run summary with locale-aware number formatting.
func printReport(w io.Writer, name string, res driver.Result, counter *trace.EventCounter) {
	printer.Fprintf(w, "\n")
	printer.Fprintf(w, "Trace: %s\n", name)
	printer.Fprintf(w, "Run: %s\n", res.RunID)
	printer.Fprintf(w, "Reads: %d\n", res.Reads)
	printer.Fprintf(w, "Writes: %d\n", res.Writes)
	printer.Fprintf(w, "Total Time: %d\n", res.Time)
	if n := res.Reads + res.Writes; n > 0 {
		printer.Fprintf(w, "Average Cost: %.2f\n", float64(res.Time)/float64(n))
	}

	printer.Fprintf(w, "\n")
	printer.Fprintf(w, "Levels:\n")
	for _, l := range res.Stats.Levels {
		lookups := l.Hits + l.Misses
		rate := 0.0
		if lookups > 0 {
			rate = 100.0 * float64(l.Hits) / float64(lookups)
		}
		printer.Fprintf(w, "  %-4s hits %d, misses %d (%.1f%% hit), evictions %d, write-backs %d\n",
			l.Name, l.Hits, l.Misses, rate, l.Evictions, l.Writebacks)
	}
	printer.Fprintf(w, "  %-4s reads %d, writes %d\n",
		"DRAM", res.Stats.Memory.Reads, res.Stats.Memory.Writes)

	printer.Fprintf(w, "\n")
	printer.Fprintf(w, "Events: %d hits, %d misses, %d write-backs\n",
		counter.Total(cache.HookPosHit),
		counter.Total(cache.HookPosMiss),
		counter.Total(cache.HookPosWriteBack))
}
