package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pianoroll/midiparser"
)

var inspectNotes bool

func init() {
	inspectCmd.Flags().BoolVar(&inspectNotes, "notes", false, "print every note")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mid | ->",
	Short: "Prints what the parser makes of a MIDI file",
	Long:  `Prints what the parser makes of a MIDI file. With "-" the file is read from stdin.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var tl *midiparser.ParsedTimeline
		var err error
		if args[0] == "-" {
			tl, err = midiparser.ParseReader(cmd.InOrStdin())
		} else {
			tl, err = midiparser.ParseFile(args[0])
		}
		if err != nil {
			return err
		}
		printTimeline(cmd.OutOrStdout(), tl, inspectNotes)
		return nil
	},
}

func printTimeline(w io.Writer, tl *midiparser.ParsedTimeline, notes bool) {
	fmt.Fprintf(w, "format:        %d\n", tl.Format)
	fmt.Fprintf(w, "tracks:        %d\n", tl.TrackCount)
	fmt.Fprintf(w, "division:      %d ticks/quarter\n", tl.TicksPerQuarter)
	fmt.Fprintf(w, "notes:         %d\n", len(tl.Notes))
	fmt.Fprintf(w, "unterminated:  %d\n", tl.Unterminated)
	fmt.Fprintf(w, "out of range:  %d\n", tl.Discarded)
	fmt.Fprintf(w, "duration:      %.3fs\n", tl.TotalDurationSeconds)
	if tl.Tempo != nil {
		for _, c := range tl.Tempo.Changes() {
			fmt.Fprintf(w, "tempo:         tick %d  %.2f bpm\n", c.Tick, c.BPM())
		}
	}
	for _, warning := range tl.Warnings {
		fmt.Fprintf(w, "warning:       %v\n", warning)
	}
	if !notes {
		return
	}
	for _, n := range tl.Notes {
		fmt.Fprintf(w, "%9.3f %7.3f  pitch %3d  vel %3d  track %d\n",
			n.StartSeconds, n.DurationSeconds, n.Pitch, n.Velocity, n.Track)
	}
}
