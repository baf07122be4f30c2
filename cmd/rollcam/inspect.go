package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/rollcam/internal/adapters/encoder"
	"github.com/bft-labs/rollcam/internal/adapters/fs"
	logAdapter "github.com/bft-labs/rollcam/internal/adapters/log"
)

func newSourcesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List capture sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			src := captureSource(c.cfg, logAdapter.NewZerologAdapterWithLogger(c.log))
			sources, err := src.ListSources(ctx)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no capture sources available")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSIZE")
			for _, s := range sources {
				fmt.Fprintf(w, "%s\t%s\t%dx%d\n", s.ID, s.Name, s.Width, s.Height)
			}
			return w.Flush()
		},
	}
}

func newSegmentsCmd(c *cli) *cobra.Command {
	var inspect bool
	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Print the segments currently in the buffer, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := fs.NewIndexFileRepository(c.cfg.BufferDir).Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if idx.IsEmpty() {
				fmt.Fprintf(out, "buffer %s is empty\n", c.cfg.BufferDir)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			header := "FILE\tSTART\tDURATION\tSIZE"
			if inspect {
				header += "\tVIDEO\tAUDIO\tSTATE"
			}
			fmt.Fprintln(w, header)

			var total time.Duration
			for _, rec := range idx.Segments {
				total += rec.Duration
				line := fmt.Sprintf("%s\t%s\t%s\t%d",
					rec.File, rec.Start.Local().Format(time.DateTime), rec.Duration, rec.Size)
				if inspect {
					line += "\t" + describe(filepath.Join(c.cfg.BufferDir, rec.File))
				}
				fmt.Fprintln(w, line)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d segments, %s buffered, updated %s\n",
				len(idx.Segments), total, idx.UpdatedAt.Local().Format(time.DateTime))
			return nil
		},
	}
	cmd.Flags().BoolVar(&inspect, "inspect", false, "open raw segments and count their samples")
	return cmd
}

// describe returns the VIDEO, AUDIO and STATE columns for one segment.
func describe(path string) string {
	if _, err := os.Stat(path); err != nil {
		return "-\t-\tmissing"
	}
	info, err := encoder.ReadRaw(path)
	switch {
	case errors.Is(err, encoder.ErrNotRaw):
		return "-\t-\tencoded"
	case err != nil:
		return "-\t-\tunreadable"
	case info.Truncated:
		return fmt.Sprintf("%d\t%d\ttruncated", info.Video, info.Audio)
	default:
		return fmt.Sprintf("%d\t%d\tcomplete", info.Video, info.Audio)
	}
}
