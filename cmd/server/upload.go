package main

import (
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lumeno-study/lumeno/internal/app"
	"github.com/lumeno-study/lumeno/internal/configuration"
	"github.com/lumeno-study/lumeno/internal/upload"
)

func newUploadCmd(cfg *configuration.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a PDF as the signed-in user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, slog.Default())
			if err != nil {
				return err
			}
			defer a.Close()
			a.Sync.Start()

			file, err := upload.FromPath(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			unsubscribe := a.Uploads.Subscribe(progressPrinter(out))
			defer unsubscribe()

			record, err := a.Uploads.Upload(ctx, file)
			if err != nil {
				return fmt.Errorf("%s: %w", upload.UserMessage(err), err)
			}

			fmt.Fprintln(out, upload.MessageSuccess)
			fmt.Fprintln(out, record.URL)
			return nil
		},
	}
}

// progressPrinter writes one line per whole-percent change.
func progressPrinter(w io.Writer) func(upload.JobState) {
	last := -1
	return func(st upload.JobState) {
		if st.Phase != upload.PhaseTransferring {
			return
		}
		if p := int(st.Percent); p != last {
			last = p
			fmt.Fprintf(w, "Uploading %s: %d%%\n", st.FileName, p)
		}
	}
}
