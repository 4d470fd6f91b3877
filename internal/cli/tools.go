package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ytget/yt-fetcher/internal/platform"
)

func newToolsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Show the external tools a download uses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := platform.CheckTools(a.cfg.Tools.FFmpeg, a.cfg.Tools.FFprobe, a.cfg.Tools.YTDLP)

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			missing := false
			for _, s := range statuses {
				path := s.Path
				if !s.Valid {
					missing = true
					path = fmt.Sprintf("%s (%s)", path, a.texts.GetText(KeyToolMissing))
				}
				fmt.Fprintf(tw, "%s\t%s\n", s.Name, path)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if missing {
				return &exitError{code: ExitFailure}
			}
			return nil
		},
	}
}
