package cmd

import (
	"errors"
	"fmt"

	"filmforge/media-library/pkg/medialib"

	"github.com/spf13/cobra"
)

func NewSyncCommand() *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "sync [file-id]",
		Short: "Push files to the connected cloud provider",
		Long:  "Push one file, or every file of a folder and its subfolders, to the first connected cloud provider.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (folder == "") {
				return errors.New("pass either a file id or --folder")
			}

			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.lib.Connections.Refresh(cmd.Context()); err != nil {
				return err
			}

			var report *medialib.SyncReport
			if len(args) > 0 {
				report, err = s.lib.Sync.SyncFile(cmd.Context(), s.project, args[0])
			} else {
				f, ferr := s.folder(cmd, folder)
				if ferr != nil {
					return ferr
				}
				if f == nil {
					return errors.New("--folder must name a folder")
				}

				report, err = s.lib.Sync.SyncFolder(cmd.Context(), s.project, f.ID)
			}
			if err != nil {
				return err
			}

			if report.Failed > 0 {
				return errors.New(report.Message())
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&folder, "folder", "f", "", "Folder path to sync")

	return cmd
}

func NewConnectionsCommand() *cobra.Command {
	var dismiss bool

	cmd := &cobra.Command{
		Use:   "connections",
		Short: "Show cloud provider connections",
		Long:  "Show which cloud providers are linked to the account.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			conns, err := s.lib.Connections.Refresh(cmd.Context())
			if err != nil {
				return err
			}

			if _, err := s.lib.Prefs.Sync(conns); err != nil {
				return err
			}

			for _, c := range conns {
				state := "not connected"
				if c.Connected {
					state = "connected"
				}
				fmt.Fprintf(s.out, "%s\t%s\n", c.Provider, state)
			}

			if dismiss {
				return s.lib.Prefs.DismissBanner()
			}

			if s.lib.Prefs.BannerVisible(conns) {
				fmt.Fprintln(s.out, "\nFiles can be mirrored to your cloud storage with `sync`. Hide this hint with --dismiss-banner.")
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&dismiss, "dismiss-banner", false, "Stop showing the cloud sync hint")

	cmd.AddCommand(newConnectCommand())
	cmd.AddCommand(newDisconnectCommand())

	return cmd
}

func newConnectCommand() *cobra.Command {
	var creds map[string]string

	cmd := &cobra.Command{
		Use:   "connect <provider>",
		Short: "Link a cloud provider",
		Long:  "Link a cloud provider. Credentials are passed as key=value pairs, e.g. --cred refresh_token=... for google_drive.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := medialib.Provider(args[0])
			if !p.Valid() {
				return fmt.Errorf("unknown provider %q", args[0])
			}

			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.client.Connect(cmd.Context(), p, creds); err != nil {
				return err
			}

			fmt.Fprintf(s.out, "%s connected\n", p)
			return nil
		},
	}

	cmd.Flags().StringToStringVar(&creds, "cred", nil, "Provider credential as key=value, may be repeated")

	return cmd
}

func newDisconnectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disconnect <provider>",
		Short: "Unlink a cloud provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := medialib.Provider(args[0])
			if !p.Valid() {
				return fmt.Errorf("unknown provider %q", args[0])
			}

			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.client.Disconnect(cmd.Context(), p); err != nil {
				return err
			}

			fmt.Fprintf(s.out, "%s disconnected\n", p)
			return nil
		},
	}

	return cmd
}
