package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"filmforge/media-library/config"
	"filmforge/media-library/pkg/medialib"

	"github.com/spf13/cobra"
	v "github.com/spf13/viper"
	"go.uber.org/zap"
)

// session is the client side state shared by one command invocation.
type session struct {
	client  *medialib.Client
	lib     *medialib.Library
	project string
	out     io.Writer
}

func newSession(cmd *cobra.Command) (*session, error) {
	if err := config.LoadClient(cmd.Flags()); err != nil {
		return nil, err
	}

	config.MakeLogger(v.GetString("app.log_level"))

	project := v.GetString("client.project")
	if project == "" {
		return nil, errors.New("no project selected, pass --project")
	}

	client := medialib.NewClient(v.GetString("client.api_url"), v.GetString("client.token"), nil)
	errOut := cmd.ErrOrStderr()

	lib, err := medialib.New(client, medialib.Options{
		PrefsPath: v.GetString("client.prefs_path"),
		Notifier: medialib.NotifierFunc(func(n medialib.Notification) {
			if n.Err != nil {
				zap.L().Debug("Operation failed", zap.Error(n.Err))
			}
			fmt.Fprintf(errOut, "%s %s\n", levelTag(n.Level), n.Message)
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up library, %w", err)
	}

	return &session{
		client:  client,
		lib:     lib,
		project: project,
		out:     cmd.OutOrStdout(),
	}, nil
}

func (s *session) Close() {
	s.lib.Close()
}

// folder resolves a slash separated folder path. An empty path means the
// whole project.
func (s *session) folder(cmd *cobra.Command, path string) (*medialib.MediaFolder, error) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, nil
	}

	f, err := s.lib.Tree.ResolvePath(cmd.Context(), s.project, segments)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q, %w", path, err)
	}

	return f, nil
}

func (s *session) folderID(cmd *cobra.Command, path string) (*string, error) {
	f, err := s.folder(cmd, path)
	if err != nil || f == nil {
		return nil, err
	}

	return &f.ID, nil
}

func splitPath(path string) []string {
	var segments []string
	for seg := range strings.SplitSeq(path, "/") {
		if seg = strings.TrimSpace(seg); seg != "" {
			segments = append(segments, seg)
		}
	}

	return segments
}

func levelTag(l medialib.Level) string {
	switch l {
	case medialib.LevelWarning:
		return "[warn]"
	case medialib.LevelError:
		return "[error]"
	default:
		return "[info]"
	}
}
