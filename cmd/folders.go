package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"filmforge/media-library/pkg/medialib"

	"github.com/spf13/cobra"
)

func NewTreeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the folder tree",
		Long:  "Show the project folders with their file counts, followed by the folders of the connected cloud provider.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.lib.Connections.Refresh(cmd.Context()); err != nil {
				return err
			}

			tree, err := s.lib.Catalog.FolderTree(cmd.Context(), s.project)
			if err != nil {
				return err
			}

			fmt.Fprintln(s.out, s.project)
			printFolders(s.out, tree, 1)

			nodes, err := s.lib.Tree.Children(cmd.Context(), s.project, nil)
			if err != nil {
				return err
			}

			for _, n := range nodes {
				if n.IsCloud() {
					fmt.Fprintf(s.out, "%s:%s\n", n.Location.Provider, n.Name)
				}
			}

			return nil
		},
	}

	return cmd
}

func printFolders(w io.Writer, folders []*medialib.MediaFolder, depth int) {
	for _, f := range folders {
		fmt.Fprintf(w, "%s%s/ (%d)\n", strings.Repeat("  ", depth), f.Name, f.FileCount)
		printFolders(w, f.Children, depth+1)
	}
}

func NewMkdirCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a folder",
		Long:  "Create a folder at the given path. The parent folders must already exist.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			segments := splitPath(args[0])
			if len(segments) == 0 {
				return errors.New("folder path can't be empty")
			}

			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			parentID, err := s.folderID(cmd, strings.Join(segments[:len(segments)-1], "/"))
			if err != nil {
				return err
			}

			f, err := s.lib.Backend.CreateFolder(cmd.Context(), s.project, medialib.FolderRequest{
				Name:     segments[len(segments)-1],
				ParentID: parentID,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(s.out, f.ID)
			return nil
		},
	}

	return cmd
}
