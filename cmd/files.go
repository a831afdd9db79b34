package cmd

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"text/tabwriter"

	"filmforge/media-library/pkg/medialib"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
)

func NewListCommand() *cobra.Command {
	var withURLs bool

	cmd := &cobra.Command{
		Use:   "ls [folder]",
		Short: "List files",
		Long:  "List the files of a folder, or of the whole project when no folder is given. Folders are addressed by path, e.g. shots/day1.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			var path string
			if len(args) > 0 {
				path = args[0]
			}

			folderID, err := s.folderID(cmd, path)
			if err != nil {
				return err
			}

			files, err := s.lib.Catalog.ListFiles(cmd.Context(), s.project, folderID)
			if err != nil {
				return err
			}

			var urls map[string]string
			if withURLs {
				keys := make([]string, 0, len(files))
				for _, f := range files {
					keys = append(keys, f.ObjectKey)
				}

				// Missing keys print as unavailable
				urls, _ = s.lib.Resolver.ResolveMany(cmd.Context(), keys)
			}

			w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
			for _, f := range files {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s", f.ID, f.Type, humanize.IBytes(uint64(f.Size)), f.Name)
				if withURLs {
					u, ok := urls[f.ObjectKey]
					if !ok {
						u = "(preview unavailable)"
					}
					fmt.Fprintf(w, "\t%s", u)
				}
				fmt.Fprintln(w)
			}

			return w.Flush()
		},
	}

	cmd.Flags().BoolVarP(&withURLs, "urls", "u", false, "Resolve an access URL for every file")

	return cmd
}

func NewUploadCommand() *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload files",
		Long:  "Upload local files straight to the storage bucket and register them in the library.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			folderID, err := s.folderID(cmd, folder)
			if err != nil {
				return err
			}

			srcs := make([]medialib.UploadSource, 0, len(args))
			for _, p := range args {
				src, closeFn, err := openSource(p, folderID)
				if err != nil {
					return err
				}
				defer closeFn()

				srcs = append(srcs, src)
			}

			var mu sync.Mutex
			last := make([]medialib.UploadState, len(srcs))

			results := s.lib.Uploads.UploadMany(cmd.Context(), s.project, srcs, func(i int, p medialib.UploadProgress) {
				mu.Lock()
				defer mu.Unlock()

				if last[i] == p.State {
					return
				}
				last[i] = p.State

				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s (%.0f%%)\n", srcs[i].Name, p.State, p.Percent)
			})

			var failed int
			for _, r := range results {
				if r.Err != nil {
					failed++

					var orphan *medialib.OrphanedUploadError
					if errors.As(r.Err, &orphan) {
						fmt.Fprintf(s.out, "%s: uploaded but not registered (key %s), %v\n", r.Name, orphan.Key, r.Err)
						continue
					}

					fmt.Fprintf(s.out, "%s: %v\n", r.Name, r.Err)
					continue
				}

				fmt.Fprintf(s.out, "%s: %s\n", r.Name, r.File.ID)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d uploads failed", failed, len(results))
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&folder, "folder", "f", "", "Destination folder path")

	return cmd
}

func openSource(path string, folderID *string) (medialib.UploadSource, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return medialib.UploadSource{}, nil, fmt.Errorf("failed to open %s, %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return medialib.UploadSource{}, nil, fmt.Errorf("failed to stat %s, %w", path, err)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		f.Close()
		return medialib.UploadSource{}, nil, fmt.Errorf("failed to detect type of %s, %w", path, err)
	}

	return medialib.UploadSource{
		Name:     filepath.Base(path),
		MIME:     mtype.String(),
		Size:     info.Size(),
		Body:     f,
		FolderID: folderID,
	}, f.Close, nil
}

func NewRemoveCommand() *cobra.Command {
	var (
		folders      []string
		moveToParent bool
		concurrency  int
	)

	cmd := &cobra.Command{
		Use:   "rm [file-id]...",
		Short: "Delete files and folders",
		Long:  "Delete files by id and folders by path. Folders are deleted with everything below them unless --move-to-parent is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(folders) == 0 {
				return errors.New("nothing to delete")
			}

			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			sel := medialib.NewSelection()
			sel.EnterMultiSelect()

			if len(args) > 0 {
				files, err := s.lib.Catalog.ListFiles(cmd.Context(), s.project, nil)
				if err != nil {
					return err
				}

				byID := make(map[string]medialib.MediaFile, len(files))
				for _, f := range files {
					byID[f.ID] = f
				}

				for _, id := range args {
					f, ok := byID[id]
					if !ok {
						return fmt.Errorf("file %s not found in project %s", id, s.project)
					}
					sel.AddFile(f)
				}
			}

			for _, p := range folders {
				f, err := s.folder(cmd, p)
				if err != nil {
					return err
				}
				if f == nil {
					return errors.New("the project root can't be deleted")
				}
				sel.AddFolder(f.ID)
			}

			res := s.lib.Bulk.Delete(cmd.Context(), s.project, sel, medialib.BulkOptions{
				MoveFilesToParent: moveToParent,
				Concurrency:       concurrency,
			})

			for _, f := range res.Failures {
				fmt.Fprintf(s.out, "%s: %v\n", cmp.Or(f.Name, f.ID), f.Err)
			}

			if res.Outcome() != medialib.OutcomeSuccess {
				return errors.New(res.Message("Deleted"))
			}

			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&folders, "folder", "f", nil, "Folder path to delete, may be repeated")
	cmd.Flags().BoolVar(&moveToParent, "move-to-parent", false, "Keep the files of deleted folders by moving them to the parent")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Number of files deleted in parallel")

	return cmd
}
