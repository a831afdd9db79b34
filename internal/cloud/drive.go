package cloud

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"filmforge/media-library/pkg/medialib"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	driveFolderType = "application/vnd.google-apps.folder"
	driveRootName   = "Media Library"
	driveFileFields = "id,name,mimeType,size,createdTime,webContentLink"
)

// Drive mirrors files into a "Media Library" folder of a Google Drive
// account, with one subfolder per well-known category.
type Drive struct {
	svc *drive.Service

	mu      sync.Mutex
	root    string
	folders map[string]string
}

// NewDriveFactory returns a Factory that exchanges the refresh_token
// credential of a connection for access tokens of the given OAuth client.
func NewDriveFactory(clientID, clientSecret string) Factory {
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}

	return func(ctx context.Context, creds map[string]string) (Provider, error) {
		if clientID == "" {
			return nil, fmt.Errorf("%w: google drive client is not configured", ErrBadCredentials)
		}

		if err := Require(creds, "refresh_token"); err != nil {
			return nil, err
		}

		// The token source outlives the request that opened the provider
		ts := conf.TokenSource(context.WithoutCancel(ctx), &oauth2.Token{RefreshToken: creds["refresh_token"]})

		return NewDrive(ctx, oauth2.NewClient(context.WithoutCancel(ctx), ts))
	}
}

// NewDrive wraps an already authorized HTTP client.
func NewDrive(ctx context.Context, hc *http.Client, opts ...option.ClientOption) (*Drive, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(hc)}, opts...)

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive client, %w", err)
	}

	return &Drive{
		svc:     svc,
		folders: map[string]string{},
	}, nil
}

func (d *Drive) Name() medialib.Provider {
	return medialib.ProviderGoogleDrive
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "'", `\'`) + "'"
}

// findOrCreate returns the id of the folder called name under parent.
func (d *Drive) findOrCreate(ctx context.Context, name, parent string) (string, error) {
	q := fmt.Sprintf("name = %s and mimeType = '%s' and %s in parents and trashed = false", quote(name), driveFolderType, quote(parent))

	list, err := d.svc.Files.List().Q(q).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to look up folder %s, %w", name, err)
	}

	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	created, err := d.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: driveFolderType,
		Parents:  []string{parent},
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create folder %s, %w", name, err)
	}

	zap.L().Debug("Created drive folder", zap.String("name", name), zap.String("id", created.Id))

	return created.Id, nil
}

// folderID maps a well-known folder name to its Drive id, creating the
// folder on first use. Any other value is taken as a native id.
func (d *Drive) folderID(ctx context.Context, folder string) (string, error) {
	if !IsWellKnown(folder) {
		return folder, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.folders[folder]; ok {
		return id, nil
	}

	if d.root == "" {
		root, err := d.findOrCreate(ctx, driveRootName, "root")
		if err != nil {
			return "", err
		}

		d.root = root
	}

	id, err := d.findOrCreate(ctx, folder, d.root)
	if err != nil {
		return "", err
	}

	d.folders[folder] = id
	return id, nil
}

func (d *Drive) Upload(ctx context.Context, folder string, obj Object) (string, error) {
	parent, err := d.folderID(ctx, folder)
	if err != nil {
		return "", err
	}

	f, err := d.svc.Files.Create(&drive.File{
		Name:     obj.Name,
		MimeType: obj.MIME,
		Parents:  []string{parent},
	}).Media(obj.Body, googleapi.ContentType(obj.MIME)).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to drive, %w", obj.Name, err)
	}

	return f.Id, nil
}

func (d *Drive) List(ctx context.Context, folder string) ([]medialib.MediaFile, error) {
	parent, err := d.folderID(ctx, folder)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf("%s in parents and mimeType != '%s' and trashed = false", quote(parent), driveFolderType)

	var files []medialib.MediaFile

	err = d.svc.Files.List().
		Q(q).
		Fields(googleapi.Field("nextPageToken,files(" + driveFileFields + ")")).
		Context(ctx).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				files = append(files, driveFile(f))
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list drive folder %s, %w", folder, err)
	}

	return files, nil
}

func (d *Drive) URL(ctx context.Context, id string) (*medialib.SignedURL, error) {
	f, err := d.svc.Files.Get(id).Fields("webContentLink").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get drive link of %s, %w", id, err)
	}

	if f.WebContentLink == "" {
		return nil, fmt.Errorf("drive file %s has no download link", id)
	}

	// Drive links are durable, the zero expiry tells clients to pick their own
	return &medialib.SignedURL{URL: f.WebContentLink}, nil
}

func driveFile(f *drive.File) medialib.MediaFile {
	m := medialib.MediaFile{
		ID:         f.Id,
		Name:       f.Name,
		Type:       medialib.MediaTypeFromMIME(f.MimeType),
		MIME:       f.MimeType,
		Size:       f.Size,
		Location:   medialib.Cloud(medialib.ProviderGoogleDrive),
		ProviderID: f.Id,
		URL:        f.WebContentLink,
	}

	if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
		m.CreatedAt = t
	}

	return m
}
