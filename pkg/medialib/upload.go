package medialib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type UploadState int

const (
	StateIdle UploadState = iota
	StateGrantRequested
	StateTransferring
	StateRegistering
	StateDone
	StateFailed
)

var stateNames = [...]string{"idle", "grant-requested", "transferring", "registering", "done", "failed"}

func (s UploadState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}

	return fmt.Sprintf("UploadState(%d)", int(s))
}

// Progress shares: the grant takes the first quarter, the transfer the two
// middle ones and registration the last.
const (
	grantShare    = 25.0
	transferShare = 50.0
)

const (
	defaultRegisterWait  = 10 * time.Second
	defaultVerifyWait    = 5 * time.Second
	defaultRetryInterval = 250 * time.Millisecond
)

var (
	errNotListed   = errors.New("registered file is not listed yet")
	errNotOrphaned = errors.New("upload is not waiting for registration")
)

type UploadProgress struct {
	State   UploadState
	Percent float64
	Err     error
}

// UploadSource describes one file to upload. Body must yield exactly Size
// bytes.
type UploadSource struct {
	Name     string
	MIME     string
	Size     int64
	Body     io.Reader
	FolderID *string
}

// Uploader drives the grant, transfer and register sequence. Every upload
// runs its own state machine; several can be in flight at once.
type Uploader struct {
	backend  Backend
	catalog  *Catalog
	resolver *Resolver
	hc       *http.Client
	notifier Notifier

	registerWait  time.Duration
	verifyWait    time.Duration
	retryInterval time.Duration
	preview       bool
}

type UploaderOption func(*Uploader)

// WithTransferClient sets the client used to send bytes to the object store.
func WithTransferClient(hc *http.Client) UploaderOption {
	return func(u *Uploader) {
		u.hc = hc
	}
}

// WithRegisterWait bounds how long registration is retried while the store
// does not show the object yet.
func WithRegisterWait(d time.Duration) UploaderOption {
	return func(u *Uploader) {
		u.registerWait = d
	}
}

// WithVerifyWait bounds the read-after-write check on the catalog.
func WithVerifyWait(d time.Duration) UploaderOption {
	return func(u *Uploader) {
		u.verifyWait = d
	}
}

func WithRetryInterval(d time.Duration) UploaderOption {
	return func(u *Uploader) {
		u.retryInterval = d
	}
}

// WithPreview resolves an access URL for every finished upload.
func WithPreview(enabled bool) UploaderOption {
	return func(u *Uploader) {
		u.preview = enabled
	}
}

func WithUploadNotifier(n Notifier) UploaderOption {
	return func(u *Uploader) {
		u.notifier = n
	}
}

func NewUploader(backend Backend, catalog *Catalog, resolver *Resolver, opts ...UploaderOption) *Uploader {
	u := &Uploader{
		backend:       backend,
		catalog:       catalog,
		resolver:      resolver,
		hc:            http.DefaultClient,
		notifier:      Discard,
		registerWait:  defaultRegisterWait,
		verifyWait:    defaultVerifyWait,
		retryInterval: defaultRetryInterval,
	}

	for _, o := range opts {
		o(u)
	}

	return u
}

// Upload is one tracked upload.
type Upload struct {
	uploader *Uploader
	project  string
	src      UploadSource
	observer func(UploadProgress)
	detached atomic.Bool

	mu      sync.Mutex
	state   UploadState
	percent float64
	key     string
	file    *MediaFile
	preview string
	err     error

	done chan struct{}
}

// Start begins an upload in the background. observer may be nil.
func (u *Uploader) Start(ctx context.Context, project string, src UploadSource, observer func(UploadProgress)) *Upload {
	up := &Upload{
		uploader: u,
		project:  project,
		src:      src,
		observer: observer,
		state:    StateIdle,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(up.done)
		up.run(ctx)
	}()

	return up
}

// Upload runs one upload to completion.
func (u *Uploader) Upload(ctx context.Context, project string, src UploadSource, observer func(UploadProgress)) (*MediaFile, error) {
	return u.Start(ctx, project, src, observer).Wait()
}

type UploadResult struct {
	Name string
	File *MediaFile
	Err  error
}

// UploadMany runs independent uploads in parallel and waits for all of them.
func (u *Uploader) UploadMany(ctx context.Context, project string, srcs []UploadSource, observer func(i int, p UploadProgress)) []UploadResult {
	ups := make([]*Upload, len(srcs))
	for i, src := range srcs {
		ups[i] = u.Start(ctx, project, src, func(p UploadProgress) {
			if observer != nil {
				observer(i, p)
			}
		})
	}

	results := make([]UploadResult, len(srcs))
	for i, up := range ups {
		f, err := up.Wait()
		results[i] = UploadResult{Name: srcs[i].Name, File: f, Err: err}
	}

	return results
}

func (up *Upload) run(ctx context.Context) {
	u := up.uploader
	up.advance(StateGrantRequested, 0)

	grant, err := u.backend.RequestUpload(ctx, up.project, UploadRequest{
		Name:     up.src.Name,
		MIME:     up.src.MIME,
		Size:     up.src.Size,
		FolderID: up.src.FolderID,
	})
	if err != nil {
		up.fail(fmt.Errorf("failed to request upload grant for %s, %w", up.src.Name, err))
		return
	}

	up.mu.Lock()
	up.key = grant.ObjectKey
	up.mu.Unlock()

	up.advance(StateTransferring, grantShare)

	if err := up.transfer(ctx, grant); err != nil {
		up.fail(&TransferError{Key: grant.ObjectKey, Err: err})
		return
	}

	up.register(ctx)
}

func (up *Upload) transfer(ctx context.Context, grant *UploadGrant) error {
	if up.src.Body == nil {
		return errors.New("no file contents")
	}

	method := grant.Method
	if method == "" {
		method = http.MethodPut
	}

	var body io.Reader = &progressReader{r: up.src.Body, onRead: up.transferred}
	if up.src.Size == 0 {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, method, grant.UploadURL, body)
	if err != nil {
		return fmt.Errorf("failed to prepare transfer, %w", err)
	}

	req.ContentLength = up.src.Size
	for k, v := range grant.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Content-Type") == "" && up.src.MIME != "" {
		req.Header.Set("Content-Type", up.src.MIME)
	}

	resp, err := up.uploader.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("object store returned %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	return nil
}

func (up *Upload) register(ctx context.Context) (*MediaFile, error) {
	u := up.uploader
	up.advance(StateRegistering, grantShare+transferShare)

	up.mu.Lock()
	key := up.key
	up.mu.Unlock()

	file, err := u.registerWithRetry(ctx, up.project, RegisterRequest{
		ObjectKey: key,
		Name:      up.src.Name,
		MIME:      up.src.MIME,
		Size:      up.src.Size,
		FolderID:  up.src.FolderID,
	})
	if err != nil {
		orphan := &OrphanedUploadError{Key: key, Name: up.src.Name, Err: err}
		up.fail(orphan)
		return nil, orphan
	}

	u.confirm(ctx, up.project, up.src.FolderID, file)

	var preview string
	if u.preview && u.resolver != nil {
		preview, err = u.resolver.Resolve(ctx, file.ObjectKey)
		if err != nil {
			zap.L().Debug("Preview unavailable for new upload", zap.String("key", file.ObjectKey), zap.Error(err))
		}
	}

	up.complete(file, preview)
	return file, nil
}

func (u *Uploader) backoff(ctx context.Context, maxWait time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = u.retryInterval
	b.MaxElapsedTime = maxWait

	return backoff.WithContext(b, ctx)
}

// registerWithRetry retries only while the store reports the object as not
// visible yet. Any other failure is final.
func (u *Uploader) registerWithRetry(ctx context.Context, project string, req RegisterRequest) (*MediaFile, error) {
	return backoff.RetryWithData(func() (*MediaFile, error) {
		f, err := u.backend.RegisterUpload(ctx, project, req)
		if err == nil {
			return f, nil
		}

		if errors.Is(err, ErrObjectNotVisible) {
			return nil, err
		}

		return nil, backoff.Permanent(err)
	}, u.backoff(ctx, u.registerWait))
}

// confirm waits until the catalog lists the new object, then invalidates the
// views that depend on it.
func (u *Uploader) confirm(ctx context.Context, project string, folderID *string, file *MediaFile) {
	err := backoff.Retry(func() error {
		files, err := u.catalog.Refresh(ctx, project, folderID)
		if err != nil {
			return err
		}

		for _, f := range files {
			if f.ObjectKey == file.ObjectKey {
				return nil
			}
		}

		return errNotListed
	}, u.backoff(ctx, u.verifyWait))
	if err != nil {
		zap.L().Warn("Registered upload not visible in listing yet", zap.String("key", file.ObjectKey), zap.Error(err))
	}

	u.catalog.Invalidate(project, folderID)
}

// RetryRegistration registers an orphaned upload again. It only applies to
// uploads that failed with an OrphanedUploadError.
func (up *Upload) RetryRegistration(ctx context.Context) (*MediaFile, error) {
	<-up.done

	up.mu.Lock()
	var orphan *OrphanedUploadError
	if up.state != StateFailed || !errors.As(up.err, &orphan) {
		up.mu.Unlock()
		return nil, errNotOrphaned
	}
	up.err = nil
	up.mu.Unlock()

	return up.register(ctx)
}

func (up *Upload) transferred(sent int64) {
	if up.src.Size <= 0 {
		return
	}

	pct := grantShare + transferShare*float64(sent)/float64(up.src.Size)
	pct = min(pct, grantShare+transferShare)

	up.mu.Lock()
	up.percent = pct
	up.mu.Unlock()

	up.emit(UploadProgress{State: StateTransferring, Percent: pct})
}

func (up *Upload) advance(state UploadState, pct float64) {
	up.mu.Lock()
	up.state = state
	up.percent = pct
	up.mu.Unlock()

	up.emit(UploadProgress{State: state, Percent: pct})
}

func (up *Upload) fail(err error) {
	up.mu.Lock()
	up.state = StateFailed
	up.err = err
	pct := up.percent
	up.mu.Unlock()

	zap.L().Debug("Upload failed", zap.String("name", up.src.Name), zap.Error(err))

	if up.detached.Load() {
		return
	}

	up.emit(UploadProgress{State: StateFailed, Percent: pct, Err: err})

	msg := fmt.Sprintf("Failed to upload %s", up.src.Name)

	var orphan *OrphanedUploadError
	if errors.As(err, &orphan) {
		msg = fmt.Sprintf("%s was uploaded but could not be registered. Refresh the library or retry", up.src.Name)
	}

	up.uploader.notifier.Notify(Notification{Level: LevelError, Message: msg, Err: err})
}

func (up *Upload) complete(file *MediaFile, preview string) {
	up.mu.Lock()
	up.state = StateDone
	up.percent = 100
	up.file = file
	up.preview = preview
	up.mu.Unlock()

	up.emit(UploadProgress{State: StateDone, Percent: 100})

	if !up.detached.Load() {
		up.uploader.notifier.Notify(Notification{Level: LevelInfo, Message: "Uploaded " + file.Name})
	}
}

func (up *Upload) emit(p UploadProgress) {
	if up.detached.Load() || up.observer == nil {
		return
	}

	up.observer(p)
}

// Detach stops reporting progress and errors to the observer. The upload
// itself keeps running; cancel its context to abort it.
func (up *Upload) Detach() {
	up.detached.Store(true)
}

// Wait blocks until the upload is done or failed.
func (up *Upload) Wait() (*MediaFile, error) {
	<-up.done

	up.mu.Lock()
	defer up.mu.Unlock()

	return up.file, up.err
}

func (up *Upload) Done() <-chan struct{} {
	return up.done
}

func (up *Upload) State() UploadState {
	up.mu.Lock()
	defer up.mu.Unlock()

	return up.state
}

func (up *Upload) Percent() float64 {
	up.mu.Lock()
	defer up.mu.Unlock()

	return up.percent
}

// ObjectKey is known once the grant was issued.
func (up *Upload) ObjectKey() string {
	up.mu.Lock()
	defer up.mu.Unlock()

	return up.key
}

func (up *Upload) PreviewURL() string {
	up.mu.Lock()
	defer up.mu.Unlock()

	return up.preview
}

type progressReader struct {
	r      io.Reader
	sent   int64
	onRead func(int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.onRead(p.sent)
	}

	return n, err
}
