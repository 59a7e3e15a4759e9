package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/2beens/stravadash/internal/telemetry/tracing"
)

const driveFolderMimeType = "application/vnd.google-apps.folder"

var _ BlobStore = (*DriveStore)(nil)

// driveAPI is the subset of the Drive files API the store needs.
type driveAPI interface {
	find(ctx context.Context, parentID, name string, folder bool) (string, error)
	createFolder(ctx context.Context, name string) (string, error)
	create(ctx context.Context, parentID, name, contentType string, data []byte) (string, error)
	update(ctx context.Context, fileID, contentType string, data []byte) error
	download(ctx context.Context, fileID string) ([]byte, error)
}

// DriveStore keeps each container as a Drive folder and each key as a file
// inside it. Keys with slashes are stored flat, under their full name.
type DriveStore struct {
	api driveAPI

	mutex   sync.Mutex
	folders map[string]string
}

func NewDriveStore(ctx context.Context, credentialsJSON []byte) (*DriveStore, error) {
	svc, err := drive.NewService(
		ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(drive.DriveFileScope),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create drive service: %w", err)
	}
	return newDriveStore(&driveService{svc: svc}), nil
}

func newDriveStore(api driveAPI) *DriveStore {
	return &DriveStore{
		api:     api,
		folders: make(map[string]string),
	}
}

func (ds *DriveStore) folderID(ctx context.Context, container string, create bool) (string, error) {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	if id, ok := ds.folders[container]; ok {
		return id, nil
	}

	id, err := ds.api.find(ctx, "", container, true)
	if err != nil {
		return "", err
	}
	if id == "" {
		if !create {
			return "", ErrNotFound
		}
		id, err = ds.api.createFolder(ctx, container)
		if err != nil {
			return "", fmt.Errorf("create folder %s: %w", container, err)
		}
		log.Printf("drive store: folder [%s] created: %s", container, id)
	}

	ds.folders[container] = id
	return id, nil
}

func (ds *DriveStore) Put(ctx context.Context, container, key string, data []byte, contentType string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "driveStore.put")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("blob.key", key))

	folderID, err := ds.folderID(ctx, container, true)
	if err != nil {
		return newPersistenceError("put", container, key, err)
	}

	fileID, err := ds.api.find(ctx, folderID, key, false)
	if err != nil {
		return newPersistenceError("put", container, key, err)
	}

	if fileID == "" {
		if _, err := ds.api.create(ctx, folderID, key, contentType, data); err != nil {
			return newPersistenceError("put", container, key, err)
		}
		return nil
	}

	if err := ds.api.update(ctx, fileID, contentType, data); err != nil {
		return newPersistenceError("put", container, key, err)
	}
	return nil
}

func (ds *DriveStore) Get(ctx context.Context, container, key string) (_ []byte, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "driveStore.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("blob.key", key))

	folderID, err := ds.folderID(ctx, container, false)
	if err != nil {
		return nil, newPersistenceError("get", container, key, err)
	}

	fileID, err := ds.api.find(ctx, folderID, key, false)
	if err != nil {
		return nil, newPersistenceError("get", container, key, err)
	}
	if fileID == "" {
		return nil, newPersistenceError("get", container, key, ErrNotFound)
	}

	data, err := ds.api.download(ctx, fileID)
	if err != nil {
		return nil, newPersistenceError("get", container, key, err)
	}
	return data, nil
}

type driveService struct {
	svc *drive.Service
}

func driveQuery(parentID, name string, folder bool) string {
	escaped := strings.ReplaceAll(name, `'`, `\'`)
	q := fmt.Sprintf("name = '%s' and trashed = false", escaped)
	if folder {
		q += fmt.Sprintf(" and mimeType = '%s'", driveFolderMimeType)
	} else {
		q += fmt.Sprintf(" and mimeType != '%s'", driveFolderMimeType)
	}
	if parentID != "" {
		q += fmt.Sprintf(" and '%s' in parents", parentID)
	}
	return q
}

func (d *driveService) find(ctx context.Context, parentID, name string, folder bool) (string, error) {
	files, err := d.svc.
		Files.List().
		Q(driveQuery(parentID, name, folder)).
		Fields("files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if len(files.Files) == 0 {
		return "", nil
	}
	return files.Files[0].Id, nil
}

func (d *driveService) createFolder(ctx context.Context, name string) (string, error) {
	folder, err := d.svc.
		Files.Create(&drive.File{Name: name, MimeType: driveFolderMimeType}).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	return folder.Id, nil
}

func (d *driveService) create(ctx context.Context, parentID, name, contentType string, data []byte) (string, error) {
	file, err := d.svc.
		Files.Create(&drive.File{Name: name, Parents: []string{parentID}}).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	return file.Id, nil
}

func (d *driveService) update(ctx context.Context, fileID, contentType string, data []byte) error {
	_, err := d.svc.
		Files.Update(fileID, &drive.File{}).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	return err
}

func (d *driveService) download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := d.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
