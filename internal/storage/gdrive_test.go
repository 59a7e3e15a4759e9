package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriveFile struct {
	parent string
	name   string
	folder bool
	data   []byte
	ctype  string
}

type fakeDrive struct {
	files   map[string]*fakeDriveFile
	nextID  int
	findErr error
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{files: map[string]*fakeDriveFile{}}
}

func (f *fakeDrive) find(_ context.Context, parentID, name string, folder bool) (string, error) {
	if f.findErr != nil {
		return "", f.findErr
	}
	for id, file := range f.files {
		if file.name == name && file.folder == folder && (parentID == "" || file.parent == parentID) {
			return id, nil
		}
	}
	return "", nil
}

func (f *fakeDrive) add(file *fakeDriveFile) string {
	f.nextID++
	id := fmt.Sprintf("id-%d", f.nextID)
	f.files[id] = file
	return id
}

func (f *fakeDrive) createFolder(_ context.Context, name string) (string, error) {
	return f.add(&fakeDriveFile{name: name, folder: true}), nil
}

func (f *fakeDrive) create(_ context.Context, parentID, name, contentType string, data []byte) (string, error) {
	return f.add(&fakeDriveFile{parent: parentID, name: name, data: data, ctype: contentType}), nil
}

func (f *fakeDrive) update(_ context.Context, fileID, contentType string, data []byte) error {
	file, ok := f.files[fileID]
	if !ok {
		return errors.New("404")
	}
	file.data = data
	file.ctype = contentType
	return nil
}

func (f *fakeDrive) download(_ context.Context, fileID string) ([]byte, error) {
	file, ok := f.files[fileID]
	if !ok {
		return nil, errors.New("404")
	}
	return file.data, nil
}

func TestDriveStore_PutCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	fd := newFakeDrive()
	ds := newDriveStore(fd)

	require.NoError(t, ds.Put(ctx, "strava", "activity_data.csv", []byte("v1"), "text/csv"))
	require.NoError(t, ds.Put(ctx, "strava", "activity_data.csv", []byte("v2"), "text/csv"))

	// one folder + one file
	assert.Len(t, fd.files, 2)

	data, err := ds.Get(ctx, "strava", "activity_data.csv")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestDriveStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	fd := newFakeDrive()
	ds := newDriveStore(fd)

	// unknown container
	_, err := ds.Get(ctx, "strava", "activity_data.csv")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, fd.files, "reads must not create folders")

	require.NoError(t, ds.Put(ctx, "strava", "a.csv", []byte("a"), ""))
	_, err = ds.Get(ctx, "strava", "b.csv")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrPersistenceFailure)
}

func TestDriveStore_ApiError(t *testing.T) {
	fd := newFakeDrive()
	fd.findErr = errors.New("quota exceeded")
	ds := newDriveStore(fd)

	err := ds.Put(context.Background(), "strava", "a.csv", []byte("a"), "")
	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestDriveQuery(t *testing.T) {
	assert.Equal(t,
		"name = 'strava' and trashed = false and mimeType = 'application/vnd.google-apps.folder'",
		driveQuery("", "strava", true),
	)
	assert.Equal(t,
		`name = 'bob\'s.csv' and trashed = false and mimeType != 'application/vnd.google-apps.folder' and 'f1' in parents`,
		driveQuery("f1", "bob's.csv", false),
	)
}
