package attachment

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thenoetrevino/tablero/internal/blobstore"
	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/testutil"
)

type fixture struct {
	store  *database.Store
	blobs  *blobstore.Store
	svc    Service

	blobsDir string
	owner  *models.User
	member *models.User
	card   *models.Card
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := testutil.SetupTestStore(t)
	blobsDir := t.TempDir()
	blobs, err := blobstore.New(blobsDir)
	require.NoError(t, err)

	owner := testutil.CreateTestUser(t, store, "owner@example.com")
	member := testutil.CreateTestUser(t, store, "member@example.com")
	project := testutil.CreateTestProject(t, store, owner.ID, "Apollo")
	testutil.AddTestMember(t, store, project.ID, member.ID, models.RoleMember)

	return &fixture{
		store:  store,
		blobs:  blobs,
		svc:    NewService(store, blobs, nil, Config{MaxBytes: 1024}),
		owner:  owner,
		member: member,
		card:   testutil.CreateTestCard(t, store, project.ID, project.Columns[0].ID, owner.ID, "Specs"),

		blobsDir: blobsDir,
	}
}

func (f *fixture) upload(t *testing.T, actorID int, name, body string) *models.Attachment {
	t.Helper()
	a, err := f.svc.Upload(context.Background(), UploadRequest{
		ActorID: actorID, CardID: f.card.ID, Filename: name, Body: strings.NewReader(body),
	})
	require.NoError(t, err)
	return a
}

func TestUpload_StoresAndOpens(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	a := f.upload(t, f.member.ID, `C:\Users\me\config.json`, `{"stage": 2}`)
	assert.Equal(t, "config.json", a.Filename)
	assert.Equal(t, "application/json", a.ContentType)
	assert.EqualValues(t, 12, a.SizeBytes)
	assert.Equal(t, blobstore.Hash([]byte(`{"stage": 2}`)), a.ContentHash)

	got, rc, err := f.svc.Open(ctx, f.owner.ID, a.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"stage": 2}`, string(data))
	assert.Equal(t, a.ID, got.ID)

	list, err := f.svc.List(ctx, f.owner.ID, f.card.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpload_Limits(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, UploadRequest{ActorID: f.owner.ID, CardID: f.card.ID, Filename: "big.bin", Body: bytes.NewReader(make([]byte, 1025))})
	require.ErrorIs(t, err, ErrFileTooLarge)
	assert.Contains(t, err.Error(), "1.0 KiB")

	_, err = f.svc.Upload(ctx, UploadRequest{ActorID: f.owner.ID, CardID: f.card.ID, Filename: "empty.txt", Body: strings.NewReader("")})
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = f.svc.Upload(ctx, UploadRequest{ActorID: f.owner.ID, CardID: f.card.ID, Filename: "../", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrInvalidFilename)

	outsider := testutil.CreateTestUser(t, f.store, "outsider@example.com")
	_, err = f.svc.Upload(ctx, UploadRequest{ActorID: outsider.ID, CardID: f.card.ID, Filename: "a.txt", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, models.ErrNotMember)
}

func TestDelete_SharedBlobSurvives(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	first := f.upload(t, f.member.ID, "notes.txt", "identical")
	second := f.upload(t, f.owner.ID, "copy.txt", "identical")
	require.Equal(t, first.ContentHash, second.ContentHash)

	assert.ErrorIs(t, f.svc.Delete(ctx, f.member.ID, second.ID), models.ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, f.member.ID, first.ID))

	// The other row still references the blob
	_, rc, err := f.svc.Open(ctx, f.owner.ID, second.ID)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	require.NoError(t, f.svc.Delete(ctx, f.owner.ID, second.ID))
	_, _, err = f.svc.Open(ctx, f.owner.ID, second.ID)
	assert.ErrorIs(t, err, ErrAttachmentNotFound)

	// The unreferenced blob stays until garbage collection runs past the
	// grace period
	rc, err = f.blobs.Open(second.ContentHash)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	f.svc.(*service).now = func() time.Time { return time.Now().Add(2 * sweepGrace) }
	n, err := f.svc.CollectGarbage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = f.blobs.Open(second.ContentHash)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestDelete_DuringConcurrentUpload(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	existing := f.upload(t, f.owner.ID, "report.txt", "quarterly numbers")

	// Another upload of the same bytes has stored its blob but not yet
	// inserted its row when the existing attachment is deleted
	hash, err := f.blobs.Put([]byte("quarterly numbers"), "text/plain")
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, f.owner.ID, existing.ID))
	fresh, err := f.store.CreateAttachment(ctx, &models.Attachment{
		CardID:      f.card.ID,
		ProjectID:   f.card.ProjectID,
		UploadedBy:  f.member.ID,
		Filename:    "report-copy.txt",
		ContentType: "text/plain",
		SizeBytes:   int64(len("quarterly numbers")),
		ContentHash: hash,
		CreatedAt:   testutil.Now,
	})
	require.NoError(t, err)

	_, rc, err := f.svc.Open(ctx, f.member.ID, fresh.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "quarterly numbers", string(data))
}

func TestCollectGarbage_SparesReuploadedBlob(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	// An orphan from long ago whose bytes are uploaded again
	hash, err := f.blobs.Put([]byte("old orphan"), "application/octet-stream")
	require.NoError(t, err)
	old := time.Now().Add(-2 * sweepGrace)
	require.NoError(t, filepath.WalkDir(f.blobsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		return os.Chtimes(path, old, old)
	}))

	again, err := f.blobs.Put([]byte("old orphan"), "application/octet-stream")
	require.NoError(t, err)
	require.Equal(t, hash, again)

	// The row is not inserted yet, so the hash is not referenced
	n, err := f.svc.CollectGarbage(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	rc, err := f.blobs.Open(hash)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"report.pdf", "report.pdf", nil},
		{"/etc/passwd", "passwd", nil},
		{"dir\\sub\\plan.md", "plan.md", nil},
		{"  spaced .txt ", "spaced .txt", nil},
		{"bell\x07.txt", "bell.txt", nil},
		{"..", "", ErrInvalidFilename},
		{"   ", "", ErrInvalidFilename},
		{strings.Repeat("a", 256), "", ErrFilenameTooLong},
	}
	for _, tt := range tests {
		got, err := SanitizeFilename(tt.in)
		assert.ErrorIs(t, err, tt.wantErr, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
