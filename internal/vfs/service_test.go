package vfs

import (
	"context"
	"math"
	"sync"
	"testing"

	"spx-studio/internal/models"
	"spx-studio/internal/plans"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	store.addUser(1, plans.Free)
	store.addUser(2, plans.Free)
	svc, err := NewService(store)
	require.NoError(t, err)
	return svc, store
}

func upload(t *testing.T, svc *Service, userID int64, dir, name string, size int64) *models.StorageItem {
	t.Helper()
	item, err := svc.Upload(context.Background(), userID, UploadParams{Dir: dir, Name: name, Size: size, ContentType: "text/plain"})
	require.NoError(t, err)
	return item
}

func paths(items []models.StorageItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Path)
	}
	return out
}

func TestCreateFolder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	folder, err := svc.CreateFolder(ctx, 1, "docs/")
	require.NoError(t, err)
	require.Len(t, folder.ID, 21)
	require.Equal(t, "docs", folder.Name)
	require.Equal(t, "/docs", folder.Path)
	require.Equal(t, "/", folder.ParentPath)
	require.Equal(t, models.FolderType, folder.Type)
	require.Zero(t, folder.Size)
	require.False(t, folder.LastModified.IsZero())

	_, err = svc.CreateFolder(ctx, 1, "/docs")
	require.ErrorIs(t, err, ErrPathExists)

	// The same path belongs to a separate namespace for another user.
	_, err = svc.CreateFolder(ctx, 2, "/docs")
	require.NoError(t, err)

	for _, bad := range []string{"", "   ", "/", "//"} {
		_, err = svc.CreateFolder(ctx, 1, bad)
		require.ErrorIs(t, err, ErrValidation, "path %q", bad)
	}
}

func TestUploadValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, 1, UploadParams{Dir: "/", Name: "", Size: 1})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Upload(ctx, 1, UploadParams{Dir: "/", Name: "a/b", Size: 1})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Upload(ctx, 1, UploadParams{Dir: "/", Name: "a.txt", Size: -1})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Upload(ctx, 1, UploadParams{Dir: "/", Name: "a.txt", Size: 1, ContentType: "folder"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Upload(ctx, 99, UploadParams{Dir: "/", Name: "a.txt", Size: 1})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUploadBuildsPathAndDefaults(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	item, err := svc.Upload(ctx, 1, UploadParams{Dir: "/docs/", Name: "a.bin", Size: 7})
	require.NoError(t, err)
	require.Equal(t, "/docs/a.bin", item.Path)
	require.Equal(t, "/docs", item.ParentPath)
	require.Equal(t, DefaultContentType, item.Type)
	require.EqualValues(t, 7, store.users[1].StorageUsedBytes)

	_, err = svc.Upload(ctx, 1, UploadParams{Dir: "docs", Name: "a.bin", Size: 3})
	require.ErrorIs(t, err, ErrPathExists)
	require.EqualValues(t, 7, store.users[1].StorageUsedBytes)
}

func TestListReturnsOnlyDirectChildren(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateFolder(ctx, 1, "/docs")
	require.NoError(t, err)
	_, err = svc.CreateFolder(ctx, 1, "/docs/sub")
	require.NoError(t, err)
	upload(t, svc, 1, "/", "top.txt", 1)
	upload(t, svc, 1, "/docs", "a.txt", 1)
	upload(t, svc, 1, "/docs/sub", "deep.txt", 1)
	upload(t, svc, 2, "/", "other.txt", 1)

	root, err := svc.List(ctx, 1, "/")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"/docs", "/top.txt"}, paths(root))

	docs, err := svc.List(ctx, 1, "/docs/")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"/docs/a.txt", "/docs/sub"}, paths(docs))

	sameDocs, err := svc.List(ctx, 1, "docs")
	require.NoError(t, err)
	require.ElementsMatch(t, paths(docs), paths(sameDocs))

	empty, err := svc.List(ctx, 1, "/nowhere")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestDeleteFolderCascadesWithoutTouchingSiblings(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	docs, err := svc.CreateFolder(ctx, 1, "/docs")
	require.NoError(t, err)
	_, err = svc.CreateFolder(ctx, 1, "/docs/sub")
	require.NoError(t, err)
	upload(t, svc, 1, "/docs", "a.txt", 10)
	upload(t, svc, 1, "/docs/sub", "b.txt", 20)
	_, err = svc.CreateFolder(ctx, 1, "/docs-archive")
	require.NoError(t, err)
	upload(t, svc, 1, "/docs-archive", "b.txt", 5)

	removed, err := svc.Delete(ctx, 1, docs.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"/docs", "/docs/sub", "/docs/a.txt", "/docs/sub/b.txt"}, paths(removed))

	for _, item := range store.items {
		require.False(t, IsWithin(item.Path, "/docs"), "left behind %s", item.Path)
	}

	archive, err := svc.List(ctx, 1, "/docs-archive")
	require.NoError(t, err)
	require.Equal(t, []string{"/docs-archive/b.txt"}, paths(archive))

	require.EqualValues(t, 5, store.users[1].StorageUsedBytes)
}

func TestDeleteFileLeavesLookalikes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a := upload(t, svc, 1, "/docs", "a.txt", 3)
	upload(t, svc, 1, "/docs-archive", "b.txt", 4)

	removed, err := svc.Delete(ctx, 1, a.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"/docs/a.txt"}, paths(removed))

	usage, err := svc.Usage(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 4, usage.Used)
}

func TestDeleteMissingAndForeign(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	removed, err := svc.Delete(ctx, 1, "does-not-exist")
	require.NoError(t, err)
	require.Empty(t, removed)

	theirs := upload(t, svc, 2, "/", "private.txt", 9)
	_, err = svc.Delete(ctx, 1, theirs.ID)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Contains(t, store.items, theirs.ID)
}

func TestGet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	item := upload(t, svc, 1, "/", "a.txt", 1)
	found, err := svc.Get(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, item.Path, found.Path)

	_, err = svc.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUsageIsOrderIndependentSum(t *testing.T) {
	sizes := []int64{5, 100, 0, 42}

	forward, _ := newTestService(t)
	backward, _ := newTestService(t)
	for i := range sizes {
		upload(t, forward, 1, "/", string(rune('a'+i))+".txt", sizes[i])
		j := len(sizes) - 1 - i
		upload(t, backward, 1, "/", string(rune('a'+j))+".txt", sizes[j])
	}
	_, err := forward.CreateFolder(context.Background(), 1, "/folder")
	require.NoError(t, err)

	u1, err := forward.Usage(context.Background(), 1)
	require.NoError(t, err)
	u2, err := backward.Usage(context.Background(), 1)
	require.NoError(t, err)

	require.EqualValues(t, 147, u1.Used)
	require.Equal(t, u1.Used, u2.Used)
	require.Equal(t, plans.Lookup(plans.Free).StorageBytes, u1.Total)
}

func TestUsageFollowsPlan(t *testing.T) {
	svc, store := newTestService(t)
	store.addUser(3, plans.Pro)
	store.addUser(4, "platinum")

	pro, err := svc.Usage(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, 4*plans.TiB, pro.Total)

	unknown, err := svc.Usage(context.Background(), 4)
	require.NoError(t, err)
	require.Equal(t, 15*plans.GiB, unknown.Total)

	_, err = svc.Usage(context.Background(), 404)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestQuotaRejectionLeavesItemsUnchanged(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, 1, UploadParams{Dir: "/", Name: "huge.iso", Size: 20 * plans.GiB})
	require.ErrorIs(t, err, ErrQuotaExceeded)
	require.Empty(t, store.items)

	usage, err := svc.Usage(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, usage.Used)
	require.Zero(t, store.users[1].StorageUsedBytes)

	upload(t, svc, 1, "/", "almost.bin", 15*plans.GiB-10)
	_, err = svc.Upload(ctx, 1, UploadParams{Dir: "/", Name: "over.bin", Size: 11})
	require.ErrorIs(t, err, ErrQuotaExceeded)
	upload(t, svc, 1, "/", "exact.bin", 10)
}

func TestQuotaRejectsSizeNearInt64Limit(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	upload(t, svc, 1, "/", "small.txt", 10)
	_, err := svc.Upload(ctx, 1, UploadParams{Dir: "/", Name: "wrap.bin", Size: math.MaxInt64})
	require.ErrorIs(t, err, ErrQuotaExceeded)

	require.Len(t, store.items, 1)
	require.Equal(t, int64(10), store.users[1].StorageUsedBytes)
}

func TestRoundTrip(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	folder, err := svc.CreateFolder(ctx, 1, "/a")
	require.NoError(t, err)
	upload(t, svc, 1, "/a", "b.txt", 10)

	usage, err := svc.Usage(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 10, usage.Used)

	_, err = svc.Delete(ctx, 1, folder.ID)
	require.NoError(t, err)

	usage, err = svc.Usage(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, usage.Used)
	require.Zero(t, store.users[1].StorageUsedBytes)

	items, err := svc.List(ctx, 1, "/a")
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestConcurrentUploadsRespectQuota(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	chunk := 4 * plans.GiB
	var wg sync.WaitGroup
	results := make(chan error, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Upload(ctx, 1, UploadParams{Dir: "/", Name: string(rune('a'+i)) + ".bin", Size: chunk})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var ok, rejected int
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, ErrQuotaExceeded)
		rejected++
	}
	require.Equal(t, 3, ok)
	require.Equal(t, 3, rejected)
	require.Equal(t, 3*chunk, store.users[1].StorageUsedBytes)
}
