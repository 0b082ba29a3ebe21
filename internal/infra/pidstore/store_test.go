package pidstore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"travelmcp/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "state", domain.DefaultPIDStoreFile))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestStorePutGetList(t *testing.T) {
	store := openTestStore(t)
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, store.Put(domain.ProcessRecord{ServerName: "weather_server", PID: 4242, StartedAt: started}))
	require.NoError(t, store.Put(domain.ProcessRecord{ServerName: "flight_server", PID: 4343, StartedAt: started}))

	record, ok, err := store.Get("weather_server")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 4242, record.PID)
	require.True(t, started.Equal(record.StartedAt))

	records, err := store.List()
	require.NoError(t, err)
	want := []domain.ProcessRecord{
		{ServerName: "flight_server", PID: 4343, StartedAt: started},
		{ServerName: "weather_server", PID: 4242, StartedAt: started},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestStorePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), domain.DefaultPIDStoreFile)
	first, err := OpenStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Put(domain.ProcessRecord{ServerName: "hotel_server", PID: 77, StartedAt: time.Now()}))
	require.NoError(t, first.Close())

	second, err := OpenStore(path)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, second.Close())
	}()
	record, ok, err := second.Get("hotel_server")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 77, record.PID)
}

func TestStoreDeleteIfMatchesPID(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Put(domain.ProcessRecord{ServerName: "weather_server", PID: 10, StartedAt: time.Now()}))

	removed, err := store.DeleteIf("weather_server", 11)
	require.NoError(t, err)
	require.False(t, removed)

	removed, err = store.DeleteIf("weather_server", 10)
	require.NoError(t, err)
	require.True(t, removed)

	_, ok, err := store.Get("weather_server")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreDeleteByPID(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Put(domain.ProcessRecord{ServerName: "a_server", PID: 5, StartedAt: time.Now()}))
	require.NoError(t, store.Put(domain.ProcessRecord{ServerName: "b_server", PID: 6, StartedAt: time.Now()}))

	name, ok, err := store.FindByPID(6)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "b_server", name)

	removed, err := store.DeleteByPID(6)
	require.NoError(t, err)
	require.Equal(t, []string{"b_server"}, removed)

	records, err := store.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "a_server", records[0].ServerName)
}

func TestStoreRejectsInvalidRecord(t *testing.T) {
	store := openTestStore(t)
	require.ErrorIs(t, store.Put(domain.ProcessRecord{ServerName: "", PID: 1}), ErrInvalidRecord)
	require.ErrorIs(t, store.Put(domain.ProcessRecord{ServerName: "x_server", PID: 0}), ErrInvalidRecord)
}

func TestStoreClosed(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), domain.DefaultPIDStoreFile))
	require.NoError(t, err)
	require.NoError(t, store.Close())
	_, err = store.List()
	require.ErrorIs(t, err, domain.ErrStoreClosed)
}

func TestStoreConcurrentWriters(t *testing.T) {
	store := openTestStore(t)
	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			name := string(rune('a'+pid)) + "_server"
			require.NoError(t, store.Put(domain.ProcessRecord{ServerName: name, PID: pid, StartedAt: time.Now()}))
		}(i)
	}
	wg.Wait()

	records, err := store.List()
	require.NoError(t, err)
	require.Len(t, records, 8)
}

func TestStoreImportsLegacyJSON(t *testing.T) {
	dir := t.TempDir()
	legacy := `{"weather_server": {"pid": 321, "started_at": 1700000000.5}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, legacyFileName), []byte(legacy), 0o600))

	store, err := OpenStore(filepath.Join(dir, domain.DefaultPIDStoreFile))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, store.Close())
	}()

	record, ok, err := store.Get("weather_server")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 321, record.PID)
	require.Equal(t, int64(1700000000), record.StartedAt.Unix())

	_, err = os.Stat(filepath.Join(dir, legacyFileName))
	require.True(t, os.IsNotExist(err))
}
