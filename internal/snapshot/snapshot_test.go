package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func sample() Snapshot {
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	return Snapshot{
		"7_1_arm":    {Rate: 5.75, FeesOrPoints: ptr(0.5), ObservedAt: at},
		"30yr_fixed": {Rate: 6.5, APR: ptr(6.55), ObservedAt: at},
	}
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	store := NewFileStore(filepath.Join(t.TempDir(), "data", "last_rates.json"))
	s, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Empty(t, s)
}

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "last_rates.json")
	store := NewFileStore(path)

	require.NoError(t, store.Save(context.Background(), sample()))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, sample(), got)
	require.Nil(t, got["30yr_fixed"].FeesOrPoints)

	// Assert: no temp files are left next to the snapshot
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFileStore_SaveIsDeterministic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "last_rates.json")
	store := NewFileStore(path)

	require.NoError(t, store.Save(context.Background(), sample()))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), sample()))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Contains(t, string(first), `"fees_or_points": 0.5`)
}

func TestFileStore_CorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "last_rates.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rates": [`), 0o644))

	_, err := NewFileStore(path).Load(context.Background())
	var le *LoadError
	require.ErrorAs(t, err, &le)
	require.Equal(t, path, le.Where)
}

func TestFileStore_EmptyOrNullFile(t *testing.T) {
	t.Parallel()

	for _, body := range []string{"", "  \n", "null"} {
		path := filepath.Join(t.TempDir(), "last_rates.json")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

		s, err := NewFileStore(path).Load(context.Background())
		require.NoError(t, err)
		require.NotNil(t, s)
		require.Empty(t, s)
	}
}

func TestFileStore_SaveFailure(t *testing.T) {
	t.Parallel()

	// A regular file where the parent directory should be.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := NewFileStore(filepath.Join(blocker, "last_rates.json")).Save(context.Background(), sample())
	var pe *PersistError
	require.ErrorAs(t, err, &pe)
}

type fakeRedis struct {
	data   map[string]string
	getErr error
	setErr error
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	t.Parallel()

	client := &fakeRedis{data: map[string]string{}}
	store := NewRedisStore(client, "")
	require.Equal(t, "ratewatch:snapshot", store.Key)

	s, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, s)

	require.NoError(t, store.Save(context.Background(), sample()))
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, sample(), got)
}

func TestRedisStore_Errors(t *testing.T) {
	t.Parallel()

	store := NewRedisStore(&fakeRedis{data: map[string]string{}, getErr: errors.New("conn reset"), setErr: errors.New("READONLY")}, "k")

	_, err := store.Load(context.Background())
	var le *LoadError
	require.ErrorAs(t, err, &le)

	err = store.Save(context.Background(), sample())
	var pe *PersistError
	require.ErrorAs(t, err, &pe)
	require.ErrorContains(t, err, "READONLY")
}
