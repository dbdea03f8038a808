package instructions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goredis "github.com/redis/go-redis/v9"

	"github.com/AICC2024/video-review/internal/platform/logger"
)

func TestFileStoreRoundTrip(t *testing.T) {
	for _, name := range []string{"instructions.yaml", "instructions.json"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "nested", name)
			s := NewFileStore(logger.Nop(), path)

			if got, err := s.Get(ctx, ModeVideo); err != nil || got != "" {
				t.Fatalf("missing file should read empty: %q %v", got, err)
			}
			if err := s.Set(ctx, "PDF", "Review each slide.\nBe brief."); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := s.Set(ctx, ModeVideo, "Review scenes."); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := s.Get(ctx, ModeStoryboard)
			if err != nil || got != "Review each slide.\nBe brief." {
				t.Fatalf("Get storyboard via pdf alias: %q %v", got, err)
			}
			all, err := s.All(ctx)
			if err != nil || len(all) != 2 {
				t.Fatalf("All: %v %v", all, err)
			}

			raw, _ := os.ReadFile(path)
			isJSON := strings.HasPrefix(strings.TrimSpace(string(raw)), "{")
			if isJSON != strings.HasSuffix(name, ".json") {
				t.Fatalf("file format does not follow extension: %s", raw)
			}
		})
	}
}

func TestFileStoreReadsLegacyJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instructions.json")
	if err := os.WriteFile(path, []byte(`{"pdf": "slides", "chat": "answer"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(logger.Nop(), path)
	if got, _ := s.Get(context.Background(), ModeStoryboard); got != "slides" {
		t.Fatalf("legacy pdf key not mapped: %q", got)
	}
	if _, err := s.Get(context.Background(), "  "); !errors.Is(err, ErrEmptyMode) {
		t.Fatalf("expected ErrEmptyMode, got %v", err)
	}
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, error)    { return "", errors.New("down") }
func (brokenStore) Set(context.Context, string, string) error      { return errors.New("down") }
func (brokenStore) All(context.Context) (map[string]string, error) { return nil, errors.New("down") }

func TestLookupFailsClosed(t *testing.T) {
	if got := Lookup(context.Background(), logger.Nop(), brokenStore{}, ModeVideo); got != "" {
		t.Fatalf("want empty instruction, got %q", got)
	}
	if got := Lookup(context.Background(), logger.Nop(), nil, ModeVideo); got != "" {
		t.Fatalf("nil store: %q", got)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	defer rdb.Close()
	ctx := context.Background()
	key := "test:instructions:" + t.Name()
	defer rdb.Del(ctx, key)

	s := NewRedisStore(logger.Nop(), rdb, key)
	if got, err := s.Get(ctx, ModeChat); err != nil || got != "" {
		t.Fatalf("missing field: %q %v", got, err)
	}
	if err := s.Set(ctx, "pdf", "slides"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, _ := s.Get(ctx, ModeStoryboard); got != "slides" {
		t.Fatalf("Get: %q", got)
	}
}
