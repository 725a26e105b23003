package backend

import (
	"context"
	"path/filepath"
	"testing"

	"compta/internal/config"
	"compta/internal/settings"
	"compta/internal/sheets/memory"
	"compta/internal/sheets/xlsx"
)

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	t.Run("memory", func(t *testing.T) {
		res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, ok := res.Store.(*memory.Store); !ok {
			t.Fatalf("expected memory store, got %T", res.Store)
		}
		if res.Journal != nil || res.Publisher != nil || len(res.ServiceOptions()) != 0 {
			t.Fatalf("side channels must be disabled by default")
		}
		if err := res.Cleanup(); err != nil {
			t.Fatalf("cleanup: %v", err)
		}
	})

	t.Run("xlsx with journal", func(t *testing.T) {
		dir := t.TempDir()
		res, err := f.CreateBackend(ctx, Config{
			Type:          XLSXBackend,
			DataDirectory: dir,
			SQLiteDBPath:  filepath.Join(dir, "compta.db"),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		store, ok := res.Store.(*xlsx.Store)
		if !ok || store.Dir() != dir {
			t.Fatalf("expected xlsx store in %s, got %T", dir, res.Store)
		}
		if res.Journal == nil || len(res.ServiceOptions()) != 1 {
			t.Fatalf("expected journal option")
		}
		if err := res.Cleanup(); err != nil {
			t.Fatalf("cleanup: %v", err)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := f.CreateBackend(ctx, Config{Type: "sheets"}); err == nil {
			t.Fatal("expected error for unknown backend")
		}
		if _, err := f.CreateBackend(ctx, Config{Type: XLSXBackend}); err == nil {
			t.Fatal("expected error for xlsx without directory")
		}
	})
}

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{LedgerBackend: "xlsx", DataDir: "./data", AMQPURL: "amqp://x", AMQPExchange: "e", AMQPQueue: "q"}

	cfg, err := FromAppConfig(app, settings.Document{})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if cfg.Type != XLSXBackend || cfg.DataDirectory != "./data" || cfg.AMQPQueue != "q" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	cfg, _ = FromAppConfig(app, settings.Document{StorageDir: "/srv/compta"})
	if cfg.DataDirectory != "/srv/compta" {
		t.Fatalf("settings storage dir must win, got %q", cfg.DataDirectory)
	}

	if _, err := FromAppConfig(&config.Config{LedgerBackend: "sqlite"}, settings.Document{}); err == nil {
		t.Fatal("expected error for invalid backend")
	}
	if _, err := FromAppConfig(nil, settings.Document{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}
