package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novadb/internal/record"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "novadb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 4096, cfg.Storage.PageSize)
	require.Equal(t, 128, cfg.BufferPool.Capacity)
	require.Equal(t, 100, cfg.Stats.HistogramBins)
	require.Equal(t, 1000, cfg.Stats.IOCostPerPage)
	require.Equal(t, 4, cfg.Stats.Parallelism)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel())
	require.Empty(t, cfg.Tables)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: /var/lib/novadb
  page_size: 1024
log:
  level: debug
tables:
  - name: people
    file: people.dat
    columns:
      - { name: id, type: int }
      - { name: name, type: string, len: 8 }
  - name: archive
    file: /mnt/archive.dat
    columns:
      - { name: id, type: int }
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1024, cfg.Storage.PageSize)
	require.Equal(t, 128, cfg.BufferPool.Capacity)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel())
	require.Len(t, cfg.Tables, 2)

	require.Equal(t, "/var/lib/novadb/people.dat", cfg.TablePath(cfg.Tables[0]))
	require.Equal(t, "/mnt/archive.dat", cfg.TablePath(cfg.Tables[1]))

	desc, err := cfg.Tables[0].Desc()
	require.NoError(t, err)
	require.True(t, desc.Equals(record.NewTupleDesc(record.IntCol("id"), record.StringCol("name", 8))))
	require.Equal(t, "(id int, name string(8))", desc.String())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("NOVADB_STORAGE_PAGE_SIZE", "8192")
	t.Setenv("NOVADB_BUFFERPOOL_CAPACITY", "7")

	cfg, err := Load(writeConfig(t, "storage:\n  page_size: 1024\n"))
	require.NoError(t, err)
	require.Equal(t, 8192, cfg.Storage.PageSize)
	require.Equal(t, 7, cfg.BufferPool.Capacity)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"tiny page":      "storage:\n  page_size: 8\n",
		"zero capacity":  "bufferpool:\n  capacity: 0\n",
		"negative bins":  "stats:\n  histogram_bins: -1\n",
		"no columns":     "tables:\n  - { name: t, file: t.dat }\n",
		"bad type":       "tables:\n  - name: t\n    file: t.dat\n    columns:\n      - { name: x, type: float }\n",
		"duplicate name": "tables:\n  - { name: t, file: a.dat, columns: [{ name: x, type: int }] }\n  - { name: t, file: b.dat, columns: [{ name: x, type: int }] }\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.ErrorIs(t, err, ErrInvalid)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestTableConfig_DefaultStringLen(t *testing.T) {
	desc, err := TableConfig{Name: "t", File: "t.dat", Columns: []ColumnConfig{{Name: "s", Type: "string"}}}.Desc()
	require.NoError(t, err)
	require.Equal(t, record.DefaultStringLen, desc.Fields[0].Len)
}
