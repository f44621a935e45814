package templates

import (
	"os"
	"path/filepath"

	"github.com/gartstein/hrflow/internal/hrflow/models"
	"go.uber.org/zap"
)

// Cache keeps built templates on disk. Every I/O failure is logged and
// ignored; a nil *Cache is a valid disabled cache.
type Cache struct {
	dir    string
	logger *zap.Logger
}

// NewCache returns nil when dir is empty.
func NewCache(dir string, logger *zap.Logger) *Cache {
	if dir == "" {
		return nil
	}
	return &Cache{dir: dir, logger: logger.Named("template_cache")}
}

func (c *Cache) path(category models.Category) string {
	return filepath.Join(c.dir, string(category)+".docx")
}

func (c *Cache) Load(category models.Category) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	data, err := os.ReadFile(c.path(category))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

func (c *Cache) Store(category models.Category, data []byte) {
	if c == nil {
		return
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.logger.Debug("Template cache unavailable", zap.Error(err))
		return
	}
	tmp, err := os.CreateTemp(c.dir, string(category)+"-*.tmp")
	if err != nil {
		c.logger.Debug("Template cache write failed", zap.Error(err))
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		c.logger.Debug("Template cache write failed", zap.Error(err))
		return
	}
	if err := tmp.Close(); err != nil {
		c.logger.Debug("Template cache write failed", zap.Error(err))
		return
	}
	if err := os.Rename(tmp.Name(), c.path(category)); err != nil {
		c.logger.Debug("Template cache write failed", zap.Error(err))
	}
}
