package main

import (
	"net/http"
	"os"
	"time"

	"github.com/nguyengg/rangezip/internal/config"
	"github.com/nguyengg/rangezip/internal/httpapi"
	"github.com/nguyengg/rangezip/internal/logging"
	"github.com/nguyengg/rangezip/service"
	"github.com/nguyengg/rangezip/zipcd/cdcache"
)

const cacheTTL = 10 * time.Minute

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	facade := &service.Facade{
		Cache:          cdcache.New(cfg.CacheSize, cacheTTL),
		RequestTimeout: 30 * time.Second,
	}

	handler := httpapi.NewRouter(facade, logger)

	addr := "0.0.0.0:" + cfg.Port
	logger.Infof("listening on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Errorf("server stopped: %s", err)
		os.Exit(1)
	}
}
