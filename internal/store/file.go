// Package store provides ready-made hook implementations that fetch unit
// source from a filesystem tree or a SQL database.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"lode/internal/loader"
	"lode/internal/util/future"
)

const sourceExt = ".lode"

type fetched struct {
	source  string
	address string
}

// FileHooks resolves dotted unit names to files under a root directory, with
// a LODE_HOME/lib fallback for shared units. Fetches run asynchronously and
// settle the loader's callback when the read completes.
type FileHooks struct {
	loader.Defaults
	Root string
	Home string // usually $LODE_HOME; "" disables the fallback
}

func NewFileHooks(root string) *FileHooks {
	return &FileHooks{Root: root, Home: os.Getenv("LODE_HOME")}
}

// Resolve maps "a.b.c" to <root>/a/b/c.lode.
func (h *FileHooks) Resolve(name string, metadata any) (loader.Resolved, error) {
	rel := filepath.Join(strings.Split(name, ".")...) + sourceExt
	return loader.Resolved{Address: filepath.Join(h.Root, rel)}, nil
}

func (h *FileHooks) Fetch(req *loader.Request, cb *loader.FetchCallback) {
	address := req.Address
	name := req.Name
	home := h.Home

	f := future.New(func() (fetched, error) {
		data, err := os.ReadFile(address)
		if err == nil {
			return fetched{source: string(data), address: address}, nil
		}
		if home == "" || name == "" {
			return fetched{}, fmt.Errorf("reading unit %q: %w", req.Name, err)
		}
		libPath := filepath.Join(home, "lib", filepath.Join(strings.Split(name, ".")...)+sourceExt)
		data, libErr := os.ReadFile(libPath)
		if libErr != nil {
			return fetched{}, fmt.Errorf("reading unit %q (%s / %s): %w", name, address, libPath, err)
		}
		return fetched{source: string(data), address: libPath}, nil
	})

	go func() {
		r, err := f.Await()
		if err != nil {
			cb.Reject(err)
			return
		}
		slog.Debug("fetched unit source", slog.String("unit", name), slog.String("path", r.address))
		cb.Fulfill(r.source, r.address)
	}()
}
