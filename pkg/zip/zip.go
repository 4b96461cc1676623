// Package zip bundles project export assets into a single archive.
package zip

import (
	"archive/zip"
	"bytes"
	"time"
)

// Asset is one file destined for an export archive. MIME is advisory and only
// used by callers composing HTTP responses; the archive itself stores bytes.
type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// ArchiveAssets packs the assets into a zip archive held in memory. Entries
// with empty filenames are skipped. Returns nil when writing fails, which
// callers treat as an export error.
func ArchiveAssets(assets []Asset) []byte {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	now := time.Now()
	for _, asset := range assets {
		if asset.Filename == "" {
			continue
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     asset.Filename,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return nil
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil
		}
	}
	if err := zw.Close(); err != nil {
		return nil
	}
	return buf.Bytes()
}
