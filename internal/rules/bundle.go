package rules

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/kernox/agent/internal/logging"
)

// extractBundleIfPresent looks for a "<dir>.tar.zst" bundle sitting next to
// dir and, if found, extracts it into dir before the directory is walked
// for rule files. This lets rule sets ship as a single compressed artifact
// (SPEC_FULL.md §10.4) rather than requiring dir to be pre-populated.
func extractBundleIfPresent(dir string, log *logging.Logger) error {
	bundlePath := filepath.Clean(dir) + ".tar.zst"
	data, err := os.ReadFile(bundlePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("rules: read bundle %s: %w", bundlePath, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("rules: mkdir %s: %w", dir, err)
	}

	zr, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("rules: zstd reader: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	extracted := 0
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("rules: read tar header: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.Base(header.Name)
		dest := filepath.Join(dir, name)
		out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("rules: create %s: %w", dest, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("rules: write %s: %w", dest, err)
		}
		out.Close()
		extracted++
	}

	log.LogRuleEvent("rule_bundle_extracted", "bundle", bundlePath, "files", extracted)
	return nil
}
