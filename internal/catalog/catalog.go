// Package catalog turns a decoded package index into package records.
//
// Index files in the wild are not always UTF-8 (descriptions copied from
// Latin-1 sources are common). By default invalid byte sequences are
// replaced with U+FFFD and a warning is logged; strict mode rejects them.
package catalog

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/vertextoedge/cydia-mirror/internal/domain"
)

// Index field names
const (
	FieldPackage  = "package"
	FieldName     = "name"
	FieldFilename = "filename"
	FieldMD5      = "md5sum"
	FieldSHA1     = "sha1"
	FieldSHA256   = "sha256"
)

var requiredFields = []string{FieldFilename, FieldPackage, FieldName}

// Parser converts index bytes into package records
type Parser struct {
	strict bool
	logger *zap.Logger
}

// New creates a Parser. With strict set, non UTF-8 input is an error.
func New(strict bool, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{strict: strict, logger: logger}
}

// Parse decodes data and returns the records in index order
func (p *Parser) Parse(data []byte) ([]domain.PackageRecord, error) {
	text, err := p.decodeText(data)
	if err != nil {
		return nil, err
	}

	paragraphs, err := ParseParagraphs(text)
	if err != nil {
		return nil, err
	}

	records := make([]domain.PackageRecord, 0, len(paragraphs))
	for i, para := range paragraphs {
		rec, err := RecordFromParagraph(para)
		if err != nil {
			return nil, fmt.Errorf("paragraph %d: %w", i+1, err)
		}
		if rec.Checksum.IsNone() {
			p.logger.Info("package has no supported checksum, it will always be downloaded",
				zap.String("package", rec.BundleID),
				zap.String("name", rec.Name))
		}
		records = append(records, rec)
	}

	return records, nil
}

func (p *Parser) decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	if p.strict {
		return "", domain.ErrInvalidEncoding
	}

	p.logger.Warn("package index contains invalid UTF-8, replacing invalid sequences",
		zap.Int("bytes", len(data)))
	return strings.ToValidUTF8(string(data), string(utf8.RuneError)), nil
}

// RecordFromParagraph builds a record, failing on any missing required field
func RecordFromParagraph(para Paragraph) (domain.PackageRecord, error) {
	for _, field := range requiredFields {
		if v, ok := para.Get(field); !ok || v == "" {
			return domain.PackageRecord{}, fmt.Errorf("%w: %q", domain.ErrMissingField, field)
		}
	}

	filename, _ := para.Get(FieldFilename)
	clean, err := CleanPath(filename)
	if err != nil {
		return domain.PackageRecord{}, err
	}

	bundleID, _ := para.Get(FieldPackage)
	name, _ := para.Get(FieldName)

	return domain.PackageRecord{
		BundleID: bundleID,
		Name:     name,
		Filename: clean,
		Checksum: ChecksumFromParagraph(para),
	}, nil
}

// ChecksumFromParagraph picks the checksum with priority MD5 > SHA1 > SHA256
func ChecksumFromParagraph(para Paragraph) domain.ChecksumSpec {
	if v, ok := para.Get(FieldMD5); ok && v != "" {
		return domain.MD5(v)
	}
	if v, ok := para.Get(FieldSHA1); ok && v != "" {
		return domain.SHA1(v)
	}
	if v, ok := para.Get(FieldSHA256); ok && v != "" {
		return domain.SHA256(v)
	}
	return domain.NoChecksum()
}

// CleanPath normalizes a repository-relative path and rejects anything
// that would escape the save root.
func CleanPath(p string) (string, error) {
	slashed := strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(slashed, "/") {
		return "", fmt.Errorf("%w: %q is absolute", domain.ErrUnsafePath, p)
	}

	clean := path.Clean(slashed)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsafePath, p)
	}
	return clean, nil
}
