package domain

import "fmt"

// ChecksumAlgorithm identifies a digest algorithm declared by a package index.
// The zero value is ChecksumNone.
type ChecksumAlgorithm int

const (
	ChecksumNone ChecksumAlgorithm = iota
	ChecksumMD5
	ChecksumSHA1
	ChecksumSHA256
)

// String returns the index field name for the algorithm
func (a ChecksumAlgorithm) String() string {
	switch a {
	case ChecksumMD5:
		return "md5"
	case ChecksumSHA1:
		return "sha1"
	case ChecksumSHA256:
		return "sha256"
	case ChecksumNone:
		return "none"
	default:
		return fmt.Sprintf("ChecksumAlgorithm(%d)", int(a))
	}
}

// ChecksumSpec is the expected digest of a package file.
// A spec with ChecksumNone never matches anything on disk.
type ChecksumSpec struct {
	Algorithm ChecksumAlgorithm
	Digest    string
}

// NoChecksum returns a spec that forces a download
func NoChecksum() ChecksumSpec {
	return ChecksumSpec{Algorithm: ChecksumNone}
}

// MD5 returns an MD5 checksum spec
func MD5(digest string) ChecksumSpec {
	return ChecksumSpec{Algorithm: ChecksumMD5, Digest: digest}
}

// SHA1 returns a SHA-1 checksum spec
func SHA1(digest string) ChecksumSpec {
	return ChecksumSpec{Algorithm: ChecksumSHA1, Digest: digest}
}

// SHA256 returns a SHA-256 checksum spec
func SHA256(digest string) ChecksumSpec {
	return ChecksumSpec{Algorithm: ChecksumSHA256, Digest: digest}
}

// IsNone reports whether no usable checksum was declared
func (c ChecksumSpec) IsNone() bool {
	return c.Algorithm == ChecksumNone
}

func (c ChecksumSpec) String() string {
	if c.IsNone() {
		return "none"
	}
	return c.Algorithm.String() + ":" + c.Digest
}

// PackageRecord is one downloadable entry of the package index
type PackageRecord struct {
	// BundleID is the "Package" field
	BundleID string

	// Name is the human readable "Name" field
	Name string

	// Filename is the path of the package relative to the repository root,
	// also used as the destination relative to the save root.
	Filename string

	Checksum ChecksumSpec
}

// DisplayName returns the name used in log lines
func (r *PackageRecord) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.BundleID
}
