// Package pack validates and reads local content packs: a directory with a
// pack_manifest.json that pins every referenced file by sha256. Packs are
// never loaded over the network.
package pack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/OneInX/Manifest-InX/internal/release"
)

// ManifestName is the manifest file at the pack root.
const ManifestName = "pack_manifest.json"

// SchemaVersion is the only accepted schema_version.
const SchemaVersion = "pack_manifest_v0.1"

var (
	sha256Hex   = regexp2.MustCompile(`^[a-f0-9]{64}$`, regexp2.None)
	semverLike  = regexp2.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+([\-\+][A-Za-z0-9.\-]+)?$`, regexp2.None)
	driveLetter = regexp2.MustCompile(`^[A-Za-z]:`, regexp2.None)
)

// #region report

// Issue codes.
const (
	CodeManifestRead        = "MANIFEST_READ_ERROR"
	CodeSchemaVersion       = "SCHEMA_VERSION"
	CodePackID              = "PACK_ID"
	CodeVersionFormat       = "VERSION_FORMAT"
	CodeEngineCompatType    = "ENGINE_COMPAT_TYPE"
	CodeEngineCompatFormat  = "ENGINE_COMPAT_FORMAT"
	CodeFiles               = "FILES"
	CodePathUnsafe          = "PATH_UNSAFE"
	CodeSHA256Format        = "SHA256_FORMAT"
	CodePathTraversal       = "PATH_TRAVERSAL"
	CodeFileMissing         = "FILE_MISSING"
	CodeSHA256Mismatch      = "SHA256_MISMATCH"
	CodeEntrypointsType     = "ENTRYPOINTS_TYPE"
	CodeEntrypointName      = "ENTRYPOINT_NAME"
	CodeEntrypointPath      = "ENTRYPOINT_PATH"
	CodeEntrypointNotPinned = "ENTRYPOINT_NOT_PINNED"
)

// Issue is one validation finding. Path names the manifest field or pinned
// file it concerns.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// Report is the outcome of Validate. Fields are in key order.
type Report struct {
	Issues []Issue `json:"issues"`
	OK     bool    `json:"ok"`
}

// Codes returns the issue codes in report order.
func (r Report) Codes() []string {
	codes := make([]string, len(r.Issues))
	for i, is := range r.Issues {
		codes[i] = is.Code
	}
	return codes
}

// #endregion report

// #region validate

// Validate checks the manifest at root and every file it pins. Files and
// entrypoints are checked in ascending key order so reports are stable.
func Validate(root string) Report {
	root, err := resolveRoot(root)
	if err != nil {
		return fail(Issue{CodeManifestRead, err.Error(), ManifestName})
	}
	manifest, err := readManifest(root)
	if err != nil {
		return fail(Issue{CodeManifestRead, err.Error(), ManifestName})
	}

	var issues []Issue
	add := func(code, msg, path string) {
		issues = append(issues, Issue{Code: code, Message: msg, Path: path})
	}

	if v, _ := manifest["schema_version"].(string); v != SchemaVersion {
		add(CodeSchemaVersion, "schema_version must equal '"+SchemaVersion+"'", "schema_version")
	}
	if id, ok := manifest["pack_id"].(string); !ok || strings.TrimSpace(id) == "" {
		add(CodePackID, "pack_id must be a non-empty string", "pack_id")
	}

	if raw, present := manifest["version"]; present && raw != nil {
		if v, ok := raw.(string); !ok || !match(semverLike, v) {
			add(CodeVersionFormat, "version must be a SemVer-like string (e.g., 1.2.3 or 1.2.3-rc.1)", "version")
		}
	}

	if raw, present := manifest["engine_compat"]; present && raw != nil {
		compat, ok := raw.(map[string]any)
		if !ok {
			add(CodeEngineCompatType, "engine_compat must be an object", "engine_compat")
		} else {
			for _, k := range []string{"min_version", "max_version"} {
				v, present := compat[k]
				if !present || v == nil {
					continue
				}
				if s, ok := v.(string); !ok || !match(semverLike, s) {
					add(CodeEngineCompatFormat, "engine_compat."+k+" must be a SemVer-like string", "engine_compat."+k)
				}
			}
		}
	}

	files, ok := manifest["files"].(map[string]any)
	if !ok || len(files) == 0 {
		add(CodeFiles, "files must be a non-empty object mapping relpath -> sha256", "files")
		return Report{OK: false, Issues: issues}
	}

	for _, rel := range sortedKeys(files) {
		if !IsSafeRelPath(rel) {
			add(CodePathUnsafe, "file path must be a safe relative path", rel)
			continue
		}
		sum, ok := files[rel].(string)
		if !ok || !match(sha256Hex, sum) {
			add(CodeSHA256Format, "sha256 must be 64 lowercase hex chars", rel)
			continue
		}
		p, err := within(root, rel)
		if err == errOutside {
			add(CodePathTraversal, "file resolves outside pack root", rel)
			continue
		}
		if err != nil {
			add(CodeFileMissing, "pinned file missing", rel)
			continue
		}
		if info, err := os.Stat(p); err != nil || !info.Mode().IsRegular() {
			add(CodeFileMissing, "pinned file missing", rel)
			continue
		}
		b, err := os.ReadFile(p)
		if err != nil {
			add(CodeFileMissing, "pinned file missing", rel)
			continue
		}
		if release.Digest(b) != sum {
			add(CodeSHA256Mismatch, "sha256 pin mismatch for raw bytes", rel)
		}
	}

	if raw, present := manifest["entrypoints"]; present && raw != nil {
		eps, ok := raw.(map[string]any)
		if !ok {
			add(CodeEntrypointsType, "entrypoints must be an object", "entrypoints")
		} else {
			for _, name := range sortedKeys(eps) {
				if name == "" {
					add(CodeEntrypointName, "entrypoint name must be a non-empty string", "entrypoints")
					continue
				}
				rel, ok := eps[name].(string)
				if !ok || !IsSafeRelPath(rel) {
					add(CodeEntrypointPath, "entrypoint relpath must be a safe relative path", "entrypoints."+name)
					continue
				}
				if _, pinned := files[rel]; !pinned {
					add(CodeEntrypointNotPinned, "entrypoint must reference a pinned file in files", "entrypoints."+name)
				}
			}
		}
	}

	return Report{OK: len(issues) == 0, Issues: nonNil(issues)}
}

// IsSafeRelPath reports whether p is relative, uses forward slashes, has no
// drive letter and no ".." segment.
func IsSafeRelPath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, `\`) {
		return false
	}
	if match(driveLetter, p) {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}

// #endregion validate

// #region helpers

var errOutside = fmt.Errorf("path resolves outside pack root")

func resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	}
	return abs, nil
}

// within resolves rel under root, following symlinks, and rejects results
// outside root.
func within(root, rel string) (string, error) {
	p, err := filepath.EvalSymlinks(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return "", err
	}
	r, err := filepath.Rel(root, p)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", errOutside
	}
	return p, nil
}

func readManifest(root string) (map[string]any, error) {
	mf := filepath.Join(root, ManifestName)
	info, err := os.Stat(mf)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("missing %s at: %s", ManifestName, mf)
	}
	b, err := os.ReadFile(mf)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestName, err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a JSON object", ManifestName)
	}
	return m, nil
}

func match(re *regexp2.Regexp, s string) bool {
	ok, _ := re.MatchString(s)
	return ok
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fail(is Issue) Report {
	return Report{OK: false, Issues: []Issue{is}}
}

func nonNil(issues []Issue) []Issue {
	if issues == nil {
		return []Issue{}
	}
	return issues
}

// #endregion helpers
