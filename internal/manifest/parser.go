package manifest

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"

	pipelineerrors "github.com/dockhand-build/dockhand/internal/errors"
)

var (
	// PEP 508 package name: alphanumeric with inner '-', '_', '.'.
	nameRe = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)

	// A single version clause, e.g. "==2.5.0", ">=1.0", "~=3.1".
	clauseRe = regexp.MustCompile(`^(===|==|!=|~=|>=|<=|>|<)\s*[0-9A-Za-z.*+!_-]+$`)
)

// ParseFile reads and parses a requirement manifest from disk. A missing
// file is a fatal manifest error: the resolver stage must never run
// against a manifest it cannot read.
func ParseFile(path string) (*Manifest, pipelineerrors.List) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pipelineerrors.List{
			pipelineerrors.Newf(pipelineerrors.StageManifest, pipelineerrors.ErrManifestNotFound,
				"cannot read manifest: %v", err).At(path, 0).AsFatal(),
		}
	}
	defer f.Close()

	return Parse(f, path)
}

// Parse parses a requirement manifest. It returns every syntax error it
// finds rather than stopping at the first, so a broken manifest surfaces
// all problems in one run. The returned manifest is nil whenever the
// error list contains an entry at Error severity or above: a partially
// parsed manifest is never published to the next stage.
func Parse(r io.Reader, path string) (*Manifest, pipelineerrors.List) {
	var errs pipelineerrors.List
	m := &Manifest{Path: path}
	seen := make(map[string]int)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		startLine := lineNo
		line := scanner.Text()

		// Physical lines ending in '\' continue onto the next line.
		for strings.HasSuffix(strings.TrimRight(line, " \t"), `\`) && scanner.Scan() {
			lineNo++
			line = strings.TrimRight(strings.TrimRight(line, " \t"), `\`) + scanner.Text()
		}

		line = stripComment(line)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "-") {
			// Option lines (-r includes, --index-url, ...) are the
			// package manager's concern, not the pipeline's. Includes
			// would make the manifest non-self-contained, so they are
			// rejected outright.
			errs = append(errs, pipelineerrors.Newf(pipelineerrors.StageManifest,
				pipelineerrors.ErrManifestSyntax,
				"option lines are not supported in a build manifest: %q", line).At(path, startLine))
			continue
		}

		req, reqErrs := parseRequirement(line, path, startLine)
		if len(reqErrs) > 0 {
			errs = append(errs, reqErrs...)
			continue
		}

		if prev, dup := seen[req.Name]; dup {
			errs = append(errs, pipelineerrors.Newf(pipelineerrors.StageManifest,
				pipelineerrors.ErrManifestDuplicate,
				"duplicate package %q (first declared on line %d)", req.Name, prev).At(path, startLine))
			continue
		}
		seen[req.Name] = startLine

		m.Requirements = append(m.Requirements, req)
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, pipelineerrors.Newf(pipelineerrors.StageManifest,
			pipelineerrors.ErrManifestSyntax, "failed to read manifest: %v", err).At(path, lineNo))
	}

	if len(m.Requirements) == 0 && !errs.HasErrors() {
		errs = append(errs, pipelineerrors.New(pipelineerrors.StageManifest,
			pipelineerrors.ErrManifestEmpty, "manifest declares no packages").At(path, 0))
	}

	if errs.HasErrors() {
		return nil, errs
	}
	return m, errs
}

// parseRequirement parses a single logical requirement line.
func parseRequirement(line, path string, lineNo int) (Requirement, pipelineerrors.List) {
	var errs pipelineerrors.List
	req := Requirement{Line: lineNo}

	// Split off the environment marker first: everything after ';'.
	if i := strings.Index(line, ";"); i >= 0 {
		req.Marker = strings.TrimSpace(line[i+1:])
		line = strings.TrimSpace(line[:i])
	}

	// Find where the name (plus optional extras) ends and the version
	// clauses begin.
	nameEnd := strings.IndexAny(line, "<>=!~ ")
	namePart := line
	constraint := ""
	if nameEnd >= 0 {
		namePart = strings.TrimSpace(line[:nameEnd])
		constraint = strings.TrimSpace(line[nameEnd:])
	}

	// Extras: name[extra1,extra2]
	if i := strings.Index(namePart, "["); i >= 0 {
		if !strings.HasSuffix(namePart, "]") {
			errs = append(errs, pipelineerrors.Newf(pipelineerrors.StageManifest,
				pipelineerrors.ErrManifestSyntax, "unterminated extras in %q", namePart).At(path, lineNo))
			return req, errs
		}
		for _, extra := range strings.Split(namePart[i+1:len(namePart)-1], ",") {
			extra = strings.TrimSpace(extra)
			if extra != "" {
				req.Extras = append(req.Extras, extra)
			}
		}
		namePart = namePart[:i]
	}

	if !nameRe.MatchString(namePart) {
		errs = append(errs, pipelineerrors.Newf(pipelineerrors.StageManifest,
			pipelineerrors.ErrManifestBadName, "invalid package name %q", namePart).At(path, lineNo))
		return req, errs
	}
	req.RawName = namePart
	req.Name = canonicalName(namePart)

	if constraint != "" {
		for _, clause := range strings.Split(constraint, ",") {
			clause = strings.TrimSpace(clause)
			if !clauseRe.MatchString(clause) {
				errs = append(errs, pipelineerrors.Newf(pipelineerrors.StageManifest,
					pipelineerrors.ErrManifestBadConstraint,
					"invalid version constraint %q for package %q", clause, req.RawName).At(path, lineNo))
				return req, errs
			}
		}
		req.Constraint = strings.ReplaceAll(constraint, " ", "")
	}

	return req, nil
}

// stripComment removes a trailing '#' comment. A '#' only starts a
// comment at the beginning of the line or after whitespace, matching pip.
func stripComment(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] == '#' && (i == 0 || line[i-1] == ' ' || line[i-1] == '\t') {
			return line[:i]
		}
	}
	return line
}
