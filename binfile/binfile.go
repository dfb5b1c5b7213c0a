// Package binfile reads and writes binarized mark files.  A binarized file
// holds one chromosome of one cell type: a header line with the cell and
// chromosome, a line of mark names, then one line per bin with a call of 0
// (absent), 1 (present) or 2 (missing) for each mark.
package binfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/klauspost/compress/gzip"
	"github.com/kshedden/chromhmm/hmmlib"
)

// Suffix is the file name suffix of binarized files, optionally followed by
// ".gz".
const Suffix = "_binary.txt"

// FileName returns the conventional name of the binarized file for a cell
// and chromosome.
func FileName(cell, chrom string) string {
	return cell + "_" + chrom + Suffix
}

// IsBinarized is true if name looks like a binarized file.
func IsBinarized(name string) bool {
	return strings.HasSuffix(name, Suffix) || strings.HasSuffix(name, Suffix+".gz")
}

// Read parses one binarized file.  The source is only used in error messages.
func Read(r io.Reader, source string) (*hmmlib.RawSequence, error) {

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	raw := &hmmlib.RawSequence{Source: source}
	var lineno int

	for scanner.Scan() {
		lineno++
		line := bytes.TrimRight(scanner.Bytes(), "\r")

		switch lineno {
		case 1:
			fields := strings.Fields(string(line))
			if len(fields) < 2 {
				return nil, fmt.Errorf("%s:%d: header must give the cell and chromosome", source, lineno)
			}
			raw.Cell, raw.Chrom = fields[0], fields[1]
			continue
		case 2:
			raw.Marks = strings.Fields(string(line))
			if len(raw.Marks) == 0 {
				return nil, fmt.Errorf("%s:%d: %w: no mark names", source, lineno, hmmlib.ErrMarkMismatch)
			}
			continue
		}

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		fields := bytes.Fields(line)
		if len(fields) != len(raw.Marks) {
			return nil, fmt.Errorf("%s:%d: %w: %d calls for %d marks", source, lineno,
				hmmlib.ErrBadToken, len(fields), len(raw.Marks))
		}
		for _, f := range fields {
			if len(f) != 1 || (f[0] != hmmlib.CallAbsent && f[0] != hmmlib.CallPresent && f[0] != hmmlib.CallMissing) {
				return nil, fmt.Errorf("%s:%d: %w: got '%s'", source, lineno, hmmlib.ErrBadToken, f)
			}
			raw.Calls = append(raw.Calls, f[0])
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", source, err))
	}

	if lineno < 2 {
		return nil, fmt.Errorf("%s: incomplete header", source)
	}
	if len(raw.Calls) == 0 {
		return nil, fmt.Errorf("%s: %w", source, hmmlib.ErrEmptySequence)
	}

	return raw, nil
}

// openReader wraps r in a gzip reader if name ends in .gz.  The returned
// function closes the gzip reader, if any.
func openReader(r io.Reader, name string) (io.Reader, func() error, error) {

	if !strings.HasSuffix(name, ".gz") {
		return r, func() error { return nil }, nil
	}

	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, pfx.Err(fmt.Errorf("%s: %w", name, err))
	}

	return gz, gz.Close, nil
}

// ReadFile reads a binarized file from the local file system.
func ReadFile(path string) (*hmmlib.RawSequence, error) {

	fid, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer fid.Close()

	r, done, err := openReader(fid, path)
	if err != nil {
		return nil, err
	}
	defer done()

	return Read(r, path)
}

// Write writes raw in the binarized format.
func Write(w io.Writer, raw *hmmlib.RawSequence) error {

	bw := bufio.NewWriter(w)
	nm := len(raw.Marks)

	fmt.Fprintf(bw, "%s\t%s\n", raw.Cell, raw.Chrom)
	fmt.Fprintf(bw, "%s\n", strings.Join(raw.Marks, "\t"))

	for t := 0; t < raw.NBins(); t++ {
		row := raw.Calls[t*nm : (t+1)*nm]
		for m, c := range row {
			if m > 0 {
				_ = bw.WriteByte('\t')
			}
			_ = bw.WriteByte(c)
		}
		_ = bw.WriteByte('\n')
	}

	return bw.Flush()
}

// WriteFile writes raw to the named file, gzip compressed if the name ends
// in .gz.
func WriteFile(path string, raw *hmmlib.RawSequence) error {

	fid, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer fid.Close()

	var w io.Writer = fid
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(fid)
		w = gz
	}

	if err := Write(w, raw); err != nil {
		return pfx.Err(err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return pfx.Err(err)
		}
	}
	if err := fid.Close(); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// ReadIncludeList reads file names, one per line.  Blank lines and lines
// starting with # are skipped.
func ReadIncludeList(path string) ([]string, error) {

	fid, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer fid.Close()

	var names []string
	scanner := bufio.NewScanner(fid)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(err)
	}

	return names, nil
}
