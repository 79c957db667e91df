package storage

import (
	"errors"
	"io"
)

// ProgressReader reports cumulative bytes read. Total is -1 when unknown.
type ProgressReader struct {
	r          io.Reader
	total      int64
	read       int64
	lastReport int
	onProgress func(read, total int64, percent int)
}

func NewProgressReader(r io.Reader, total int64, onProgress func(read, total int64, percent int)) *ProgressReader {
	return &ProgressReader{r: r, total: total, lastReport: -1, onProgress: onProgress}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.onProgress != nil && n > 0 {
		percent := -1
		if p.total > 0 {
			percent = int(p.read * 100 / p.total)
		}
		// Only report whole-percent steps.
		if percent != p.lastReport || percent < 0 {
			p.lastReport = percent
			p.onProgress(p.read, p.total, percent)
		}
	}
	return n, err
}

func (p *ProgressReader) BytesRead() int64 {
	return p.read
}

// ErrTooLarge is returned by a LimitedReader once its source exceeds the
// limit.
var ErrTooLarge = errors.New("object exceeds size limit")

// LimitedReader fails with ErrTooLarge instead of truncating, so a Save fed
// from it aborts and removes the partial object.
type LimitedReader struct {
	r     io.Reader
	limit int64
	read  int64
}

func NewLimitedReader(r io.Reader, limit int64) *LimitedReader {
	return &LimitedReader{r: r, limit: limit}
}

func (l *LimitedReader) Read(b []byte) (int, error) {
	n, err := l.r.Read(b)
	l.read += int64(n)
	if l.read > l.limit {
		return n, ErrTooLarge
	}
	return n, err
}
