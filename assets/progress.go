package assets

import (
	"fmt"
	"io"
	"math"
)

// HumanSize formats a byte count for progress lines.
func HumanSize(n int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	f := float64(n)
	for _, u := range units {
		if math.Abs(f) < 1024 {
			return fmt.Sprintf("%.1f%s", f, u)
		}
		f /= 1024
	}
	return fmt.Sprintf("%.1f%s", f, units[len(units)-1])
}

// progressReader reports how much of a body of known size has been read, as
// a percentage. It only reports when the percentage changes.
type progressReader struct {
	r      io.Reader
	size   int64
	read   int64
	last   int
	report func(percent int)
}

func newProgressReader(r io.Reader, size int64, report func(int)) *progressReader {
	return &progressReader{r: r, size: size, last: -1, report: report}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.report != nil && p.size > 0 {
		pct := int(p.read * 100 / p.size)
		if pct > 100 {
			pct = 100
		}
		if pct != p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}
