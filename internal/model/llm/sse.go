package llm

import (
	"bufio"
	"io"
	"strings"
)

// sseReader 拉取式 Server-Sent Events 解析，每次 Next 返回一个完整事件
type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseReader{scanner: s}
}

// Next 读到流尾且无残留数据时返回 io.EOF
func (r *sseReader) Next() (event, data string, err error) {
	var buf strings.Builder
	for r.scanner.Scan() {
		line := r.scanner.Text()
		switch {
		case line == "":
			if buf.Len() > 0 {
				return event, buf.String(), nil
			}
			event = ""
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(strings.TrimSpace(line[len("data:"):]))
		}
	}
	if err := r.scanner.Err(); err != nil {
		return "", "", err
	}
	if buf.Len() > 0 {
		return event, buf.String(), nil
	}
	return "", "", io.EOF
}
