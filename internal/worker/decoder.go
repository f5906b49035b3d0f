package worker

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Chunk is one parsed unit of a worker stream.
type Chunk struct {
	Text      string `json:"text"`       // full text so far, prompt echo included
	ErrorCode int    `json:"error_code"` // 0 = success
}

// ChunkDecoder turns one frame of stream text into a Chunk.
type ChunkDecoder interface {
	Decode(frame string) (Chunk, error)
}

var escapePattern = regexp.MustCompile(`%([A-Fa-f0-9]{2})`)

// RepairDecoder tolerates workers that emit NUL bytes and %XX escapes
// inside otherwise valid JSON. NULs become spaces and every %XX becomes
// the character with that code point before the frame is parsed.
type RepairDecoder struct{}

// Repair applies the NUL and percent-escape rewrites to frame.
func (RepairDecoder) Repair(frame string) string {
	repaired := strings.ReplaceAll(frame, "\x00", " ")
	if strings.Contains(repaired, "%") {
		repaired = escapePattern.ReplaceAllStringFunc(repaired, func(match string) string {
			code, _ := strconv.ParseUint(match[1:], 16, 8)
			return string(rune(code))
		})
	}
	return repaired
}

// Decode repairs and parses frame.
func (d RepairDecoder) Decode(frame string) (Chunk, error) {
	repaired := d.Repair(frame)
	if !gjson.Valid(repaired) {
		return Chunk{}, fmt.Errorf("%w: malformed JSON %q", ErrInvalidChunk, abbreviate(frame))
	}

	parsed := gjson.Parse(repaired)
	if !parsed.IsObject() {
		return Chunk{}, fmt.Errorf("%w: not an object %q", ErrInvalidChunk, abbreviate(frame))
	}
	text := parsed.Get("text")
	if !text.Exists() {
		return Chunk{}, fmt.Errorf("%w: missing text field", ErrInvalidChunk)
	}

	return Chunk{
		Text:      text.String(),
		ErrorCode: int(parsed.Get("error_code").Int()),
	}, nil
}

// StrictDecoder parses frames as plain JSON, for workers that need no repair.
type StrictDecoder struct{}

// Decode parses frame with encoding/json.
func (StrictDecoder) Decode(frame string) (Chunk, error) {
	var raw struct {
		Text      *string `json:"text"`
		ErrorCode int     `json:"error_code"`
	}
	if err := json.Unmarshal([]byte(frame), &raw); err != nil {
		return Chunk{}, fmt.Errorf("%w: %v", ErrInvalidChunk, err)
	}
	if raw.Text == nil {
		return Chunk{}, fmt.Errorf("%w: missing text field", ErrInvalidChunk)
	}
	return Chunk{Text: *raw.Text, ErrorCode: raw.ErrorCode}, nil
}

// Decoder names accepted by DecoderByName.
const (
	DecoderRepair = "repair"
	DecoderStrict = "strict"
)

// DecoderByName returns the ChunkDecoder registered under name. An empty
// name selects the repairing decoder.
func DecoderByName(name string) (ChunkDecoder, error) {
	switch strings.ToLower(name) {
	case "", DecoderRepair:
		return RepairDecoder{}, nil
	case DecoderStrict:
		return StrictDecoder{}, nil
	default:
		return nil, fmt.Errorf("unknown worker decoder %q (want %s or %s)", name, DecoderRepair, DecoderStrict)
	}
}

func abbreviate(s string) string {
	const limit = 80
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// textDecoder converts stream bytes to text, carrying an incomplete
// multi-byte sequence over to the next call.
type textDecoder struct {
	t    transform.Transformer
	tail []byte
}

func newTextDecoder() *textDecoder {
	return &textDecoder{t: unicode.UTF8.NewDecoder()}
}

func (d *textDecoder) decode(p []byte, atEOF bool) string {
	src := make([]byte, 0, len(d.tail)+len(p))
	src = append(src, d.tail...)
	src = append(src, p...)

	// invalid bytes expand to U+FFFD (3 bytes)
	dst := make([]byte, 3*len(src)+utf8.UTFMax)
	nDst, nSrc, _ := d.t.Transform(dst, src, atEOF)
	d.tail = src[nSrc:]
	return string(dst[:nDst])
}

// framer splits decoded text into frames on NUL or newline boundaries.
// A delimiter only ends a frame when the text before it decodes; otherwise
// it is taken to be embedded in the frame and left for the decoder to
// repair. A trailing remainder that already decodes is treated as a frame
// too, since some workers send one object per write without a delimiter.
type framer struct {
	text    *textDecoder
	decoder ChunkDecoder
	pending string
}

func newFramer(decoder ChunkDecoder) *framer {
	return &framer{text: newTextDecoder(), decoder: decoder}
}

// push feeds data to the framer and returns the chunks completed by it.
// On a malformed frame it returns the chunks decoded before it along with
// the error.
func (f *framer) push(data []byte, atEOF bool) ([]Chunk, error) {
	f.pending += f.text.decode(data, atEOF)

	var chunks []Chunk
	for {
		chunk, ok, err := f.next(atEOF)
		if err != nil {
			return chunks, err
		}
		if !ok {
			return chunks, nil
		}
		chunks = append(chunks, chunk)
	}
}

// next takes the first complete frame off pending.
func (f *framer) next(atEOF bool) (Chunk, bool, error) {
	end := 0
	for {
		i := indexDelimiter(f.pending[end:])
		if i < 0 {
			break
		}
		end += i
		frame := f.pending[:end]
		if strings.TrimSpace(frame) == "" {
			f.pending = f.pending[end+1:]
			end = 0
			continue
		}
		chunk, err := f.decoder.Decode(frame)
		if err == nil {
			f.pending = f.pending[end+1:]
			return chunk, true, nil
		}
		// a frame that decodes on its own after the delimiter means the
		// text before it was malformed rather than cut short
		if f.decodes(nextSegment(f.pending[end+1:])) {
			f.pending = f.pending[end+1:]
			return Chunk{}, false, err
		}
		end++
	}

	if strings.TrimSpace(f.pending) == "" {
		if atEOF {
			f.pending = ""
		}
		return Chunk{}, false, nil
	}

	chunk, err := f.decoder.Decode(f.pending)
	if err != nil {
		if atEOF {
			f.pending = ""
			return Chunk{}, false, err
		}
		return Chunk{}, false, nil
	}
	f.pending = ""
	return chunk, true, nil
}

func (f *framer) decodes(segment string) bool {
	if strings.TrimSpace(segment) == "" {
		return false
	}
	_, err := f.decoder.Decode(segment)
	return err == nil
}

func indexDelimiter(s string) int {
	return strings.IndexAny(s, "\x00\n")
}

func nextSegment(s string) string {
	if i := indexDelimiter(s); i >= 0 {
		return s[:i]
	}
	return s
}
