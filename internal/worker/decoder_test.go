package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairDecoderRepair(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"nul becomes space", "a\x00b\x00", "a b "},
		{"escape upper", "%41%42", "AB"},
		{"escape lower", "%7e", "~"},
		{"escape above ascii maps to code point", "%e9", "é"},
		{"escaped nul stays nul", "%00", "\x00"},
		{"invalid escape untouched", "100%zz", "100%zz"},
		{"no percent", `{"text":"x"}`, `{"text":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RepairDecoder{}.Repair(tt.input))
		})
	}
}

func TestRepairDecoderDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    Chunk
		wantErr bool
	}{
		{
			name:  "plain chunk",
			frame: `{"text": "Human: hi###Assistant: hello", "error_code": 0}`,
			want:  Chunk{Text: "Human: hi###Assistant: hello"},
		},
		{
			name:  "trailing nul",
			frame: "{\"text\": \"ok\", \"error_code\": 0}\x00",
			want:  Chunk{Text: "ok"},
		},
		{
			name:  "percent escapes inside text",
			frame: `{"text": "50%25 done", "error_code": 0}`,
			want:  Chunk{Text: "50% done"},
		},
		{
			name:  "escapes decode byte by byte",
			frame: `{"text": "caf%C3%A9", "error_code": 0}`,
			want:  Chunk{Text: "cafÃ©"},
		},
		{
			name:  "error code",
			frame: `{"text": "**NETWORK ERROR**", "error_code": 50001}`,
			want:  Chunk{Text: "**NETWORK ERROR**", ErrorCode: 50001},
		},
		{
			name:  "missing error code is success",
			frame: `{"text": "x"}`,
			want:  Chunk{Text: "x"},
		},
		{name: "malformed", frame: `{"text": "x"`, wantErr: true},
		{name: "not an object", frame: `"x"`, wantErr: true},
		{name: "missing text", frame: `{"error_code": 0}`, wantErr: true},
		{name: "escaped nul breaks the string", frame: `{"text": "a%00b"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RepairDecoder{}.Decode(tt.frame)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidChunk)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStrictDecoder(t *testing.T) {
	got, err := StrictDecoder{}.Decode(`{"text":"hi","error_code":3}`)
	require.NoError(t, err)
	assert.Equal(t, Chunk{Text: "hi", ErrorCode: 3}, got)

	_, err = StrictDecoder{}.Decode("{\"text\":\"hi\"}\x00")
	assert.ErrorIs(t, err, ErrInvalidChunk)

	_, err = StrictDecoder{}.Decode(`{"error_code":0}`)
	assert.ErrorIs(t, err, ErrInvalidChunk)
}

func TestTextDecoderCarriesPartialRunes(t *testing.T) {
	d := newTextDecoder()
	e := []byte("é") // 0xC3 0xA9

	assert.Equal(t, "caf", d.decode(append([]byte("caf"), e[0]), false))
	assert.Equal(t, "é!", d.decode(append([]byte{e[1]}, '!'), false))

	// an incomplete sequence at EOF becomes the replacement character
	assert.Equal(t, "�", d.decode([]byte{0xE2}, true))
}

func TestFramer(t *testing.T) {
	t.Run("several frames in one push", func(t *testing.T) {
		f := newFramer(RepairDecoder{})
		chunks, err := f.push([]byte("{\"text\":\"a\",\"error_code\":0}\x00{\"text\":\"ab\",\"error_code\":0}\x00"), false)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "a", chunks[0].Text)
		assert.Equal(t, "ab", chunks[1].Text)
	})

	t.Run("frame split across pushes", func(t *testing.T) {
		f := newFramer(RepairDecoder{})
		chunks, err := f.push([]byte(`{"text":"he`), false)
		require.NoError(t, err)
		assert.Empty(t, chunks)

		chunks, err = f.push([]byte("llo\",\"error_code\":0}\n"), false)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "hello", chunks[0].Text)
	})

	t.Run("undelimited object is a frame", func(t *testing.T) {
		f := newFramer(RepairDecoder{})
		chunks, err := f.push([]byte(`{"text":"x","error_code":0}`), false)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "x", chunks[0].Text)
	})

	t.Run("blank frames are skipped", func(t *testing.T) {
		f := newFramer(RepairDecoder{})
		chunks, err := f.push([]byte("\x00\n  \x00"), true)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("garbage at EOF fails", func(t *testing.T) {
		f := newFramer(RepairDecoder{})
		_, err := f.push([]byte(`{"text":`), false)
		require.NoError(t, err)
		_, err = f.push(nil, true)
		assert.ErrorIs(t, err, ErrInvalidChunk)
	})

	t.Run("delimited garbage fails at EOF", func(t *testing.T) {
		f := newFramer(RepairDecoder{})
		chunks, err := f.push([]byte("{\"text\":\"a\",\"error_code\":0}\x00not json\x00"), false)
		require.NoError(t, err)
		require.Len(t, chunks, 1)

		_, err = f.push(nil, true)
		assert.ErrorIs(t, err, ErrInvalidChunk)
	})

	t.Run("garbage before a good frame keeps earlier chunks", func(t *testing.T) {
		f := newFramer(RepairDecoder{})
		chunks, err := f.push([]byte("{\"text\":\"a\",\"error_code\":0}\x00<html>\x00{\"text\":\"ab\",\"error_code\":0}\x00"), false)
		assert.ErrorIs(t, err, ErrInvalidChunk)
		require.Len(t, chunks, 1)
		assert.Equal(t, "a", chunks[0].Text)
	})

	t.Run("embedded NUL stays in the frame", func(t *testing.T) {
		f := newFramer(RepairDecoder{})
		chunks, err := f.push([]byte("{\"text\":\"he\x00llo\",\"error_code\":0}\x00"), false)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "he llo", chunks[0].Text)
	})

	t.Run("embedded NUL split across pushes", func(t *testing.T) {
		f := newFramer(RepairDecoder{})
		chunks, err := f.push([]byte("{\"text\":\"he\x00"), false)
		require.NoError(t, err)
		assert.Empty(t, chunks)

		chunks, err = f.push([]byte("llo\",\"error_code\":0}\x00"), false)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "he llo", chunks[0].Text)
	})
}

func TestDecoderByName(t *testing.T) {
	tests := []struct {
		name    string
		want    ChunkDecoder
		wantErr bool
	}{
		{name: "", want: RepairDecoder{}},
		{name: "repair", want: RepairDecoder{}},
		{name: "Strict", want: StrictDecoder{}},
		{name: "lenient", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecoderByName(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
