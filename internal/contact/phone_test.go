package contact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumbers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"separators stripped, order kept", "請打 0972-223-409 或 0972223410", []string{"0972223409", "0972223410"}},
		{"duplicates removed", "0912345678\n0912-345-678；0912345678", []string{"0912345678"}},
		{"international prefix kept", "+886912345678 / +886912345678", []string{"+886912345678"}},
		{"emoji and labels are noise", "📞 手機:0912345678｜市話 03-822-4750", []string{"0912345678", "038224750"}},
		{"seven digits rejected", "1234567", nil},
		{"eight digits accepted", "12345678", []string{"12345678"}},
		{"fifteen digits accepted", "123456789012345", []string{"123456789012345"}},
		{"sixteen digits rejected", "1234567890123456", nil},
		{"plus does not count as digit", "+1234567", nil},
		{"comma separated", "0910614250,0928249610", []string{"0910614250", "0928249610"}},
		{"crlf", "0910614250\r\n0928249610", []string{"0910614250", "0928249610"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseNumbers(tt.input))
		})
	}
}

func TestFormatDisplay(t *testing.T) {
	tests := map[string]string{
		"+886912345678": "+886 912 345 678",
		"886912345678":  "+886 912 345 678",
		"0912345678":    "0912 345 678",
		"038224750":     "038 224 750",
		"12345678":      "123 456 78",
		"":              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatDisplay(in), "input %q", in)
	}
}

func TestFormatDisplayKeepsDigits(t *testing.T) {
	for _, n := range ParseNumbers("0912345678 +886912345678 038224750 123456789012345") {
		assert.Equal(t, n, normalizeToken(stripSpaces(FormatDisplay(n))))
	}
}

func stripSpaces(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r != ' ' {
			out = append(out, r)
		}
	}
	return string(out)
}

func TestDialURI(t *testing.T) {
	assert.Equal(t, "tel:038227171,423", DialURI("03-822-7171 #423"))
	assert.Equal(t, "tel:+886912345678", DialURI("+886 912 345 678"))
	assert.Equal(t, "tel:1925", DialURI("1925"))
}

func TestDirectoryRender(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contacts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
categories:
  - title: 衛生福利部 24 小時免費安心專線
    entries:
      - label: 安心專線
        phones: ["1925"]
        note: (依舊愛我)
  - title: 志工/物資聯繫
    entries:
      - label: 受災戶室內水電修繕
        phones: ["0972-223-364", "03-822-7171 #423"]
        hours: 8:00-12:00、13:30-17:30
`), 0o600))

	d, err := LoadDirectory(path)
	require.NoError(t, err)

	out := d.Render()
	require.Len(t, out, 2)

	hotline := out[0].Entries[0]
	assert.Equal(t, "安心專線", hotline.Label)
	require.Len(t, hotline.Phones, 1)
	assert.Empty(t, hotline.Phones[0].Numbers)
	assert.Equal(t, "tel:1925", hotline.Phones[0].Tel)

	repair := out[1].Entries[0]
	require.Len(t, repair.Phones, 2)
	assert.Equal(t, []string{"0972223364"}, repair.Phones[0].Numbers)
	assert.Equal(t, []string{"0972 223 364"}, repair.Phones[0].Display)
	assert.Equal(t, "tel:0972223364", repair.Phones[0].Tel)
	assert.Equal(t, []string{"038227171"}, repair.Phones[1].Numbers)
	assert.Equal(t, "tel:038227171,423", repair.Phones[1].Tel)
}

func TestLoadDirectory(t *testing.T) {
	d, err := LoadDirectory("")
	require.NoError(t, err)
	assert.Empty(t, d.Render())

	_, err = LoadDirectory(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDirectory_SampleFile(t *testing.T) {
	d, err := LoadDirectory(filepath.Join("..", "..", "config", "contacts.yaml"))
	require.NoError(t, err)
	rendered := d.Render()
	require.NotEmpty(t, rendered)
	for _, cat := range rendered {
		for _, e := range cat.Entries {
			assert.Len(t, e.Phones, len(e.Entry.Phones), e.Label)
		}
	}
}
