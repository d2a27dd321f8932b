package moderation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"group-lab/errors"
)

func TestScreen_Check(t *testing.T) {
	req := require.New(t)
	screen, err := NewScreen([]string{"idiot", "scammer", "imbecile"})
	req.NoError(err)

	tests := []struct {
		name    string
		input   string
		clean   bool
		matches []string
	}{
		{
			name:  "clean text stays clean",
			input: "team lead for the raid tonight",
			clean: true,
		},
		{
			name:  "empty text stays clean",
			input: "",
			clean: true,
		},
		{
			name:    "direct hit",
			input:   "what an idiot",
			clean:   false,
			matches: []string{"idiot"},
		},
		{
			name:    "uppercase is normalized",
			input:   "IDIOT",
			clean:   false,
			matches: []string{"IDIOT"},
		},
		{
			name:    "leet speak is simplified",
			input:   "such a 1d10t move",
			clean:   false,
			matches: []string{"1d10t"},
		},
		{
			name:    "punctuation padding is ignored",
			input:   "s.c.a.m.m.e.r alert",
			clean:   false,
			matches: []string{"s.c.a.m.m.e.r"},
		},
		{
			name:    "repeated word reported once",
			input:   "idiot idiot idiot",
			clean:   false,
			matches: []string{"idiot"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			verdict := screen.Check(tt.input)
			req.Equal(tt.clean, verdict.Clean())
			if !tt.clean {
				req.Equal(tt.matches, verdict.Matches)
			}
		})
	}
}

func TestScreen_Check_DetectsLanguage(t *testing.T) {
	req := require.New(t)
	screen, err := NewScreen([]string{"clown"})
	req.NoError(err)

	verdict := screen.Check("this clown keeps spamming the group chat every single day")
	req.False(verdict.Clean())
	req.Equal("en", verdict.Lang)
}

func TestDefaultWords(t *testing.T) {
	req := require.New(t)

	list, err := DefaultWords()
	req.NoError(err)
	req.NotEmpty(list.Words)
	req.Contains(list.Languages, "en")
	req.Contains(list.Languages, "fr")
}

func TestLoadWordsFile(t *testing.T) {
	req := require.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "extra.txt")
	content := "# operator list\nspoiler\n\nspoiler\ngriefer\n"
	req.NoError(os.WriteFile(path, []byte(content), 0o600))

	words, err := LoadWordsFile(path)
	req.NoError(err)
	req.Equal([]string{"spoiler", "griefer"}, words)
}

func TestLoadWordsFile_Empty(t *testing.T) {
	req := require.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	req.NoError(os.WriteFile(path, []byte("# nothing here\n"), 0o600))

	_, err := LoadWordsFile(path)
	req.ErrorIs(err, errors.ErrEmptyWords)
}
